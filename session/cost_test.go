package session

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/internal/metrics"
)

var testPricing = map[string]config.ModelPricing{
	"gpt-4o-mini": {InputPerMTok: 0.15, OutputPerMTok: 0.60},
}

func TestCost(t *testing.T) {
	tests := []struct {
		name    string
		model   string
		in, out int
		want    float64
	}{
		{"known model", "gpt-4o-mini", 1_000_000, 1_000_000, 0.75},
		{"small call", "gpt-4o-mini", 1200, 150, 1200*0.15/1e6 + 150*0.60/1e6},
		{"zero tokens", "gpt-4o-mini", 0, 0, 0},
		{"unknown model", "someone-elses-model", 1_000_000, 1_000_000, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Cost(testPricing, tt.model, tt.in, tt.out), 1e-12)
		})
	}
}

func TestAccountantCharge(t *testing.T) {
	collector := metrics.NewCollector("test_cost", prometheus.NewRegistry())
	a := NewAccountant(testPricing, collector, zap.NewNop())

	got := a.Charge("gpt-4o-mini", 1_000_000, 1_000_000)
	assert.InDelta(t, 0.75, got, 1e-12)

	// Unknown models charge zero and must not block the step.
	assert.Zero(t, a.Charge("mystery", 500, 500))
	assert.Zero(t, a.Charge("mystery", 500, 500))
}
