package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/internal/metrics"
)

const tokensPerMillion = 1_000_000

// Cost converts token counts into USD for the given model. Pure function:
// unknown models price at zero so accounting never blocks a step.
func Cost(pricing map[string]config.ModelPricing, model string, inputTokens, outputTokens int) float64 {
	p, ok := pricing[model]
	if !ok {
		return 0
	}
	return float64(inputTokens)/tokensPerMillion*p.InputPerMTok +
		float64(outputTokens)/tokensPerMillion*p.OutputPerMTok
}

// Accountant turns per-call token counts into running cost and feeds the
// per-process advisory counters. The authoritative total lives on the
// session record, not here.
type Accountant struct {
	pricing map[string]config.ModelPricing
	metrics *metrics.Collector
	logger  *zap.Logger

	mu     sync.Mutex
	warned map[string]bool
}

// NewAccountant creates a cost accountant with the given pricing table.
func NewAccountant(pricing map[string]config.ModelPricing, collector *metrics.Collector, logger *zap.Logger) *Accountant {
	return &Accountant{
		pricing: pricing,
		metrics: collector,
		logger:  logger.With(zap.String("component", "cost")),
		warned:  make(map[string]bool),
	}
}

// Charge computes the cost of one model call and records the advisory
// process-wide counters. Returns the USD cost to add to the session total.
func (a *Accountant) Charge(model string, inputTokens, outputTokens int) float64 {
	cost := Cost(a.pricing, model, inputTokens, outputTokens)
	if _, ok := a.pricing[model]; !ok {
		a.mu.Lock()
		if !a.warned[model] {
			a.warned[model] = true
			a.logger.Warn("no pricing for model, cost recorded as zero", zap.String("model", model))
		}
		a.mu.Unlock()
	}
	a.metrics.Usage(inputTokens, outputTokens, cost)
	return cost
}
