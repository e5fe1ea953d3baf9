package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/llm"
	"github.com/webpilot-ai/webpilot/llm/llmtest"
)

func TestExtractReturnsEntities(t *testing.T) {
	fake := llmtest.NewFake().Enqueue(map[string]any{
		"entities": map[string]any{
			"amount": "$50",
			"vendor": "Staples",
		},
		"summary": "Submit a fifty dollar expense for Staples",
	}, 80, 20)

	e := NewEntityExtractor(fake, "gpt-4o-mini", 0.2, zap.NewNop())
	entities, inTok, outTok := e.Extract(context.Background(), "Submit a $50 expense report for Staples")

	assert.Equal(t, map[string]string{"amount": "$50", "vendor": "Staples"}, entities)
	assert.Equal(t, 80, inTok)
	assert.Equal(t, 20, outTok)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "goal_entities", calls[0].SchemaName)
	assert.Equal(t, "Submit a $50 expense report for Staples", calls[0].User)
}

func TestExtractDropsNonStringValues(t *testing.T) {
	fake := llmtest.NewFake().Enqueue(map[string]any{
		"entities": map[string]any{
			"amount": float64(50),
			"vendor": "Staples",
		},
	}, 10, 5)

	e := NewEntityExtractor(fake, "gpt-4o-mini", 0.2, zap.NewNop())
	entities, _, _ := e.Extract(context.Background(), "expense")

	assert.Equal(t, map[string]string{"vendor": "Staples"}, entities)
}

func TestExtractNeverFails(t *testing.T) {
	tests := []struct {
		name string
		fake *llmtest.Fake
	}{
		{"upstream error", llmtest.NewFake().EnqueueError(llm.NewError(llm.ErrUpstreamError, "boom"))},
		{"rate limited", llmtest.NewFake().EnqueueError(llm.NewError(llm.ErrRateLimited, "slow down"))},
		{"no entity object", llmtest.NewFake().Enqueue(map[string]any{"summary": "something"}, 5, 5)},
		{"entities wrong type", llmtest.NewFake().Enqueue(map[string]any{"entities": "not-a-map"}, 5, 5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEntityExtractor(tt.fake, "gpt-4o-mini", 0.2, zap.NewNop())
			entities, _, _ := e.Extract(context.Background(), "some goal")
			assert.NotNil(t, entities)
			assert.Empty(t, entities)
		})
	}
}
