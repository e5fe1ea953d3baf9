package session

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/webpilot-ai/webpilot/llm"
	"github.com/webpilot-ai/webpilot/types"
)

// actionSchema forces exactly one structured action object back: not free
// text, not a plan.
var actionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"action_kind": {
			"type": "string",
			"enum": ["click", "input_commit", "select_change", "navigate", "submit", "wait"]
		},
		"element_index": {"type": "integer", "minimum": 0},
		"instruction": {"type": "string", "maxLength": 200},
		"reasoning": {"type": "string", "maxLength": 300},
		"field_label": {"type": "string", "maxLength": 50},
		"selector_hint": {"type": "string"},
		"auto_fill_value": {"type": "string"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"progress_estimate": {"type": "number", "minimum": 0, "maximum": 1},
		"goal_achieved": {"type": "boolean"}
	},
	"required": ["action_kind", "instruction", "confidence", "goal_achieved"]
}`)

// Determiner issues the single forced-structured-output request that turns a
// rendered context into one next action. Failures are surfaced to the caller
// and never retried here.
type Determiner struct {
	invoker     llm.Invoker
	model       string
	temperature float32
	maxTokens   int
}

// NewDeterminer creates a determiner bound to one model.
func NewDeterminer(invoker llm.Invoker, model string, temperature float32, maxTokens int) *Determiner {
	return &Determiner{
		invoker:     invoker,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// Determine requests one structured action. Error codes:
// UPSTREAM_UNAVAILABLE for rate limits and transient upstream failures,
// MALFORMED_UPSTREAM_RESPONSE when no usable structured object came back.
func (d *Determiner) Determine(ctx context.Context, traceID, systemPrompt, userMessage string) (*llm.StructuredResponse, error) {
	resp, err := d.invoker.InvokeStructured(ctx, &llm.StructuredRequest{
		TraceID:     traceID,
		Model:       d.model,
		System:      systemPrompt,
		User:        userMessage,
		SchemaName:  "next_action",
		Schema:      actionSchema,
		MaxTokens:   d.maxTokens,
		Temperature: d.temperature,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		if llm.IsSchemaViolation(err) {
			return nil, types.NewError(types.ErrMalformedResponse, "model returned no structured action").WithCause(err)
		}
		return nil, types.NewError(types.ErrUpstreamUnavailable, "model invocation failed").
			WithCause(err).
			WithRetryable(llm.IsTransient(err))
	}

	if resp.Fields == nil {
		return nil, types.NewError(types.ErrMalformedResponse, "model response carried no fields")
	}
	if _, ok := resp.Fields["action_kind"]; !ok {
		return nil, types.NewError(types.ErrMalformedResponse, "model response missing action_kind")
	}
	return resp, nil
}
