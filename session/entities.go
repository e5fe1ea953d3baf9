package session

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/webpilot-ai/webpilot/llm"
)

// entitySchema forces a flat string map of goal entities plus a one-sentence
// summary. The summary is logged only, never persisted.
var entitySchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"entities": {
			"type": "object",
			"additionalProperties": {"type": "string"},
			"description": "Key/value pairs named in the goal, e.g. amounts, vendors, dates"
		},
		"summary": {
			"type": "string",
			"description": "One sentence restating the goal"
		}
	},
	"required": ["entities"]
}`)

const entitySystemPrompt = "Extract the concrete values a user named in their goal " +
	"(amounts, vendors, names, dates, identifiers) as a flat key/value map. " +
	"Keys are short snake_case labels; values are copied verbatim from the goal."

// EntityExtractor performs the one-shot goal analysis at session creation.
// It is strictly best-effort: any upstream failure yields an empty map and a
// log line, never an error. No caching, no retries.
type EntityExtractor struct {
	invoker     llm.Invoker
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewEntityExtractor creates an extractor bound to one model.
func NewEntityExtractor(invoker llm.Invoker, model string, temperature float32, logger *zap.Logger) *EntityExtractor {
	return &EntityExtractor{
		invoker:     invoker,
		model:       model,
		temperature: temperature,
		logger:      logger.With(zap.String("component", "entity_extractor")),
	}
}

// Extract returns the key/value entities found in the goal, plus the token
// counts of the call so the session can be charged for its own creation.
// Never fails: extraction problems must not prevent session creation.
func (e *EntityExtractor) Extract(ctx context.Context, goal string) (map[string]string, int, int) {
	resp, err := e.invoker.InvokeStructured(ctx, &llm.StructuredRequest{
		Model:       e.model,
		System:      entitySystemPrompt,
		User:        goal,
		SchemaName:  "goal_entities",
		Schema:      entitySchema,
		Temperature: e.temperature,
	})
	if err != nil {
		e.logger.Warn("entity extraction failed, continuing without entities", zap.Error(err))
		return map[string]string{}, 0, 0
	}

	if summary, ok := resp.Fields["summary"].(string); ok && summary != "" {
		e.logger.Info("goal summarized", zap.String("summary", summary))
	}

	entities := map[string]string{}
	raw, ok := resp.Fields["entities"].(map[string]any)
	if !ok {
		e.logger.Warn("entity extraction returned no entity object")
		return entities, resp.InputTokens, resp.OutputTokens
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			entities[k] = s
		}
	}
	return entities, resp.InputTokens, resp.OutputTokens
}
