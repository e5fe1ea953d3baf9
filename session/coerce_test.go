package session

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpilot-ai/webpilot/types"
)

func TestCoerceWellFormed(t *testing.T) {
	action := Coerce(map[string]any{
		"action_kind":       "input_commit",
		"element_index":     float64(3),
		"instruction":       "Enter the expense amount",
		"reasoning":         "The amount field is empty",
		"field_label":       "Amount",
		"auto_fill_value":   "50.00",
		"confidence":        0.85,
		"progress_estimate": 0.4,
		"goal_achieved":     false,
	})

	assert.Equal(t, types.KindInputCommit, action.Kind)
	assert.Equal(t, 3, action.ElementIndex)
	assert.Equal(t, "Enter the expense amount", action.Instruction)
	assert.Equal(t, "Amount", action.FieldLabel)
	require.NotNil(t, action.AutoFillValue)
	assert.Equal(t, "50.00", *action.AutoFillValue)
	assert.Nil(t, action.SelectorHint)
	assert.InDelta(t, 0.85, action.Confidence, 1e-9)
	assert.False(t, action.GoalAchieved)
	assert.Equal(t, types.AutomationConfirm, action.AutomationLevel)
}

func TestCoerceMalformedFields(t *testing.T) {
	// Every field hostile at once: the result must still be a usable action.
	action := Coerce(map[string]any{
		"action_kind":   "teleport",
		"element_index": "not-an-index",
		"confidence":    "not-a-number",
		"goal_achieved": "maybe",
	})

	assert.Equal(t, types.KindWait, action.Kind)
	assert.Equal(t, 0, action.ElementIndex)
	assert.Equal(t, 0.0, action.Confidence)
	assert.False(t, action.GoalAchieved)
	assert.Equal(t, types.AutomationManual, action.AutomationLevel)
}

func TestCoerceEmptyAndNil(t *testing.T) {
	for name, fields := range map[string]map[string]any{
		"nil map":   nil,
		"empty map": {},
	} {
		t.Run(name, func(t *testing.T) {
			action := Coerce(fields)
			assert.Equal(t, types.KindWait, action.Kind)
			assert.Equal(t, 0.0, action.Confidence)
			assert.False(t, action.GoalAchieved)
		})
	}
}

func TestCoerceFeedbackKindRejected(t *testing.T) {
	// The feedback sentinel is not model-recommendable.
	action := Coerce(map[string]any{"action_kind": "feedback"})
	assert.Equal(t, types.KindWait, action.Kind)
}

func TestCoerceNumericEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"negative", -0.5, 0},
		{"above one", 1.7, 1},
		{"nan", math.NaN(), 0},
		{"json number", json.Number("0.42"), 0.42},
		{"string float", " 0.9 ", 0.9},
		{"bool", true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			action := Coerce(map[string]any{"action_kind": "click", "confidence": tt.in})
			assert.InDelta(t, tt.want, action.Confidence, 1e-9)
		})
	}
}

func TestCoerceTruncatesFreeText(t *testing.T) {
	long := strings.Repeat("x", 1000)
	action := Coerce(map[string]any{
		"action_kind": "click",
		"instruction": long,
		"reasoning":   long,
		"field_label": long,
	})

	assert.Len(t, action.Instruction, maxInstructionLength)
	assert.Len(t, action.Reasoning, maxReasoningLength)
	assert.Len(t, action.FieldLabel, maxFieldLabelLength)
}

func TestAutomationLevelFor(t *testing.T) {
	tests := []struct {
		name       string
		confidence float64
		kind       types.ActionKind
		want       types.AutomationLevel
	}{
		{"high confidence click", 0.95, types.KindClick, types.AutomationAuto},
		{"exact auto threshold", 0.90, types.KindClick, types.AutomationAuto},
		{"high confidence input", 0.95, types.KindInputCommit, types.AutomationConfirm},
		{"medium confidence", 0.75, types.KindInputCommit, types.AutomationConfirm},
		{"exact confirm threshold", 0.70, types.KindNavigate, types.AutomationConfirm},
		{"low confidence click", 0.3, types.KindClick, types.AutomationManual},
		{"zero", 0, types.KindWait, types.AutomationManual},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AutomationLevelFor(tt.confidence, tt.kind))
		})
	}
}
