package session

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/webpilot-ai/webpilot/types"
)

// Truncation limits for free-text action fields.
const (
	maxInstructionLength = 200
	maxReasoningLength   = 300
	maxFieldLabelLength  = 50
)

// Coerce converts a raw structured model response into a ValidatedAction.
// It is total: every field has a clamp or default, and no input can make it
// fail. Unknown action kinds become "wait"; numbers are clamped to [0, 1];
// free text is truncated.
//
// The automation level is derived here, from the already-clamped confidence
// and kind. The model never controls it: unattended execution is a policy
// decision, not a model output.
func Coerce(fields map[string]any) types.ValidatedAction {
	kind, ok := types.ParseActionKind(coerceString(fields["action_kind"]))
	if !ok {
		kind = types.KindWait
	}

	confidence := coerceUnitFloat(fields["confidence"])

	return types.ValidatedAction{
		Kind:             kind,
		ElementIndex:     coerceInt(fields["element_index"]),
		Instruction:      types.TruncateRunes(coerceString(fields["instruction"]), maxInstructionLength),
		Reasoning:        types.TruncateRunes(coerceString(fields["reasoning"]), maxReasoningLength),
		FieldLabel:       types.TruncateRunes(coerceString(fields["field_label"]), maxFieldLabelLength),
		SelectorHint:     optionalString(fields["selector_hint"]),
		AutoFillValue:    optionalString(fields["auto_fill_value"]),
		Confidence:       confidence,
		ProgressEstimate: coerceUnitFloat(fields["progress_estimate"]),
		GoalAchieved:     coerceBool(fields["goal_achieved"]),
		AutomationLevel:  AutomationLevelFor(confidence, kind),
	}
}

// AutomationLevelFor derives the trust classification for a recommended
// action. Only a high-confidence click qualifies for unattended execution.
func AutomationLevelFor(confidence float64, kind types.ActionKind) types.AutomationLevel {
	switch {
	case confidence >= 0.90 && kind == types.KindClick:
		return types.AutomationAuto
	case confidence >= 0.70:
		return types.AutomationConfirm
	default:
		return types.AutomationManual
	}
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return ""
	}
}

func optionalString(v any) *string {
	if s, ok := v.(string); ok && s != "" {
		return &s
	}
	return nil
}

func coerceInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(n)); err == nil {
			return i
		}
	}
	return 0
}

func coerceUnitFloat(v any) float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func coerceBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	default:
		return false
	}
}
