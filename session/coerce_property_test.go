package session

import (
	"reflect"
	"testing"
	"unicode/utf8"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/webpilot-ai/webpilot/types"
)

// Coercion must be total: no combination of raw field values may produce an
// out-of-range or unusable action.
func TestProperty_CoercionTotality(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	// gopter cannot Map into `any` (it mistakes the mapper for a GenResult
	// mapper), and gen.Const(nil) has no ResultType; generate the concrete
	// types directly and let ForAll assign them to the `any` parameters.
	nilGen := gopter.Gen(func(*gopter.GenParameters) *gopter.GenResult {
		return &gopter.GenResult{
			Shrinker:   gopter.NoShrinker,
			ResultType: reflect.TypeOf((*any)(nil)).Elem(),
			Sieve:      func(any) bool { return true },
		}
	})
	anyValue := gen.OneGenOf(
		gen.AnyString(),
		gen.Float64(),
		gen.Int(),
		gen.Bool(),
		nilGen,
	)

	properties.Property("every coerced action is in range and valid", prop.ForAll(
		func(kind string, index, confidence, progress, achieved any, instruction string) bool {
			action := Coerce(map[string]any{
				"action_kind":       kind,
				"element_index":     index,
				"confidence":        confidence,
				"progress_estimate": progress,
				"goal_achieved":     achieved,
				"instruction":       instruction,
			})

			if _, ok := types.ParseActionKind(string(action.Kind)); !ok {
				t.Logf("coerced kind %q is outside the closed set", action.Kind)
				return false
			}
			if action.Confidence < 0 || action.Confidence > 1 {
				t.Logf("confidence %v out of range", action.Confidence)
				return false
			}
			if action.ProgressEstimate < 0 || action.ProgressEstimate > 1 {
				t.Logf("progress %v out of range", action.ProgressEstimate)
				return false
			}
			if utf8.RuneCountInString(action.Instruction) > maxInstructionLength {
				t.Logf("instruction not truncated: %d runes", utf8.RuneCountInString(action.Instruction))
				return false
			}
			switch action.AutomationLevel {
			case types.AutomationAuto, types.AutomationConfirm, types.AutomationManual:
			default:
				t.Logf("unknown automation level %q", action.AutomationLevel)
				return false
			}
			return true
		},
		gen.AnyString(),
		anyValue, anyValue, anyValue, anyValue,
		gen.AnyString(),
	))

	properties.Property("automation level is a pure function of confidence and kind", prop.ForAll(
		func(confidence float64, kindIdx int) bool {
			kinds := []types.ActionKind{
				types.KindClick, types.KindInputCommit, types.KindSelectChange,
				types.KindNavigate, types.KindSubmit, types.KindWait,
			}
			kind := kinds[kindIdx%len(kinds)]

			level := AutomationLevelFor(confidence, kind)
			switch {
			case confidence >= 0.90 && kind == types.KindClick:
				return level == types.AutomationAuto
			case confidence >= 0.70:
				return level == types.AutomationConfirm
			default:
				return level == types.AutomationManual
			}
		},
		gen.Float64Range(0, 1),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}
