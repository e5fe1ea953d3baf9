package session

import (
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/webpilot-ai/webpilot/types"
)

// The rendered history is structurally bounded: at most `window` full turns,
// at most maxSummaryFragments fragments, and one count line, regardless of
// how long the session ran.
func TestWindowRenderingBounded(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		window := rapid.IntRange(1, 20).Draw(t, "window")
		turnCount := rapid.IntRange(0, 200).Draw(t, "turns")

		kinds := []types.ActionKind{
			types.KindClick, types.KindInputCommit, types.KindSelectChange,
			types.KindNavigate, types.KindSubmit, types.KindWait,
		}
		turns := make([]types.Turn, turnCount)
		for i := range turns {
			turns[i] = types.Turn{
				TurnNumber: i + 1,
				Kind:       kinds[rapid.IntRange(0, len(kinds)-1).Draw(t, fmt.Sprintf("kind%d", i))],
				FieldLabel: fmt.Sprintf("f%d", i+1),
			}
		}

		b := NewWindowBuilder(window)
		prompt := b.Build(turns, types.PageContext{URL: "https://example.com"}, turnCount)

		fullRendered := strings.Count(prompt, "\nStep ")
		if fullRendered > window {
			t.Fatalf("rendered %d full turns, window is %d", fullRendered, window)
		}

		if turnCount > window {
			if !strings.Contains(prompt, "Earlier actions:") {
				t.Fatalf("overflow of %d turns rendered no summary", turnCount-window)
			}
			hidden := turnCount - window - maxSummaryFragments
			if hidden > 0 {
				want := fmt.Sprintf("and %d more actions", hidden)
				if !strings.Contains(prompt, want) {
					t.Fatalf("summary missing %q", want)
				}
			}
		} else if strings.Contains(prompt, "Earlier actions:") {
			t.Fatalf("summary rendered though all %d turns fit window %d", turnCount, window)
		}

		// Identical input renders identically: no clock, no randomness.
		if again := b.Build(turns, types.PageContext{URL: "https://example.com"}, turnCount); again != prompt {
			t.Fatalf("rendering is not deterministic")
		}
	})
}
