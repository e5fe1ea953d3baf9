package session

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webpilot-ai/webpilot/types"
)

func actionTurns(n int) []types.Turn {
	turns := make([]types.Turn, 0, n)
	for i := 1; i <= n; i++ {
		turns = append(turns, types.Turn{
			TurnNumber: i,
			Kind:       types.KindClick,
			FieldLabel: fmt.Sprintf("field-%d", i),
			Timestamp:  time.Now(),
		})
	}
	return turns
}

func testPage() types.PageContext {
	return types.PageContext{
		URL:                 "https://expenses.example.com/new",
		Title:               "New Expense",
		InteractiveElements: "[0] input 'Amount'\n[1] button 'Submit'",
		StatusText:          "Draft saved",
		ElementCount:        2,
	}
}

func TestBuildShortHistoryRendersAllTurns(t *testing.T) {
	b := NewWindowBuilder(10)
	prompt := b.Build(actionTurns(4), testPage(), 4)

	for i := 1; i <= 4; i++ {
		assert.Contains(t, prompt, fmt.Sprintf("Step %d: click 'field-%d'", i, i))
	}
	assert.NotContains(t, prompt, "Earlier actions:")
	assert.Contains(t, prompt, "Steps taken so far: 4")
}

func TestBuildLongHistoryCompresses(t *testing.T) {
	b := NewWindowBuilder(10)
	prompt := b.Build(actionTurns(25), testPage(), 25)

	// The last 10 turns render in full.
	for i := 16; i <= 25; i++ {
		assert.Contains(t, prompt, fmt.Sprintf("Step %d: click 'field-%d'", i, i))
	}
	// The 15 older turns collapse to 5 fragments plus a count.
	assert.Contains(t, prompt, "Earlier actions:")
	for i := 1; i <= 5; i++ {
		assert.Contains(t, prompt, fmt.Sprintf("click 'field-%d'", i))
	}
	assert.Contains(t, prompt, "and 10 more actions")
	assert.NotContains(t, prompt, "Step 15: click")
}

func TestBuildExactWindowBoundaryHasNoSummary(t *testing.T) {
	b := NewWindowBuilder(10)
	prompt := b.Build(actionTurns(10), testPage(), 10)

	assert.NotContains(t, prompt, "Earlier actions:")
	assert.Contains(t, prompt, "Step 1: click 'field-1'")
	assert.Contains(t, prompt, "Step 10: click 'field-10'")
}

func TestBuildWrapsPageContentInDelimiters(t *testing.T) {
	b := NewWindowBuilder(10)
	prompt := b.Build(nil, testPage(), 0)

	begin := strings.Index(prompt, beginPageContent)
	end := strings.Index(prompt, endPageContent)
	require.GreaterOrEqual(t, begin, 0)
	require.Greater(t, end, begin)

	// Page-derived text stays strictly inside the delimited block.
	inside := prompt[begin:end]
	assert.Contains(t, inside, "https://expenses.example.com/new")
	assert.Contains(t, inside, "button 'Submit'")
	outside := prompt[:begin] + prompt[end:]
	assert.NotContains(t, outside, "button 'Submit'")

	assert.Contains(t, prompt, pageContentNotice)
	assert.Contains(t, prompt, "No actions recommended yet.")
}

func TestBuildClampsOversizedPageFields(t *testing.T) {
	b := NewWindowBuilder(10)
	page := testPage()
	page.InteractiveElements = strings.Repeat("e", types.MaxElementsLength+5000)
	prompt := b.Build(nil, page, 0)

	assert.Less(t, len(prompt), types.MaxElementsLength+2000)
}

func TestBuildExcludesFeedbackTurnsFromHistory(t *testing.T) {
	turns := actionTurns(3)
	turns = append(turns, types.Turn{
		TurnNumber: 4,
		Kind:       types.KindFeedback,
		FieldLabel: "correction",
		Value:      "wrong button",
	})

	b := NewWindowBuilder(10)
	prompt := b.Build(turns, testPage(), 4)

	assert.NotContains(t, prompt, "wrong button")
	assert.NotContains(t, prompt, "feedback")
}

func TestBuildMarksGoalAchievedTurn(t *testing.T) {
	turns := actionTurns(2)
	turns[1].GoalAchieved = true

	b := NewWindowBuilder(10)
	prompt := b.Build(turns, testPage(), 2)

	assert.Contains(t, prompt, "Step 2: click 'field-2' [GOAL ACHIEVED]")
}

func TestBuildWithFeedbackFreshPage(t *testing.T) {
	b := NewWindowBuilder(10)
	page := testPage()
	prompt := b.BuildWithFeedback(actionTurns(2), "use the other submit button", "step 2", &page, 2)

	assert.Contains(t, prompt, `"use the other submit button"`)
	assert.Contains(t, prompt, "(step 2)")
	assert.Contains(t, prompt, beginPageContent)
	assert.NotContains(t, prompt, staleContextNote)
}

func TestBuildWithFeedbackStalePage(t *testing.T) {
	b := NewWindowBuilder(10)
	prompt := b.BuildWithFeedback(actionTurns(2), "go back", "", nil, 2)

	assert.Contains(t, prompt, staleContextNote)
	assert.NotContains(t, prompt, beginPageContent)
}

func TestEstimateTokensMonotonicEnough(t *testing.T) {
	b := NewWindowBuilder(10)
	small := b.EstimateTokens("hello")
	large := b.EstimateTokens(strings.Repeat("an expense report line ", 200))

	assert.Greater(t, small, 0)
	assert.Greater(t, large, small)
}
