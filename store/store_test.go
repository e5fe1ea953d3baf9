package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/webpilot-ai/webpilot/types"
)

func newSession(tenantID string) *types.Session {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &types.Session{
		ID:             uuid.NewString(),
		TenantID:       tenantID,
		UserID:         "u-1",
		Goal:           "Submit a $50 expense report",
		StartingURL:    "https://expenses.example.com",
		GoalEntities:   map[string]string{"amount": "$50"},
		Status:         types.StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
		Version:        1,
	}
}

func appendClickTurn(turns []types.Turn, n int) []types.Turn {
	return append(turns, types.Turn{
		TurnNumber: n,
		Kind:       types.KindClick,
		FieldLabel: fmt.Sprintf("f%d", n),
		Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
	})
}

// testStoreContract runs the behavior every backend must share.
func testStoreContract(t *testing.T, newStore func(t *testing.T) SessionStore) {
	ctx := context.Background()

	t.Run("create and get round trip", func(t *testing.T) {
		st := newStore(t)
		sess := newSession("acme")
		require.NoError(t, st.Create(ctx, sess))

		got, err := st.Get(ctx, "acme", sess.ID)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, got.ID)
		assert.Equal(t, sess.Goal, got.Goal)
		assert.Equal(t, map[string]string{"amount": "$50"}, got.GoalEntities)
		assert.Equal(t, types.StatusActive, got.Status)
		assert.Equal(t, int64(1), got.Version)
	})

	t.Run("create rejects duplicate id", func(t *testing.T) {
		st := newStore(t)
		sess := newSession("acme")
		require.NoError(t, st.Create(ctx, sess))
		assert.ErrorIs(t, st.Create(ctx, sess), ErrAlreadyExists)
	})

	t.Run("create rejects invalid input", func(t *testing.T) {
		st := newStore(t)
		assert.ErrorIs(t, st.Create(ctx, nil), ErrInvalidInput)
		assert.ErrorIs(t, st.Create(ctx, &types.Session{}), ErrInvalidInput)
	})

	t.Run("get unknown id", func(t *testing.T) {
		st := newStore(t)
		_, err := st.Get(ctx, "acme", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("tenant mismatch is indistinguishable from absence", func(t *testing.T) {
		st := newStore(t)
		sess := newSession("acme")
		require.NoError(t, st.Create(ctx, sess))

		_, err := st.Get(ctx, "rival", sess.ID)
		assert.ErrorIs(t, err, ErrNotFound)

		stolen := sess.Clone()
		stolen.TenantID = "rival"
		assert.ErrorIs(t, st.Update(ctx, stolen), ErrNotFound)
	})

	t.Run("update bumps version and appends turns", func(t *testing.T) {
		st := newStore(t)
		sess := newSession("acme")
		require.NoError(t, st.Create(ctx, sess))

		sess.StepCount = 1
		sess.TotalInputTokens = 1200
		sess.Turns = append(sess.Turns, types.Turn{
			TurnNumber: 1,
			Kind:       types.KindClick,
			FieldLabel: "New Expense",
			Confidence: 0.9,
			Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
		})
		require.NoError(t, st.Update(ctx, sess))
		assert.Equal(t, int64(2), sess.Version)

		got, err := st.Get(ctx, "acme", sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.StepCount)
		assert.Equal(t, int64(2), got.Version)
		require.Len(t, got.Turns, 1)
		assert.Equal(t, types.KindClick, got.Turns[0].Kind)
	})

	t.Run("update with stale version conflicts", func(t *testing.T) {
		st := newStore(t)
		sess := newSession("acme")
		require.NoError(t, st.Create(ctx, sess))

		stale := sess.Clone()
		sess.StepCount = 1
		require.NoError(t, st.Update(ctx, sess))

		stale.StepCount = 99
		assert.ErrorIs(t, st.Update(ctx, stale), ErrVersionConflict)

		got, err := st.Get(ctx, "acme", sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, got.StepCount)
	})

	t.Run("update unknown session", func(t *testing.T) {
		st := newStore(t)
		assert.ErrorIs(t, st.Update(ctx, newSession("acme")), ErrNotFound)
	})

	t.Run("terminal transition persists", func(t *testing.T) {
		st := newStore(t)
		sess := newSession("acme")
		require.NoError(t, st.Create(ctx, sess))

		done := time.Now().UTC().Truncate(time.Millisecond)
		sess.Status = types.StatusCompleted
		sess.CompletedAt = &done
		require.NoError(t, st.Update(ctx, sess))

		got, err := st.Get(ctx, "acme", sess.ID)
		require.NoError(t, err)
		assert.Equal(t, types.StatusCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
	})

	t.Run("concurrent updates lose nothing", func(t *testing.T) {
		const writers = 6

		st := newStore(t)
		sess := newSession("acme")
		require.NoError(t, st.Create(ctx, sess))

		var g errgroup.Group
		for i := 0; i < writers; i++ {
			i := i
			g.Go(func() error {
				// Read-modify-write with retry, as the orchestrator does.
				for {
					cur, err := st.Get(ctx, "acme", sess.ID)
					if err != nil {
						return err
					}
					cur.StepCount++
					cur.Turns = append(cur.Turns, types.Turn{
						TurnNumber: cur.StepCount,
						Kind:       types.KindClick,
						FieldLabel: fmt.Sprintf("w%d", i),
					})
					err = st.Update(ctx, cur)
					if err == nil {
						return nil
					}
					if !errors.Is(err, ErrVersionConflict) {
						return err
					}
				}
			})
		}
		require.NoError(t, g.Wait())

		got, err := st.Get(ctx, "acme", sess.ID)
		require.NoError(t, err)
		assert.Equal(t, writers, got.StepCount)
		assert.Len(t, got.Turns, writers)
		assert.Equal(t, int64(writers+1), got.Version)
	})

	t.Run("ping", func(t *testing.T) {
		st := newStore(t)
		assert.NoError(t, st.Ping(ctx))
	})
}
