package session

import (
	"github.com/webpilot-ai/webpilot/config"
	"github.com/webpilot-ai/webpilot/types"
)

// Guardrail rejection reasons, also used as metric labels.
const (
	ReasonStepCap     = "step cap"
	ReasonFeedbackCap = "feedback cap"
	ReasonNotActive   = "not active"
)

// Guardrails enforces the hard per-session resource caps. Checks run before
// any model call so no cost is spent on a call that cannot be committed.
type Guardrails struct {
	stepCap     int
	feedbackCap int
}

// NewGuardrails builds the enforcer from session configuration.
func NewGuardrails(cfg config.SessionConfig) *Guardrails {
	return &Guardrails{
		stepCap:     cfg.StepCap,
		feedbackCap: cfg.FeedbackCap,
	}
}

// Check validates that s may accept another turn. feedback selects the
// additional feedback-cap rule (feedback also increments step_count, so a
// feedback call can be rejected by either cap).
func (g *Guardrails) Check(s *types.Session, feedback bool) error {
	if s.Status != types.StatusActive {
		return types.Errorf(types.ErrInvalidState, "session %s is %s, not active", s.ID, s.Status)
	}
	if s.StepCount >= g.stepCap {
		return types.Errorf(types.ErrGuardrailExceeded, "step cap reached (%d)", g.stepCap)
	}
	if feedback && s.FeedbackTurns() >= g.feedbackCap {
		return types.Errorf(types.ErrGuardrailExceeded, "feedback cap reached (%d)", g.feedbackCap)
	}
	return nil
}

// Reason maps a rejection error to its metric label.
func (g *Guardrails) Reason(s *types.Session, feedback bool) string {
	switch {
	case s.Status != types.StatusActive:
		return ReasonNotActive
	case s.StepCount >= g.stepCap:
		return ReasonStepCap
	case feedback && s.FeedbackTurns() >= g.feedbackCap:
		return ReasonFeedbackCap
	default:
		return ""
	}
}
