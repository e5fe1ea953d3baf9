package types

import "time"

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
	StatusError     Status = "error"
)

// IsTerminal reports whether the status allows no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusAbandoned || s == StatusError
}

// Valid reports whether s is one of the defined lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusAbandoned, StatusError:
		return true
	}
	return false
}

// Turn is one recorded step in a session's history: either an action the
// model recommended, or a user feedback correction (Kind == KindFeedback).
type Turn struct {
	TurnNumber   int        `json:"turn_number"`
	Kind         ActionKind `json:"kind"`
	FieldLabel   string     `json:"field_label,omitempty"`
	Value        string     `json:"value,omitempty"`
	Confidence   float64    `json:"confidence,omitempty"`
	GoalAchieved bool       `json:"goal_achieved,omitempty"`
	Timestamp    time.Time  `json:"timestamp"`
}

// Session is the unit of orchestrator state. The turn log is append-only;
// counters are monotonically non-decreasing; GoalEntities is set exactly once
// at creation. Version backs the optimistic concurrency check on every write.
type Session struct {
	ID                string            `json:"id"`
	TenantID          string            `json:"tenant_id"`
	UserID            string            `json:"user_id,omitempty"`
	Goal              string            `json:"goal"`
	StartingURL       string            `json:"starting_url,omitempty"`
	GoalEntities      map[string]string `json:"goal_entities,omitempty"`
	Status            Status            `json:"status"`
	Turns             []Turn            `json:"turns,omitempty"`
	StepCount         int               `json:"step_count"`
	TotalInputTokens  int               `json:"total_input_tokens"`
	TotalOutputTokens int               `json:"total_output_tokens"`
	EstimatedCost     float64           `json:"estimated_cost"`
	StartedAt         time.Time         `json:"started_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	LastActivityAt    time.Time         `json:"last_activity_at"`
	Version           int64             `json:"version"`
}

// FeedbackTurns counts the turns recorded as user feedback.
func (s *Session) FeedbackTurns() int {
	n := 0
	for _, t := range s.Turns {
		if t.Kind.IsFeedback() {
			n++
		}
	}
	return n
}

// ActionTurns returns the turns that carry model-recommended actions,
// preserving order.
func (s *Session) ActionTurns() []Turn {
	out := make([]Turn, 0, len(s.Turns))
	for _, t := range s.Turns {
		if !t.Kind.IsFeedback() {
			out = append(out, t)
		}
	}
	return out
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	if s.GoalEntities != nil {
		c.GoalEntities = make(map[string]string, len(s.GoalEntities))
		for k, v := range s.GoalEntities {
			c.GoalEntities[k] = v
		}
	}
	if s.Turns != nil {
		c.Turns = make([]Turn, len(s.Turns))
		copy(c.Turns, s.Turns)
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// SessionSummary is the read-only view returned by the public operations.
type SessionSummary struct {
	ID                string            `json:"session_id"`
	Goal              string            `json:"goal"`
	GoalEntities      map[string]string `json:"goal_entities,omitempty"`
	Status            Status            `json:"status"`
	StepCount         int               `json:"step_count"`
	FeedbackCount     int               `json:"feedback_count"`
	TotalInputTokens  int               `json:"total_input_tokens"`
	TotalOutputTokens int               `json:"total_output_tokens"`
	EstimatedCost     float64           `json:"estimated_cost"`
	StartedAt         time.Time         `json:"started_at"`
	CompletedAt       *time.Time        `json:"completed_at,omitempty"`
	LastActivityAt    time.Time         `json:"last_activity_at"`
}

// Summary builds the public snapshot of the session.
func (s *Session) Summary() *SessionSummary {
	sum := &SessionSummary{
		ID:                s.ID,
		Goal:              s.Goal,
		Status:            s.Status,
		StepCount:         s.StepCount,
		FeedbackCount:     s.FeedbackTurns(),
		TotalInputTokens:  s.TotalInputTokens,
		TotalOutputTokens: s.TotalOutputTokens,
		EstimatedCost:     s.EstimatedCost,
		StartedAt:         s.StartedAt,
		LastActivityAt:    s.LastActivityAt,
	}
	if len(s.GoalEntities) > 0 {
		sum.GoalEntities = make(map[string]string, len(s.GoalEntities))
		for k, v := range s.GoalEntities {
			sum.GoalEntities[k] = v
		}
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		sum.CompletedAt = &t
	}
	return sum
}
