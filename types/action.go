package types

// ActionKind identifies the kind of step recorded in a session's turn log.
// All kinds except KindFeedback are actions the model may recommend.
type ActionKind string

const (
	KindClick        ActionKind = "click"
	KindInputCommit  ActionKind = "input_commit"
	KindSelectChange ActionKind = "select_change"
	KindNavigate     ActionKind = "navigate"
	KindSubmit       ActionKind = "submit"
	KindWait         ActionKind = "wait"

	// KindFeedback marks a user-correction turn in the log.
	// It is a sentinel: the model can never produce it.
	KindFeedback ActionKind = "feedback"
)

// ParseActionKind maps a raw string onto the closed set of model-recommendable
// action kinds. Unknown values (including "feedback") report ok=false.
func ParseActionKind(s string) (ActionKind, bool) {
	switch ActionKind(s) {
	case KindClick, KindInputCommit, KindSelectChange, KindNavigate, KindSubmit, KindWait:
		return ActionKind(s), true
	}
	return "", false
}

// IsFeedback reports whether the turn kind is the feedback sentinel.
func (k ActionKind) IsFeedback() bool {
	return k == KindFeedback
}

// AutomationLevel classifies how much trust to place in a recommended action
// before executing it. It is derived by deterministic policy, never by the model.
type AutomationLevel string

const (
	AutomationAuto    AutomationLevel = "auto"
	AutomationConfirm AutomationLevel = "confirm"
	AutomationManual  AutomationLevel = "manual"
)

// ValidatedAction is the single next action returned by the orchestrator.
// Every field has already been clamped or defaulted; no raw model output
// leaks through this type.
type ValidatedAction struct {
	Kind             ActionKind      `json:"action_kind"`
	ElementIndex     int             `json:"element_index"`
	Instruction      string          `json:"instruction"`
	Reasoning        string          `json:"reasoning,omitempty"`
	FieldLabel       string          `json:"field_label,omitempty"`
	SelectorHint     *string         `json:"selector_hint,omitempty"`
	AutoFillValue    *string         `json:"auto_fill_value,omitempty"`
	Confidence       float64         `json:"confidence"`
	ProgressEstimate float64         `json:"progress_estimate"`
	GoalAchieved     bool            `json:"goal_achieved"`
	AutomationLevel  AutomationLevel `json:"automation_level"`
}
