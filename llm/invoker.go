package llm

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrorCode aligns upstream model-API failures with retryability.
type ErrorCode string

const (
	ErrInvalidRequest  ErrorCode = "LLM_INVALID_REQUEST"
	ErrRateLimited     ErrorCode = "LLM_RATE_LIMITED"
	ErrUpstreamTimeout ErrorCode = "LLM_UPSTREAM_TIMEOUT"
	ErrUpstreamError   ErrorCode = "LLM_UPSTREAM_ERROR"
	ErrSchemaViolation ErrorCode = "LLM_SCHEMA_VIOLATION"
)

// Error is a structured model-invocation error.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Provider  string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// IsTransient reports whether err is a rate limit, timeout, or upstream
// failure that a caller could reasonably retry.
func IsTransient(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	switch e.Code {
	case ErrRateLimited, ErrUpstreamTimeout, ErrUpstreamError:
		return true
	}
	return false
}

// IsSchemaViolation reports whether err means the upstream returned no usable
// structured object.
func IsSchemaViolation(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrSchemaViolation
}

// StructuredRequest is a single forced-structured-output model call. The
// schema is mandatory: the upstream must return exactly one object matching
// it, never free text.
type StructuredRequest struct {
	TraceID     string          `json:"trace_id,omitempty"`
	Model       string          `json:"model"`
	System      string          `json:"system"`
	User        string          `json:"user"`
	SchemaName  string          `json:"schema_name"`
	Schema      json.RawMessage `json:"schema"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
}

// StructuredResponse carries the typed fields of the returned object plus
// the token accounting for the call.
type StructuredResponse struct {
	Fields       map[string]any `json:"fields"`
	Raw          string         `json:"raw,omitempty"`
	Model        string         `json:"model,omitempty"`
	InputTokens  int            `json:"input_tokens"`
	OutputTokens int            `json:"output_tokens"`
}

// Invoker is the model invocation collaborator. Implementations must not
// retry internally; transient failures are surfaced as *Error so the caller
// can decide.
type Invoker interface {
	// InvokeStructured issues one forced-schema request and returns the
	// structured object with token counts.
	InvokeStructured(ctx context.Context, req *StructuredRequest) (*StructuredResponse, error)

	// Name returns the invoker's unique identifier.
	Name() string
}
