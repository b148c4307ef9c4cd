package schema

import (
	"fmt"
	"time"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeStageExecution    = "STAGE_EXECUTION_ERROR"
	ErrCodeScheduling        = "SCHEDULING_ERROR"
	ErrCodeStore             = "STORE_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeInvalidTransition = "INVALID_TRANSITION"
	ErrCodeInvalidAction     = "INVALID_ACTION"
)

// Error is the structured error type for all FuseSell operations.
// Stage and At fill the envelope persisted alongside failed operations.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Stage   string         `json:"stage,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	At      time.Time      `json:"timestamp"`
	Cause   error          `json:"-"`
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("[%s] stage %s: %s", e.Code, e.Stage, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message, At: time.Now().UTC()}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), At: time.Now().UTC()}
}

// WithStage attaches the originating stage name.
func (e *Error) WithStage(stage string) *Error {
	e.Stage = stage
	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}
