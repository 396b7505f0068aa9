package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeUnsupportedAction = "UNSUPPORTED_ACTION"
	ErrCodeMissingField      = "MISSING_FIELD"
	ErrCodeExecution         = "EXECUTION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInactive          = "INACTIVE"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeStore             = "STORE_ERROR"
)

// EngineError is the structured error type for all engine operations.
type EngineError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Cause      error          `json:"-"`
}

func (e *EngineError) Error() string {
	if e.WorkflowID != "" {
		return fmt.Sprintf("[%s] workflow %s: %s", e.Code, e.WorkflowID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// NewError creates a new EngineError.
func NewError(code, message string) *EngineError {
	return &EngineError{Code: code, Message: message}
}

// NewErrorf creates a new EngineError with a formatted message.
func NewErrorf(code, format string, args ...any) *EngineError {
	return &EngineError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithWorkflow attaches a workflow ID to the error.
func (e *EngineError) WithWorkflow(workflowID string) *EngineError {
	e.WorkflowID = workflowID
	return e
}

// WithCause attaches an underlying cause.
func (e *EngineError) WithCause(err error) *EngineError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *EngineError) WithDetails(details map[string]any) *EngineError {
	e.Details = details
	return e
}
