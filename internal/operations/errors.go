package operations

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType represents the type of pipeline error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeExecution    ErrorType = "execution"
	ErrorTypeCancellation ErrorType = "cancellation"
)

// OperationError is an error raised while running a pipeline step
type OperationError struct {
	Type    ErrorType `json:"type"`
	Step    string    `json:"step,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

// Error implements the error interface
func (e *OperationError) Error() string {
	if e == nil {
		return "unknown operation error"
	}
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Step != "" {
		msg = fmt.Sprintf("[%s] %s: %s", e.Type, e.Step, e.Message)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError reports an unusable pipeline input
func NewValidationError(step, message string) *OperationError {
	return &OperationError{Type: ErrorTypeValidation, Step: step, Message: message}
}

// NewExecutionError wraps a failure inside a step
func NewExecutionError(step string, cause error) *OperationError {
	return &OperationError{Type: ErrorTypeExecution, Step: step, Message: "step failed", Cause: cause}
}

// NewCancellationError reports a run stopped by its context before step ran.
// The context error stays reachable through errors.Is.
func NewCancellationError(step string, cause error) *OperationError {
	return &OperationError{Type: ErrorTypeCancellation, Step: step, Message: "run cancelled", Cause: cause}
}

// GetErrorType returns the type of the first OperationError in err's chain
func GetErrorType(err error) ErrorType {
	var opErr *OperationError
	if errors.As(err, &opErr) {
		return opErr.Type
	}
	return ""
}

// IsCancellation reports whether err stems from a cancelled or expired context
func IsCancellation(err error) bool {
	return GetErrorType(err) == ErrorTypeCancellation ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
