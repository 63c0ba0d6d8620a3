package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"
)

// Error codes carried in the error envelope
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeInvalidInput     = "INVALID_INPUT"
	CodeNotFound         = "NOT_FOUND"
	CodeRunNotFound      = "RUN_NOT_FOUND"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodePayloadTooLarge  = "PAYLOAD_TOO_LARGE"
	CodeRateLimited      = "RATE_LIMIT_EXCEEDED"
	CodeStorage          = "STORAGE_ERROR"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
	CodeTimeout          = "TIMEOUT"
)

// APIError is the error half of every non-2xx JSON response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Render sets the response status for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// ValidationError names the request field that failed a check
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors is the details payload when several fields fail
type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

// PanicRecovery is the details payload of a recovered panic. Stack is only
// filled when the handler is configured to expose it.
type PanicRecovery struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{StatusCode: statusCode, ErrorCode: errorCode, Message: message}
}

func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	e := New(statusCode, errorCode, message)
	e.Details = details
	return e
}

var (
	ErrInvalidRequest    = New(http.StatusBadRequest, CodeInvalidRequest, "Invalid request format")
	ErrRunNotFound       = New(http.StatusNotFound, CodeRunNotFound, "QA run not found")
	ErrPayloadTooLarge   = New(http.StatusRequestEntityTooLarge, CodePayloadTooLarge, "Upload exceeds the maximum allowed size")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded")
	ErrTimeout           = New(http.StatusGatewayTimeout, CodeTimeout, "Request took too long to process")
)

// InvalidRequestWithError is ErrInvalidRequest with err's text as details
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeInvalidRequest, ErrInvalidRequest.Message, err.Error())
}

// ErrValidation reports a single bad field
func ErrValidation(field, message string) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationError{Field: field, Message: message})
}

// NewValidationErrors reports several bad fields at once
func NewValidationErrors(errs []ValidationError) *APIError {
	return NewWithDetails(http.StatusBadRequest, CodeValidationFailed, "Request validation failed",
		ValidationErrors{Errors: errs})
}

// ErrPanic wraps a recovered panic value
func ErrPanic(rec interface{}) *APIError {
	return NewWithDetails(http.StatusInternalServerError, CodeInternal, "Internal server error",
		PanicRecovery{Message: fmt.Sprint(rec)})
}

// appErrorStatus maps an AppError type onto its HTTP status and code
var appErrorStatus = map[ErrorType]struct {
	status int
	code   string
}{
	ErrTypeValidation: {http.StatusBadRequest, CodeValidationFailed},
	ErrTypeInput:      {http.StatusBadRequest, CodeInvalidInput},
	ErrTypeParsing:    {http.StatusBadRequest, CodeInvalidInput},
	ErrTypeNotFound:   {http.StatusNotFound, CodeNotFound},
	ErrTypeStorage:    {http.StatusInternalServerError, CodeStorage},
}

// FromError converts any error into an APIError. An APIError anywhere in
// the chain is returned as is. Context cancellation or deadline becomes a
// timeout, AppErrors map by type and anything else is a 500.
func FromError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return NewWithDetails(http.StatusInternalServerError, CodeInternal, "Internal server error", err.Error())
	}

	mapped, ok := appErrorStatus[appErr.Type]
	if !ok {
		mapped.status, mapped.code = http.StatusInternalServerError, CodeInternal
	}
	out := New(mapped.status, mapped.code, appErr.Message)
	switch {
	case appErr.Type == ErrTypeValidation:
		if len(appErr.Context) > 0 {
			out.Details = appErr.Context
		}
	case appErr.Type == ErrTypeNotFound:
	case appErr.Cause != nil:
		out.Details = appErr.Cause.Error()
	}
	return out
}

// ErrorResponse is the JSON envelope for failed requests
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{Error: err}
}

func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

// WriteError writes the envelope without going through chi/render, for
// middleware that runs outside a render-aware handler
func WriteError(w http.ResponseWriter, err *APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.StatusCode)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(err))
}
