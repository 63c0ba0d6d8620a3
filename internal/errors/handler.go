package errors

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

// ErrorHandler turns errors and panics into the JSON error envelope and logs
// them with the request's identity. Client errors log at warn, server
// errors at error.
type ErrorHandler struct {
	logger       *slog.Logger
	includeStack bool
}

// NewErrorHandler returns a handler logging to logger (slog.Default when
// nil). includeStack exposes panic stacks in responses.
func NewErrorHandler(logger *slog.Logger, includeStack bool) *ErrorHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorHandler{
		logger:       logger.With(slog.String("component", "error_handler")),
		includeStack: includeStack,
	}
}

func requestAttrs(r *http.Request) []any {
	return []any{
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
	}
}

func (h *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		return
	}
	apiErr := FromError(err)

	level := slog.LevelWarn
	if apiErr.StatusCode >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	attrs := append(requestAttrs(r),
		slog.String("error", err.Error()),
		slog.String("error_code", apiErr.ErrorCode),
		slog.Int("status", apiErr.StatusCode))
	h.logger.Log(r.Context(), level, "request failed", attrs...)

	_ = render.Render(w, r, NewErrorResponse(apiErr))
}

func (h *ErrorHandler) HandlePanic(w http.ResponseWriter, r *http.Request, recovered interface{}) {
	stack := string(debug.Stack())
	attrs := append(requestAttrs(r), slog.Any("panic", recovered), slog.String("stack", stack))
	h.logger.ErrorContext(r.Context(), "panic recovered", attrs...)

	apiErr := ErrPanic(recovered)
	if h.includeStack {
		apiErr.Details = PanicRecovery{Message: fmt.Sprint(recovered), Stack: stack}
	}
	_ = render.Render(w, r, NewErrorResponse(apiErr))
}

// NotFound is the router's fallback for unknown paths
func (h *ErrorHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, NewErrorResponse(NewWithDetails(http.StatusNotFound, CodeNotFound,
		"The requested resource was not found", r.URL.Path)))
}

// MethodNotAllowed is the router's fallback for known paths with the wrong verb
func (h *ErrorHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	_ = render.Render(w, r, NewErrorResponse(New(http.StatusMethodNotAllowed, CodeMethodNotAllowed,
		fmt.Sprintf("Method %s is not allowed for this endpoint", r.Method))))
}
