package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "ehrqa/internal/errors"
)

// ContentTypeValidator rejects request bodies whose media type is not one
// of contentTypes. Bodyless methods pass through.
func ContentTypeValidator(errorHandler *apperrors.ErrorHandler, contentTypes ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				errorHandler.HandleError(w, r, apperrors.New(
					http.StatusBadRequest,
					"MISSING_CONTENT_TYPE",
					"Content-Type header is required",
				))
				return
			}

			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil {
				errorHandler.HandleError(w, r, apperrors.InvalidRequestWithError(err))
				return
			}
			for _, allowed := range contentTypes {
				if strings.EqualFold(mediaType, allowed) {
					next.ServeHTTP(w, r)
					return
				}
			}

			errorHandler.HandleError(w, r, apperrors.NewWithDetails(
				http.StatusUnsupportedMediaType,
				"UNSUPPORTED_MEDIA_TYPE",
				"Unsupported content type",
				map[string]interface{}{
					"content_type": contentType,
					"allowed":      contentTypes,
				},
			))
		})
	}
}

// QueryParamValidator parses and range checks query parameters. Each
// Validate method writes the 400 response itself and returns false when the
// parameter is invalid.
type QueryParamValidator struct {
	validate     *validator.Validate
	logger       *slog.Logger
	errorHandler *apperrors.ErrorHandler
}

// NewQueryParamValidator creates a new query parameter validator
func NewQueryParamValidator(logger *slog.Logger, errorHandler *apperrors.ErrorHandler) *QueryParamValidator {
	if logger == nil {
		logger = slog.Default()
	}
	if errorHandler == nil {
		errorHandler = apperrors.NewErrorHandler(logger, false)
	}
	return &QueryParamValidator{
		validate:     validator.New(),
		logger:       logger.With(slog.String("component", "query_validator")),
		errorHandler: errorHandler,
	}
}

// ValidateInt validates an integer query parameter within [min, max]
func (v *QueryParamValidator) ValidateInt(w http.ResponseWriter, r *http.Request, param string, min, max int, defaultValue int) (int, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		return defaultValue, true
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		v.reject(w, r, param, fmt.Sprintf("%s must be a valid integer", param))
		return 0, false
	}
	if err := v.validate.Var(intValue, fmt.Sprintf("min=%d,max=%d", min, max)); err != nil {
		v.reject(w, r, param, formatFieldError(param, err))
		return 0, false
	}
	return intValue, true
}

// ValidatePositiveFloat validates a finite float query parameter greater than zero
func (v *QueryParamValidator) ValidatePositiveFloat(w http.ResponseWriter, r *http.Request, param string, defaultValue float64) (float64, bool) {
	value := strings.TrimSpace(r.URL.Query().Get(param))
	if value == "" {
		return defaultValue, true
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		v.reject(w, r, param, fmt.Sprintf("%s must be a finite number", param))
		return 0, false
	}
	if err := v.validate.Var(f, "gt=0"); err != nil {
		v.reject(w, r, param, formatFieldError(param, err))
		return 0, false
	}
	return f, true
}

// ValidateList splits a comma separated parameter into trimmed, non-empty
// names. Absent parameters yield defaultValue.
func (v *QueryParamValidator) ValidateList(w http.ResponseWriter, r *http.Request, param string, defaultValue []string) ([]string, bool) {
	if !r.URL.Query().Has(param) {
		return defaultValue, true
	}

	var names []string
	for _, part := range strings.Split(r.URL.Query().Get(param), ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	if err := v.validate.Var(names, "dive,max=256"); err != nil {
		v.reject(w, r, param, fmt.Sprintf("%s entries must be at most 256 characters", param))
		return nil, false
	}
	return names, true
}

func (v *QueryParamValidator) reject(w http.ResponseWriter, r *http.Request, param, message string) {
	v.logger.DebugContext(r.Context(), "invalid query parameter",
		slog.String("param", param),
		slog.String("value", r.URL.Query().Get(param)),
	)
	v.errorHandler.HandleError(w, r, apperrors.ErrValidation(param, message))
}

// formatFieldError turns a validator failure into a readable message
func formatFieldError(field string, err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Sprintf("%s is invalid", field)
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
