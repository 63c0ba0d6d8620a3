package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ehrqa/internal/errors"
)

func TestContentTypeValidator(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
		wantCode    string
	}{
		{name: "csv", method: http.MethodPost, contentType: "text/csv", wantStatus: http.StatusNoContent},
		{name: "csv with charset", method: http.MethodPost, contentType: "text/csv; charset=utf-8", wantStatus: http.StatusNoContent},
		{name: "multipart", method: http.MethodPost, contentType: "multipart/form-data; boundary=x", wantStatus: http.StatusNoContent},
		{name: "get skips check", method: http.MethodGet, wantStatus: http.StatusNoContent},
		{name: "missing", method: http.MethodPost, wantStatus: http.StatusBadRequest, wantCode: "MISSING_CONTENT_TYPE"},
		{name: "malformed", method: http.MethodPost, contentType: "text/", wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "json rejected", method: http.MethodPost, contentType: "application/json", wantStatus: http.StatusUnsupportedMediaType, wantCode: "UNSUPPORTED_MEDIA_TYPE"},
	}

	mw := ContentTypeValidator(apperrors.NewErrorHandler(nil, false), "text/csv", "multipart/form-data")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/qa/runs", strings.NewReader("a\n1\n"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeError(t, rec).Error.ErrorCode)
			}
		})
	}
}

func TestQueryParamValidator_ValidateInt(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    int
		wantOK  bool
		message string
	}{
		{name: "absent uses default", query: "", want: 20, wantOK: true},
		{name: "in range", query: "limit=5", want: 5, wantOK: true},
		{name: "not a number", query: "limit=five", message: "limit must be a valid integer"},
		{name: "below min", query: "limit=0", message: "limit must be at least 1"},
		{name: "above max", query: "limit=1000", message: "limit must be at most 500"},
	}

	v := NewQueryParamValidator(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			got, ok := v.ValidateInt(rec, httptest.NewRequest(http.MethodGet, "/api/qa/runs?"+tt.query, nil), "limit", 1, 500, 20)

			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
				return
			}
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.message)
		})
	}
}

func TestQueryParamValidator_ValidatePositiveFloat(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		want   float64
		wantOK bool
	}{
		{name: "absent uses default", want: 1.5, wantOK: true},
		{name: "valid", query: "iqr_k=3", want: 3, wantOK: true},
		{name: "zero", query: "iqr_k=0"},
		{name: "negative", query: "iqr_k=-1"},
		{name: "nan", query: "iqr_k=NaN"},
		{name: "infinite", query: "iqr_k=inf"},
		{name: "garbage", query: "iqr_k=wide"},
	}

	v := NewQueryParamValidator(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			got, ok := v.ValidatePositiveFloat(rec, httptest.NewRequest(http.MethodPost, "/api/qa/runs?"+tt.query, nil), "iqr_k", 1.5)

			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
				return
			}
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "VALIDATION_FAILED", decodeError(t, rec).Error.ErrorCode)
		})
	}
}

func TestQueryParamValidator_ValidateList(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		want   []string
		wantOK bool
	}{
		{name: "absent uses default", want: []string{"patient_id"}, wantOK: true},
		{name: "trimmed and blank entries dropped", query: "id_cols=+mrn+,,encounter_id", want: []string{"mrn", "encounter_id"}, wantOK: true},
		{name: "present but empty", query: "id_cols=", want: nil, wantOK: true},
		{name: "entry too long", query: "id_cols=" + strings.Repeat("x", 257)},
	}

	v := NewQueryParamValidator(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			got, ok := v.ValidateList(rec, httptest.NewRequest(http.MethodPost, "/api/qa/runs?"+tt.query, nil), "id_cols", []string{"patient_id"})

			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
				return
			}
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
