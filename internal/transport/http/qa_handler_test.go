package http

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ehrqa/internal/config"
	apperrors "ehrqa/internal/errors"
	"ehrqa/internal/operations"
	"ehrqa/internal/runstore"
	"ehrqa/internal/services"
	"ehrqa/internal/shared/testutil"
	"ehrqa/pkg/contracts/domain"
)

func testDefaults() config.QAConfig {
	return config.QAConfig{
		OutputDir:         "outputs",
		AgeColumn:         "age",
		TimeColumn:        "admit_time",
		IdentifierColumns: []string{"patient_id"},
		IQRMultiplier:     1.5,
		Workers:           1,
	}
}

func newTestServer(t *testing.T, svc QAServiceInterface, maxUpload int64) *httptest.Server {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	handler := NewQAHandler(svc, testDefaults(), maxUpload, logger)
	server := httptest.NewServer(handler.Routes())
	t.Cleanup(server.Close)
	return server
}

type errorEnvelope struct {
	Success bool `json:"success"`
	Error   struct {
		StatusCode int             `json:"status_code"`
		ErrorCode  string          `json:"error_code"`
		Message    string          `json:"message"`
		Details    json.RawMessage `json:"details"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, resp *http.Response) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func postCSV(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "text/csv", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestQAHandler_CreateRunCSVBody(t *testing.T) {
	svc := &MockQAService{}
	report := &domain.Report{Rows: 7, Columns: 7}
	svc.On("Analyze", mock.Anything, operations.Options{
		AgeColumn:         "age",
		TimeColumn:        "admit_time",
		IdentifierColumns: []string{"patient_id"},
		IQRMultiplier:     1.5,
		Workers:           1,
	}).Return(&services.AnalyzeResponse{RunID: "run-1", Report: report}, nil).Once()

	server := newTestServer(t, svc, 0)
	resp := postCSV(t, server.URL+"/", testutil.EHRSampleCSV)

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body struct {
		RunID  string         `json:"run_id"`
		Report *domain.Report `json:"report"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, 7, body.Report.Rows)
	assert.Equal(t, testutil.EHRSampleCSV, svc.body)
	svc.AssertExpectations(t)
}

func TestQAHandler_CreateRunQueryOverrides(t *testing.T) {
	svc := &MockQAService{}
	svc.On("Analyze", mock.Anything, operations.Options{
		AgeColumn:         "",
		TimeColumn:        "admit_time",
		IdentifierColumns: []string{"patient_id", "encounter_id"},
		OutlierColumns:    []string{"weight_kg"},
		IQRMultiplier:     3,
		Workers:           4,
	}).Return(&services.AnalyzeResponse{RunID: "run-2", Report: &domain.Report{}}, nil).Once()

	server := newTestServer(t, svc, 0)
	resp := postCSV(t, server.URL+"/?age_col=&id_cols=patient_id,encounter_id&outlier_cols=weight_kg&iqr_k=3&workers=4", "a\n1\n")

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	svc.AssertExpectations(t)
}

func TestQAHandler_CreateRunMultipart(t *testing.T) {
	svc := &MockQAService{}
	svc.On("Analyze", mock.Anything, mock.MatchedBy(func(opts operations.Options) bool {
		return opts.Source == "admissions.csv"
	})).Return(&services.AnalyzeResponse{RunID: "run-3", Report: &domain.Report{}}, nil).Once()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "ignored"))
	fw, err := mw.CreateFormFile(UploadField, "admissions.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(testutil.ConstantColumnCSV))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	server := newTestServer(t, svc, 0)
	resp, err := http.Post(server.URL+"/", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, testutil.ConstantColumnCSV, svc.body)
	svc.AssertExpectations(t)
}

func TestQAHandler_CreateRunMultipartWithoutFile(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	svc := &MockQAService{}
	server := newTestServer(t, svc, 0)
	resp, err := http.Post(server.URL+"/", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_FAILED", decodeEnvelope(t, resp).Error.ErrorCode)
	svc.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestQAHandler_CreateRunInvalidParameters(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "zero multiplier", query: "iqr_k=0"},
		{name: "non numeric multiplier", query: "iqr_k=wide"},
		{name: "infinite multiplier", query: "iqr_k=Inf"},
		{name: "zero workers", query: "workers=0"},
		{name: "too many workers", query: "workers=65"},
		{name: "non numeric workers", query: "workers=many"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockQAService{}
			server := newTestServer(t, svc, 0)
			resp := postCSV(t, server.URL+"/?"+tt.query, testutil.EHRSampleCSV)

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			env := decodeEnvelope(t, resp)
			assert.False(t, env.Success)
			assert.Equal(t, "VALIDATION_FAILED", env.Error.ErrorCode)
			svc.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
		})
	}
}

func TestQAHandler_CreateRunUnsupportedContentType(t *testing.T) {
	svc := &MockQAService{}
	server := newTestServer(t, svc, 0)

	resp, err := http.Post(server.URL+"/", "application/json", strings.NewReader(`{"rows":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	svc.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestQAHandler_CreateRunPayloadTooLarge(t *testing.T) {
	svc := &MockQAService{}
	server := newTestServer(t, svc, 16)

	resp := postCSV(t, server.URL+"/", testutil.EHRSampleCSV)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decodeEnvelope(t, resp).Error.ErrorCode)
}

func TestQAHandler_CreateRunServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "malformed input", err: apperrors.NewInputError("input has no header row", nil), wantStatus: http.StatusBadRequest, wantCode: "INVALID_INPUT"},
		{name: "parse failure", err: apperrors.NewParsingError("failed to read record", nil), wantStatus: http.StatusBadRequest, wantCode: "INVALID_INPUT"},
		{name: "deadline", err: operations.NewCancellationError("outliers", context.DeadlineExceeded), wantStatus: http.StatusGatewayTimeout, wantCode: "TIMEOUT"},
		{name: "storage", err: apperrors.NewStorageError("disk full", nil), wantStatus: http.StatusInternalServerError, wantCode: "STORAGE_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockQAService{}
			svc.On("Analyze", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			server := newTestServer(t, svc, 0)

			resp := postCSV(t, server.URL+"/", "a\n1\n")
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantCode, decodeEnvelope(t, resp).Error.ErrorCode)
		})
	}
}

func TestQAHandler_CreateRunUploadMiddleware(t *testing.T) {
	svc := &MockQAService{}
	svc.On("ListRuns", mock.Anything, runstore.DefaultListLimit).Return([]runstore.RunRecord{}, nil)

	logger, _ := testutil.NewTestLogger(t)
	blocked := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apperrors.WriteError(w, apperrors.ErrRateLimitExceeded)
		})
	}
	server := httptest.NewServer(NewQAHandler(svc, testDefaults(), 0, logger).Routes(blocked))
	defer server.Close()

	resp := postCSV(t, server.URL+"/", "a\n1\n")
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	listResp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer listResp.Body.Close()
	assert.Equal(t, http.StatusOK, listResp.StatusCode, "listing is not wrapped by upload middleware")
}

func TestQAHandler_ListRuns(t *testing.T) {
	created := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	runs := []runstore.RunRecord{
		{ID: "run-2", InputFile: "b.csv", Rows: 4, CreatedAt: created.Add(time.Minute)},
		{ID: "run-1", InputFile: "a.csv", Rows: 7, CreatedAt: created},
	}

	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantStatus int
	}{
		{name: "default limit", wantLimit: runstore.DefaultListLimit, wantStatus: http.StatusOK},
		{name: "explicit limit", query: "?limit=2", wantLimit: 2, wantStatus: http.StatusOK},
		{name: "limit too large", query: "?limit=501", wantStatus: http.StatusBadRequest},
		{name: "limit not a number", query: "?limit=all", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockQAService{}
			if tt.wantStatus == http.StatusOK {
				svc.On("ListRuns", mock.Anything, tt.wantLimit).Return(runs, nil).Once()
			}
			server := newTestServer(t, svc, 0)

			resp, err := http.Get(server.URL + "/" + tt.query)
			require.NoError(t, err)
			defer resp.Body.Close()

			require.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantStatus != http.StatusOK {
				svc.AssertNotCalled(t, "ListRuns", mock.Anything, mock.Anything)
				return
			}
			var body RunListResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, 2, body.Count)
			assert.Equal(t, "run-2", body.Runs[0].ID)
			svc.AssertExpectations(t)
		})
	}
}

func TestQAHandler_GetRun(t *testing.T) {
	svc := &MockQAService{}
	svc.On("GetRun", mock.Anything, "run-1").
		Return(&runstore.RunRecord{ID: "run-1", Rows: 7, Report: &domain.Report{Rows: 7}}, nil).Once()
	svc.On("GetRun", mock.Anything, "missing").
		Return(nil, apperrors.NewNotFoundError("run missing")).Once()
	server := newTestServer(t, svc, 0)

	resp, err := http.Get(server.URL + "/run-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var run runstore.RunRecord
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, "run-1", run.ID)
	require.NotNil(t, run.Report)
	assert.Equal(t, 7, run.Report.Rows)

	missing, err := http.Get(server.URL + "/missing")
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
	assert.Equal(t, "NOT_FOUND", decodeEnvelope(t, missing).Error.ErrorCode)
	svc.AssertExpectations(t)
}

func TestQAHandler_CreateRunEndToEnd(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	svc := services.NewQAService(nil, nil, logger)
	server := newTestServer(t, svc, 1<<20)

	resp := postCSV(t, server.URL+"/?outlier_cols=weight_kg", testutil.EHRSampleCSV)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.RunID)
	require.NotNil(t, body.Report)
	assert.Equal(t, services.UploadSource, body.Report.InputFile)
	assert.Equal(t, 7, body.Report.Rows)
	assert.Equal(t, 1, body.Report.Duplicates.DuplicateRows)
	require.NotNil(t, body.Report.AgeHandling)
	require.NotNil(t, body.Report.AgeHandling.MaxAgeAfterParse)
	assert.Equal(t, 90.0, *body.Report.AgeHandling.MaxAgeAfterParse)
	require.NotNil(t, body.Report.TimeFeatures)
	assert.Equal(t, "HH:MM:SS", body.Report.TimeFeatures.ParsedAs)

	weight, ok := body.Report.OutliersIQR.Get("weight_kg")
	require.True(t, ok)
	assert.Equal(t, 1, weight.OutlierCount)
	assert.Len(t, body.Report.OutliersIQR, 1)
}
