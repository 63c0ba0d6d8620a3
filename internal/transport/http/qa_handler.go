package http

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"ehrqa/internal/config"
	apperrors "ehrqa/internal/errors"
	"ehrqa/internal/middleware"
	"ehrqa/internal/operations"
	"ehrqa/internal/runstore"
	"ehrqa/pkg/contracts/domain"
)

const (
	// UploadField is the multipart form field carrying the dataset
	UploadField = "file"

	maxListLimit = 500
	maxWorkers   = 64
)

// UploadContentTypes are the accepted media types of POST /api/qa/runs
var UploadContentTypes = []string{"text/csv", "text/plain", "application/octet-stream", "multipart/form-data"}

// QAHandler serves QA runs over HTTP
type QAHandler struct {
	service        QAServiceInterface
	defaults       config.QAConfig
	maxUploadBytes int64
	query          *middleware.QueryParamValidator
	errorHandler   *apperrors.ErrorHandler
	logger         *slog.Logger
}

// NewQAHandler creates a QA handler. defaults seed the run options that
// query parameters override.
func NewQAHandler(service QAServiceInterface, defaults config.QAConfig, maxUploadBytes int64, logger *slog.Logger) *QAHandler {
	if service == nil {
		panic("service cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("handler", "qa"))
	errorHandler := apperrors.NewErrorHandler(logger, false)

	return &QAHandler{
		service:        service,
		defaults:       defaults,
		maxUploadBytes: maxUploadBytes,
		query:          middleware.NewQueryParamValidator(logger, errorHandler),
		errorHandler:   errorHandler,
		logger:         logger,
	}
}

// Routes returns a chi router for the QA endpoints. uploadMiddleware wraps
// only the run creation endpoint.
func (h *QAHandler) Routes(uploadMiddleware ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(uploadMiddleware...).
		With(middleware.ContentTypeValidator(h.errorHandler, UploadContentTypes...)).
		Post("/", h.CreateRun)
	r.Get("/", h.ListRuns)
	r.Get("/{id}", h.GetRun)

	return r
}

// RunResponse is the body of a created run
type RunResponse struct {
	RunID  string         `json:"run_id"`
	Report *domain.Report `json:"report"`
}

// RunListResponse is the body of GET /api/qa/runs
type RunListResponse struct {
	Runs  []runstore.RunRecord `json:"runs"`
	Count int                  `json:"count"`
}

// CreateRun handles POST /api/qa/runs
func (h *QAHandler) CreateRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	opts, ok := h.runOptions(w, r)
	if !ok {
		return
	}

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	body, source, err := h.uploadBody(r)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	defer body.Close()
	if source != "" {
		opts.Source = source
	}

	resp, err := h.service.Analyze(ctx, body, opts)
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	h.logger.InfoContext(ctx, "qa run created",
		slog.String("run_id", resp.RunID),
		slog.String("request_id", middleware.GetRequestID(ctx)),
		slog.String("input_file", opts.Source))

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, RunResponse{RunID: resp.RunID, Report: resp.Report})
}

// ListRuns handles GET /api/qa/runs
func (h *QAHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, maxListLimit, runstore.DefaultListLimit)
	if !ok {
		return
	}

	runs, err := h.service.ListRuns(r.Context(), limit)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	render.JSON(w, r, RunListResponse{Runs: runs, Count: len(runs)})
}

// GetRun handles GET /api/qa/runs/{id}
func (h *QAHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	run, err := h.service.GetRun(r.Context(), id)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	render.JSON(w, r, run)
}

// runOptions builds the pipeline options from the configured defaults and
// the query string. Parameters that are present override the defaults, so an
// empty age_col disables the age stage for this run.
func (h *QAHandler) runOptions(w http.ResponseWriter, r *http.Request) (operations.Options, bool) {
	q := r.URL.Query()
	opts := operations.Options{
		AgeColumn:         h.defaults.AgeColumn,
		TimeColumn:        h.defaults.TimeColumn,
		IdentifierColumns: h.defaults.IdentifierColumns,
		OutlierColumns:    h.defaults.OutlierColumns,
		IQRMultiplier:     h.defaults.IQRMultiplier,
		Workers:           h.defaults.Workers,
	}
	if q.Has("age_col") {
		opts.AgeColumn = strings.TrimSpace(q.Get("age_col"))
	}
	if q.Has("time_col") {
		opts.TimeColumn = strings.TrimSpace(q.Get("time_col"))
	}

	var ok bool
	if opts.IdentifierColumns, ok = h.query.ValidateList(w, r, "id_cols", opts.IdentifierColumns); !ok {
		return opts, false
	}
	if opts.OutlierColumns, ok = h.query.ValidateList(w, r, "outlier_cols", opts.OutlierColumns); !ok {
		return opts, false
	}
	if opts.IQRMultiplier, ok = h.query.ValidatePositiveFloat(w, r, "iqr_k", opts.IQRMultiplier); !ok {
		return opts, false
	}
	if opts.Workers, ok = h.query.ValidateInt(w, r, "workers", 1, maxWorkers, max(opts.Workers, 1)); !ok {
		return opts, false
	}
	return opts, true
}

// uploadBody returns the CSV stream of the request and, for multipart
// uploads, the client file name
func (h *QAHandler) uploadBody(r *http.Request) (io.ReadCloser, string, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		return r.Body, "", nil
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, "", apperrors.InvalidRequestWithError(err)
	}
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return nil, "", apperrors.ErrValidation(UploadField, "multipart upload has no \"file\" field")
		}
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return nil, "", err
		}
		if err != nil {
			return nil, "", apperrors.InvalidRequestWithError(err)
		}
		if part.FormName() == UploadField {
			return part, part.FileName(), nil
		}
		part.Close()
	}
}

func (h *QAHandler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		err = apperrors.NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
			apperrors.ErrPayloadTooLarge.Message, map[string]int64{"max_bytes": maxBytesErr.Limit})
	}
	h.errorHandler.HandleError(w, r, err)
}
