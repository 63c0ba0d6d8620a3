package services

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"ehrqa/internal/config"
	"ehrqa/internal/dataset"
	apperrors "ehrqa/internal/errors"
	"ehrqa/internal/exporter"
	"ehrqa/internal/operations"
	"ehrqa/internal/runstore"
	"ehrqa/internal/validation"
	"ehrqa/pkg/contracts/domain"
)

// UploadSource is the input_file recorded for in-memory uploads without a name
const UploadSource = "upload.csv"

// RunHistory records finished runs. *runstore.Store implements it.
type RunHistory interface {
	Save(ctx context.Context, rec runstore.RunRecord) error
	Get(ctx context.Context, id string) (*runstore.RunRecord, error)
	List(ctx context.Context, limit int) ([]runstore.RunRecord, error)
}

// ExecuteRequest describes a file-based QA run
type ExecuteRequest struct {
	InputPath string
	OutputDir string
	Options   operations.Options
	SavePlots bool
}

// ExecuteResponse is the outcome of Execute
type ExecuteResponse struct {
	RunID      string                `json:"run_id"`
	Report     *domain.Report        `json:"report"`
	Outputs    *domain.ReportOutputs `json:"outputs"`
	ReportPath string                `json:"report_path"`
	Plots      map[string]string     `json:"plots,omitempty"`
}

// AnalyzeResponse is the outcome of Analyze
type AnalyzeResponse struct {
	RunID  string         `json:"run_id"`
	Report *domain.Report `json:"report"`
}

// QAService runs the QA pipeline end to end: validate, load, run, write
// outputs and record history.
type QAService struct {
	pipeline  *operations.Pipeline
	history   RunHistory
	validator *validation.FileValidator
	logger    *slog.Logger
	now       func() time.Time
}

// NewQAService creates the service. A nil history disables run recording.
func NewQAService(pipeline *operations.Pipeline, history RunHistory, logger *slog.Logger) *QAService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("service", "qa"))
	if pipeline == nil {
		pipeline = operations.NewPipeline(logger, nil)
	}
	return &QAService{
		pipeline:  pipeline,
		history:   history,
		validator: validation.NewFileValidator(logger),
		logger:    logger,
		now:       time.Now,
	}
}

// Execute runs the pipeline over a dataset file and writes ehr_cleaned.csv,
// outlier_flags.csv, qa_report.json and, when requested, qa_plots.xlsx to
// the output directory.
func (s *QAService) Execute(ctx context.Context, req ExecuteRequest) (*ExecuteResponse, error) {
	outDir := req.OutputDir
	if outDir == "" {
		outDir = config.DefaultOutputDir
	}

	if err := s.validator.ValidateInputFile(req.InputPath); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateOutputDirectory(outDir); err != nil {
		return nil, err
	}

	ds, err := dataset.Load(req.InputPath)
	if err != nil {
		return nil, err
	}
	s.validator.ValidateColumns(ds, req.Options.AgeColumn, req.Options.TimeColumn)

	opts := req.Options
	if opts.Source == "" {
		opts.Source = req.InputPath
	}

	result, err := s.pipeline.Run(ctx, ds, opts)
	if err != nil {
		return nil, err
	}

	outputs := &domain.ReportOutputs{
		CleanedCSV:      filepath.Join(outDir, config.CleanedCSVName),
		OutlierFlagsCSV: filepath.Join(outDir, config.OutlierFlagsCSVName),
	}
	writer := exporter.NewCSVWriter("", s.logger)
	if err := writer.WriteCleanedCSV(outputs.CleanedCSV, result.Cleaned); err != nil {
		return nil, err
	}
	if err := writer.WriteOutlierFlagsCSV(outputs.OutlierFlagsCSV, result.Flags); err != nil {
		return nil, err
	}

	var plots map[string]string
	if req.SavePlots {
		outputs.Workbook = filepath.Join(outDir, config.WorkbookName)
		plots, err = exporter.NewWorkbookWriter(s.logger).Write(outputs.Workbook, result.Report, result.Cleaned)
		if err != nil {
			return nil, err
		}
	}

	generatedAt := s.now()
	reportPath := filepath.Join(outDir, config.ReportJSONName)
	doc := &domain.ReportDocument{
		RunID:       result.RunID,
		GeneratedAt: generatedAt,
		Report:      result.Report,
		Outputs:     outputs,
		Plots:       plots,
	}
	if err := exporter.WriteReportJSON(reportPath, doc); err != nil {
		return nil, err
	}

	s.record(ctx, result.RunID, result.Report, generatedAt)

	s.logger.InfoContext(ctx, "qa outputs written",
		slog.String("run_id", result.RunID),
		slog.String("output_dir", outDir),
		slog.String("report", reportPath),
		slog.Bool("plots", req.SavePlots))

	return &ExecuteResponse{
		RunID:      result.RunID,
		Report:     result.Report,
		Outputs:    outputs,
		ReportPath: reportPath,
		Plots:      plots,
	}, nil
}

// Analyze runs the pipeline over an in-memory CSV without writing files
func (s *QAService) Analyze(ctx context.Context, r io.Reader, opts operations.Options) (*AnalyzeResponse, error) {
	if r == nil {
		return nil, apperrors.NewAppValidationError("no csv body supplied")
	}

	ds, err := dataset.LoadCSV(r)
	if err != nil {
		return nil, err
	}
	if opts.Source == "" {
		opts.Source = UploadSource
	}

	result, err := s.pipeline.Run(ctx, ds, opts)
	if err != nil {
		return nil, err
	}

	s.record(ctx, result.RunID, result.Report, s.now())
	return &AnalyzeResponse{RunID: result.RunID, Report: result.Report}, nil
}

// ListRuns returns the most recent runs, empty when history is disabled
func (s *QAService) ListRuns(ctx context.Context, limit int) ([]runstore.RunRecord, error) {
	if s.history == nil {
		return []runstore.RunRecord{}, nil
	}
	return s.history.List(ctx, limit)
}

// GetRun returns one recorded run
func (s *QAService) GetRun(ctx context.Context, id string) (*runstore.RunRecord, error) {
	if s.history == nil {
		return nil, apperrors.NewNotFoundError("run " + id).WithContext("history", "disabled")
	}
	return s.history.Get(ctx, id)
}

// HistoryEnabled reports whether runs are recorded
func (s *QAService) HistoryEnabled() bool {
	return s.history != nil
}

// record saves the run to history. A failed save is logged and never fails
// the run: its outputs are already written.
func (s *QAService) record(ctx context.Context, runID string, report *domain.Report, at time.Time) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(ctx, runstore.NewRunRecord(runID, report, at)); err != nil {
		s.logger.WarnContext(ctx, "failed to record run history",
			slog.String("run_id", runID),
			slog.String("error", err.Error()))
	}
}
