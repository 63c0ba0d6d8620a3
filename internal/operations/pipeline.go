package operations

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"ehrqa/internal/dataset"
	"ehrqa/internal/infrastructure"
)

// Pipeline runs the QA steps over one dataset at a time. A Pipeline holds
// no per-run state and may be shared across goroutines.
type Pipeline struct {
	registry *Registry
	tracer   *PipelineTracer
	logger   *slog.Logger
}

// DefaultSteps returns the QA steps in execution order
func DefaultSteps(logger *slog.Logger) []Step {
	return []Step{
		NewLoadedStage(logger),
		NewMissingnessStage(logger),
		NewDuplicatesStage(logger),
		NewAgeStage(logger),
		NewTimeStage(logger),
		NewOutliersStage(logger),
		NewReportStage(logger),
	}
}

// NewPipeline creates a pipeline with the default steps. A nil tracer
// disables instrumentation.
func NewPipeline(logger *slog.Logger, tracer *PipelineTracer) *Pipeline {
	logger = infrastructure.WithComponent(logger, "pipeline")

	registry := NewRegistry()
	for _, step := range DefaultSteps(logger) {
		// default step IDs are unique and non-empty
		_ = registry.Register(step)
	}

	return &Pipeline{
		registry: registry,
		tracer:   tracer,
		logger:   logger,
	}
}

// Registry exposes the step registry, e.g. to replace a step in tests
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Run executes every step over ds. ds is never modified; the cleaned
// dataset in the result is a separate copy. Malformed cells never fail a
// run; the error cases are a nil dataset and a cancelled context.
func (p *Pipeline) Run(ctx context.Context, ds *dataset.Dataset, opts Options) (*Result, error) {
	if ds == nil {
		return nil, NewValidationError(StageIDLoaded, "no dataset loaded")
	}

	opts = opts.normalized()
	runID := uuid.NewString()
	state := NewRunState(runID, ds, opts)

	steps := p.registry.List()
	for _, step := range steps {
		state.AddStep(NewStepState(step.ID(), step.Name()))
	}

	ctx, span := p.tracer.TraceRun(ctx, runID, opts, ds.Rows(), ds.NumColumns())
	state.Start()

	p.logger.InfoContext(ctx, "qa run started",
		slog.String("run_id", runID),
		slog.String("input_file", opts.Source),
		slog.Int("rows", ds.Rows()),
		slog.Int("columns", ds.NumColumns()))

	for _, step := range steps {
		err := ctx.Err()
		if err != nil {
			err = NewCancellationError(step.ID(), err)
		} else {
			err = p.executeStep(ctx, step, state)
		}
		if err != nil {
			if IsCancellation(err) {
				state.Cancel()
			} else {
				state.Fail(err)
			}
			p.tracer.RecordRunCompletion(ctx, span, opts.Source, ds.Rows(), state.Duration(), err)
			p.logger.WarnContext(ctx, "qa run stopped",
				slog.String("run_id", runID),
				slog.String("stage", step.ID()),
				slog.String("phase", string(state.GetPhase())),
				slog.String("error", err.Error()))
			return nil, err
		}
	}

	if state.Report == nil {
		err := NewValidationError(StageIDReport, "pipeline finished without a report")
		state.Fail(err)
		p.tracer.RecordRunCompletion(ctx, span, opts.Source, ds.Rows(), state.Duration(), err)
		return nil, err
	}

	state.Complete()
	for _, col := range state.Flags.Summaries() {
		p.tracer.RecordOutliers(ctx, col.Column, col.OutlierCount)
	}
	p.tracer.RecordRunCompletion(ctx, span, opts.Source, ds.Rows(), state.Duration(), nil)

	p.logger.InfoContext(ctx, "qa run completed",
		slog.String("run_id", runID),
		slog.Duration("duration", state.Duration()),
		slog.Int("duplicate_rows", state.Report.Duplicates.DuplicateRows),
		slog.Float64("overall_missing_rate", state.Report.Missingness.OverallMissingRate),
		slog.Int("outliers_found", state.Flags.Total()))

	return &Result{
		RunID:   runID,
		Cleaned: state.Cleaned,
		Flags:   state.Flags,
		Report:  state.Report,
		State:   state,
	}, nil
}

// executeStep runs one step and moves the state machine forward
func (p *Pipeline) executeStep(ctx context.Context, step Step, state *RunState) error {
	stepState := state.GetStep(step.ID())
	stepCtx, span := p.tracer.TraceStageExecution(ctx, state.ID, step.ID())
	stepState.Start()

	err := step.Execute(stepCtx, state)

	var skip *SkipError
	switch {
	case errors.As(err, &skip):
		stepState.Skip(skip.Reason)
		err = nil
	case err != nil:
		var opErr *OperationError
		if !errors.As(err, &opErr) {
			err = NewExecutionError(step.ID(), err)
		}
		stepState.Fail(err)
	default:
		stepState.Complete()
	}

	p.tracer.RecordStageCompletion(stepCtx, span, step.ID(), stepState.GetStatus(), stepState.Duration(), err)
	if err != nil {
		return err
	}

	if phase, ok := stagePhases[step.ID()]; ok {
		state.SetPhase(phase)
	}
	p.logger.DebugContext(ctx, "stage finished",
		slog.String("run_id", state.ID),
		slog.String("stage", step.ID()),
		slog.String("status", string(stepState.GetStatus())),
		slog.Duration("duration", stepState.Duration()))
	return nil
}
