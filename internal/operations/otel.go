package operations

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"ehrqa/internal/infrastructure"
)

const (
	TracerName = "ehrqa.pipeline"
)

// PipelineTracer provides OpenTelemetry instrumentation for pipeline runs.
// All methods are safe on a nil receiver.
type PipelineTracer struct {
	tracer  trace.Tracer
	metrics *infrastructure.QAMetrics
}

// NewPipelineTracer creates a tracer using the given providers
func NewPipelineTracer(providers *infrastructure.OTelProviders) (*PipelineTracer, error) {
	if providers == nil {
		return nil, fmt.Errorf("telemetry providers are required")
	}
	metrics, err := infrastructure.CreateQAMetrics(providers.Meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create QA metrics: %w", err)
	}
	return NewPipelineTracerWith(providers.Tracer, metrics), nil
}

// NewPipelineTracerWith creates a tracer from an explicit tracer and metrics set
func NewPipelineTracerWith(tracer trace.Tracer, metrics *infrastructure.QAMetrics) *PipelineTracer {
	return &PipelineTracer{tracer: tracer, metrics: metrics}
}

// Metrics returns the metric instruments, nil for a nil tracer
func (pt *PipelineTracer) Metrics() *infrastructure.QAMetrics {
	if pt == nil {
		return nil
	}
	return pt.metrics
}

// TraceRun creates the root span of a pipeline run
func (pt *PipelineTracer) TraceRun(ctx context.Context, runID string, opts Options, rows, columns int) (context.Context, trace.Span) {
	if pt == nil || pt.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return pt.tracer.Start(ctx, "qa.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("qa.run_id", runID),
			attribute.String("qa.input_file", opts.Source),
			attribute.Int("qa.rows", rows),
			attribute.Int("qa.columns", columns),
			attribute.Float64("qa.iqr_multiplier", opts.IQRMultiplier),
			attribute.Int("qa.workers", opts.Workers),
		),
	)
}

// RecordRunCompletion ends the run span and records run metrics
func (pt *PipelineTracer) RecordRunCompletion(ctx context.Context, span trace.Span, source string, rows int, duration time.Duration, err error) {
	if pt == nil {
		return
	}
	if pt.tracer != nil {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "run completed")
		}
		span.End()
	}
	infrastructure.RecordRunMetrics(ctx, pt.metrics, source, rows, duration, err)
}

// TraceStageExecution creates a span for one step
func (pt *PipelineTracer) TraceStageExecution(ctx context.Context, runID, stageID string) (context.Context, trace.Span) {
	if pt == nil || pt.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return pt.tracer.Start(ctx, "qa.stage."+stageID,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("qa.run_id", runID),
			attribute.String("qa.stage", stageID),
		),
	)
}

// RecordStageCompletion ends a step span and records its duration
func (pt *PipelineTracer) RecordStageCompletion(ctx context.Context, span trace.Span, stageID string, status StepStatus, duration time.Duration, err error) {
	if pt == nil {
		return
	}
	if pt.tracer != nil {
		span.SetAttributes(
			attribute.String("qa.stage.status", string(status)),
			attribute.Float64("qa.stage.duration_seconds", duration.Seconds()),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, string(status))
		}
		span.End()
	}
	infrastructure.RecordStageMetrics(ctx, pt.metrics, stageID, string(status), duration)
}

// RecordOutliers counts the flagged values of one column
func (pt *PipelineTracer) RecordOutliers(ctx context.Context, column string, count int) {
	if pt == nil || pt.metrics == nil || count == 0 {
		return
	}
	pt.metrics.OutliersTotal.Add(ctx, int64(count),
		metric.WithAttributes(attribute.String("column", column)))
}
