// Package operations runs the QA pipeline over a loaded dataset.
//
// A run moves through a fixed state machine:
//
//	Loaded -> MissingnessComputed -> DuplicatesComputed -> AgeCleaned ->
//	TimeFeaturesAdded -> OutliersComputed -> ReportAssembled
//
// Each transition is a Step registered with the Pipeline's Registry. Steps
// read the input dataset and the run Options from the RunState and write
// their partial summaries back to it. The age and time steps are skipped,
// not failed, when their column is unset or absent.
//
// Core Components:
//
// Pipeline: orchestrates a run, tracks StepState per step and wraps each step
// in a qa.stage.<id> span through PipelineTracer.
//
// Step: a single unit of work. The seven default steps live in stages.go.
//
// RunState: the run's status, phase, step states and intermediate results.
//
// The outlier step computes columns on an errgroup when Options.Workers is
// above one; results are assembled in column order, so concurrent and
// sequential runs produce the same report.
package operations
