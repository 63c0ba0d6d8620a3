package operations

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"ehrqa/internal/dataprocessing"
	"ehrqa/internal/dataset"
	"ehrqa/pkg/contracts/domain"
)

// LoadedStage records the input shape and creates the cleaned copy
type LoadedStage struct {
	BaseStage
	logger *slog.Logger
}

// NewLoadedStage creates the first pipeline step
func NewLoadedStage(logger *slog.Logger) *LoadedStage {
	return &LoadedStage{
		BaseStage: NewBaseStage(StageIDLoaded, StageNameLoaded),
		logger:    stageLogger(logger, StageIDLoaded),
	}
}

// Execute validates the input and clones it for cleaning
func (s *LoadedStage) Execute(ctx context.Context, state *RunState) error {
	if state.Input == nil {
		return NewValidationError(s.ID(), "no dataset loaded")
	}

	state.Cleaned = state.Input.Clone()

	s.logger.InfoContext(ctx, "dataset loaded",
		slog.String("run_id", state.ID),
		slog.Int("rows", state.Input.Rows()),
		slog.Int("columns", state.Input.NumColumns()))
	return nil
}

// MissingnessStage summarizes missing values of the raw input
type MissingnessStage struct {
	BaseStage
	logger *slog.Logger
}

// NewMissingnessStage creates the missingness step
func NewMissingnessStage(logger *slog.Logger) *MissingnessStage {
	return &MissingnessStage{
		BaseStage: NewBaseStage(StageIDMissingness, StageNameMissingness),
		logger:    stageLogger(logger, StageIDMissingness),
	}
}

// Execute computes the per-column and overall missing rates
func (s *MissingnessStage) Execute(ctx context.Context, state *RunState) error {
	summary := dataprocessing.SummarizeMissingness(state.Input)
	state.Missingness = &summary

	if step := state.GetStep(s.ID()); step != nil {
		step.SetMetadata("overall_missing_rate", summary.OverallMissingRate)
	}

	attrs := []any{
		slog.String("run_id", state.ID),
		slog.Float64("overall_missing_rate", summary.OverallMissingRate),
	}
	if len(summary.Top10MissingColumns) > 0 {
		top := summary.Top10MissingColumns[0]
		attrs = append(attrs,
			slog.String("most_missing_column", top.Column),
			slog.Float64("most_missing_rate", top.MissingRate))
	}
	s.logger.InfoContext(ctx, "missingness computed", attrs...)
	return nil
}

// DuplicatesStage counts duplicate rows of the raw input
type DuplicatesStage struct {
	BaseStage
	logger *slog.Logger
}

// NewDuplicatesStage creates the duplicate step
func NewDuplicatesStage(logger *slog.Logger) *DuplicatesStage {
	return &DuplicatesStage{
		BaseStage: NewBaseStage(StageIDDuplicates, StageNameDuplicates),
		logger:    stageLogger(logger, StageIDDuplicates),
	}
}

// Execute counts full-row and identifier duplicates
func (s *DuplicatesStage) Execute(ctx context.Context, state *RunState) error {
	idCols := state.Options.IdentifierColumns
	summary := dataprocessing.SummarizeDuplicates(state.Input, idCols)
	state.Duplicates = &summary

	attrs := []any{
		slog.String("run_id", state.ID),
		slog.Int("duplicate_rows", summary.DuplicateRows),
	}
	if summary.DuplicateByIDCols != nil {
		attrs = append(attrs,
			slog.Any("id_cols", summary.DuplicateByIDCols.IDCols),
			slog.Int("duplicate_by_id_cols", summary.DuplicateByIDCols.DuplicateCount))
	} else if len(idCols) > 0 {
		s.logger.WarnContext(ctx, "none of the identifier columns exist",
			slog.String("run_id", state.ID),
			slog.Any("id_cols", idCols))
	}
	if step := state.GetStep(s.ID()); step != nil {
		step.SetMetadata("duplicate_rows", summary.DuplicateRows)
	}
	s.logger.InfoContext(ctx, "duplicates computed", attrs...)
	return nil
}

// AgeStage replaces the age column with its censored-value parse
type AgeStage struct {
	BaseStage
	logger *slog.Logger
}

// NewAgeStage creates the age cleaning step
func NewAgeStage(logger *slog.Logger) *AgeStage {
	return &AgeStage{
		BaseStage: NewBaseStage(StageIDAge, StageNameAge),
		logger:    stageLogger(logger, StageIDAge),
	}
}

// Execute parses every cell of the age column independently
func (s *AgeStage) Execute(ctx context.Context, state *RunState) error {
	name := state.Options.AgeColumn
	if name == "" {
		return Skipped("no age column configured")
	}
	col, ok := state.Cleaned.Column(name)
	if !ok {
		s.logger.WarnContext(ctx, "age column not found, skipping",
			slog.String("run_id", state.ID),
			slog.String("age_col", name))
		return Skipped(fmt.Sprintf("age column %q not found", name))
	}

	parsed := dataprocessing.ParseCensoredColumn(col.Values)
	if _, err := state.Cleaned.SetColumn(name, parsed); err != nil {
		return NewExecutionError(s.ID(), err)
	}

	handling := &domain.AgeHandling{AgeCol: name}
	for _, v := range parsed {
		f, ok := v.Float()
		if !ok {
			handling.NumMissingAfterParse++
			continue
		}
		if handling.MaxAgeAfterParse == nil || f > *handling.MaxAgeAfterParse {
			oldest := f
			handling.MaxAgeAfterParse = &oldest
		}
	}
	state.AgeHandling = handling

	if step := state.GetStep(s.ID()); step != nil {
		step.SetMetadata("num_missing_after_parse", handling.NumMissingAfterParse)
	}
	s.logger.InfoContext(ctx, "age column parsed",
		slog.String("run_id", state.ID),
		slog.String("age_col", name),
		slog.Int("num_missing_after_parse", handling.NumMissingAfterParse))
	return nil
}

// TimeStage derives hour_of_day from the time column
type TimeStage struct {
	BaseStage
	logger *slog.Logger
}

// NewTimeStage creates the time feature step
func NewTimeStage(logger *slog.Logger) *TimeStage {
	return &TimeStage{
		BaseStage: NewBaseStage(StageIDTime, StageNameTime),
		logger:    stageLogger(logger, StageIDTime),
	}
}

// Execute parses the time column and adds the hour column to the cleaned dataset
func (s *TimeStage) Execute(ctx context.Context, state *RunState) error {
	name := state.Options.TimeColumn
	if name == "" {
		return Skipped("no time column configured")
	}
	col, ok := state.Cleaned.Column(name)
	if !ok {
		s.logger.WarnContext(ctx, "time column not found, skipping",
			slog.String("run_id", state.ID),
			slog.String("time_col", name))
		return Skipped(fmt.Sprintf("time column %q not found", name))
	}

	res := dataprocessing.NormalizeTime(col.Values)
	if _, err := state.Cleaned.SetColumn(HourOfDayColumn, res.Hours); err != nil {
		return NewExecutionError(s.ID(), err)
	}

	state.TimeFeatures = &domain.TimeFeatures{
		TimeCol:              name,
		ParsedAs:             string(res.Format),
		NumInvalidTimeValues: res.Invalid,
		HourOfDayAdded:       true,
	}

	if step := state.GetStep(s.ID()); step != nil {
		step.SetMetadata("parsed_as", string(res.Format))
		step.SetMetadata("num_invalid_time_values", res.Invalid)
	}
	s.logger.InfoContext(ctx, "time features added",
		slog.String("run_id", state.ID),
		slog.String("time_col", name),
		slog.String("parsed_as", string(res.Format)),
		slog.Bool("fell_back", res.FellBack),
		slog.Int("num_invalid_time_values", res.Invalid))
	return nil
}

// OutliersStage flags IQR outliers on the cleaned dataset
type OutliersStage struct {
	BaseStage
	logger *slog.Logger
}

// NewOutliersStage creates the outlier step
func NewOutliersStage(logger *slog.Logger) *OutliersStage {
	return &OutliersStage{
		BaseStage: NewBaseStage(StageIDOutliers, StageNameOutliers),
		logger:    stageLogger(logger, StageIDOutliers),
	}
}

// Execute flags each selected column independently
func (s *OutliersStage) Execute(ctx context.Context, state *RunState) error {
	opts := state.Options
	columns := outlierColumns(state.Cleaned, opts.OutlierColumns)
	if len(opts.OutlierColumns) > 0 && len(columns) < len(opts.OutlierColumns) {
		s.logger.WarnContext(ctx, "some outlier columns not found",
			slog.String("run_id", state.ID),
			slog.Any("requested", opts.OutlierColumns),
			slog.Any("used", columns))
	}

	detector := dataprocessing.NewOutlierDetector(opts.IQRMultiplier)

	var flags *dataprocessing.OutlierFlags
	if opts.Workers > 1 && len(columns) > 1 {
		var err error
		flags, err = detectConcurrently(ctx, detector, state.Cleaned, columns, opts.Workers)
		if err != nil {
			return err
		}
	} else {
		flags = detector.DetectColumns(state.Cleaned, columns)
	}
	state.Flags = flags

	if step := state.GetStep(s.ID()); step != nil {
		step.SetMetadata("columns_checked", len(columns))
		step.SetMetadata("outliers_found", flags.Total())
	}
	s.logger.InfoContext(ctx, "outliers computed",
		slog.String("run_id", state.ID),
		slog.Int("columns_checked", len(columns)),
		slog.Int("outliers_found", flags.Total()),
		slog.Float64("iqr_multiplier", opts.IQRMultiplier),
		slog.Int("workers", opts.Workers))
	return nil
}

// outlierColumns resolves the columns to check. Without an explicit list
// every numeric column of the cleaned dataset is used.
func outlierColumns(ds *dataset.Dataset, requested []string) []string {
	if len(requested) == 0 {
		return ds.NumericColumns()
	}
	cols := dataprocessing.ExistingColumns(ds, requested)
	if cols == nil {
		return []string{}
	}
	return cols
}

// detectConcurrently computes column flags on up to workers goroutines and
// assembles them in column order.
func detectConcurrently(ctx context.Context, d *dataprocessing.OutlierDetector, ds *dataset.Dataset, columns []string, workers int) (*dataprocessing.OutlierFlags, error) {
	results := make([][]bool, len(columns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range columns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return NewCancellationError(StageIDOutliers, err)
			}
			col, _ := ds.Column(name)
			results[i] = d.Flags(col.Values)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	flags := dataprocessing.NewOutlierFlags(ds.Rows())
	for i, name := range columns {
		flags.Set(name, results[i])
	}
	return flags, nil
}

// ReportStage assembles the final report from the partial results
type ReportStage struct {
	BaseStage
	logger *slog.Logger
}

// NewReportStage creates the final step
func NewReportStage(logger *slog.Logger) *ReportStage {
	return &ReportStage{
		BaseStage: NewBaseStage(StageIDReport, StageNameReport),
		logger:    stageLogger(logger, StageIDReport),
	}
}

// Execute builds the immutable report
func (s *ReportStage) Execute(ctx context.Context, state *RunState) error {
	if state.Missingness == nil || state.Duplicates == nil || state.Flags == nil {
		return NewValidationError(s.ID(), "earlier steps did not produce their summaries")
	}

	report := &domain.Report{
		InputFile:    state.Options.Source,
		Rows:         state.Input.Rows(),
		Columns:      state.Input.NumColumns(),
		ColumnNames:  state.Input.ColumnNames(),
		Missingness:  *state.Missingness,
		Duplicates:   *state.Duplicates,
		AgeHandling:  state.AgeHandling,
		TimeFeatures: state.TimeFeatures,
		OutliersIQR:  state.Flags.Summaries(),
	}
	state.Report = report

	s.logger.InfoContext(ctx, "report assembled",
		slog.String("run_id", state.ID),
		slog.Int("rows", report.Rows),
		slog.Int("columns", report.Columns),
		slog.Bool("age_handling", report.AgeHandling != nil),
		slog.Bool("time_features", report.TimeFeatures != nil))
	return nil
}

func stageLogger(logger *slog.Logger, stageID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("stage", stageID))
}
