package exporter

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"ehrqa/internal/dataset"
	apperrors "ehrqa/internal/errors"
	"ehrqa/pkg/contracts/domain"
)

const (
	SheetSummary     = "Summary"
	SheetMissingness = "Missingness"
	SheetOutliers    = "Outliers"
	SheetAge         = "Age"

	// Keys of the plots map returned by WorkbookWriter.Write
	PlotMissingness = "missingness_top15"
	PlotAgeHist     = "age_hist"

	MissingnessPlotColumns = 15
	AgeHistogramBins       = 30
)

// Bin is one histogram bucket covering [Lower, Upper). The last bin of a
// histogram also includes its upper edge.
type Bin struct {
	Lower float64
	Upper float64
	Count int
}

// Histogram splits values into equal-width bins between their minimum and
// maximum. When every value is equal the range is widened by 0.5 each side.
func Histogram(values []float64, bins int) []Bin {
	if len(values) == 0 || bins < 1 {
		return nil
	}

	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		lo -= 0.5
		hi += 0.5
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for i := range out {
		out[i].Lower = lo + float64(i)*width
		out[i].Upper = lo + float64(i+1)*width
	}
	out[bins-1].Upper = hi

	for _, v := range values {
		idx := int((v - lo) / width)
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		out[idx].Count++
	}
	return out
}

// WorkbookWriter renders the QA plots as an Excel workbook with native charts
type WorkbookWriter struct {
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer
func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{logger: logger}
}

// Write saves the workbook to path and returns the plots map, each value
// "<path>#<sheet>". The Age sheet is only written when the report carries
// age handling and the parsed age column has values.
func (w *WorkbookWriter) Write(path string, report *domain.Report, cleaned *dataset.Dataset) (map[string]string, error) {
	if report == nil {
		return nil, apperrors.NewAppValidationError("no report to render")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return nil, workbookError(path, err)
	}
	if err := writeSummarySheet(f, report); err != nil {
		return nil, workbookError(path, err)
	}

	plots := make(map[string]string)
	if err := writeMissingnessSheet(f, report.Missingness); err != nil {
		return nil, workbookError(path, err)
	}
	plots[PlotMissingness] = path + "#" + SheetMissingness

	if err := writeOutliersSheet(f, report.OutliersIQR); err != nil {
		return nil, workbookError(path, err)
	}

	if ages := ageValues(report, cleaned); len(ages) > 0 {
		if err := writeAgeSheet(f, ages); err != nil {
			return nil, workbookError(path, err)
		}
		plots[PlotAgeHist] = path + "#" + SheetAge
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create directory", err).WithContext("path", filepath.Dir(path))
	}
	if err := f.SaveAs(path); err != nil {
		return nil, apperrors.NewStorageError("failed to save workbook", err).WithContext("path", path)
	}

	w.logger.Info("workbook written",
		slog.String("path", path),
		slog.Int("plots", len(plots)))
	return plots, nil
}

func workbookError(path string, err error) error {
	return apperrors.NewStorageError("failed to build workbook", err).WithContext("path", path)
}

func writeRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

func writeSummarySheet(f *excelize.File, report *domain.Report) error {
	rows := [][]interface{}{
		{"metric", "value"},
		{"input_file", report.InputFile},
		{"rows", report.Rows},
		{"columns", report.Columns},
		{"overall_missing_rate", report.Missingness.OverallMissingRate},
		{"duplicate_rows", report.Duplicates.DuplicateRows},
	}
	if d := report.Duplicates.DuplicateByIDCols; d != nil {
		rows = append(rows, []interface{}{"duplicate_by_id_cols", d.DuplicateCount})
	}
	if a := report.AgeHandling; a != nil {
		rows = append(rows, []interface{}{"age_num_missing_after_parse", a.NumMissingAfterParse})
		if a.MaxAgeAfterParse != nil {
			rows = append(rows, []interface{}{"age_max_after_parse", *a.MaxAgeAfterParse})
		}
	}
	if tf := report.TimeFeatures; tf != nil {
		rows = append(rows,
			[]interface{}{"time_parsed_as", tf.ParsedAs},
			[]interface{}{"time_num_invalid_values", tf.NumInvalidTimeValues})
	}

	for i, r := range rows {
		if err := writeRow(f, SheetSummary, i+1, r...); err != nil {
			return err
		}
	}
	return f.SetColWidth(SheetSummary, "A", "A", 30)
}

func writeMissingnessSheet(f *excelize.File, summary domain.MissingnessSummary) error {
	if _, err := f.NewSheet(SheetMissingness); err != nil {
		return err
	}
	if err := writeRow(f, SheetMissingness, 1, "column", "missing_rate"); err != nil {
		return err
	}

	top := summary.MissingRateByColumn
	if len(top) > MissingnessPlotColumns {
		top = top[:MissingnessPlotColumns]
	}
	for i, r := range top {
		if err := writeRow(f, SheetMissingness, i+2, r.Column, r.MissingRate); err != nil {
			return err
		}
	}
	if len(top) == 0 {
		return nil
	}

	last := len(top) + 1
	return f.AddChart(SheetMissingness, "D2", &excelize.Chart{
		Type: excelize.Bar,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$1", SheetMissingness),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", SheetMissingness, last),
			Values:     fmt.Sprintf("%s!$B$2:$B$%d", SheetMissingness, last),
		}},
		Title:  []excelize.RichTextRun{{Text: "Top 15 columns by missing rate"}},
		Legend: excelize.ChartLegend{Position: "none"},
	})
}

func writeOutliersSheet(f *excelize.File, summaries domain.OutlierSummaries) error {
	if _, err := f.NewSheet(SheetOutliers); err != nil {
		return err
	}
	if err := writeRow(f, SheetOutliers, 1, "column", "outlier_count", "outlier_rate"); err != nil {
		return err
	}
	for i, s := range summaries {
		if err := writeRow(f, SheetOutliers, i+2, s.Column, s.OutlierCount, s.OutlierRate); err != nil {
			return err
		}
	}
	return nil
}

func writeAgeSheet(f *excelize.File, ages []float64) error {
	if _, err := f.NewSheet(SheetAge); err != nil {
		return err
	}
	if err := writeRow(f, SheetAge, 1, "bin", "count"); err != nil {
		return err
	}

	bins := Histogram(ages, AgeHistogramBins)
	for i, b := range bins {
		label := formatFloat(math.Round(b.Lower*100)/100) + "-" + formatFloat(math.Round(b.Upper*100)/100)
		if err := writeRow(f, SheetAge, i+2, label, b.Count); err != nil {
			return err
		}
	}

	last := len(bins) + 1
	return f.AddChart(SheetAge, "D2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{{
			Name:       fmt.Sprintf("%s!$B$1", SheetAge),
			Categories: fmt.Sprintf("%s!$A$2:$A$%d", SheetAge, last),
			Values:     fmt.Sprintf("%s!$B$2:$B$%d", SheetAge, last),
		}},
		Title:  []excelize.RichTextRun{{Text: "Age distribution (parsed)"}},
		Legend: excelize.ChartLegend{Position: "none"},
	})
}

// ageValues returns the non-missing parsed ages of the cleaned dataset
func ageValues(report *domain.Report, cleaned *dataset.Dataset) []float64 {
	if report.AgeHandling == nil || cleaned == nil {
		return nil
	}
	col, ok := cleaned.Column(report.AgeHandling.AgeCol)
	if !ok {
		return nil
	}
	var ages []float64
	for _, v := range col.Values {
		if f, ok := v.Float(); ok {
			ages = append(ages, f)
		}
	}
	return ages
}
