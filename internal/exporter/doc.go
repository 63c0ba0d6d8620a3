// Package exporter writes the outputs of a QA run.
//
// CSVWriter: writes the cleaned dataset (ehr_cleaned.csv) and the outlier
// flag table (outlier_flags.csv, one <column>_iqr_outlier column per checked
// column) through a streaming csv.Writer.
//
// WriteReportJSON: writes qa_report.json with 2-space indentation.
//
// WorkbookWriter: renders qa_plots.xlsx with Summary, Missingness, Outliers
// and Age sheets and native Excel charts for the top 15 missing columns and
// the 30-bin age histogram.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(outputDir, logger)
//	if err := w.WriteCleanedCSV(config.CleanedCSVName, result.Cleaned); err != nil {
//		return err
//	}
//	plots, err := exporter.NewWorkbookWriter(logger).Write(path, result.Report, result.Cleaned)
package exporter
