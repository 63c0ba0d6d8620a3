// Package dataprocessing implements the quality checks run over an EHR-style dataset.
//
// # Components
//
//  1. ParseCensored: reads censored integers such as ">89" (meaning 89 or older, stored as 90)
//  2. OutlierDetector: flags values outside the Q1 - k*IQR / Q3 + k*IQR fences
//  3. SummarizeMissingness: per-column and overall missing rates plus a top-10 ranking
//  4. SummarizeDuplicates: full-row and identifier-subset duplicate counts
//  5. NormalizeTime: hour of day from a free-text time column with a whole-column
//     fallback from HH:MM to HH:MM:SS
//
// # Usage
//
//	missing := dataprocessing.SummarizeMissingness(ds)
//	dups := dataprocessing.SummarizeDuplicates(ds, []string{"patient_id"})
//
//	ages := dataprocessing.ParseCensoredColumn(ageCol.Values)
//
//	detector := dataprocessing.NewOutlierDetector(1.5)
//	flags := detector.DetectColumns(cleaned, cleaned.NumericColumns())
//
// # Error Handling
//
// Nothing in this package returns an error. Cells that cannot be parsed become
// missing, and statistics that are undefined (no values, zero spread) produce
// no flags. Only the loaders and writers around the pipeline fail.
//
// Every function is pure and deterministic; inputs are never modified.
package dataprocessing
