package domain

import (
	"time"
)

// Report is the aggregate quality-assessment record produced once per pipeline run.
// Optional sections are nil when the corresponding column was not configured or
// is absent from the dataset, and are then omitted from the JSON document.
type Report struct {
	InputFile    string             `json:"input_file,omitempty"`
	Rows         int                `json:"rows"`
	Columns      int                `json:"columns"`
	ColumnNames  []string           `json:"column_names"`
	Missingness  MissingnessSummary `json:"missingness"`
	Duplicates   DuplicateSummary   `json:"duplicates"`
	AgeHandling  *AgeHandling       `json:"age_handling,omitempty"`
	TimeFeatures *TimeFeatures      `json:"time_features,omitempty"`
	OutliersIQR  OutlierSummaries   `json:"outliers_iqr"`
}

// MissingnessSummary holds per-column and overall missing-value rates
type MissingnessSummary struct {
	// OverallMissingRate is the unweighted mean of the per-column rates
	OverallMissingRate  float64      `json:"overall_missing_rate"`
	MissingRateByColumn ColumnRates  `json:"missing_rate_by_column"`
	Top10MissingColumns []ColumnRate `json:"top_10_missing_columns"`
}

// ColumnRate pairs a column name with its missing rate
type ColumnRate struct {
	Column      string  `json:"column"`
	MissingRate float64 `json:"missing_rate"`
}

// DuplicateSummary counts rows repeating an earlier row
type DuplicateSummary struct {
	DuplicateRows     int                 `json:"duplicate_rows"`
	DuplicateByIDCols *IDDuplicateSummary `json:"duplicate_by_id_cols,omitempty"`
}

// IDDuplicateSummary counts rows repeating an earlier row on the identifier columns only
type IDDuplicateSummary struct {
	IDCols         []string `json:"id_cols"`
	DuplicateCount int      `json:"duplicate_count"`
}

// AgeHandling describes the censored age column after parsing.
// MaxAgeAfterParse is null when no age survived parsing.
type AgeHandling struct {
	AgeCol               string   `json:"age_col"`
	NumMissingAfterParse int      `json:"num_missing_after_parse"`
	MaxAgeAfterParse     *float64 `json:"max_age_after_parse"`
}

// TimeFeatures describes the derived hour-of-day feature
type TimeFeatures struct {
	TimeCol              string `json:"time_col"`
	ParsedAs             string `json:"parsed_as"`
	NumInvalidTimeValues int    `json:"num_invalid_time_values"`
	HourOfDayAdded       bool   `json:"hour_of_day_added"`
}

// OutlierSummary is the IQR outlier aggregate for one column
type OutlierSummary struct {
	OutlierCount int     `json:"outlier_count"`
	OutlierRate  float64 `json:"outlier_rate"`
}

// ColumnOutliers pairs a column name with its outlier summary
type ColumnOutliers struct {
	Column string
	OutlierSummary
}

// ReportOutputs lists the files written for a run
type ReportOutputs struct {
	CleanedCSV      string `json:"cleaned_csv"`
	OutlierFlagsCSV string `json:"outlier_flags_csv"`
	Workbook        string `json:"workbook,omitempty"`
}

// ReportDocument is the persisted qa_report.json: the core report flattened
// together with the fields added by the report writer.
type ReportDocument struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	*Report
	Outputs *ReportOutputs    `json:"outputs,omitempty"`
	Plots   map[string]string `json:"plots,omitempty"`
}
