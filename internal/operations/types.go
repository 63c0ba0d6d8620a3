package operations

import (
	"math"

	"ehrqa/internal/dataprocessing"
	"ehrqa/internal/dataset"
	"ehrqa/pkg/contracts/domain"
)

// Pipeline step identifiers, in execution order
const (
	StageIDLoaded      = "loaded"
	StageIDMissingness = "missingness"
	StageIDDuplicates  = "duplicates"
	StageIDAge         = "age"
	StageIDTime        = "time"
	StageIDOutliers    = "outliers"
	StageIDReport      = "report"
)

// Pipeline step names
const (
	StageNameLoaded      = "Dataset Loaded"
	StageNameMissingness = "Missingness Summary"
	StageNameDuplicates  = "Duplicate Summary"
	StageNameAge         = "Censored Age Parsing"
	StageNameTime        = "Time Feature Extraction"
	StageNameOutliers    = "IQR Outlier Detection"
	StageNameReport      = "Report Assembly"
)

// HourOfDayColumn is the column derived from the time column
const HourOfDayColumn = "hour_of_day"

// Phase is the position of a run in the pipeline state machine
type Phase string

const (
	PhaseNew                 Phase = "New"
	PhaseLoaded              Phase = "Loaded"
	PhaseMissingnessComputed Phase = "MissingnessComputed"
	PhaseDuplicatesComputed  Phase = "DuplicatesComputed"
	PhaseAgeCleaned          Phase = "AgeCleaned"
	PhaseTimeFeaturesAdded   Phase = "TimeFeaturesAdded"
	PhaseOutliersComputed    Phase = "OutliersComputed"
	PhaseReportAssembled     Phase = "ReportAssembled"
)

// stagePhases is the phase reached once a step has completed or been skipped
var stagePhases = map[string]Phase{
	StageIDLoaded:      PhaseLoaded,
	StageIDMissingness: PhaseMissingnessComputed,
	StageIDDuplicates:  PhaseDuplicatesComputed,
	StageIDAge:         PhaseAgeCleaned,
	StageIDTime:        PhaseTimeFeaturesAdded,
	StageIDOutliers:    PhaseOutliersComputed,
	StageIDReport:      PhaseReportAssembled,
}

// Options is the immutable configuration of one pipeline run
type Options struct {
	// AgeColumn is parsed as a censored age when set and present
	AgeColumn string `json:"age_col,omitempty"`
	// TimeColumn is parsed into hour_of_day when set and present
	TimeColumn string `json:"time_col,omitempty"`
	// IdentifierColumns drive the identifier duplicate count
	IdentifierColumns []string `json:"id_cols,omitempty"`
	// OutlierColumns restricts outlier detection. Empty means every numeric
	// column of the cleaned dataset.
	OutlierColumns []string `json:"outlier_cols,omitempty"`
	// IQRMultiplier is k in the Q1-k*IQR / Q3+k*IQR fences
	IQRMultiplier float64 `json:"iqr_multiplier"`
	// Workers bounds concurrent outlier column computation
	Workers int `json:"workers"`
	// Source names the input, copied to the report's input_file
	Source string `json:"input_file,omitempty"`
}

// normalized returns a copy with defaults applied and slices detached from the caller
func (o Options) normalized() Options {
	out := o
	if o.IQRMultiplier <= 0 || math.IsNaN(o.IQRMultiplier) || math.IsInf(o.IQRMultiplier, 0) {
		out.IQRMultiplier = dataprocessing.DefaultIQRMultiplier
	}
	if o.Workers < 1 {
		out.Workers = 1
	}
	out.IdentifierColumns = append([]string(nil), o.IdentifierColumns...)
	out.OutlierColumns = append([]string(nil), o.OutlierColumns...)
	return out
}

// Result holds the three artefacts of a completed run
type Result struct {
	RunID   string
	Cleaned *dataset.Dataset
	Flags   *dataprocessing.OutlierFlags
	Report  *domain.Report
	State   *RunState
}
