package config

// Application constants
const (
	AppName = "ehrqa"

	// EnvPrefix namespaces environment overrides, e.g. EHRQA_QA_IQR_MULTIPLIER
	EnvPrefix = "EHRQA"

	DefaultOutputDir    = "outputs"
	DefaultDatabasePath = "outputs/ehrqa.db"

	// Output file names written into the output directory of a run
	CleanedCSVName      = "ehr_cleaned.csv"
	OutlierFlagsCSVName = "outlier_flags.csv"
	ReportJSONName      = "qa_report.json"
	WorkbookName        = "qa_plots.xlsx"
)

// DefaultConfigFiles are searched in order when no config path is given
var DefaultConfigFiles = []string{
	"ehrqa.yaml",
	"configs/ehrqa.yaml",
}
