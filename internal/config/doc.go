// Package config loads the ehrqa configuration.
//
// # Configuration Sources
//
// Values are resolved in the following order, later sources winning:
//
//	1. Default() values
//	2. YAML file (--config, else ehrqa.yaml or configs/ehrqa.yaml)
//	3. Environment variables with the EHRQA_ prefix
//
// # Environment Variables
//
// Nested sections are addressed with underscores:
//
//	EHRQA_LOGGING_LEVEL=debug
//	EHRQA_SERVER_ADDR=:9090
//	EHRQA_QA_IQR_MULTIPLIER=3
//	EHRQA_QA_ID_COLS=patient_id,encounter_id
//	EHRQA_STORAGE_ENABLED=false
//
// # Example File
//
//	logging:
//	  level: info
//	  output: console
//	qa:
//	  output_dir: outputs
//	  iqr_multiplier: 1.5
//	  workers: 4
//	  time_col: admit_time
//
// The QA section only supplies defaults. Every pipeline run receives its own
// explicit options record, built by the caller from these defaults and any
// per-run overrides.
package config
