// Command ehrqa runs data-quality checks over EHR-style tabular extracts.
//
//	ehrqa run --input admissions.csv --age-col age --time-col admit_time --id-cols patient_id
//	ehrqa serve --addr :8080
//	ehrqa history --limit 10
//	ehrqa version
//
// Configuration is read from --config (or ehrqa.yaml / configs/ehrqa.yaml)
// and EHRQA_* environment variables. Flags of the run command override the
// qa section per invocation. Logs are JSON on stderr; command output goes to
// stdout.
package main
