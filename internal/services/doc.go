// Package services implements the application layer between the CLI or HTTP
// handlers and the QA pipeline.
//
// QAService: validates inputs, loads the dataset, runs the pipeline, writes
// the output files and records the run in the history store.
//
//	svc := services.NewQAService(pipeline, store, logger)
//	resp, err := svc.Execute(ctx, services.ExecuteRequest{
//		InputPath: "ehr.csv",
//		OutputDir: "outputs",
//		Options:   operations.Options{AgeColumn: "age", TimeColumn: "admit_time"},
//	})
//
// Analyze runs the same pipeline over an uploaded CSV body without touching
// the filesystem.
//
// HealthService: reports liveness and version for the serve mode.
package services
