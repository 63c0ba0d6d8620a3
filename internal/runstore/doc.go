// Package runstore records the history of QA runs in a SQLite database
// (modernc.org/sqlite, no cgo).
//
// Each run stores its headline figures in columns for listing and the full
// report as JSON for retrieval:
//
//	store, err := runstore.Open(ctx, cfg.Storage.DatabasePath)
//	err = store.Save(ctx, runstore.NewRunRecord(result.RunID, result.Report, time.Now()))
//	runs, err := store.List(ctx, 20)
//	rec, err := store.Get(ctx, runID) // NOT_FOUND AppError when absent
//
// The schema carries a version row; opening a database created by another
// version fails with ErrSchemaMismatch.
package runstore
