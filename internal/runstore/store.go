package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	apperrors "ehrqa/internal/errors"
	"ehrqa/pkg/contracts/domain"
)

// Store persists the history of QA runs in SQLite
type Store struct {
	db   *sql.DB
	path string
}

// RunRecord is one recorded QA run. Report is only populated by Get.
type RunRecord struct {
	ID                 string         `json:"id"`
	InputFile          string         `json:"input_file"`
	Rows               int            `json:"rows"`
	Columns            int            `json:"columns"`
	DuplicateRows      int            `json:"duplicate_rows"`
	OverallMissingRate float64        `json:"overall_missing_rate"`
	OutliersFound      int            `json:"outliers_found"`
	CreatedAt          time.Time      `json:"created_at"`
	Report             *domain.Report `json:"report,omitempty"`
}

// NewRunRecord summarizes a report for storage
func NewRunRecord(runID string, report *domain.Report, createdAt time.Time) RunRecord {
	outliers := 0
	for _, s := range report.OutliersIQR {
		outliers += s.OutlierCount
	}
	return RunRecord{
		ID:                 runID,
		InputFile:          report.InputFile,
		Rows:               report.Rows,
		Columns:            report.Columns,
		DuplicateRows:      report.Duplicates.DuplicateRows,
		OverallMissingRate: report.Missingness.OverallMissingRate,
		OutliersFound:      outliers,
		CreatedAt:          createdAt,
		Report:             report,
	}
}

const (
	DefaultListLimit = 20

	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	runColumns = "id, input_file, row_count, column_count, duplicate_rows, overall_missing_rate, outliers_found, created_at"
)

// Open initializes or connects to the run history database at path
func Open(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create database directory", err).WithContext("path", path)
	}

	// pragmas in the DSN apply to every pooled connection
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open sqlite db", err).WithContext("path", path)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.NewStorageError("failed to connect to sqlite db", err).WithContext("path", path)
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, apperrors.NewStorageError("failed to initialize schema", err).WithContext("path", path)
	}
	return store, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Ping checks that the database is still reachable
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return apperrors.NewStorageError("run history unreachable", err).WithContext("path", s.path)
	}
	return nil
}

// Close closes the underlying database connection
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save inserts a run record. The record must carry its report.
func (s *Store) Save(ctx context.Context, rec RunRecord) error {
	if rec.ID == "" {
		return apperrors.NewAppValidationError("run id is required")
	}
	if rec.Report == nil {
		return apperrors.NewAppValidationError("run report is required")
	}

	reportJSON, err := json.Marshal(rec.Report)
	if err != nil {
		return apperrors.NewParsingError("failed to encode report", err).WithContext("run_id", rec.ID)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	err = retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO runs (id, input_file, row_count, column_count, duplicate_rows,
				overall_missing_rate, outliers_found, report_json, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.InputFile, rec.Rows, rec.Columns, rec.DuplicateRows,
			rec.OverallMissingRate, rec.OutliersFound, string(reportJSON), formatTime(rec.CreatedAt))
		return execErr
	})
	if err != nil {
		return apperrors.NewStorageError("failed to save run", err).WithContext("run_id", rec.ID)
	}
	return nil
}

// Get returns the run with the given id including its report
func (s *Store) Get(ctx context.Context, id string) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+", report_json FROM runs WHERE id = ?", id)

	var reportJSON string
	rec, err := scanRun(row, &reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NewNotFoundError("run " + id).WithContext("run_id", id)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to read run", err).WithContext("run_id", id)
	}

	var report domain.Report
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, apperrors.NewParsingError("failed to decode stored report", err).WithContext("run_id", id)
	}
	rec.Report = &report
	return rec, nil
}

// List returns up to limit runs, newest first. A non-positive limit uses
// DefaultListLimit.
func (s *Store) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+runColumns+" FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to list runs", err)
	}
	defer rows.Close()

	records := make([]RunRecord, 0)
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, apperrors.NewStorageError("failed to scan run", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewStorageError("failed to list runs", err)
	}
	return records, nil
}

func scanRun(scanner interface{ Scan(dest ...any) error }, extra ...any) (*RunRecord, error) {
	var (
		rec        RunRecord
		createdRaw string
	)
	dest := []any{
		&rec.ID,
		&rec.InputFile,
		&rec.Rows,
		&rec.Columns,
		&rec.DuplicateRows,
		&rec.OverallMissingRate,
		&rec.OutliersFound,
		&createdRaw,
	}
	if err := scanner.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	created, err := time.Parse(time.RFC3339Nano, createdRaw)
	if err != nil {
		return nil, fmt.Errorf("parse created_at %q: %w", createdRaw, err)
	}
	rec.CreatedAt = created
	return &rec, nil
}

// formatTime renders t in UTC with a fixed-width fraction so stored values
// sort chronologically as text.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
