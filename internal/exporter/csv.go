package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"ehrqa/internal/dataprocessing"
	"ehrqa/internal/dataset"
	apperrors "ehrqa/internal/errors"
)

// CSVWriter writes the cleaned dataset and the outlier flag table
type CSVWriter struct {
	baseDir string
	logger  *slog.Logger
}

// NewCSVWriter creates a CSV writer. Relative paths are resolved against
// baseDir; an empty baseDir leaves them relative to the working directory.
func NewCSVWriter(baseDir string, logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{baseDir: baseDir, logger: logger}
}

// WriteCSV writes a header and records to a new file, replacing any existing one
func (w *CSVWriter) WriteCSV(filePath string, headers []string, records [][]string) error {
	stream, err := w.CreateStreamWriter(filePath, headers)
	if err != nil {
		return err
	}

	for i, record := range records {
		if err := stream.WriteRecord(record); err != nil {
			stream.Close()
			return apperrors.NewStorageError(fmt.Sprintf("failed to write record %d", i), err).
				WithContext("path", stream.Path())
		}
	}
	return stream.Close()
}

// WriteCleanedCSV writes ds with its header. Missing cells are empty and
// numbers use their shortest form.
func (w *CSVWriter) WriteCleanedCSV(filePath string, ds *dataset.Dataset) error {
	stream, err := w.CreateStreamWriter(filePath, ds.ColumnNames())
	if err != nil {
		return err
	}

	record := make([]string, ds.NumColumns())
	for i := 0; i < ds.Rows(); i++ {
		for j, v := range ds.Row(i) {
			record[j] = v.String()
		}
		if err := stream.WriteRecord(record); err != nil {
			stream.Close()
			return apperrors.NewStorageError(fmt.Sprintf("failed to write row %d", i), err).
				WithContext("path", stream.Path())
		}
	}

	w.logger.Info("cleaned dataset written",
		slog.String("path", stream.Path()),
		slog.Int("rows", ds.Rows()),
		slog.Int("columns", ds.NumColumns()))
	return stream.Close()
}

// WriteOutlierFlagsCSV writes one <column>_iqr_outlier column of true/false
// per checked column, aligned to the input rows.
func (w *CSVWriter) WriteOutlierFlagsCSV(filePath string, flags *dataprocessing.OutlierFlags) error {
	columns := flags.Columns()
	records := make([][]string, flags.Rows())
	for i := range records {
		record := make([]string, len(columns))
		for j, col := range columns {
			values, _ := flags.Get(col)
			record[j] = formatBool(i < len(values) && values[i])
		}
		records[i] = record
	}

	if err := w.WriteCSV(filePath, flags.Header(), records); err != nil {
		return err
	}
	w.logger.Info("outlier flags written",
		slog.String("path", w.resolvePath(filePath)),
		slog.Int("columns", len(columns)),
		slog.Int("outliers_found", flags.Total()))
	return nil
}

// StreamWriter writes CSV records one at a time
type StreamWriter struct {
	path   string
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter creates the file, its directory and writes the header
func (w *CSVWriter) CreateStreamWriter(filePath string, headers []string) (*StreamWriter, error) {
	fullPath := w.resolvePath(filePath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create directory", err).
			WithContext("path", filepath.Dir(fullPath))
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create file", err).
			WithContext("path", fullPath)
	}

	writer := csv.NewWriter(file)
	if err := writer.Write(headers); err != nil {
		file.Close()
		return nil, apperrors.NewStorageError("failed to write headers", err).
			WithContext("path", fullPath)
	}

	return &StreamWriter{
		path:   fullPath,
		file:   file,
		writer: writer,
	}, nil
}

// Path returns the resolved file path
func (s *StreamWriter) Path() string {
	return s.path
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes and closes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return apperrors.NewStorageError("failed to flush csv", err).WithContext("path", s.path)
	}
	if err := s.file.Close(); err != nil {
		return apperrors.NewStorageError("failed to close file", err).WithContext("path", s.path)
	}
	return nil
}

// resolvePath resolves a relative path against the base directory
func (w *CSVWriter) resolvePath(filePath string) string {
	if filepath.IsAbs(filePath) || w.baseDir == "" {
		return filePath
	}
	return filepath.Join(w.baseDir, filePath)
}
