package exporter

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	apperrors "ehrqa/internal/errors"
	"ehrqa/pkg/contracts/domain"
)

// MarshalReport encodes a report document with 2-space indentation
func MarshalReport(doc *domain.ReportDocument) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, apperrors.NewParsingError("failed to encode report", err)
	}
	return buf.Bytes(), nil
}

// WriteReportJSON writes the report document to path, creating its directory
func WriteReportJSON(path string, doc *domain.ReportDocument) error {
	data, err := MarshalReport(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create directory", err).WithContext("path", filepath.Dir(path))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return apperrors.NewStorageError("failed to write report", err).WithContext("path", path)
	}
	return nil
}
