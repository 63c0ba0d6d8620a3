package validation

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"ehrqa/internal/dataset"
	apperrors "ehrqa/internal/errors"
)

// FileValidator checks the input dataset and output locations of a QA run
type FileValidator struct {
	logger *slog.Logger
}

func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateInputFile checks that path is a readable, non-empty dataset file
// with an extension the loader understands.
func (v *FileValidator) ValidateInputFile(path string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(dataset.SupportedExtensions, ext) {
		v.logger.Error("Unsupported input file type",
			slog.String("file", path),
			slog.String("extension", ext))
		return apperrors.NewInputError(
			fmt.Sprintf("unsupported input extension %q (supported: %s)", ext, strings.Join(dataset.SupportedExtensions, ", ")), nil).
			WithContext("path", path)
	}

	// Office lock files share the workbook's extension
	if strings.HasPrefix(filepath.Base(path), "~$") {
		v.logger.Warn("Rejecting temporary Excel file",
			slog.String("file", path))
		return apperrors.NewInputError("input is a temporary Excel lock file", nil).WithContext("path", path)
	}

	info, err := os.Stat(path)
	if err != nil {
		return apperrors.NewInputError("failed to stat input", err).WithContext("path", path)
	}
	if info.Size() == 0 {
		v.logger.Error("Input file is empty",
			slog.String("file", path))
		return apperrors.NewInputError("input file is empty", nil).WithContext("path", path)
	}

	v.logger.Debug("Input file validated",
		slog.String("file", path),
		slog.String("extension", ext),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateOutputDirectory creates dir when needed and proves it writable
// with a throwaway temp file
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	fail := func(msg string, err error) error {
		v.logger.Error(msg, slog.String("directory", dir), slog.String("error", err.Error()))
		return apperrors.NewStorageError(strings.ToLower(msg[:1])+msg[1:], err).WithContext("directory", dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail("Failed to create output directory", err)
	}
	probe, err := os.CreateTemp(dir, ".ehrqa-write-*")
	if err != nil {
		return fail("Output directory is not writable", err)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	v.logger.Debug("Output directory validated", slog.String("directory", dir))
	return nil
}

// ValidateFile checks that path names an existing, readable regular file
func (v *FileValidator) ValidateFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return apperrors.NewAppValidationError("input path is required")
	}

	reject := func(msg string, cause error) error {
		attrs := []any{slog.String("file", path)}
		if cause != nil {
			attrs = append(attrs, slog.String("error", cause.Error()))
		}
		v.logger.Error("Input file rejected", append(attrs, slog.String("reason", msg))...)
		return apperrors.NewInputError(msg, cause).WithContext("path", path)
	}

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return reject(fmt.Sprintf("file %s does not exist", path), err)
	case err != nil:
		return reject(fmt.Sprintf("failed to stat file %s", path), err)
	case info.IsDir():
		return reject(fmt.Sprintf("%s is a directory, not a file", path), nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return reject(fmt.Sprintf("file %s is not readable", path), err)
	}
	return f.Close()
}

// ValidateColumns reports the configured column names that are absent from
// ds. Missing columns are never an error: the pipeline skips them.
func (v *FileValidator) ValidateColumns(ds *dataset.Dataset, names ...string) []string {
	var missing []string
	for _, name := range names {
		if name != "" && !ds.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		v.logger.Warn("Configured columns not found in input",
			slog.Any("columns", missing),
			slog.Any("available", ds.ColumnNames()))
	}
	return missing
}
