package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "ehrqa/internal/errors"
)

// nullTokens are the cell spellings read as missing
var nullTokens = map[string]struct{}{
	"":        {},
	"NA":      {},
	"N/A":     {},
	"n/a":     {},
	"NaN":     {},
	"nan":     {},
	"-NaN":    {},
	"-nan":    {},
	"NULL":    {},
	"null":    {},
	"None":    {},
	"#N/A":    {},
	"#NA":     {},
	"<NA>":    {},
	"-1.#IND": {},
	"1.#QNAN": {},
}

const utf8BOM = "\ufeff"

// IsNullToken reports whether raw is read as a missing cell
func IsNullToken(raw string) bool {
	_, ok := nullTokens[strings.TrimSpace(raw)]
	return ok
}

// InferColumn builds a column from raw strings. Null tokens become missing.
// When every remaining cell parses as a number the column is numeric;
// otherwise the remaining cells keep their raw text.
func InferColumn(name string, raw []string) Column {
	values := make([]Value, len(raw))
	numeric := true
	for i, s := range raw {
		if IsNullToken(s) {
			continue
		}
		if numeric {
			if f, ok := ParseNumber(s); ok {
				values[i] = Number(f)
				continue
			}
			numeric = false
		}
	}
	if !numeric {
		for i, s := range raw {
			if !IsNullToken(s) {
				values[i] = Text(s)
			}
		}
	}
	return Column{Name: name, Values: values}
}

// ParseNumber parses a trimmed decimal or exponent number, including inf.
// Hex and underscore forms are not numbers.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, "xX_") {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

// FromRecords builds a dataset from a header and row records. Header names are
// trimmed, blank names become "Unnamed: <i>" and repeated names get ".1", ".2"
// suffixes. Short rows are padded with missing cells; long rows are an error.
func FromRecords(header []string, records [][]string) (*Dataset, error) {
	if len(header) == 0 {
		return nil, apperrors.NewInputError("input has no header row", nil)
	}

	names := headerNames(header)
	raw := make([][]string, len(names))
	for j := range raw {
		raw[j] = make([]string, len(records))
	}
	for i, rec := range records {
		if len(rec) > len(names) {
			return nil, apperrors.NewInputError(
				fmt.Sprintf("row %d has %d fields, header has %d", i+1, len(rec), len(names)), nil).
				WithContext("row", i+1)
		}
		for j, cell := range rec {
			raw[j][i] = cell
		}
	}

	cols := make([]Column, len(names))
	for j, name := range names {
		cols[j] = InferColumn(name, raw[j])
	}
	return New(cols...)
}

func headerNames(header []string) []string {
	names := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, dup := seen[name]; dup {
			base := name
			for {
				n++
				name = fmt.Sprintf("%s.%d", base, n)
				if _, taken := seen[name]; !taken {
					break
				}
			}
			seen[base] = n
		}
		seen[name] = 0
		names[i] = name
	}
	return names
}

// LoadCSV reads comma separated data with a header row
func LoadCSV(r io.Reader) (*Dataset, error) {
	return LoadDelimited(r, ',')
}

// LoadDelimited reads delimited data with a header row
func LoadDelimited(r io.Reader, comma rune) (*Dataset, error) {
	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = comma
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apperrors.NewInputError("input has no header row", nil)
	}
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read header", err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("failed to read record", err)
		}
		records = append(records, rec)
	}

	return FromRecords(header, records)
}

// LoadCSVFile reads a CSV file from disk
func LoadCSVFile(path string) (*Dataset, error) {
	return loadDelimitedFile(path, ',')
}

func loadDelimitedFile(path string, comma rune) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewInputError("failed to open input", err).WithContext("path", path)
	}
	defer f.Close()
	return LoadDelimited(f, comma)
}

// LoadXLSX reads one worksheet of an Excel workbook. An empty sheet name
// selects the first sheet.
func LoadXLSX(path, sheet string) (*Dataset, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to open workbook", err).WithContext("path", path)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, apperrors.NewInputError("workbook has no sheets", nil).WithContext("path", path)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheet), err)
	}
	if len(rows) == 0 {
		return nil, apperrors.NewInputError(fmt.Sprintf("sheet %q is empty", sheet), nil)
	}
	return FromRecords(rows[0], rows[1:])
}

// SupportedExtensions lists the input extensions understood by Load
var SupportedExtensions = []string{".csv", ".txt", ".tsv", ".xlsx", ".xlsm"}

// Load reads a dataset choosing the reader from the file extension:
// .csv, .tsv or .xlsx.
func Load(path string) (*Dataset, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return loadDelimitedFile(path, ',')
	case ".tsv":
		return loadDelimitedFile(path, '\t')
	case ".xlsx", ".xlsm":
		return LoadXLSX(path, "")
	default:
		return nil, apperrors.NewInputError(
			fmt.Sprintf("unsupported input extension %q", filepath.Ext(path)), nil).WithContext("path", path)
	}
}
