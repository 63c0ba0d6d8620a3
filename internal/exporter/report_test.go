package exporter

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ehrqa/pkg/contracts/domain"
)

func sampleReport() *domain.Report {
	maxAge := 90.0
	return &domain.Report{
		InputFile:   "sample.csv",
		Rows:        4,
		Columns:     3,
		ColumnNames: []string{"id", "age", "weight"},
		Missingness: domain.MissingnessSummary{
			OverallMissingRate: 1.0 / 6.0,
			MissingRateByColumn: domain.ColumnRates{
				{Column: "weight", MissingRate: 0.5},
				{Column: "id", MissingRate: 0},
				{Column: "age", MissingRate: 0},
			},
			Top10MissingColumns: []domain.ColumnRate{
				{Column: "weight", MissingRate: 0.5},
				{Column: "id", MissingRate: 0},
				{Column: "age", MissingRate: 0},
			},
		},
		Duplicates:  domain.DuplicateSummary{DuplicateRows: 1},
		AgeHandling: &domain.AgeHandling{AgeCol: "age", NumMissingAfterParse: 0, MaxAgeAfterParse: &maxAge},
		OutliersIQR: domain.OutlierSummaries{
			{Column: "weight", OutlierSummary: domain.OutlierSummary{OutlierCount: 1, OutlierRate: 0.25}},
		},
	}
}

func TestWriteReportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "qa_report.json")
	doc := &domain.ReportDocument{
		RunID:       "run-1",
		GeneratedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Report:      sampleReport(),
		Outputs:     &domain.ReportOutputs{CleanedCSV: "out/ehr_cleaned.csv", OutlierFlagsCSV: "out/outlier_flags.csv"},
	}

	require.NoError(t, WriteReportJSON(path, doc))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(content)

	assert.True(t, strings.HasPrefix(text, "{\n  \"run_id\": \"run-1\""))
	assert.Contains(t, text, "\n      \"weight\": 0.5,")
	assert.Less(t, strings.Index(text, `"weight": 0.5`), strings.Index(text, `"id": 0`))
	assert.NotContains(t, text, "time_features")
	assert.NotContains(t, text, "plots")

	var generic map[string]any
	require.NoError(t, json.Unmarshal(content, &generic))
	assert.Equal(t, float64(4), generic["rows"])
	assert.Equal(t, "2026-03-01T12:00:00Z", generic["generated_at"])
	outliers := generic["outliers_iqr"].(map[string]any)
	assert.Equal(t, map[string]any{"outlier_count": float64(1), "outlier_rate": 0.25}, outliers["weight"])
}

func TestWriteReportJSON_UnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	err := WriteReportJSON(filepath.Join(blocker, "qa_report.json"), &domain.ReportDocument{Report: sampleReport()})
	assert.Error(t, err)
}
