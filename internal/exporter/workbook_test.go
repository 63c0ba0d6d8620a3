package exporter

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"ehrqa/internal/dataset"
	"ehrqa/pkg/contracts/domain"
)

func TestHistogram(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		bins   int
		counts []int
		lower  float64
		upper  float64
	}{
		{name: "empty", values: nil, bins: 3},
		{name: "spread", values: []float64{0, 1, 2, 3, 4, 5}, bins: 5, counts: []int{1, 1, 1, 1, 2}, lower: 0, upper: 5},
		{name: "max lands in last bin", values: []float64{10, 20}, bins: 2, counts: []int{1, 1}, lower: 10, upper: 20},
		{name: "constant values widen range", values: []float64{7, 7, 7}, bins: 2, counts: []int{0, 3}, lower: 6.5, upper: 7.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bins := Histogram(tt.values, tt.bins)
			if tt.counts == nil {
				assert.Nil(t, bins)
				return
			}
			require.Len(t, bins, tt.bins)

			counts := make([]int, len(bins))
			for i, b := range bins {
				counts[i] = b.Count
			}
			assert.Equal(t, tt.counts, counts)
			assert.Equal(t, tt.lower, bins[0].Lower)
			assert.Equal(t, tt.upper, bins[len(bins)-1].Upper)
		})
	}
}

func ageDataset(t *testing.T, ages ...dataset.Value) *dataset.Dataset {
	t.Helper()
	ds, err := dataset.New(dataset.Column{Name: "age", Values: ages})
	require.NoError(t, err)
	return ds
}

func TestWorkbookWriter_Write(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qa_plots.xlsx")
	cleaned := ageDataset(t, dataset.Int(34), dataset.Int(90), dataset.Missing(), dataset.Int(57))

	plots, err := NewWorkbookWriter(nil).Write(path, sampleReport(), cleaned)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		PlotMissingness: path + "#" + SheetMissingness,
		PlotAgeHist:     path + "#" + SheetAge,
	}, plots)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetSummary, SheetMissingness, SheetOutliers, SheetAge}, f.GetSheetList())

	t.Run("summary", func(t *testing.T) {
		rows, err := f.GetRows(SheetSummary)
		require.NoError(t, err)
		assert.Equal(t, []string{"metric", "value"}, rows[0])
		assert.Equal(t, []string{"rows", "4"}, rows[2])
		assert.Equal(t, []string{"duplicate_rows", "1"}, rows[5])
	})

	t.Run("missingness ranked", func(t *testing.T) {
		rows, err := f.GetRows(SheetMissingness)
		require.NoError(t, err)
		require.Len(t, rows, 4)
		assert.Equal(t, []string{"weight", "0.5"}, rows[1])
	})

	t.Run("outliers", func(t *testing.T) {
		rows, err := f.GetRows(SheetOutliers)
		require.NoError(t, err)
		assert.Equal(t, [][]string{
			{"column", "outlier_count", "outlier_rate"},
			{"weight", "1", "0.25"},
		}, rows)
	})

	t.Run("age histogram", func(t *testing.T) {
		rows, err := f.GetRows(SheetAge)
		require.NoError(t, err)
		require.Len(t, rows, AgeHistogramBins+1)

		total := 0
		for _, r := range rows[1:] {
			n, err := strconv.Atoi(r[1])
			require.NoError(t, err)
			total += n
		}
		assert.Equal(t, 3, total)
		assert.Equal(t, "34-35.87", rows[1][0])
	})
}

func TestWorkbookWriter_SkipsAgeSheet(t *testing.T) {
	tests := []struct {
		name    string
		report  func() *domain.Report
		cleaned *dataset.Dataset
	}{
		{
			name: "no age handling",
			report: func() *domain.Report {
				r := sampleReport()
				r.AgeHandling = nil
				return r
			},
		},
		{
			name:    "age column all missing",
			report:  sampleReport,
			cleaned: ageDataset(t, dataset.Missing(), dataset.Missing()),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "qa_plots.xlsx")
			plots, err := NewWorkbookWriter(nil).Write(path, tt.report(), tt.cleaned)
			require.NoError(t, err)

			assert.NotContains(t, plots, PlotAgeHist)
			assert.Contains(t, plots, PlotMissingness)

			f, err := excelize.OpenFile(path)
			require.NoError(t, err)
			defer f.Close()
			assert.NotContains(t, f.GetSheetList(), SheetAge)
		})
	}
}

func TestWorkbookWriter_NilReport(t *testing.T) {
	_, err := NewWorkbookWriter(nil).Write(filepath.Join(t.TempDir(), "x.xlsx"), nil, nil)
	assert.Error(t, err)
}
