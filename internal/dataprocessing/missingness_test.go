package dataprocessing

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ehrqa/internal/dataset"
	"ehrqa/internal/shared/testutil"
	"ehrqa/pkg/contracts/domain"
)

func column(name string, missing, rows int) dataset.Column {
	values := make([]dataset.Value, rows)
	for i := missing; i < rows; i++ {
		values[i] = dataset.Int(int64(i))
	}
	return dataset.Column{Name: name, Values: values}
}

func TestSummarizeMissingness_UnweightedMean(t *testing.T) {
	ds, err := dataset.New(
		column("complete", 0, 10),
		column("half", 5, 10),
		column("mostly", 9, 10),
	)
	require.NoError(t, err)

	s := SummarizeMissingness(ds)

	// (0 + 0.5 + 0.9) / 3 rather than 14 missing cells out of 30
	assert.InDelta(t, 1.4/3, s.OverallMissingRate, 1e-12)

	rate, ok := s.MissingRateByColumn.Get("half")
	require.True(t, ok)
	assert.InDelta(t, 0.5, rate, 1e-12)
}

func TestSummarizeMissingness_TwoColumns(t *testing.T) {
	ds, err := dataset.New(column("a", 0, 10), column("b", 5, 10))
	require.NoError(t, err)

	s := SummarizeMissingness(ds)
	assert.InDelta(t, 0.25, s.OverallMissingRate, 1e-12)
}

func TestSummarizeMissingness_RankingAndTies(t *testing.T) {
	ds, err := dataset.New(
		column("c0", 1, 4),
		column("c1", 3, 4),
		column("c2", 1, 4),
		column("c3", 0, 4),
		column("c4", 3, 4),
	)
	require.NoError(t, err)

	s := SummarizeMissingness(ds)

	var order []string
	for _, r := range s.MissingRateByColumn {
		order = append(order, r.Column)
	}
	assert.Equal(t, []string{"c1", "c4", "c0", "c2", "c3"}, order)
	assert.Equal(t, s.MissingRateByColumn[:5], domainRates(s.Top10MissingColumns))
}

func TestSummarizeMissingness_TopTen(t *testing.T) {
	var cols []dataset.Column
	for i := 0; i < 12; i++ {
		cols = append(cols, column(fmt.Sprintf("col%02d", i), i%5, 5))
	}
	ds, err := dataset.New(cols...)
	require.NoError(t, err)

	s := SummarizeMissingness(ds)
	assert.Len(t, s.MissingRateByColumn, 12)
	require.Len(t, s.Top10MissingColumns, TopMissingColumns)
	assert.Equal(t, "col04", s.Top10MissingColumns[0].Column)
	assert.Equal(t, "col09", s.Top10MissingColumns[1].Column)
}

func TestSummarizeMissingness_Empty(t *testing.T) {
	ds, err := dataset.New(dataset.Column{Name: "a"}, dataset.Column{Name: "b"})
	require.NoError(t, err)

	s := SummarizeMissingness(ds)
	assert.Equal(t, 0.0, s.OverallMissingRate)
	assert.Len(t, s.MissingRateByColumn, 2)

	none, err := dataset.New()
	require.NoError(t, err)
	s = SummarizeMissingness(none)
	assert.Equal(t, 0.0, s.OverallMissingRate)
	assert.Empty(t, s.Top10MissingColumns)
}

func TestSummarizeMissingness_SampleExtract(t *testing.T) {
	ds, err := dataset.LoadCSV(strings.NewReader(testutil.EHRSampleCSV))
	require.NoError(t, err)

	s := SummarizeMissingness(ds)

	assert.InDelta(t, 1.0/7, s.OverallMissingRate, 1e-12)
	assert.Equal(t, "notes", s.Top10MissingColumns[0].Column)
	assert.InDelta(t, 5.0/7, s.Top10MissingColumns[0].MissingRate, 1e-12)
	assert.Equal(t, "age", s.Top10MissingColumns[1].Column)
	assert.Equal(t, "weight_kg", s.Top10MissingColumns[2].Column)
}

func domainRates(rates []domain.ColumnRate) domain.ColumnRates {
	return domain.ColumnRates(rates)
}
