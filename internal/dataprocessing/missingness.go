package dataprocessing

import (
	"sort"

	"ehrqa/internal/dataset"
	"ehrqa/pkg/contracts/domain"
)

// TopMissingColumns is the number of columns listed in the missingness ranking
const TopMissingColumns = 10

// MissingRates returns missing_count/row_count for every column in column order.
// With zero rows every rate is 0.
func MissingRates(ds *dataset.Dataset) domain.ColumnRates {
	rates := make(domain.ColumnRates, 0, ds.NumColumns())
	for _, col := range ds.Columns() {
		rate := 0.0
		if ds.Rows() > 0 {
			rate = float64(col.MissingCount()) / float64(ds.Rows())
		}
		rates = append(rates, domain.ColumnRate{Column: col.Name, MissingRate: rate})
	}
	return rates
}

// RankMissing orders rates by descending rate. Ties keep their input order.
func RankMissing(rates domain.ColumnRates) domain.ColumnRates {
	ranked := make(domain.ColumnRates, len(rates))
	copy(ranked, rates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].MissingRate > ranked[j].MissingRate
	})
	return ranked
}

// SummarizeMissingness computes the per-column rates, ranked by descending
// rate, the overall rate and the top ranked columns. The overall rate is the
// unweighted mean of the per-column rates.
func SummarizeMissingness(ds *dataset.Dataset) domain.MissingnessSummary {
	rates := MissingRates(ds)

	overall := 0.0
	if len(rates) > 0 {
		sum := 0.0
		for _, r := range rates {
			sum += r.MissingRate
		}
		overall = sum / float64(len(rates))
	}

	ranked := RankMissing(rates)
	top := ranked
	if len(top) > TopMissingColumns {
		top = top[:TopMissingColumns]
	}

	return domain.MissingnessSummary{
		OverallMissingRate:  overall,
		MissingRateByColumn: ranked,
		Top10MissingColumns: append([]domain.ColumnRate{}, top...),
	}
}
