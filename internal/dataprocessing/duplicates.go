package dataprocessing

import (
	"strconv"
	"strings"

	"ehrqa/internal/dataset"
	"ehrqa/pkg/contracts/domain"
)

// ExistingColumns keeps the names present in ds, dropping repeats and keeping order
func ExistingColumns(ds *dataset.Dataset, names []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		if _, dup := seen[n]; dup || !ds.Has(n) {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// CountDuplicateRows counts rows equal to an earlier row on the given columns.
// Missing equals missing. Names absent from ds are ignored.
func CountDuplicateRows(ds *dataset.Dataset, columns []string) int {
	cols := make([]*dataset.Column, 0, len(columns))
	for _, name := range columns {
		if c, ok := ds.Column(name); ok {
			cols = append(cols, c)
		}
	}

	seen := make(map[string]struct{}, ds.Rows())
	dups := 0
	var b strings.Builder
	for i := 0; i < ds.Rows(); i++ {
		b.Reset()
		for _, c := range cols {
			k := c.Values[i].Key()
			b.WriteString(strconv.Itoa(len(k)))
			b.WriteByte(':')
			b.WriteString(k)
		}
		key := b.String()
		if _, ok := seen[key]; ok {
			dups++
			continue
		}
		seen[key] = struct{}{}
	}
	return dups
}

// SummarizeDuplicates counts full-row duplicates and, when any of idCols exist
// in ds, duplicates on that identifier subset.
func SummarizeDuplicates(ds *dataset.Dataset, idCols []string) domain.DuplicateSummary {
	summary := domain.DuplicateSummary{
		DuplicateRows: CountDuplicateRows(ds, ds.ColumnNames()),
	}
	if existing := ExistingColumns(ds, idCols); len(existing) > 0 {
		summary.DuplicateByIDCols = &domain.IDDuplicateSummary{
			IDCols:         existing,
			DuplicateCount: CountDuplicateRows(ds, existing),
		}
	}
	return summary
}
