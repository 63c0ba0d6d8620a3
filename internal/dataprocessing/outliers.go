package dataprocessing

import (
	"math"
	"sort"

	"ehrqa/internal/dataset"
	"ehrqa/pkg/contracts/domain"
)

// DefaultIQRMultiplier is the fence multiplier used when none is configured
const DefaultIQRMultiplier = 1.5

// FlagColumnSuffix is appended to a column name in the flag table header
const FlagColumnSuffix = "_iqr_outlier"

// Quantile returns the q-th quantile of sorted values using linear
// interpolation between the closest ranks (rank = q*(n-1)).
// It returns NaN for an empty slice.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	rank := q * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (rank-float64(lo))*(sorted[hi]-sorted[lo])
}

// CoerceNumeric reads a cell as a number. Text that parses as a number is
// accepted; anything else is missing.
func CoerceNumeric(v dataset.Value) (float64, bool) {
	switch v.Kind() {
	case dataset.KindNumber:
		return v.Float()
	case dataset.KindText:
		s, _ := v.Text()
		f, ok := dataset.ParseNumber(s)
		if !ok || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Bounds are the IQR fences of one column
type Bounds struct {
	Q1    float64
	Q3    float64
	IQR   float64
	Lower float64
	Upper float64
}

// Outside reports whether x falls outside the fences
func (b Bounds) Outside(x float64) bool {
	return x < b.Lower || x > b.Upper
}

// OutlierDetector flags values outside Q1 - K*IQR and Q3 + K*IQR
type OutlierDetector struct {
	K float64
}

// NewOutlierDetector creates a detector. A non-positive k selects DefaultIQRMultiplier.
func NewOutlierDetector(k float64) *OutlierDetector {
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		k = DefaultIQRMultiplier
	}
	return &OutlierDetector{K: k}
}

// Bounds computes the fences over the non-missing values. ok is false when the
// IQR is undefined or zero, in which case nothing is an outlier.
func (d *OutlierDetector) Bounds(values []dataset.Value) (Bounds, bool) {
	nums := make([]float64, 0, len(values))
	for _, v := range values {
		if f, ok := CoerceNumeric(v); ok {
			nums = append(nums, f)
		}
	}
	sort.Float64s(nums)

	q1 := Quantile(nums, 0.25)
	q3 := Quantile(nums, 0.75)
	iqr := q3 - q1
	if math.IsNaN(iqr) || iqr == 0 {
		return Bounds{}, false
	}
	return Bounds{
		Q1:    q1,
		Q3:    q3,
		IQR:   iqr,
		Lower: q1 - d.K*iqr,
		Upper: q3 + d.K*iqr,
	}, true
}

// Flags returns one flag per row; missing and non-numeric cells are never flagged
func (d *OutlierDetector) Flags(values []dataset.Value) []bool {
	flags := make([]bool, len(values))
	b, ok := d.Bounds(values)
	if !ok {
		return flags
	}
	for i, v := range values {
		if f, ok := CoerceNumeric(v); ok && b.Outside(f) {
			flags[i] = true
		}
	}
	return flags
}

// DetectColumns flags every named column of ds. Names missing from ds are skipped.
func (d *OutlierDetector) DetectColumns(ds *dataset.Dataset, columns []string) *OutlierFlags {
	out := NewOutlierFlags(ds.Rows())
	for _, name := range columns {
		col, ok := ds.Column(name)
		if !ok {
			continue
		}
		out.Set(name, d.Flags(col.Values))
	}
	return out
}

// Summarize counts the flags. The rate denominator is the row count, missing rows included.
func Summarize(flags []bool) domain.OutlierSummary {
	count := 0
	for _, f := range flags {
		if f {
			count++
		}
	}
	s := domain.OutlierSummary{OutlierCount: count}
	if len(flags) > 0 {
		s.OutlierRate = float64(count) / float64(len(flags))
	}
	return s
}

// OutlierFlags is an ordered table of per-column flags aligned to row index
type OutlierFlags struct {
	rows    int
	columns []string
	flags   map[string][]bool
}

// NewOutlierFlags creates an empty table for rows rows
func NewOutlierFlags(rows int) *OutlierFlags {
	return &OutlierFlags{rows: rows, flags: make(map[string][]bool)}
}

// Set stores the flags of a column, replacing earlier flags for the same column
func (o *OutlierFlags) Set(column string, flags []bool) {
	if _, ok := o.flags[column]; !ok {
		o.columns = append(o.columns, column)
	}
	o.flags[column] = flags
}

// Rows returns the row count
func (o *OutlierFlags) Rows() int { return o.rows }

// Columns returns the flagged columns in insertion order
func (o *OutlierFlags) Columns() []string {
	out := make([]string, len(o.columns))
	copy(out, o.columns)
	return out
}

// Get returns the flags of a column
func (o *OutlierFlags) Get(column string) ([]bool, bool) {
	f, ok := o.flags[column]
	return f, ok
}

// Header returns the flag table header, one <column>_iqr_outlier per column
func (o *OutlierFlags) Header() []string {
	header := make([]string, len(o.columns))
	for i, c := range o.columns {
		header[i] = c + FlagColumnSuffix
	}
	return header
}

// Summaries returns the per-column outlier summaries in column order
func (o *OutlierFlags) Summaries() domain.OutlierSummaries {
	out := make(domain.OutlierSummaries, 0, len(o.columns))
	for _, c := range o.columns {
		out = append(out, domain.ColumnOutliers{Column: c, OutlierSummary: Summarize(o.flags[c])})
	}
	return out
}

// Total returns the number of flagged cells across all columns
func (o *OutlierFlags) Total() int {
	total := 0
	for _, c := range o.columns {
		total += Summarize(o.flags[c]).OutlierCount
	}
	return total
}
