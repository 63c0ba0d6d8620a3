package dataprocessing

import (
	"math"
	"strconv"
	"strings"

	"ehrqa/internal/dataset"
)

// ParseCensored converts one cell of a censored integer column.
//
// Numbers are truncated toward zero. Text is trimmed; a leading '>' marks a
// censored value, so ">89" means "89 or older" and parses as 90. Text that is
// not made of ASCII digits after that is missing, as are missing cells,
// infinities and values that do not fit in an int64.
func ParseCensored(v dataset.Value) (int64, bool) {
	switch v.Kind() {
	case dataset.KindNumber:
		f, _ := v.Float()
		return truncate(f)
	case dataset.KindText:
		s, _ := v.Text()
		return parseCensoredText(s)
	default:
		return 0, false
	}
}

// ParseCensoredColumn applies ParseCensored to every cell
func ParseCensoredColumn(values []dataset.Value) []dataset.Value {
	out := make([]dataset.Value, len(values))
	for i, v := range values {
		if n, ok := ParseCensored(v); ok {
			out[i] = dataset.Int(n)
		}
	}
	return out
}

func parseCensoredText(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, ">") {
		rest := strings.TrimSpace(strings.ReplaceAll(s, ">", ""))
		n, ok := parseDigits(rest)
		if !ok || n == math.MaxInt64 {
			return 0, false
		}
		return n + 1, true
	}
	return parseDigits(s)
}

func parseDigits(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func truncate(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	t := math.Trunc(f)
	if t >= math.MaxInt64 || t < math.MinInt64 {
		return 0, false
	}
	return int64(t), true
}
