package dataprocessing

import (
	"strings"
	"time"

	"ehrqa/internal/dataset"
)

// TimeFormat names the layout a time column was parsed with
type TimeFormat string

const (
	TimeFormatHHMM   TimeFormat = "HH:MM"
	TimeFormatHHMMSS TimeFormat = "HH:MM:SS"
)

// TimeFallbackThreshold is the failure rate above which the whole column is
// parsed again with seconds
const TimeFallbackThreshold = 0.2

var timeLayouts = map[TimeFormat]string{
	TimeFormatHHMM:   "15:4",
	TimeFormatHHMMSS: "15:4:5",
}

// TimeResult is the outcome of normalising a time-of-day column
type TimeResult struct {
	// Hours holds the hour of day (0-23) per row, or missing
	Hours    []dataset.Value
	Format   TimeFormat
	Invalid  int
	FellBack bool
}

// NormalizeTime parses every cell as hour:minute. When more than
// TimeFallbackThreshold of the rows fail, the first attempt is discarded and
// the whole column is parsed as hour:minute:second instead.
func NormalizeTime(values []dataset.Value) TimeResult {
	texts := make([]string, len(values))
	for i, v := range values {
		texts[i] = strings.TrimSpace(v.String())
	}

	res := parseHours(texts, TimeFormatHHMM)
	if len(texts) > 0 && float64(res.Invalid)/float64(len(texts)) > TimeFallbackThreshold {
		res = parseHours(texts, TimeFormatHHMMSS)
		res.FellBack = true
	}
	return res
}

func parseHours(texts []string, format TimeFormat) TimeResult {
	res := TimeResult{Hours: make([]dataset.Value, len(texts)), Format: format}
	for i, s := range texts {
		hour, ok := parseHour(s, format)
		if !ok {
			res.Invalid++
			continue
		}
		res.Hours[i] = dataset.Int(int64(hour))
	}
	return res
}

func parseHour(s string, format TimeFormat) (int, bool) {
	if s == "" || strings.ContainsAny(s, ".,") {
		return 0, false
	}
	t, err := time.Parse(timeLayouts[format], s)
	if err != nil {
		return 0, false
	}
	return t.Hour(), true
}
