package helper

import (
	"strconv"
	"strings"
)

const (
	daySeconds   = 86400
	weekSeconds  = 7 * daySeconds
	monthSeconds = 30 * daySeconds // fixed approximation, not calendar accurate

	defaultResolutionSeconds = 300
)

// ResolutionSeconds maps a resolution label ("5", "60", "1D", "W", "1M") to its
// duration in seconds. Labels are case-insensitive; markers are checked in the
// order day, week, month. Anything else is read as a number of minutes and an
// unparsable label falls back to five minutes so polling never stalls.
func ResolutionSeconds(resolution string) int64 {
	s := strings.ToLower(strings.TrimSpace(resolution))
	switch {
	case strings.Contains(s, "d"):
		return daySeconds
	case strings.Contains(s, "w"):
		return weekSeconds
	case strings.Contains(s, "m"):
		return monthSeconds
	}
	minutes, err := strconv.Atoi(leadingDigits(s))
	if err != nil || minutes <= 0 {
		return defaultResolutionSeconds
	}
	return int64(minutes) * 60
}

// AlignDown truncates unix seconds to a multiple of step.
func AlignDown(sec, step int64) int64 {
	if step <= 0 {
		return sec
	}
	return sec - sec%step
}

// SeriesKey identifies a (symbol, resolution) pair.
func SeriesKey(symbol, resolution string) string { return symbol + "_" + resolution }

// leadingDigits mirrors parseInt semantics: "15s" reads as 15.
func leadingDigits(s string) string {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	return s[:end]
}
