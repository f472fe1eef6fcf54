package domain

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const defaultTimeframeSeconds = 3600

var (
	timeframePattern = regexp.MustCompile(`(?i)^(\d{1,4})(mn|[smhdw])$`)
	timeframeUnits   = map[string]int{
		"s":  1,
		"m":  60,
		"h":  60 * 60,
		"d":  60 * 60 * 24,
		"w":  60 * 60 * 24 * 7,
		"mn": 60 * 60 * 24 * 30,
	}
)

// SupportedTimeframes are offered in help text; any parseable timeframe is accepted.
var SupportedTimeframes = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w"}

// TimeframeToSeconds parses "<digits><s|m|h|d|w|mn>" with at most four digits;
// "mn" is a 30-day month. Empty or unparseable input yields 3600.
func TimeframeToSeconds(tf string) int {
	m := timeframePattern.FindStringSubmatch(strings.TrimSpace(tf))
	if m == nil {
		return defaultTimeframeSeconds
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return defaultTimeframeSeconds
	}
	return n * timeframeUnits[strings.ToLower(m[2])]
}

func TimeframeTTL(tf string) time.Duration {
	return time.Duration(TimeframeToSeconds(tf)) * time.Second
}

func NormalizeTimeframe(tf string) string {
	return strings.ToLower(strings.TrimSpace(tf))
}

func ValidTimeframe(tf string) bool {
	return timeframePattern.MatchString(strings.TrimSpace(tf))
}
