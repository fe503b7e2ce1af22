package apicache

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xhit/go-str2duration/v2"
)

// FallbackDuration is used when no valid default duration is configured.
const FallbackDuration = time.Hour

var (
	durationPattern = regexp.MustCompile(`^([\d.,]+)\s?(\w+)$`)
	leadingNumber   = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)`)
)

var durationUnits = map[string]time.Duration{
	"ms":     time.Millisecond,
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
	"month":  30 * 24 * time.Hour,
}

// ParseDuration parses a human duration such as "2 minutes", "500ms" or
// "1 hour". Units are case-insensitive and the trailing "s" is optional.
// A bare "m" means milliseconds, not minutes. The count is read up to the
// first character that cannot continue a decimal number, so "1,5 hours" is
// one hour and "1.5.2 hours" is an hour and a half. A zero or missing count
// counts as one. Strings that do not match that form are tried as compact
// durations ("1h30m", "2d"). Anything else yields fallback.
func ParseDuration(s string, fallback time.Duration) time.Duration {
	if d, ok := parseDuration(s); ok {
		return d
	}
	return fallback
}

func parseDuration(s string) (time.Duration, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if m := durationPattern.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseFloat(leadingNumber.FindString(m[1]), 64)
		if err != nil || n == 0 {
			n = 1
		}
		unit := strings.ToLower(m[2])
		unit = strings.TrimSuffix(unit, "s")
		if unit == "m" {
			unit = "ms"
		}
		if base, ok := durationUnits[unit]; ok {
			return time.Duration(n * float64(base)), true
		}
	}

	if d, err := str2duration.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}
