package schedule

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidCadenceFormat = errors.New("invalid cadence format")

var (
	reClock    = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})\s*$`)
	reMilitary = regexp.MustCompile(`^\d{4}$`)
	reDigits   = regexp.MustCompile(`^\d+$`)
)

// Parse parses a cadence string.
//
// Supported forms:
//   - Unset: "", "off", "none"
//   - Daily: "daily:09:30", "at:09:30", "09:30", military "0930"
//   - Interval: "interval:600" (seconds), "interval:10m", "every:2h", "10m"
//
// A bare number is only accepted as a four-digit military time; seconds need
// the "interval:" prefix.
func Parse(raw string) (Cadence, error) {
	s := strings.TrimSpace(raw)
	low := strings.ToLower(s)
	switch low {
	case "", "off", "none", "unset":
		return Unset(), nil
	}

	for _, p := range []string{"daily:", "at:"} {
		if strings.HasPrefix(low, p) {
			return parseDaily(strings.TrimSpace(s[len(p):]))
		}
	}
	for _, p := range []string{"interval:", "every:"} {
		if strings.HasPrefix(low, p) {
			return parseInterval(strings.TrimSpace(s[len(p):]))
		}
	}

	switch {
	case reClock.MatchString(s):
		return parseDaily(s)
	case reMilitary.MatchString(s):
		return parseDaily(s[:2] + ":" + s[2:])
	}
	if !reDigits.MatchString(s) {
		if c, err := parseInterval(s); err == nil {
			return c, nil
		}
	}
	return Cadence{}, fmt.Errorf(
		"%w: %q (use a military time like '1830', HH:MM like '09:30', 'interval:600' or a duration like '10m')",
		ErrInvalidCadenceFormat, raw,
	)
}

func parseDaily(v string) (Cadence, error) {
	h, m, err := parseHHMM(v)
	if err != nil {
		return Cadence{}, err
	}
	return Daily(h, m)
}

func parseInterval(v string) (Cadence, error) {
	if v == "" {
		return Cadence{}, fmt.Errorf("%w: interval required", ErrInvalidCadenceFormat)
	}
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n <= 0 || n > int64(maxIntervalSeconds) {
			return Cadence{}, fmt.Errorf("%w: interval seconds must be in 1..%d", ErrInvalidCadenceFormat, maxIntervalSeconds)
		}
		return Interval(time.Duration(n) * time.Second)
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return Cadence{}, fmt.Errorf("%w: invalid interval %q", ErrInvalidCadenceFormat, v)
	}
	return Interval(d)
}

// maxIntervalSeconds keeps n*time.Second well inside int64.
const maxIntervalSeconds = 366 * 24 * 3600

func parseHHMM(s string) (hour int, minute int, err error) {
	m := reClock.FindStringSubmatch(s)
	if len(m) != 3 {
		return 0, 0, fmt.Errorf("%w: invalid time %q, expected HH:MM", ErrInvalidCadenceFormat, s)
	}
	h, _ := strconv.Atoi(m[1])
	if h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("%w: invalid hour in %q", ErrInvalidCadenceFormat, s)
	}
	mi, _ := strconv.Atoi(m[2])
	if mi < 0 || mi > 59 {
		return 0, 0, fmt.Errorf("%w: invalid minute in %q", ErrInvalidCadenceFormat, s)
	}
	return h, mi, nil
}
