package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Kind int

const (
	KindUnset Kind = iota
	KindDaily
	KindInterval
)

func (k Kind) String() string {
	switch k {
	case KindDaily:
		return "daily"
	case KindInterval:
		return "interval"
	default:
		return "unset"
	}
}

// Cadence is a tagged variant. Fields are unexported so only one mode can be
// populated at a time; use Unset, Daily or Interval to build one.
type Cadence struct {
	kind   Kind
	hour   int
	minute int
	every  time.Duration
}

func Unset() Cadence { return Cadence{} }

// Daily fires once per calendar day at hour:minute in the tenant's zone.
func Daily(hour, minute int) (Cadence, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return Cadence{}, fmt.Errorf("%w: time of day %02d:%02d out of range", ErrInvalidCadenceFormat, hour, minute)
	}
	return Cadence{kind: KindDaily, hour: hour, minute: minute}, nil
}

// Interval fires every d. d must be a positive whole number of seconds.
func Interval(d time.Duration) (Cadence, error) {
	if d < time.Second {
		return Cadence{}, fmt.Errorf("%w: interval must be >= 1s", ErrInvalidCadenceFormat)
	}
	if d%time.Second != 0 {
		return Cadence{}, fmt.Errorf("%w: interval must be whole seconds", ErrInvalidCadenceFormat)
	}
	return Cadence{kind: KindInterval, every: d}, nil
}

func (c Cadence) Kind() Kind { return c.kind }

func (c Cadence) IsUnset() bool { return c.kind == KindUnset }

func (c Cadence) Hour() int { return c.hour }

func (c Cadence) Minute() int { return c.minute }

// Every is the interval length; zero for non-interval cadences.
func (c Cadence) Every() time.Duration { return c.every }

// Clock returns the daily time of day as "HH:MM" (empty for other kinds).
func (c Cadence) Clock() string {
	if c.kind != KindDaily {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", c.hour, c.minute)
}

// String returns the persisted form: "", "daily:HH:MM" or "interval:<seconds>".
// Parse(c.String()) == c for every valid cadence.
func (c Cadence) String() string {
	switch c.kind {
	case KindDaily:
		return "daily:" + c.Clock()
	case KindInterval:
		return "interval:" + strconv.FormatInt(int64(c.every/time.Second), 10)
	default:
		return ""
	}
}

// Summary is the display form used by status commands.
func (c Cadence) Summary() string {
	switch c.kind {
	case KindDaily:
		return "daily at " + c.Clock()
	case KindInterval:
		return "every " + shortDuration(c.every)
	default:
		return "not scheduled"
	}
}

// shortDuration drops the zero tails time.Duration.String leaves ("1h0m0s" -> "1h").
func shortDuration(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}
