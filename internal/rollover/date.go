package rollover

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidDate = errors.New("invalid date")

const dateLayout = "2006-01-02"

// Date is a plain calendar date with no time component or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns t's calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// NewDate normalizes out-of-range values the way time.Date does (Feb 30 -> Mar 2).
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseDate parses "YYYY-MM-DD". Values time.Date would normalize are rejected.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q (expected YYYY-MM-DD)", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

func (d Date) time() time.Time { return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC) }

func (d Date) IsZero() bool { return d == Date{} }

func (d Date) String() string { return d.time().Format(dateLayout) }

func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

func (d Date) AddDays(n int) Date { return DateOf(d.time().AddDate(0, 0, n)) }

func (d Date) Before(o Date) bool { return d.time().Before(o.time()) }

func (d Date) After(o Date) bool { return d.time().After(o.time()) }

// DaysBetween returns the number of whole days from a to b (negative when b
// is before a). Both dates are anchored at UTC midnight so DST never skews it.
func DaysBetween(a, b Date) int {
	return int(b.time().Sub(a.time()).Hours() / 24)
}

// Format renders the date with a time layout (e.g. "Monday, January 2, 2006").
func (d Date) Format(layout string) string { return d.time().Format(layout) }

func (d Date) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

func (d *Date) UnmarshalText(b []byte) error {
	v, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}
