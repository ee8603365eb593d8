// Package rollover advances a tenant's in-fiction calendar date.
//
// The logical date is paired with an anchor: the real date (in the tenant's
// zone) on which the logical date was last current. Advancing moves the
// logical date by the whole real days elapsed since the anchor, so a gap of N
// real days moves it by exactly N in one jump and produces one post, whatever
// the fictional year or month/day.
package rollover

// Result of one rollover.
type Result struct {
	Date   Date
	Anchor Date
	// DaysMissed is 0 when the date was already current.
	DaysMissed int
}

func (r Result) Changed() bool { return r.DaysMissed > 0 }

// Advance computes the logical date for today (the real date in the tenant's
// zone).
//
// A nil anchor means logical is current as of today: nothing moves and today
// becomes the anchor. A second call on the same real day is a no-op, and a
// real clock that went behind the anchor holds the date instead of moving it,
// so retries never advance twice and the date never moves backward.
func Advance(logical Date, anchor *Date, today Date) Result {
	if anchor == nil {
		return Result{Date: logical, Anchor: today}
	}
	days := DaysBetween(*anchor, today)
	if days < 1 {
		return Result{Date: logical, Anchor: *anchor}
	}
	return Result{Date: logical.AddDays(days), Anchor: today, DaysMissed: days}
}

// Reconcile rebuilds a logical date after gaps or partial configuration.
// A missing date starts from origin; a date before origin is clamped up to
// origin. An existing date is never moved backward.
func Reconcile(logical *Date, origin *Date) (Date, bool) {
	switch {
	case logical == nil && origin == nil:
		return Date{}, false
	case logical == nil:
		return *origin, true
	case origin != nil && logical.Before(*origin):
		return *origin, true
	default:
		return *logical, true
	}
}
