package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"almanac/internal/clock"
)

// Decision is the result of evaluating a cadence at one tick.
type Decision struct {
	Due bool
	// Next is the next due instant: after this fire when Due, otherwise the
	// pending occurrence. Zero for an unset cadence.
	Next time.Time
}

// Five-field parser; schedules keep time.Local as their location, which cron
// interprets as "use the location of the time passed to Next".
var dailyParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func (c Cadence) dailySchedule() cron.Schedule {
	sched, err := dailyParser.Parse(fmt.Sprintf("%d %d * * *", c.minute, c.hour))
	if err != nil {
		// Daily() already bounds hour/minute.
		panic(fmt.Sprintf("schedule: daily spec rejected by cron: %v", err))
	}
	return sched
}

// nextDailyAfterDay returns HH:MM on the calendar day after t's day, in t's
// location. Nonexistent local times (DST gaps) follow cron's rules.
func (c Cadence) nextDailyAfterDay(t time.Time) time.Time {
	tomorrow := clock.StartOfDay(t).AddDate(0, 0, 1)
	// cron.Next is strictly-after and rounds up to the next whole second.
	return c.dailySchedule().Next(tomorrow.Add(-time.Second))
}

// Evaluate decides whether a post is due at now.
//
// now must already be expressed in the tenant's zone; lastFired may be in any
// location. Equality with the due instant counts as due.
func Evaluate(c Cadence, lastFired *time.Time, now time.Time) Decision {
	switch c.kind {
	case KindDaily:
		if lastFired == nil {
			return Decision{Due: true, Next: c.nextDailyAfterDay(now)}
		}
		next := c.nextDailyAfterDay(lastFired.In(now.Location()))
		if now.Before(next) {
			return Decision{Due: false, Next: next}
		}
		return Decision{Due: true, Next: c.nextDailyAfterDay(now)}

	case KindInterval:
		if lastFired == nil {
			return Decision{Due: true, Next: now.Add(c.every)}
		}
		next := lastFired.Add(c.every)
		if now.Before(next) {
			return Decision{Due: false, Next: next.In(now.Location())}
		}
		// Anchor resets to now: missed intervals are not queued.
		return Decision{Due: true, Next: now.Add(c.every)}

	default:
		return Decision{}
	}
}

// NextFire returns the instant the cadence next becomes due without firing.
// A never-fired tenant is due at now. ok is false for an unset cadence.
func NextFire(c Cadence, lastFired *time.Time, now time.Time) (next time.Time, ok bool) {
	if c.kind == KindUnset {
		return time.Time{}, false
	}
	if lastFired == nil {
		return now, true
	}
	d := Evaluate(c, lastFired, now)
	if d.Due {
		return now, true
	}
	return d.Next, true
}

// Until is the display-only "time until next fire". It is never negative: a
// due (or overdue, e.g. after the host slept) tenant reports 0.
func Until(c Cadence, lastFired *time.Time, now time.Time) (time.Duration, bool) {
	next, ok := NextFire(c, lastFired, now)
	if !ok {
		return 0, false
	}
	d := next.Sub(now)
	if d < 0 {
		d = 0
	}
	return d, true
}
