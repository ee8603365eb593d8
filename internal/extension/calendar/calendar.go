// Package calendar announces the in-fiction date once per real day.
package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	"almanac/internal/driver"
	"almanac/internal/rollover"
	"almanac/internal/tenant"
)

const Kind = "calendar"

// Composer rolls the tenant's logical date forward to today and renders the
// announcement.
type Composer struct{}

func (Composer) Compose(ctx context.Context, rec tenant.Schedule, now time.Time) (driver.Composition, error) {
	cur, ok := rollover.Reconcile(rec.LogicalDate, rec.LogicalOrigin)
	if !ok {
		return driver.Composition{Skip: true, SkipReason: "no start date configured"}, nil
	}
	// The anchor belongs to the stored date; a rebuilt date starts fresh today.
	anchor := rec.LogicalAnchor
	if rec.LogicalDate == nil || *rec.LogicalDate != cur {
		anchor = nil
	}
	res := rollover.Advance(cur, anchor, rollover.DateOf(now))
	return driver.Composition{
		Payload:       driver.Payload{Kind: Kind, Text: Render(res)},
		LogicalDate:   &res.Date,
		LogicalAnchor: &res.Anchor,
	}, nil
}

func Render(res rollover.Result) string {
	d := res.Date
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Today is %s, %s %d, %d.", d.Weekday(), d.Month, d.Day, d.Year)
	if res.DaysMissed > 1 {
		fmt.Fprintf(&b, "\n%d days have passed since the last announcement.", res.DaysMissed)
	}
	return b.String()
}
