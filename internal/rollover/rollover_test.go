package rollover

import (
	"errors"
	"testing"
	"time"
)

func mustDate(t *testing.T, s string) Date {
	t.Helper()
	d, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate(%q): %v", s, err)
	}
	return d
}

func TestAdvanceSameDayIsNoop(t *testing.T) {
	t.Parallel()
	logical := mustDate(t, "2025-06-01")
	today := mustDate(t, "2025-06-01")

	r := Advance(logical, &today, today)
	if r.Changed() || r.Date != logical || r.Anchor != today {
		t.Fatalf("same-day advance changed state: %+v", r)
	}
	// Idempotent when repeated.
	if r2 := Advance(r.Date, &r.Anchor, today); r2.Changed() || r2.Date != logical {
		t.Fatalf("second advance changed state: %+v", r2)
	}
}

func TestAdvanceWithoutAnchorStartsToday(t *testing.T) {
	t.Parallel()
	// A start date set in January but first posted in June stays put.
	logical := mustDate(t, "1492-01-01")
	today := mustDate(t, "2025-06-06")

	r := Advance(logical, nil, today)
	if r.Changed() || r.Date != logical || r.Anchor != today {
		t.Fatalf("unanchored advance = %+v", r)
	}
}

func TestAdvanceFiveDayGap(t *testing.T) {
	t.Parallel()
	logical := mustDate(t, "2025-06-01")
	anchor := mustDate(t, "2025-06-01")
	r := Advance(logical, &anchor, mustDate(t, "2025-06-06"))
	if r.DaysMissed != 5 {
		t.Fatalf("DaysMissed = %d, want 5", r.DaysMissed)
	}
	if want := mustDate(t, "2025-06-06"); r.Date != want || r.Anchor != want {
		t.Fatalf("Result = %+v, want date and anchor %v", r, want)
	}
	// Resuming again on the same real day changes nothing.
	if again := Advance(r.Date, &r.Anchor, mustDate(t, "2025-06-06")); again.Changed() {
		t.Fatalf("double advance: %+v", again)
	}
}

func TestAdvanceAdvancesByExactGap(t *testing.T) {
	t.Parallel()
	logical := mustDate(t, "1420-03-14")
	anchor := mustDate(t, "2024-12-20")
	for gap := 1; gap <= 40; gap++ {
		today := anchor.AddDays(gap)
		r := Advance(logical, &anchor, today)
		if r.DaysMissed != gap {
			t.Fatalf("gap %d: DaysMissed = %d", gap, r.DaysMissed)
		}
		if want := logical.AddDays(gap); r.Date != want {
			t.Fatalf("gap %d: Date = %v, want %v", gap, r.Date, want)
		}
	}
}

func TestAdvanceAcrossNewYear(t *testing.T) {
	t.Parallel()
	logical := mustDate(t, "0998-12-31")
	anchor := mustDate(t, "2025-12-31")
	r := Advance(logical, &anchor, mustDate(t, "2026-01-02"))
	if r.DaysMissed != 2 {
		t.Fatalf("DaysMissed = %d, want 2", r.DaysMissed)
	}
	if want := mustDate(t, "0999-01-02"); r.Date != want {
		t.Fatalf("Date = %v, want %v", r.Date, want)
	}
}

func TestAdvanceAcrossLeapDays(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		logical string
		days    []string // consecutive real dates after the anchor
		want    []string
	}{
		{
			name:    "leap real year, common logical year",
			logical: "1491-02-28",
			days:    []string{"2024-02-29", "2024-03-01"},
			want:    []string{"1491-03-01", "1491-03-02"},
		},
		{
			name:    "common real year, leap logical year",
			logical: "1492-02-28",
			days:    []string{"2025-03-01"},
			want:    []string{"1492-02-29"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			logical := mustDate(t, tt.logical)
			anchor := mustDate(t, tt.days[0]).AddDays(-1)
			for i, day := range tt.days {
				r := Advance(logical, &anchor, mustDate(t, day))
				if r.DaysMissed != 1 || r.Date.String() != tt.want[i] {
					t.Fatalf("%s: %+v, want %s after one day", day, r, tt.want[i])
				}
				logical, anchor = r.Date, r.Anchor
			}
		})
	}
}

func TestAdvanceClockBehindAnchorHolds(t *testing.T) {
	t.Parallel()
	logical := mustDate(t, "2025-06-10")
	anchor := mustDate(t, "2025-06-10")
	// Real clock went backwards by a few days.
	r := Advance(logical, &anchor, mustDate(t, "2025-06-07"))
	if r.Changed() || r.Date != logical || r.Anchor != anchor {
		t.Fatalf("skewed advance = %+v", r)
	}
}

func TestAdvanceNeverDecreases(t *testing.T) {
	t.Parallel()
	logical := mustDate(t, "2025-01-01")
	today := mustDate(t, "2025-01-01")
	anchor := today
	for i := 0; i < 800; i += 3 {
		today = today.AddDays(3)
		r := Advance(logical, &anchor, today)
		if r.Date.Before(logical) {
			t.Fatalf("moved backward: %v -> %v", logical, r.Date)
		}
		if r.DaysMissed != 3 {
			t.Fatalf("advanced by %d for a 3-day gap", r.DaysMissed)
		}
		logical, anchor = r.Date, r.Anchor
	}
}

func TestReconcile(t *testing.T) {
	t.Parallel()
	origin := mustDate(t, "1200-05-01")
	early := mustDate(t, "1200-04-01")
	late := mustDate(t, "1200-07-01")

	if _, ok := Reconcile(nil, nil); ok {
		t.Fatal("reconcile without dates should report not ok")
	}
	if got, _ := Reconcile(nil, &origin); got != origin {
		t.Fatalf("missing logical = %v, want origin", got)
	}
	if got, _ := Reconcile(&early, &origin); got != origin {
		t.Fatalf("pre-origin logical = %v, want origin", got)
	}
	if got, _ := Reconcile(&late, &origin); got != late {
		t.Fatalf("valid logical moved: %v", got)
	}
}

func TestParseDate(t *testing.T) {
	t.Parallel()
	d := mustDate(t, " 2024-02-29 ")
	if d.Year != 2024 || d.Month != time.February || d.Day != 29 {
		t.Fatalf("ParseDate = %+v", d)
	}
	for _, bad := range []string{"2023-02-29", "2024-13-01", "June 1", ""} {
		if _, err := ParseDate(bad); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("ParseDate(%q) = %v, want ErrInvalidDate", bad, err)
		}
	}
}

func TestDaysBetweenIgnoresDST(t *testing.T) {
	t.Parallel()
	a := mustDate(t, "2025-03-08")
	b := mustDate(t, "2025-03-10")
	if got := DaysBetween(a, b); got != 2 {
		t.Fatalf("DaysBetween = %d, want 2", got)
	}
	if got := DaysBetween(b, a); got != -2 {
		t.Fatalf("DaysBetween reversed = %d, want -2", got)
	}
}
