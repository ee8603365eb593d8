package tenant_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"almanac/internal/clock"
	"almanac/internal/rollover"
	"almanac/internal/schedule"
	"almanac/internal/storage"
	"almanac/internal/tenant"
	logx "almanac/pkg/logx"
)

func newService(t *testing.T, now time.Time) (*tenant.Service, *clock.Fake) {
	t.Helper()
	c := clock.NewFake(now)
	d := tenant.Defaults{Timezone: "Europe/London"}
	return tenant.NewService(storage.NewMemory(d), c, d, logx.Nop()), c
}

func TestFirstConfigurationCreatesDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	if _, err := svc.SetCadence(ctx, "guild", "daily:09:00"); err != nil {
		t.Fatalf("SetCadence: %v", err)
	}
	rec, ok, err := svc.Get(ctx, "guild")
	if err != nil || !ok {
		t.Fatalf("Get = %v %v", ok, err)
	}
	if rec.Timezone != "Europe/London" {
		t.Fatalf("Timezone = %q, want configured default", rec.Timezone)
	}
	if rec.Cadence.Kind() != schedule.KindDaily || rec.Cadence.Clock() != "09:00" {
		t.Fatalf("Cadence = %v", rec.Cadence)
	}
}

func TestSetCadenceReplacesMode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t, time.Now())

	if _, err := svc.SetCadence(ctx, "g", "07:30"); err != nil {
		t.Fatalf("SetCadence daily: %v", err)
	}
	if _, err := svc.SetCadence(ctx, "g", "interval:900"); err != nil {
		t.Fatalf("SetCadence interval: %v", err)
	}
	rec, _, _ := svc.Get(ctx, "g")
	if rec.Cadence.Kind() != schedule.KindInterval || rec.Cadence.Clock() != "" {
		t.Fatalf("daily mode survived: %+v", rec.Cadence)
	}
}

func TestConfigurationRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	svc, _ := newService(t, time.Now())

	if err := svc.SetTimezone(ctx, "g", "Atlantis/Capital"); !errors.Is(err, clock.ErrInvalidZone) {
		t.Fatalf("SetTimezone = %v, want ErrInvalidZone", err)
	}
	if _, err := svc.SetCadence(ctx, "g", "25:00"); !errors.Is(err, schedule.ErrInvalidCadenceFormat) {
		t.Fatalf("SetCadence = %v, want ErrInvalidCadenceFormat", err)
	}
	if _, err := svc.SetStartDate(ctx, "g", "yesterday"); !errors.Is(err, rollover.ErrInvalidDate) {
		t.Fatalf("SetStartDate = %v, want ErrInvalidDate", err)
	}
	// Rejected values are never stored, and no record is created for them.
	if _, ok, _ := svc.Get(ctx, "g"); ok {
		t.Fatal("invalid configuration created a record")
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, c := newService(t, now)

	if err := svc.SetTimezone(ctx, "g", "UTC"); err != nil {
		t.Fatalf("SetTimezone: %v", err)
	}
	if _, err := svc.SetCadence(ctx, "g", "interval:600"); err != nil {
		t.Fatalf("SetCadence: %v", err)
	}
	if _, err := svc.SetStartDate(ctx, "g", "1420-06-01"); err != nil {
		t.Fatalf("SetStartDate: %v", err)
	}

	st, err := svc.Describe(ctx, "g")
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !st.DueNow() {
		t.Fatalf("never-fired tenant should be due now: %+v", st)
	}
	if st.CadenceSummary != "every 10m" {
		t.Fatalf("CadenceSummary = %q", st.CadenceSummary)
	}
	if st.CurrentLogicalDate == nil || st.CurrentLogicalDate.String() != "1420-06-01" {
		t.Fatalf("CurrentLogicalDate = %v", st.CurrentLogicalDate)
	}

	fired := now
	if err := svc.Store().SetField(ctx, "g", tenant.FieldLastFiredAt, tenant.EncodeTime(&fired)); err != nil {
		t.Fatalf("SetField: %v", err)
	}
	c.Set(now.Add(4 * time.Minute))
	st, _ = svc.Describe(ctx, "g")
	if st.TimeUntilNextFire != 6*time.Minute {
		t.Fatalf("TimeUntilNextFire = %v, want 6m", st.TimeUntilNextFire)
	}

	// Host slept for a day: still never negative.
	c.Set(now.Add(24 * time.Hour))
	st, _ = svc.Describe(ctx, "g")
	if st.TimeUntilNextFire != 0 || !st.DueNow() {
		t.Fatalf("overdue status = %+v", st)
	}

	if _, err := svc.Describe(ctx, "missing"); !errors.Is(err, tenant.ErrNotFound) {
		t.Fatalf("Describe missing = %v, want ErrNotFound", err)
	}
}

func TestEncodeDecodeRecord(t *testing.T) {
	t.Parallel()
	fired := time.Date(2025, 6, 1, 12, 0, 0, 123, time.FixedZone("X", 3600))
	date := rollover.NewDate(999, time.December, 31)
	origin := rollover.NewDate(999, time.January, 1)
	anchor := rollover.NewDate(2025, time.June, 1)
	cad, _ := schedule.Daily(6, 30)
	in := tenant.Schedule{
		TenantID:      "g",
		Timezone:      "Asia/Kolkata",
		Cadence:       cad,
		LastFiredAt:   &fired,
		LogicalDate:   &date,
		LogicalOrigin: &origin,
		LogicalAnchor: &anchor,
		Channel:       "42",
	}
	out, err := tenant.Decode("g", tenant.Encode(in), tenant.Defaults{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Timezone != in.Timezone || out.Cadence != in.Cadence || out.Channel != in.Channel {
		t.Fatalf("decoded %+v", out)
	}
	if !out.LastFiredAt.Equal(fired) || out.LastFiredAt.Location() != time.UTC {
		t.Fatalf("LastFiredAt = %v", out.LastFiredAt)
	}
	if *out.LogicalDate != date || *out.LogicalOrigin != origin || *out.LogicalAnchor != anchor {
		t.Fatalf("dates = %v %v %v", out.LogicalDate, out.LogicalOrigin, out.LogicalAnchor)
	}
}

func TestSetStartDateAnchorsToday(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	// 23:30 UTC is already the 7th in Auckland.
	svc, _ := newService(t, time.Date(2025, 6, 6, 23, 30, 0, 0, time.UTC))
	if err := svc.SetTimezone(ctx, "g", "Pacific/Auckland"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		raw  string
		want string
	}{
		{raw: "1492-01-01", want: "1492-01-01"},
		{raw: " 1492 ", want: "1492-06-07"},
		{raw: "7", want: "0007-06-07"},
	}
	for _, tt := range tests {
		got, err := svc.SetStartDate(ctx, "g", tt.raw)
		if err != nil {
			t.Fatalf("SetStartDate(%q): %v", tt.raw, err)
		}
		rec, _, _ := svc.Get(ctx, "g")
		if got.String() != tt.want || rec.LogicalDate.String() != tt.want || rec.LogicalOrigin.String() != tt.want {
			t.Fatalf("SetStartDate(%q) = %v, record %v/%v, want %s", tt.raw, got, rec.LogicalDate, rec.LogicalOrigin, tt.want)
		}
		if rec.LogicalAnchor == nil || rec.LogicalAnchor.String() != "2025-06-07" {
			t.Fatalf("anchor = %v, want the tenant's today", rec.LogicalAnchor)
		}
	}

	for _, raw := range []string{"", "0", "-5", "14920", "1492-02-30", "June 1"} {
		if _, err := svc.SetStartDate(ctx, "g", raw); err == nil {
			t.Fatalf("SetStartDate(%q) accepted", raw)
		}
	}
}
