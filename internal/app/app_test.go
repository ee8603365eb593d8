package app

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"almanac/internal/clock"
	"almanac/internal/config"
	"almanac/internal/driver"
	"almanac/internal/extension/weather"
)

const testConfig = `{
  "logging": {"level": "error"},
  "storage": {"driver": "memory"},
  "driver": {"tick": "1h", "delivery_timeout": "2s"},
  "defaults": {"timezone": "UTC"},
  "extensions": {
    "calendar": {"enabled": true},
    "weather": {"enabled": true}
  },
  "tenants": [
    {"extension": "calendar", "id": "guild", "cadence": "daily:00:00", "start_date": "1492-06-01", "channel": "-100:3"},
    {"extension": "weather", "id": "guild", "cadence": "interval:3600", "timezone": "Europe/Paris"}
  ]
}`

type sinkRecorder struct {
	mu   sync.Mutex
	got  map[string]int
	kick chan struct{}
}

func newSinkRecorder() *sinkRecorder {
	return &sinkRecorder{got: map[string]int{}, kick: make(chan struct{}, 16)}
}

func (s *sinkRecorder) Deliver(ctx context.Context, tenantID, channel string, p driver.Payload) error {
	s.mu.Lock()
	s.got[p.Kind]++
	s.mu.Unlock()
	s.kick <- struct{}{}
	return nil
}

func (s *sinkRecorder) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got[kind]
}

var fog = weather.SamplerFunc(func(string) weather.Record {
	return weather.Record{Condition: "Fog", Emoji: "🌫️", TempC: 4, WindKPH: 3, Humidity: 90}
})

func newTestApp(t *testing.T, now time.Time) (*App, *sinkRecorder) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "almanac.json")
	if err := os.WriteFile(path, []byte(testConfig), 0o644); err != nil {
		t.Fatal(err)
	}
	sink := newSinkRecorder()
	a, err := New(path, Options{Clock: clock.NewFake(now), Sink: sink, Sampler: fog})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, sink
}

func TestSeedsAreAppliedWithoutRewinding(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)
	a, sink := newTestApp(t, now)
	defer a.Close()

	if len(a.Extensions()) != 2 {
		t.Fatalf("extensions = %d, want 2", len(a.Extensions()))
	}
	if err := a.ApplySeeds(ctx, a.cfgm.Get()); err != nil {
		t.Fatalf("ApplySeeds: %v", err)
	}
	cal, _ := a.Extension(config.ExtCalendar)
	wx, _ := a.Extension(config.ExtWeather)

	rec, ok, err := wx.Tenants.Get(ctx, "guild")
	if err != nil || !ok || rec.Timezone != "Europe/Paris" || rec.Cadence.String() != "interval:3600" {
		t.Fatalf("weather record = %+v %v %v", rec, ok, err)
	}
	if _, ok, _ := cal.Tenants.Get(ctx, "unknown"); ok {
		t.Fatal("unexpected tenant")
	}

	// The seed lands on the 3rd; the first post shows the start date itself.
	if rep, err := cal.Driver.Tick(ctx, now); err != nil || rep.Fired != 1 {
		t.Fatalf("calendar tick = %+v %v", rep, err)
	}
	rec, _, _ = cal.Tenants.Get(ctx, "guild")
	if rec.LogicalDate.String() != "1492-06-01" || rec.Channel != "-100:3" {
		t.Fatalf("calendar record = %+v", rec)
	}
	if rep, _ := cal.Driver.Tick(ctx, now.Add(24*time.Hour)); rep.Fired != 1 {
		t.Fatalf("next day tick fired %d", rep.Fired)
	}

	// Reapplying the same seeds keeps the advanced date.
	if err := a.ApplySeeds(ctx, a.cfgm.Get()); err != nil {
		t.Fatal(err)
	}
	rec, _, _ = cal.Tenants.Get(ctx, "guild")
	if rec.LogicalDate.String() != "1492-06-02" {
		t.Fatalf("seed reapply rewound the calendar to %v", rec.LogicalDate)
	}

	// Each extension keeps its own records.
	if rep, _ := wx.Driver.Tick(ctx, now); rep.Fired != 1 {
		t.Fatalf("weather tick fired %d", rep.Fired)
	}
	if sink.count(weather.Kind) != 1 || sink.count("calendar") != 2 {
		t.Fatalf("deliveries = %v", sink.got)
	}
}

// A start date spelled differently from the stored origin is still the same
// date and must not reset the calendar.
func TestApplySeedComparesStartDateAsDate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	now := time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC)
	a, _ := newTestApp(t, now)
	defer a.Close()
	cal, _ := a.Extension(config.ExtCalendar)

	seed := config.TenantSeed{Extension: config.ExtCalendar, ID: "g", Cadence: "daily:00:00", StartDate: "1492-06-01"}
	if err := applySeed(ctx, cal.Tenants, seed); err != nil {
		t.Fatal(err)
	}
	cal.Driver.Tick(ctx, now)
	cal.Driver.Tick(ctx, now.Add(48*time.Hour))

	seed.StartDate = " 1492-06-01 "
	if err := applySeed(ctx, cal.Tenants, seed); err != nil {
		t.Fatal(err)
	}
	rec, _, _ := cal.Tenants.Get(ctx, "g")
	if rec.LogicalDate.String() != "1492-06-03" {
		t.Fatalf("logical date = %v, want 1492-06-03", rec.LogicalDate)
	}

	seed.StartDate = "1492-07-01"
	if err := applySeed(ctx, cal.Tenants, seed); err != nil {
		t.Fatal(err)
	}
	rec, _, _ = cal.Tenants.Get(ctx, "g")
	if rec.LogicalDate.String() != "1492-07-01" {
		t.Fatalf("changed seed not applied: %v", rec.LogicalDate)
	}
}

func TestStartRunsDriversAndStops(t *testing.T) {
	t.Parallel()
	a, sink := newTestApp(t, time.Date(2025, 6, 3, 8, 0, 0, 0, time.UTC))
	ctx := context.Background()
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Each driver ticks once on start; both seeded tenants are due.
	for i := 0; i < 2; i++ {
		select {
		case <-sink.kick:
		case <-time.After(3 * time.Second):
			t.Fatalf("only %d deliveries after Start", i)
		}
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	for _, e := range a.Extensions() {
		if e.Driver.State() != driver.Idle {
			t.Fatalf("%s driver still %v", e.Name, e.Driver.State())
		}
	}
}
