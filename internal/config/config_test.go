package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"almanac/internal/clock"
	"almanac/internal/schedule"
)

const sampleYAML = `
logging:
  level: debug
  console: true
storage:
  driver: file
  path: /var/lib/almanac/tenants
driver:
  tick: 30s
defaults:
  timezone: Europe/Berlin
extensions:
  calendar:
    enabled: true
  weather:
    enabled: true
    namespace: wx
    seed: 7
tenants:
  - extension: calendar
    id: "-1001"
    cadence: "daily:08:00"
    start_date: "1492-03-10"
  - extension: weather
    id: "-1001"
    cadence: "every:3h"
`

func TestDecodeYAML(t *testing.T) {
	t.Parallel()
	cfg, err := Decode("almanac.yaml", []byte(sampleYAML))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if cfg.Logging.Level != "debug" || cfg.Storage.Driver != "file" {
		t.Fatalf("cfg = %+v", cfg)
	}
	timing, err := cfg.Driver.Resolve()
	if err != nil {
		t.Fatal(err)
	}
	if timing.Tick != 30*time.Second || timing.DeliveryTimeout != DefaultDeliveryTimeout {
		t.Fatalf("timing = %+v", timing)
	}
	if cfg.NamespaceFor(ExtCalendar) != "calendar" || cfg.NamespaceFor(ExtWeather) != "wx" {
		t.Fatal("namespace defaults wrong")
	}
	if seeds := cfg.SeedsFor(ExtWeather); len(seeds) != 1 || seeds[0].Cadence != "every:3h" {
		t.Fatalf("weather seeds = %+v", seeds)
	}
}

func TestDecodeRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		file string
		data string
		want error
	}{
		{"unknown field", "c.json", `{"loggin": {}}`, nil},
		{"trailing data", "c.json", `{} {}`, nil},
		{"bad duration", "c.json", `{"driver": {"tick": "soon"}}`, nil},
		{"bad log format", "c.json", `{"logging": {"format": "xml"}}`, nil},
		{"bad default zone", "c.json", `{"defaults": {"timezone": "Mars/Olympus"}}`, clock.ErrInvalidZone},
		{"bad seed cadence", "c.json", `{"tenants": [{"extension": "weather", "id": "1", "cadence": "daily:25:00"}]}`, schedule.ErrInvalidCadenceFormat},
		{"seed without id", "c.json", `{"tenants": [{"extension": "weather"}]}`, nil},
		{"weather start date", "c.json", `{"tenants": [{"extension": "weather", "id": "1", "start_date": "2025-01-01"}]}`, nil},
		{"file without path", "c.yml", "storage:\n  driver: sqlite\n", nil},
		{"shared namespace", "c.json", `{"extensions": {"calendar": {"enabled": true, "namespace": "x"}, "weather": {"enabled": true, "namespace": "x"}}}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.file, []byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSummarizeChangeHidesTokens(t *testing.T) {
	t.Parallel()
	a := &Config{Telegram: TelegramConfig{Token: "old-secret"}}
	b := &Config{Telegram: TelegramConfig{Token: "new-secret"}, Tenants: []TenantSeed{{Extension: ExtWeather, ID: "1"}}}
	changed, _ := SummarizeChange(a, b)
	if !slices.Equal(changed, []string{"telegram", "tenants"}) {
		t.Fatalf("changed = %v", changed)
	}
	if !RestartRequired(a, b) {
		t.Fatal("telegram change needs a restart")
	}
	if RestartRequired(&Config{}, &Config{Tenants: b.Tenants}) {
		t.Fatal("tenant seeds apply live")
	}
}

func TestManagerWatchPublishesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "almanac.json")
	if err := os.WriteFile(path, []byte(`{"logging": {"level": "info"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	m := NewManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error {
		if cfg.Logging.Level == "panic" {
			return errors.New("no")
		}
		return nil
	})
	sub := m.Subscribe(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(path, []byte(`{"logging": {"level": "debug"}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case cfg := <-sub:
		if cfg.Logging.Level != "debug" {
			t.Fatalf("published level = %q", cfg.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload published")
	}
	if got := m.Get().Logging.Level; got != "debug" {
		t.Fatalf("committed level = %q", got)
	}

	m.Unsubscribe(sub)
	if _, ok := <-sub; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()
	if d, err := ParseDurationOrDefault("x", "", time.Minute); err != nil || d != time.Minute {
		t.Fatalf("default = %v %v", d, err)
	}
	if _, err := ParseDurationField("x", "-1s"); err == nil || !strings.Contains(err.Error(), "x:") {
		t.Fatalf("negative duration err = %v", err)
	}
}

func TestDecodeYAMLNumericSeedScalars(t *testing.T) {
	t.Parallel()
	const y = `
extensions:
  weather:
    enabled: true
tenants:
  - extension: weather
    id: -1001
    cadence: 1830
`
	cfg, err := Decode("almanac.yml", []byte(y))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	s := cfg.SeedsFor(ExtWeather)
	if len(s) != 1 || s[0].ID != "-1001" || s[0].Cadence != "1830" {
		t.Fatalf("seeds = %+v", s)
	}

	if _, err := Decode("almanac.json", []byte(`{"driver": {"tick": "100ms"}}`)); err == nil {
		t.Fatalf("sub-second tick accepted")
	}
}
