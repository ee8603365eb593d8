package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"almanac/internal/clock"
	"almanac/internal/rollover"
	"almanac/internal/schedule"
)

const (
	DefaultTick            = 60 * time.Second
	DefaultDeliveryTimeout = 15 * time.Second
)

// Timing is the resolved DriverConfig.
type Timing struct {
	Tick            time.Duration
	DeliveryTimeout time.Duration
}

func (d DriverConfig) Resolve() (Timing, error) {
	tick, err := ParseDurationOrDefault("driver.tick", d.Tick, DefaultTick)
	if err != nil {
		return Timing{}, err
	}
	timeout, err := ParseDurationOrDefault("driver.delivery_timeout", d.DeliveryTimeout, DefaultDeliveryTimeout)
	if err != nil {
		return Timing{}, err
	}
	if tick < time.Second {
		return Timing{}, fmt.Errorf("driver.tick: %s is below the 1s minimum", tick)
	}
	return Timing{Tick: tick, DeliveryTimeout: timeout}, nil
}

// ParseDurationField parses a Go duration string; empty means 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for empty or zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}

// Validate checks everything that can be checked without side effects.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Driver.Resolve(); err != nil {
		errs = append(errs, err)
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format: want console or json, got %q", c.Logging.Format))
	}
	switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
	case "", "memory", "none":
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, fmt.Errorf("storage.path is required for driver %q", c.Storage.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver: unknown driver %q", c.Storage.Driver))
	}
	if tz := strings.TrimSpace(c.Defaults.Timezone); tz != "" && !clock.ValidateZone(tz) {
		errs = append(errs, fmt.Errorf("defaults.timezone: %w: %q", clock.ErrInvalidZone, tz))
	}
	if c.Extensions.Calendar.Enabled && c.Extensions.Weather.Enabled &&
		c.NamespaceFor(ExtCalendar) == c.NamespaceFor(ExtWeather) {
		errs = append(errs, errors.New("extensions: calendar and weather must use different namespaces"))
	}
	for i, s := range c.Tenants {
		if err := s.validate(); err != nil {
			errs = append(errs, fmt.Errorf("tenants[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

func (s TenantSeed) validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return errors.New("id is required")
	}
	if s.Extension != ExtCalendar && s.Extension != ExtWeather {
		return fmt.Errorf("unknown extension %q", s.Extension)
	}
	if s.Timezone != "" && !clock.ValidateZone(s.Timezone) {
		return fmt.Errorf("%w: %q", clock.ErrInvalidZone, s.Timezone)
	}
	if s.Cadence != "" {
		if _, err := schedule.Parse(s.Cadence); err != nil {
			return err
		}
	}
	if s.StartDate != "" {
		if s.Extension != ExtCalendar {
			return errors.New("start_date only applies to the calendar extension")
		}
		if _, err := rollover.ParseDate(s.StartDate); err != nil {
			return err
		}
	}
	return nil
}
