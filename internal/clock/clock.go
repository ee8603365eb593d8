// Package clock wraps "current time in a named zone" and zone validation.
//
// Zone names are validated when a tenant is configured; NowIn is expected to
// succeed on the hot path because only validated names are ever stored.
package clock

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var ErrInvalidZone = errors.New("invalid timezone")

// Clock supplies the current instant. The driver takes one so ticks can be
// replayed with controlled time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

// Fake is a settable clock for tests and dry runs.
type Fake struct {
	mu sync.Mutex
	t  time.Time
}

func NewFake(t time.Time) *Fake { return &Fake{t: t} }

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
}

func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
	return f.t
}

var (
	locMu    sync.RWMutex
	locCache = map[string]*time.Location{}
)

// Load resolves an IANA zone name. "Local" and "" are rejected so that stored
// zone names never depend on the host's TZ setting.
func Load(zone string) (*time.Location, error) {
	name := strings.TrimSpace(zone)
	if name == "" || strings.EqualFold(name, "local") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidZone, zone)
	}

	locMu.RLock()
	loc, ok := locCache[name]
	locMu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidZone, zone)
	}
	locMu.Lock()
	locCache[name] = loc
	locMu.Unlock()
	return loc, nil
}

// ValidateZone reports whether name is a recognized IANA zone.
func ValidateZone(name string) bool {
	_, err := Load(name)
	return err == nil
}

// NowIn returns c.Now() expressed in zone.
func NowIn(c Clock, zone string) (time.Time, error) {
	loc, err := Load(zone)
	if err != nil {
		return time.Time{}, err
	}
	if c == nil {
		c = System()
	}
	return c.Now().In(loc), nil
}

// StartOfDay truncates t to 00:00:00 in t's own location.
// time.Date normalizes the rare zones where midnight does not exist.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
