package tenant

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"almanac/internal/clock"
	"almanac/internal/rollover"
	"almanac/internal/schedule"
	logx "almanac/pkg/logx"
)

var ErrNotFound = errors.New("tenant not found")

// Service runs configuration commands and status queries against a Store.
//
// Writes for one tenant are serialized through Lock; the tick driver takes
// the same lock so a configuration command never interleaves with a tick's
// read-modify-write.
type Service struct {
	store    Store
	clock    clock.Clock
	defaults Defaults
	log      logx.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store Store, c clock.Clock, d Defaults, log logx.Logger) *Service {
	if c == nil {
		c = clock.System()
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{store: store, clock: c, defaults: d, log: log, locks: map[string]*sync.Mutex{}}
}

func (s *Service) Store() Store { return s.store }

func (s *Service) Defaults() Defaults { return s.defaults }

// Lock acquires the per-tenant writer lock and returns its release func.
func (s *Service) Lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Get returns the tenant's record; ok is false if it was never configured.
func (s *Service) Get(ctx context.Context, id string) (Schedule, bool, error) {
	return s.store.Get(ctx, id)
}

// ensure returns the record, creating it with defaults on first use.
// Call with the tenant lock held.
func (s *Service) ensure(ctx context.Context, id string) (Schedule, error) {
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return Schedule{}, err
	}
	if ok {
		return rec, nil
	}
	rec = New(id, s.defaults)
	if err := s.store.SetField(ctx, id, FieldTimezone, rec.Timezone); err != nil {
		return Schedule{}, err
	}
	s.log.Info("tenant created", logx.Tenant(id), logx.String("tz", rec.Timezone))
	return rec, nil
}

func normalizeID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.New("tenant id required")
	}
	return id, nil
}

// SetTimezone validates and stores an IANA zone name.
func (s *Service) SetTimezone(ctx context.Context, id, zone string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	zone = strings.TrimSpace(zone)
	if !clock.ValidateZone(zone) {
		return fmt.Errorf("%w: %q", clock.ErrInvalidZone, zone)
	}
	defer s.Lock(id)()
	if _, err := s.ensure(ctx, id); err != nil {
		return err
	}
	if err := s.store.SetField(ctx, id, FieldTimezone, zone); err != nil {
		return err
	}
	s.log.Info("tenant timezone set", logx.Tenant(id), logx.String("tz", zone))
	return nil
}

// SetCadence parses and stores a cadence. The persisted field holds exactly
// one mode, so setting daily clears interval and vice versa.
func (s *Service) SetCadence(ctx context.Context, id, raw string) (schedule.Cadence, error) {
	id, err := normalizeID(id)
	if err != nil {
		return schedule.Cadence{}, err
	}
	c, err := schedule.Parse(raw)
	if err != nil {
		return schedule.Cadence{}, err
	}
	defer s.Lock(id)()
	if _, err := s.ensure(ctx, id); err != nil {
		return schedule.Cadence{}, err
	}
	if err := s.store.SetField(ctx, id, FieldCadence, c.String()); err != nil {
		return schedule.Cadence{}, err
	}
	s.log.Info("tenant cadence set", logx.Tenant(id), logx.String("cadence", c.Summary()))
	return c, nil
}

// SetStartDate sets the calendar origin and resets the logical date to it.
//
// raw is either a full date (YYYY-MM-DD) or a bare fictional year, which takes
// today's month/day in the tenant's zone. Today becomes the anchor, so the
// next post shows the start date itself and later posts advance one day per
// real day from here.
func (s *Service) SetStartDate(ctx context.Context, id, raw string) (rollover.Date, error) {
	id, err := normalizeID(id)
	if err != nil {
		return rollover.Date{}, err
	}
	year, isYear := parseYear(raw)
	var d rollover.Date
	if !isYear {
		if d, err = rollover.ParseDate(raw); err != nil {
			return rollover.Date{}, err
		}
	}
	defer s.Lock(id)()
	rec, err := s.ensure(ctx, id)
	if err != nil {
		return rollover.Date{}, err
	}
	local, err := clock.NowIn(s.clock, rec.Timezone)
	if err != nil {
		return rollover.Date{}, err
	}
	today := rollover.DateOf(local)
	if isYear {
		d = rollover.NewDate(year, today.Month, today.Day)
	}
	writes := []struct {
		f Field
		v string
	}{
		{FieldLogicalOrigin, d.String()},
		{FieldLogicalDate, d.String()},
		{FieldLogicalAnchor, today.String()},
	}
	for _, w := range writes {
		if err := s.store.SetField(ctx, id, w.f, w.v); err != nil {
			return rollover.Date{}, err
		}
	}
	s.log.Info("tenant start date set", logx.Tenant(id), logx.String("date", d.String()), logx.String("anchor", today.String()))
	return d, nil
}

// parseYear accepts a bare positive year of up to four digits.
func parseYear(raw string) (int, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || len(v) > 4 {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// SetChannel stores the delivery target.
func (s *Service) SetChannel(ctx context.Context, id, channel string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	defer s.Lock(id)()
	if _, err := s.ensure(ctx, id); err != nil {
		return err
	}
	return s.store.SetField(ctx, id, FieldChannel, strings.TrimSpace(channel))
}

// Describe reports the tenant's status as of the service clock.
func (s *Service) Describe(ctx context.Context, id string) (Status, error) {
	rec, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return Status{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return DescribeAt(rec, s.clock.Now())
}

// DescribeAt is the pure form of Describe.
func DescribeAt(rec Schedule, now time.Time) (Status, error) {
	local, err := clock.NowIn(fixedClock(now), rec.Timezone)
	if err != nil {
		return Status{}, err
	}
	st := Status{
		TenantID:       rec.TenantID,
		Timezone:       rec.Timezone,
		Channel:        rec.Channel,
		Cadence:        rec.Cadence,
		CadenceSummary: rec.Cadence.Summary(),
		LastFiredAt:    rec.LastFiredAt,
	}
	if d, ok := rollover.Reconcile(rec.LogicalDate, rec.LogicalOrigin); ok {
		st.CurrentLogicalDate = &d
	}
	if next, ok := schedule.NextFire(rec.Cadence, rec.LastFiredAt, local); ok {
		until, _ := schedule.Until(rec.Cadence, rec.LastFiredAt, local)
		st.Scheduled = true
		st.NextFireAt = next
		st.TimeUntilNextFire = until
	}
	return st, nil
}

type fixedClock time.Time

func (f fixedClock) Now() time.Time { return time.Time(f) }
