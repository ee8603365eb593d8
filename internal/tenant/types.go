// Package tenant holds the per-tenant schedule record, its key/value codec,
// the store contract and the configuration operations that mutate it.
package tenant

import (
	"context"
	"strings"
	"time"

	"almanac/internal/clock"
	"almanac/internal/rollover"
	"almanac/internal/schedule"
)

// Field names a persisted key of a Schedule record.
type Field string

const (
	FieldTimezone      Field = "timezone"
	FieldCadence       Field = "cadence"
	FieldLastFiredAt   Field = "last_fired_at"
	FieldLogicalDate   Field = "logical_date"
	FieldLogicalOrigin Field = "logical_origin"
	FieldLogicalAnchor Field = "logical_anchor"
	FieldChannel       Field = "channel"
)

// Fields lists every persisted field in a stable order.
var Fields = []Field{FieldTimezone, FieldCadence, FieldLastFiredAt, FieldLogicalDate, FieldLogicalOrigin, FieldLogicalAnchor, FieldChannel}

const DefaultTimezone = "UTC"

// Defaults is applied once, when a record is created.
type Defaults struct {
	Timezone string
}

func (d Defaults) timezone() string {
	tz := strings.TrimSpace(d.Timezone)
	if tz == "" || !clock.ValidateZone(tz) {
		return DefaultTimezone
	}
	return tz
}

// Schedule is one tenant's scheduling state.
type Schedule struct {
	TenantID string
	Timezone string
	Cadence  schedule.Cadence

	// LastFiredAt is UTC and never moves backward once set.
	LastFiredAt *time.Time

	// Calendar extension only. LogicalAnchor is the real date, in the
	// tenant's zone, on which LogicalDate was last current.
	LogicalDate   *rollover.Date
	LogicalOrigin *rollover.Date
	LogicalAnchor *rollover.Date

	// Channel is the delivery target; empty means the sink's default.
	Channel string
}

// New builds a record with defaults applied.
func New(id string, d Defaults) Schedule {
	return Schedule{TenantID: id, Timezone: d.timezone()}
}

// Store is the host key/value store, keyed by tenant id.
//
// Implementations must give read-after-write consistency within one process.
// Records are never deleted through this interface.
type Store interface {
	GetAll(ctx context.Context) (map[string]Schedule, error)
	Get(ctx context.Context, id string) (Schedule, bool, error)
	SetField(ctx context.Context, id string, field Field, value string) error
	Close() error
}

// Status is the read-only view used by status display commands.
type Status struct {
	TenantID           string
	Timezone           string
	Channel            string
	Cadence            schedule.Cadence
	CadenceSummary     string
	CurrentLogicalDate *rollover.Date
	LastFiredAt        *time.Time

	// Scheduled is false for an unset cadence; the next-fire fields are then zero.
	Scheduled         bool
	NextFireAt        time.Time
	TimeUntilNextFire time.Duration
}

// DueNow reports whether the next fire is at or before the describe time.
func (s Status) DueNow() bool { return s.Scheduled && s.TimeUntilNextFire == 0 }
