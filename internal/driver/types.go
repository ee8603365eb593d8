// Package driver runs the coarse tick loop that decides, for every tenant of
// one extension, whether a post is due and delivers it.
package driver

import (
	"context"
	"errors"
	"time"

	"almanac/internal/rollover"
	"almanac/internal/tenant"
)

var (
	// ErrDeliveryFailure: the sink failed or timed out. The tenant's
	// last-fired marker is left alone so it stays due.
	ErrDeliveryFailure = errors.New("delivery failed")
	// ErrTenantProcessing: unexpected failure while evaluating one tenant.
	ErrTenantProcessing = errors.New("tenant processing failed")
	// ErrNothingToPost: a forced post had nothing to say, e.g. no start date.
	ErrNothingToPost = errors.New("nothing to post")
)

type State int

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// Payload is a rendered message; the driver does not look inside it.
type Payload struct {
	Kind string // extension name
	Text string
}

// Composition is what an extension wants done for one due tenant.
type Composition struct {
	Payload Payload

	// LogicalDate and LogicalAnchor, if set, are persisted before delivery.
	// Rollover is idempotent against the stored anchor, so a failed delivery
	// does not advance the date twice.
	LogicalDate   *rollover.Date
	LogicalAnchor *rollover.Date

	// Skip means there is nothing to post; SkipReason is logged.
	Skip       bool
	SkipReason string
}

// Composer builds the post for a due tenant. now is in the tenant's zone.
type Composer interface {
	Compose(ctx context.Context, rec tenant.Schedule, now time.Time) (Composition, error)
}

// ComposerFunc adapts a function to Composer.
type ComposerFunc func(ctx context.Context, rec tenant.Schedule, now time.Time) (Composition, error)

func (f ComposerFunc) Compose(ctx context.Context, rec tenant.Schedule, now time.Time) (Composition, error) {
	return f(ctx, rec, now)
}

// Sink delivers a payload; a nil error is success.
type Sink interface {
	Deliver(ctx context.Context, tenantID, channel string, p Payload) error
}

// TickReport summarizes one tick.
type TickReport struct {
	ID        string
	At        time.Time
	Evaluated int
	Fired     int
	Failed    int
	Skipped   int
	Duration  time.Duration
	// Errors holds the per-tenant failures, keyed by tenant id.
	Errors map[string]error
}

type outcome int

const (
	outcomeNotDue outcome = iota
	outcomeFired
	outcomeSkipped
	outcomeFailed
)
