package driver

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"almanac/internal/clock"
	"almanac/internal/metrics"
	rtsup "almanac/internal/runtime/supervisor"
	"almanac/internal/schedule"
	"almanac/internal/tenant"
	logx "almanac/pkg/logx"
)

const (
	DefaultTick            = 60 * time.Second
	DefaultDeliveryTimeout = 15 * time.Second
	DefaultRestartBackoff  = time.Second
)

type Config struct {
	// Name labels logs and metrics, e.g. "calendar".
	Name            string
	Tick            time.Duration
	DeliveryTimeout time.Duration
	// RestartBackoff is the first wait before a crashed loop restarts; it
	// doubles up to a minute.
	RestartBackoff  time.Duration
}

func (c Config) withDefaults() Config {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = DefaultDeliveryTimeout
	}
	if c.RestartBackoff <= 0 {
		c.RestartBackoff = DefaultRestartBackoff
	}
	return c
}

type Option func(*Driver)

func WithClock(c clock.Clock) Option { return func(d *Driver) { d.clock = c } }

func WithLogger(log logx.Logger) Option { return func(d *Driver) { d.log = log } }

func WithMetrics(m *metrics.Metrics) Option { return func(d *Driver) { d.metrics = m } }

// WithHeartbeat installs a hook called after every tick (systemd watchdog).
func WithHeartbeat(fn func()) Option { return func(d *Driver) { d.heartbeat = fn } }

// Driver is the Idle/Running tick loop for one extension.
type Driver struct {
	cfg      Config
	svc      *tenant.Service
	composer Composer
	sink     Sink

	clock     clock.Clock
	log       logx.Logger
	metrics   *metrics.Metrics
	heartbeat func()

	mu    sync.Mutex
	state State
	sup   *rtsup.Supervisor

	// tickMu keeps ticks from overlapping when Tick is also called directly.
	tickMu sync.Mutex
}

func New(cfg Config, svc *tenant.Service, composer Composer, sink Sink, opts ...Option) *Driver {
	d := &Driver{
		cfg:      cfg.withDefaults(),
		svc:      svc,
		composer: composer,
		sink:     sink,
		clock:    clock.System(),
		log:      logx.Nop(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.clock == nil {
		d.clock = clock.System()
	}
	if d.log.IsZero() {
		d.log = logx.Nop()
	}
	d.log = d.log.With(logx.Comp("driver"), logx.Ext(d.cfg.Name))
	return d
}

func (d *Driver) Name() string { return d.cfg.Name }

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Start moves Idle -> Running. Starting a running driver is a no-op.
func (d *Driver) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Running {
		return
	}
	d.sup = rtsup.New(ctx,
		rtsup.WithLogger(d.log),
		rtsup.WithCancelOnError(false),
	)
	d.sup.GoRestart("tick.loop", d.loop,
		rtsup.WithRestartBackoff(d.cfg.RestartBackoff, time.Minute),
		rtsup.WithOnRestart(func(err error) {
			d.log.Warn("tick loop failed, restarting", logx.Err(err))
		}),
	)
	d.state = Running
	d.log.Info("driver started", logx.Duration("tick", d.cfg.Tick), logx.Duration("delivery_timeout", d.cfg.DeliveryTimeout))
}

// Stop moves Running -> Idle. No new tick starts after Stop returns; a tick in
// flight is allowed to finish unless ctx expires first.
func (d *Driver) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.state == Idle {
		d.mu.Unlock()
		return nil
	}
	sup := d.sup
	d.sup = nil
	d.state = Idle
	d.mu.Unlock()

	err := sup.Stop(ctx)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	d.log.Info("driver stopped")
	return err
}

func (d *Driver) loop(ctx context.Context) error {
	t := time.NewTicker(d.cfg.Tick)
	defer t.Stop()

	// Resume right away after start or restart instead of waiting a period.
	d.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			d.runTick(ctx)
		}
	}
}

func (d *Driver) runTick(ctx context.Context) {
	// Cancelling the loop stops future ticks, not the one in progress.
	rep, err := d.Tick(context.WithoutCancel(ctx), d.clock.Now())
	if err != nil {
		d.log.Error("tick failed", logx.String("tick", rep.ID), logx.Err(err))
	}
}

// Tick evaluates every tenant once at now. A failure for one tenant is logged
// and counted; it never stops the others. The returned error is only set when
// the tenant list itself could not be read.
func (d *Driver) Tick(ctx context.Context, now time.Time) (TickReport, error) {
	d.tickMu.Lock()
	defer d.tickMu.Unlock()

	started := time.Now()
	rep := TickReport{ID: uuid.NewString(), At: now}
	log := d.log.With(logx.String("tick", rep.ID))

	defer func() {
		rep.Duration = time.Since(started)
		d.metrics.ObserveTick(d.cfg.Name, metrics.TickSummary{
			Evaluated: rep.Evaluated,
			Fired:     rep.Fired,
			Failed:    rep.Failed,
			Skipped:   rep.Skipped,
			Duration:  rep.Duration,
			At:        now,
		})
		if d.heartbeat != nil {
			d.heartbeat()
		}
	}()

	all, err := d.svc.Store().GetAll(ctx)
	if err != nil {
		return rep, fmt.Errorf("list tenants: %w", err)
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rep.Evaluated++
		out, err := d.processTenant(ctx, id, now, log, false)
		switch out {
		case outcomeFired:
			rep.Fired++
		case outcomeSkipped:
			rep.Skipped++
		case outcomeFailed:
			rep.Failed++
			if rep.Errors == nil {
				rep.Errors = map[string]error{}
			}
			rep.Errors[id] = err
			log.Warn("tenant failed", logx.Tenant(id), logx.Err(err))
		}
	}

	if rep.Fired > 0 || rep.Failed > 0 {
		log.Info("tick done",
			logx.Int("evaluated", rep.Evaluated),
			logx.Int("fired", rep.Fired),
			logx.Int("failed", rep.Failed),
			logx.Int("skipped", rep.Skipped),
		)
	} else {
		log.Debug("tick done", logx.Int("evaluated", rep.Evaluated))
	}
	return rep, nil
}

// Fire posts for one tenant now, whether or not its cadence is due. The post
// goes through the same compose, persist and deliver steps as a tick and
// counts as a firing.
func (d *Driver) Fire(ctx context.Context, id string, now time.Time) error {
	log := d.log.With(logx.String("tick", "force"))
	out, err := d.processTenant(ctx, id, now, log, true)
	if out == outcomeFailed {
		log.Warn("forced post failed", logx.Tenant(id), logx.Err(err))
	}
	return err
}

// processTenant runs one tenant under its writer lock. force skips the
// due check and reports a missing tenant or an empty composition as errors.
func (d *Driver) processTenant(ctx context.Context, id string, now time.Time, log logx.Logger, force bool) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("tenant panicked", logx.Tenant(id), logx.Any("panic", r), logx.Stack(string(debug.Stack())))
			out, err = outcomeFailed, fmt.Errorf("%w: panic: %v", ErrTenantProcessing, r)
		}
	}()
	defer d.svc.Lock(id)()

	store := d.svc.Store()
	rec, ok, err := store.Get(ctx, id)
	if err != nil {
		return outcomeFailed, fmt.Errorf("%w: read: %w", ErrTenantProcessing, err)
	}
	if !ok {
		if force {
			return outcomeFailed, fmt.Errorf("%w: %s", tenant.ErrNotFound, id)
		}
		return outcomeSkipped, nil
	}
	loc, err := clock.Load(rec.Timezone)
	if err != nil {
		return outcomeFailed, fmt.Errorf("%w: %w", ErrTenantProcessing, err)
	}
	local := now.In(loc)

	dec := schedule.Evaluate(rec.Cadence, rec.LastFiredAt, local)
	if !dec.Due && !force {
		return outcomeNotDue, nil
	}

	comp, err := d.composer.Compose(ctx, rec, local)
	if err != nil {
		return outcomeFailed, fmt.Errorf("%w: compose: %w", ErrTenantProcessing, err)
	}
	if comp.Skip {
		log.Debug("tenant skipped", logx.Tenant(id), logx.String("reason", comp.SkipReason))
		if force {
			return outcomeSkipped, fmt.Errorf("%w: %s", ErrNothingToPost, comp.SkipReason)
		}
		return outcomeSkipped, nil
	}

	// The anchor goes first: a crash between the two writes holds the date
	// back a day rather than advancing it twice.
	if na := comp.LogicalAnchor; na != nil && (rec.LogicalAnchor == nil || *na != *rec.LogicalAnchor) {
		if err := store.SetField(ctx, id, tenant.FieldLogicalAnchor, na.String()); err != nil {
			return outcomeFailed, fmt.Errorf("%w: persist logical anchor: %w", ErrTenantProcessing, err)
		}
	}
	if nd := comp.LogicalDate; nd != nil && (rec.LogicalDate == nil || *nd != *rec.LogicalDate) {
		if err := store.SetField(ctx, id, tenant.FieldLogicalDate, nd.String()); err != nil {
			return outcomeFailed, fmt.Errorf("%w: persist logical date: %w", ErrTenantProcessing, err)
		}
	}

	if err := d.deliver(ctx, rec, comp.Payload); err != nil {
		return outcomeFailed, err
	}

	// last_fired_at never moves backward, even if the clock did.
	fired := now.UTC()
	if rec.LastFiredAt != nil && fired.Before(*rec.LastFiredAt) {
		fired = *rec.LastFiredAt
	}
	if err := store.SetField(ctx, id, tenant.FieldLastFiredAt, tenant.EncodeTime(&fired)); err != nil {
		// Delivered but not recorded: the tenant fires again next tick.
		return outcomeFailed, fmt.Errorf("%w: persist last fired: %w", ErrTenantProcessing, err)
	}
	log.Info("tenant fired",
		logx.Tenant(id),
		logx.Bool("forced", force),
		logx.String("cadence", rec.Cadence.Summary()),
		logx.Time("next", dec.Next),
	)
	return outcomeFired, nil
}

// deliver bounds the sink call with the delivery timeout, even for sinks that
// ignore ctx.
func (d *Driver) deliver(ctx context.Context, rec tenant.Schedule, p Payload) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.DeliveryTimeout)
	defer cancel()

	started := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("sink panic: %v", r)
			}
		}()
		done <- d.sink.Deliver(ctx, rec.TenantID, rec.Channel, p)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	d.metrics.ObserveDelivery(d.cfg.Name, err == nil, time.Since(started))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDeliveryFailure, err)
	}
	return nil
}

// Describe is the status query used by display commands.
func (d *Driver) Describe(ctx context.Context, id string) (tenant.Status, error) {
	return d.svc.Describe(ctx, id)
}
