package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"almanac/internal/clock"
	"almanac/internal/config"
	"almanac/internal/driver"
	"almanac/internal/extension/calendar"
	"almanac/internal/extension/weather"
	"almanac/internal/metrics"
	"almanac/internal/notify"
	"almanac/internal/rollover"
	rtsup "almanac/internal/runtime/supervisor"
	"almanac/internal/storage"
	"almanac/internal/tenant"
	logx "almanac/pkg/logx"
	"almanac/pkg/systemd"
)

// Extension is one enabled extension with its own store and driver.
type Extension struct {
	Name    string
	Store   *storage.Store
	Tenants *tenant.Service
	Driver  *driver.Driver
}

type App struct {
	cfgm *config.Manager

	log  logx.Logger
	logs *logx.Service

	metrics    *metrics.Metrics
	metricsSrv *metrics.Server

	clock clock.Clock
	exts  []*Extension
	sup   *rtsup.Supervisor
}

// Options overrides collaborators; zero values select the configured ones.
type Options struct {
	Clock   clock.Clock
	Sink    driver.Sink
	Sampler weather.Sampler
}

// New loads the config file and builds the app without starting anything.
func New(cfgPath string, opts Options) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	return build(cfgm, cfg, opts)
}

func build(cfgm *config.Manager, cfg *config.Config, opts Options) (*App, error) {
	logSvc, log := logx.New(logConfig(cfg))
	a := &App{
		cfgm:    cfgm,
		log:     log.With(logx.Comp("app")),
		logs:    logSvc,
		metrics: metrics.New(),
		clock:   opts.Clock,
	}
	if a.clock == nil {
		a.clock = clock.System()
	}
	a.metricsSrv = metrics.NewServer(a.metrics, log)
	cfgm.SetLogger(log.With(logx.Comp("config")))

	timing, err := cfg.Driver.Resolve()
	if err != nil {
		return nil, err
	}
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return nil, err
	}
	sink := opts.Sink
	if sink == nil {
		if sink, err = newSink(cfg.Telegram, log); err != nil {
			return nil, err
		}
	}
	defaults := tenant.Defaults{Timezone: cfg.Defaults.Timezone}

	for _, name := range []string{config.ExtCalendar, config.ExtWeather} {
		ec, _ := cfg.Extension(name)
		if !ec.Enabled {
			continue
		}
		store, err := storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
			Namespace:   cfg.NamespaceFor(name),
		}, defaults, log)
		if err != nil {
			a.closeStores()
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		svc := tenant.NewService(store, a.clock, defaults, log.With(logx.Comp("tenant"), logx.Ext(name)))
		drv := driver.New(driver.Config{
			Name:            name,
			Tick:            timing.Tick,
			DeliveryTimeout: timing.DeliveryTimeout,
		}, svc, composerFor(name, ec, opts), sink,
			driver.WithClock(a.clock),
			driver.WithLogger(log),
			driver.WithMetrics(a.metrics),
			driver.WithHeartbeat(func() { _, _ = systemd.Watchdog() }),
		)
		a.exts = append(a.exts, &Extension{Name: name, Store: store, Tenants: svc, Driver: drv})
	}
	if len(a.exts) == 0 {
		a.log.Warn("no extension enabled; nothing will be posted")
	}
	return a, nil
}

func logConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		Format:  cfg.Logging.Format,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	}
}

func metricsConfig(cfg *config.Config) metrics.ServerConfig {
	m := cfg.Metrics
	return metrics.ServerConfig{Enabled: m.Enabled, Addr: m.Addr, Path: m.Path, Token: m.Token, AllowInsecure: m.AllowInsecure}
}

// newSink posts to Telegram when a token is set, otherwise to the log.
func newSink(tc config.TelegramConfig, log logx.Logger) (driver.Sink, error) {
	if strings.TrimSpace(tc.Token) == "" {
		log.Warn("telegram.token not set; posts go to the log")
		return notify.NewLog(log), nil
	}
	tg, err := notify.NewTelegram(notify.TelegramConfig{
		Token:          tc.Token,
		DefaultTarget:  tc.DefaultTarget,
		ParseMode:      tc.ParseMode,
		DisablePreview: tc.DisablePreview,
		APIURL:         tc.APIURL,
	}, log)
	if err != nil {
		return nil, err
	}
	return notify.NewLimited(tg, tc.RatePerSec), nil
}

func composerFor(name string, ec config.ExtensionConfig, opts Options) driver.Composer {
	if name == config.ExtCalendar {
		return calendar.Composer{}
	}
	s := opts.Sampler
	if s == nil && ec.Seed != 0 {
		s = weather.NewRandomSampler(ec.Seed)
	}
	return weather.NewComposer(s)
}

func (a *App) Logger() logx.Logger { return a.log }

func (a *App) Metrics() *metrics.Metrics { return a.metrics }

func (a *App) Now() time.Time { return a.clock.Now() }

func (a *App) Extensions() []*Extension { return a.exts }

func (a *App) Extension(name string) (*Extension, bool) {
	for _, e := range a.exts {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Done is closed when the app supervisor stops (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start seeds tenants from the config, starts every driver, the metrics
// listener and the config watcher, then reports readiness to systemd.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	cfg := a.cfgm.Get()

	if err := a.ApplySeeds(ctx, cfg); err != nil {
		return err
	}
	for _, e := range a.exts {
		e.Driver.Start(a.sup.Context())
	}
	a.metricsSrv.Reconfigure(a.sup.Context(), metricsConfig(cfg))

	a.cfgm.SetValidator(func(_ context.Context, next *config.Config) error {
		return next.Validate()
	})
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", a.cfgm.Watch)

	if _, err := systemd.Ready(); err != nil {
		a.log.Debug("sd_notify ready failed", logx.Err(err))
	}
	a.log.Info("started", logx.Int("extensions", len(a.exts)))
	return nil
}

func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts.
			for drained := false; !drained; {
				select {
				case newer := <-sub:
					if newer != nil {
						next = newer
					}
				default:
					drained = true
				}
			}
			a.applyReload(ctx, last, next)
			last = next
		}
	}
}

func (a *App) applyReload(ctx context.Context, prev, next *config.Config) {
	sections, attrs := config.SummarizeChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	_, _ = systemd.Reloading()
	defer func() { _, _ = systemd.Ready() }()

	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config change summary", fields...)

	a.logs.Apply(logConfig(next))
	a.metricsSrv.Reconfigure(ctx, metricsConfig(next))
	if err := a.ApplySeeds(ctx, next); err != nil {
		a.log.Warn("tenant seeds not fully applied", logx.Err(err))
	}
	if config.RestartRequired(prev, next) {
		a.log.Warn("some changes take effect after restart", logx.String("changed", strings.Join(sections, ",")))
	}
}

// ApplySeeds writes the configured tenants. Empty seed fields are left alone
// and a start date is only written when it differs from the stored origin, so
// re-applying never rewinds a calendar.
func (a *App) ApplySeeds(ctx context.Context, cfg *config.Config) error {
	var errs []error
	for _, e := range a.exts {
		for _, s := range cfg.SeedsFor(e.Name) {
			if err := applySeed(ctx, e.Tenants, s); err != nil {
				errs = append(errs, fmt.Errorf("%s/%s: %w", e.Name, s.ID, err))
			}
		}
	}
	return errors.Join(errs...)
}

func applySeed(ctx context.Context, svc *tenant.Service, s config.TenantSeed) error {
	if s.Timezone != "" {
		if err := svc.SetTimezone(ctx, s.ID, s.Timezone); err != nil {
			return err
		}
	}
	if s.Cadence != "" {
		if _, err := svc.SetCadence(ctx, s.ID, s.Cadence); err != nil {
			return err
		}
	}
	if s.Channel != "" {
		if err := svc.SetChannel(ctx, s.ID, s.Channel); err != nil {
			return err
		}
	}
	if strings.TrimSpace(s.StartDate) != "" {
		want, err := rollover.ParseDate(s.StartDate)
		if err != nil {
			return err
		}
		rec, ok, err := svc.Get(ctx, s.ID)
		if err != nil {
			return err
		}
		if ok && rec.LogicalOrigin != nil && *rec.LogicalOrigin == want {
			return nil
		}
		if _, err := svc.SetStartDate(ctx, s.ID, s.StartDate); err != nil {
			return err
		}
	}
	return nil
}

// Stop stops drivers (letting in-flight ticks finish), the metrics listener
// and background loops, then closes the stores.
func (a *App) Stop(ctx context.Context) error {
	_, _ = systemd.Stopping()
	var errs []error
	for _, e := range a.exts {
		if err := e.Driver.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s driver: %w", e.Name, err))
		}
	}
	a.metricsSrv.Stop(ctx)
	if a.sup != nil {
		if err := a.sup.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
	}
	errs = append(errs, a.closeStores())
	a.log.Info("stopped")
	_ = a.logs.Close()
	return errors.Join(errs...)
}

// Close releases stores for apps that were never started (CLI commands).
func (a *App) Close() error {
	err := a.closeStores()
	_ = a.logs.Close()
	return err
}

func (a *App) closeStores() error {
	var errs []error
	for _, e := range a.exts {
		if e.Store == nil {
			continue
		}
		if err := e.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s store: %w", e.Name, err))
		}
		e.Store = nil
	}
	return errors.Join(errs...)
}

// StopTimeout bounds graceful shutdown from the CLI.
const StopTimeout = 30 * time.Second
