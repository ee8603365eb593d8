// Package metrics exposes scheduler counters to Prometheus.
//
// All methods are safe on a nil *Metrics so callers can leave metrics
// disabled without guarding every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tenant outcomes recorded per tick.
const (
	OutcomeFired   = "fired"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	reg *prometheus.Registry

	// Tick metrics
	TicksTotal    *prometheus.CounterVec
	TickDuration  *prometheus.HistogramVec
	LastTick      *prometheus.GaugeVec
	TenantsLast   *prometheus.GaugeVec
	TenantResults *prometheus.CounterVec

	// Delivery metrics
	DeliveryDuration *prometheus.HistogramVec
}

// New creates the metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		TicksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "almanac_ticks_total",
				Help: "Total number of scheduler ticks run",
			},
			[]string{"extension"},
		),

		TickDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "almanac_tick_duration_seconds",
				Help:    "Duration of one tick over all tenants",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"extension"},
		),

		LastTick: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "almanac_last_tick_timestamp_seconds",
				Help: "Unix time of the last completed tick",
			},
			[]string{"extension"},
		),

		TenantsLast: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "almanac_tenants_evaluated",
				Help: "Tenants evaluated by the last tick",
			},
			[]string{"extension"},
		),

		TenantResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "almanac_tenant_results_total",
				Help: "Per-tenant tick outcomes",
			},
			[]string{"extension", "outcome"},
		),

		DeliveryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "almanac_delivery_duration_seconds",
				Help:    "Duration of notification deliveries",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
			},
			[]string{"extension", "result"},
		),
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// TickSummary is what one tick reports to metrics.
type TickSummary struct {
	Evaluated int
	Fired     int
	Failed    int
	Skipped   int
	Duration  time.Duration
	At        time.Time
}

func (m *Metrics) ObserveTick(extension string, s TickSummary) {
	if m == nil {
		return
	}
	m.TicksTotal.WithLabelValues(extension).Inc()
	m.TickDuration.WithLabelValues(extension).Observe(s.Duration.Seconds())
	m.LastTick.WithLabelValues(extension).Set(float64(s.At.Unix()))
	m.TenantsLast.WithLabelValues(extension).Set(float64(s.Evaluated))
	m.TenantResults.WithLabelValues(extension, OutcomeFired).Add(float64(s.Fired))
	m.TenantResults.WithLabelValues(extension, OutcomeFailed).Add(float64(s.Failed))
	m.TenantResults.WithLabelValues(extension, OutcomeSkipped).Add(float64(s.Skipped))
}

func (m *Metrics) ObserveDelivery(extension string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.DeliveryDuration.WithLabelValues(extension, result).Observe(d.Seconds())
}
