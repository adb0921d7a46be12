package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all Prometheus metrics for the accounting engine.
type Registry struct {
	// Price refresh cycle
	RefreshTotal    *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	RefreshSkipped  prometheus.Counter

	// Valuation state
	StalePositions prometheus.Gauge
	PositionCount  prometheus.Gauge
	ComputeTotal   prometheus.Counter

	// Persistence cadence
	SnapshotWrites *prometheus.CounterVec
	ScoreWrites    *prometheus.CounterVec
}

// NewRegistry creates a metrics registry with all engine metrics.
func NewRegistry() *Registry {
	return &Registry{
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperledger_price_refresh_total",
				Help: "Price refresh attempts by result",
			},
			[]string{"result"},
		),
		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "paperledger_price_refresh_duration_seconds",
				Help:    "Duration of price refresh cycles in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),
		RefreshSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "paperledger_price_refresh_skipped_total",
				Help: "Refresh ticks dropped because a fetch was already in flight",
			},
		),
		StalePositions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "paperledger_stale_positions",
				Help: "Positions currently valued at their entry-price fallback",
			},
		),
		PositionCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "paperledger_positions",
				Help: "Open positions after the last reconciliation",
			},
		),
		ComputeTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "paperledger_recompute_total",
				Help: "Full ledger-to-score recomputations performed",
			},
		),
		SnapshotWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperledger_snapshot_writes_total",
				Help: "Equity snapshot persistence outcomes",
			},
			[]string{"result"},
		),
		ScoreWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "paperledger_score_writes_total",
				Help: "Competition score persistence outcomes",
			},
			[]string{"result"},
		),
	}
}

// Register registers all metrics with the given Prometheus registerer.
func (r *Registry) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		r.RefreshTotal,
		r.RefreshDuration,
		r.RefreshSkipped,
		r.StalePositions,
		r.PositionCount,
		r.ComputeTotal,
		r.SnapshotWrites,
		r.ScoreWrites,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

var (
	defaultRegistry *Registry
	registryOnce    sync.Once
)

// Default returns the process-wide metrics registry, registering it
// with the default Prometheus registerer on first use.
func Default() *Registry {
	registryOnce.Do(func() {
		defaultRegistry = NewRegistry()
		_ = defaultRegistry.Register(prometheus.DefaultRegisterer)
	})
	return defaultRegistry
}
