package decay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricResetsTotal        = "decay_resets_total"
	MetricResetsSkippedTotal = "decay_resets_skipped_total"
	MetricLastResetTimestamp = "decay_last_reset_timestamp_seconds"
	MetricLastResetAffected  = "decay_last_reset_affected_listings"
)

// Metrics contains Prometheus metrics for the decay scheduler.
// All operations are thread-safe.
type Metrics struct {
	resets        prometheus.Counter
	skipped       prometheus.Counter
	lastTimestamp prometheus.Gauge
	lastAffected  prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricResetsTotal,
			Help: "Total number of completed window resets",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricResetsSkippedTotal,
			Help: "Total number of reset attempts skipped by the window watermark",
		}),
		lastTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLastResetTimestamp,
			Help: "Unix timestamp of the last completed window reset",
		}),
		lastAffected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLastResetAffected,
			Help: "Number of listings affected by the last window reset",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.resets,
		m.skipped,
		m.lastTimestamp,
		m.lastAffected,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveReset records one completed reset.
func (m *Metrics) ObserveReset(affected int, unixTimestamp float64) {
	m.resets.Inc()
	m.lastTimestamp.Set(unixTimestamp)
	m.lastAffected.Set(float64(affected))
}

// IncSkipped increments the watermark-skip counter.
func (m *Metrics) IncSkipped() {
	m.skipped.Inc()
}
