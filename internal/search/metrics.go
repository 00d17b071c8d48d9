package search

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricSearchesTotal         = "search_requests_total"
	MetricSearchesRejectedTotal = "search_requests_rejected_total"
	MetricSearchDuration        = "search_duration_seconds"
	MetricSearchResultCount     = "search_result_count"
)

// Metrics contains Prometheus metrics for the search service.
// All operations are thread-safe.
type Metrics struct {
	searches    prometheus.Counter
	rejected    *prometheus.CounterVec
	duration    prometheus.Histogram
	resultCount prometheus.Histogram
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSearchesTotal,
			Help: "Total number of completed search requests",
		}),
		rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricSearchesRejectedTotal,
				Help: "Total number of rejected search requests by reason",
			},
			[]string{"reason"},
		),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricSearchDuration,
			Help:    "Histogram of search duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		resultCount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricSearchResultCount,
			Help:    "Histogram of total matches per search before pagination",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.searches,
		m.rejected,
		m.duration,
		m.resultCount,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveSearch records one completed search.
func (m *Metrics) ObserveSearch(seconds float64, totalMatches int) {
	m.searches.Inc()
	m.duration.Observe(seconds)
	m.resultCount.Observe(float64(totalMatches))
}

// IncRejected increments the rejection counter for the given reason.
func (m *Metrics) IncRejected(reason string) {
	m.rejected.WithLabelValues(reason).Inc()
}
