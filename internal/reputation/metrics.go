package reputation

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics names as constants for consistency.
const (
	MetricVotesCastTotal        = "reputation_votes_cast_total"
	MetricVotesRevokedTotal     = "reputation_votes_revoked_total"
	MetricVotesRejectedTotal    = "reputation_votes_rejected_total"
	MetricMutationDuration      = "reputation_mutation_duration_seconds"
	MetricSummaryCacheHitsTotal = "reputation_summary_cache_hits_total"
	MetricSummaryCacheMissTotal = "reputation_summary_cache_misses_total"
)

// Rejection reason labels.
const (
	RejectReasonSelfVote      = "self_vote"
	RejectReasonCooldown      = "cooldown_active"
	RejectReasonInvalidWeight = "invalid_weight_class"
)

// Metrics contains Prometheus metrics for the reputation ledger.
// All operations are thread-safe.
type Metrics struct {
	votesCast        *prometheus.CounterVec
	votesRevoked     prometheus.Counter
	votesRejected    *prometheus.CounterVec
	mutationDuration prometheus.Histogram
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register them
// with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		votesCast: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricVotesCastTotal,
				Help: "Total number of successful vote casts by outcome (inserted or updated)",
			},
			[]string{"outcome"},
		),
		votesRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricVotesRevokedTotal,
			Help: "Total number of successful vote revocations",
		}),
		votesRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricVotesRejectedTotal,
				Help: "Total number of rejected vote casts by reason",
			},
			[]string{"reason"},
		),
		mutationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricMutationDuration,
			Help:    "Histogram of ledger mutation duration in seconds, including recompute",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSummaryCacheHitsTotal,
			Help: "Total number of reputation summary cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricSummaryCacheMissTotal,
			Help: "Total number of reputation summary cache misses",
		}),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.votesCast,
		m.votesRevoked,
		m.votesRejected,
		m.mutationDuration,
		m.cacheHits,
		m.cacheMisses,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncVotesCast increments the cast counter for the given outcome.
func (m *Metrics) IncVotesCast(outcome string) {
	m.votesCast.WithLabelValues(outcome).Inc()
}

// IncVotesRevoked increments the revoked counter.
func (m *Metrics) IncVotesRevoked() {
	m.votesRevoked.Inc()
}

// IncVotesRejected increments the rejected counter for the given reason.
func (m *Metrics) IncVotesRejected(reason string) {
	m.votesRejected.WithLabelValues(reason).Inc()
}

// ObserveMutationDuration records a mutation duration sample.
func (m *Metrics) ObserveMutationDuration(seconds float64) {
	m.mutationDuration.Observe(seconds)
}

// IncCacheHits increments the summary cache hit counter.
func (m *Metrics) IncCacheHits() {
	m.cacheHits.Inc()
}

// IncCacheMisses increments the summary cache miss counter.
func (m *Metrics) IncCacheMisses() {
	m.cacheMisses.Inc()
}
