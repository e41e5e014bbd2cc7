// Package metrics exposes prometheus collectors for scoring and ranking.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"quizhub-service/internal/domain"
)

const namespace = "quizhub"

type Metrics struct {
	attemptsSubmitted *prometheus.CounterVec
	submitRejected    *prometheus.CounterVec
	scoreAwarded      prometheus.Histogram
	recomputeDuration *prometheus.HistogramVec
	batchUsersRanked  prometheus.Gauge
	batchUsersSkipped prometheus.Counter
	cacheLookups      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attemptsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempts_submitted_total",
			Help:      "Completed quiz attempts by owner kind.",
		}, []string{"owner"}),
		submitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempt_submissions_rejected_total",
			Help:      "Rejected attempt submissions by error kind.",
		}, []string{"reason"}),
		scoreAwarded: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "attempt_score",
			Help:      "Score awarded per completed attempt.",
			Buckets:   []float64{0, 25, 50, 75, 100, 150, 200, 300},
		}),
		recomputeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "leaderboard_recompute_seconds",
			Help:      "Time spent re-ranking one leaderboard.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		batchUsersRanked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rank_batch_users_ranked",
			Help:      "Users ranked by the last batch rank rebuild.",
		}),
		batchUsersSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_batch_users_skipped_total",
			Help:      "Malformed users skipped by batch rank rebuilds.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
	}
	reg.MustRegister(
		m.attemptsSubmitted,
		m.submitRejected,
		m.scoreAwarded,
		m.recomputeDuration,
		m.batchUsersRanked,
		m.batchUsersSkipped,
		m.cacheLookups,
	)
	return m
}

func (m *Metrics) AttemptSubmitted(a domain.Attempt) {
	if m == nil {
		return
	}
	m.attemptsSubmitted.WithLabelValues(a.Owner.Kind().String()).Inc()
	m.scoreAwarded.Observe(float64(a.Score))
}

func (m *Metrics) SubmitRejected(err error) {
	if m == nil {
		return
	}
	m.submitRejected.WithLabelValues(reason(err)).Inc()
}

func (m *Metrics) ObserveRecompute(t domain.LeaderboardType, started time.Time) {
	if m == nil {
		return
	}
	m.recomputeDuration.WithLabelValues(string(t)).Observe(time.Since(started).Seconds())
}

func (m *Metrics) BatchFinished(ranked, skipped int) {
	if m == nil {
		return
	}
	m.batchUsersRanked.Set(float64(ranked))
	m.batchUsersSkipped.Add(float64(skipped))
}

func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

func reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, domain.ErrContractViolation):
		return "contract_violation"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
