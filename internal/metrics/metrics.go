package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Rotation reasons.
const (
	RotationProactive = "proactive"
	RotationFailure   = "failure"
)

// Metrics bundles Prometheus collectors for a scrape run.
type Metrics struct {
	Registry        *prometheus.Registry
	AttemptsTotal   *prometheus.CounterVec
	FailuresTotal   *prometheus.CounterVec
	AttemptDuration prometheus.Histogram
	RotationsTotal  *prometheus.CounterVec
	ReleaseFailures prometheus.Counter
	ItemsTotal      *prometheus.CounterVec
	RowsWritten     prometheus.Counter
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	attempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_attempts_total",
			Help: "Extraction attempts by result.",
		},
		[]string{"result"},
	)
	failures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_attempt_failures_total",
			Help: "Failed extraction attempts by failure kind.",
		},
		[]string{"kind"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scraper_attempt_duration_seconds",
			Help:    "Wall time of one extraction attempt.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	rotations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_session_rotations_total",
			Help: "Browser session replacements by reason.",
		},
		[]string{"reason"},
	)
	releaseFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_session_release_failures_total",
			Help: "Browser sessions that could not be closed cleanly.",
		},
	)
	items := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scraper_items_total",
			Help: "Resolved work items by status.",
		},
		[]string{"status"},
	)
	rows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scraper_rows_written_total",
			Help: "Rows appended to the result sink.",
		},
	)

	registry.MustRegister(attempts, failures, duration, rotations, releaseFailures, items, rows)

	return &Metrics{
		Registry:        registry,
		AttemptsTotal:   attempts,
		FailuresTotal:   failures,
		AttemptDuration: duration,
		RotationsTotal:  rotations,
		ReleaseFailures: releaseFailures,
		ItemsTotal:      items,
		RowsWritten:     rows,
	}
}

// ObserveAttempt records one attempt; kind is empty on success.
func (m *Metrics) ObserveAttempt(d time.Duration, kind string) {
	if m == nil {
		return
	}
	m.AttemptDuration.Observe(d.Seconds())
	if kind == "" {
		m.AttemptsTotal.WithLabelValues("success").Inc()
		return
	}
	m.AttemptsTotal.WithLabelValues("failure").Inc()
	m.FailuresTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncRotation(reason string) {
	if m == nil {
		return
	}
	m.RotationsTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncReleaseFailure() {
	if m == nil {
		return
	}
	m.ReleaseFailures.Inc()
}

func (m *Metrics) IncItem(status string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) AddRows(n int) {
	if m == nil {
		return
	}
	m.RowsWritten.Add(float64(n))
}
