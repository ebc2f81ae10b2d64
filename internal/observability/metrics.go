// Package observability exposes Prometheus instrumentation for the session core.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "prepdeck"

// Metrics holds the counters the services update. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	// Labels: from, to
	TransitionsTotal *prometheus.CounterVec
	// Labels: op
	ConflictRetriesTotal *prometheus.CounterVec
	// Labels: action (archived, deleted, skipped, restored)
	RetentionActionsTotal *prometheus.CounterVec
	// Labels: format, outcome (ok, empty, error)
	ExportsTotal *prometheus.CounterVec
	// Labels: result (hit, miss)
	AnalyticsCacheTotal *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "session",
				Name:      "transitions_total",
				Help:      "Accepted session status transitions by from/to status",
			},
			[]string{"from", "to"},
		),
		ConflictRetriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "session",
				Name:      "conflict_retries_total",
				Help:      "Optimistic concurrency retries by operation",
			},
			[]string{"op"},
		),
		RetentionActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "retention",
				Name:      "actions_total",
				Help:      "Retention outcomes by action",
			},
			[]string{"action"},
		),
		ExportsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "export",
				Name:      "requests_total",
				Help:      "Exports by format and outcome",
			},
			[]string{"format", "outcome"},
		),
		AnalyticsCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "analytics",
				Name:      "cache_lookups_total",
				Help:      "Analytics cache lookups by result",
			},
			[]string{"result"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.TransitionsTotal,
			m.ConflictRetriesTotal,
			m.RetentionActionsTotal,
			m.ExportsTotal,
			m.AnalyticsCacheTotal,
		)
	}
	return m
}

func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ConflictRetry(op string) {
	if m == nil {
		return
	}
	m.ConflictRetriesTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) Retention(action string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RetentionActionsTotal.WithLabelValues(action).Add(float64(n))
}

func (m *Metrics) Export(format, outcome string) {
	if m == nil {
		return
	}
	m.ExportsTotal.WithLabelValues(format, outcome).Inc()
}

func (m *Metrics) AnalyticsCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.AnalyticsCacheTotal.WithLabelValues(result).Inc()
}
