package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.Transition("in-progress", "completed")
	m.Transition("in-progress", "completed")
	m.ConflictRetry("SessionService.Complete")
	m.Retention("archived", 3)
	m.Retention("deleted", 0)
	m.Export("csv", "ok")
	m.AnalyticsCache(true)
	m.AnalyticsCache(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("in-progress", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConflictRetriesTotal.WithLabelValues("SessionService.Complete")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RetentionActionsTotal.WithLabelValues("archived")))
	// zero-sized batches create no series
	assert.Equal(t, 1, testutil.CollectAndCount(m.RetentionActionsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExportsTotal.WithLabelValues("csv", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AnalyticsCacheTotal.WithLabelValues("hit")))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Transition("a", "b")
		m.ConflictRetry("op")
		m.Retention("archived", 1)
		m.Export("json", "ok")
		m.AnalyticsCache(true)
	})
}
