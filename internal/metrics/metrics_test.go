package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAttempt(time.Second, "")
		m.IncRotation(RotationFailure)
		m.IncReleaseFailure()
		m.IncItem("skipped")
		m.AddRows(3)
	})
}

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.ObserveAttempt(time.Second, "")
	m.ObserveAttempt(2*time.Second, "navigation")
	m.ObserveAttempt(2*time.Second, "navigation")
	m.IncRotation(RotationProactive)
	m.IncRotation(RotationFailure)
	m.IncRotation(RotationFailure)
	m.IncItem("succeeded")
	m.AddRows(5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("failure")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.FailuresTotal.WithLabelValues("navigation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RotationsTotal.WithLabelValues(RotationProactive)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RotationsTotal.WithLabelValues(RotationFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ItemsTotal.WithLabelValues("succeeded")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.RowsWritten))
}
