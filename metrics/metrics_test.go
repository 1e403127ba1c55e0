package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.QueueDepth("reads", 3)
		m.QueueTask("reads", time.Millisecond, nil)
		m.LockOp("acquire", "ok")
		m.PendingWrites("players", 1)
		m.OpenRecords("players", 1)
		m.ReconcileCycle("players")
		m.ActiveUsers(4)
	})
}

func TestMetrics_Collect(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.QueueTask("writes", time.Millisecond, nil)
	m.QueueTask("writes", time.Millisecond, errors.New("boom"))
	m.LockOp("acquire", "conflict")
	m.PendingWrites("players", 2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueTasks.WithLabelValues("writes", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueTasks.WithLabelValues("writes", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lockOps.WithLabelValues("acquire", "conflict")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.pendingWrites.WithLabelValues("players")))
}

func TestNew_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
