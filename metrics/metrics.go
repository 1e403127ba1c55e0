// Package metrics exposes Prometheus collectors for the record layer.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional metrics handle without branching at every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "records"

// Metrics groups every collector the record layer reports to.
type Metrics struct {
	queueDepth    *prometheus.GaugeVec
	queueTasks    *prometheus.CounterVec
	queueDuration *prometheus.HistogramVec
	lockOps       *prometheus.CounterVec
	pendingWrites *prometheus.GaugeVec
	openRecords   *prometheus.GaugeVec
	reconcileRuns *prometheus.CounterVec
	activeUsers   prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Tasks waiting in a request queue.",
		}, []string{"queue"}),
		queueTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "tasks_total",
			Help:      "Tasks executed by a request queue, by outcome.",
		}, []string{"queue", "outcome"}),
		queueDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "task_duration_seconds",
			Help:      "Time spent executing a queued task.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),
		lockOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lock",
			Name:      "operations_total",
			Help:      "Coordination lock operations, by kind and outcome.",
		}, []string{"op", "outcome"}),
		pendingWrites: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "pending_writes",
			Help:      "Records marked dirty and waiting for the next flush.",
		}, []string{"store"}),
		openRecords: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "open_records",
			Help:      "Records currently loaded by a store.",
		}, []string{"store"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "reconcile_cycles_total",
			Help:      "Background reconciliation cycles, by store.",
		}, []string{"store"}),
		activeUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_users",
			Help:      "Concurrent user count feeding the throttle policy.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.queueDepth, m.queueTasks, m.queueDuration, m.lockOps,
		m.pendingWrites, m.openRecords, m.reconcileRuns, m.activeUsers,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// QueueDepth sets the number of waiting tasks for the named queue.
func (m *Metrics) QueueDepth(queue string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(queue).Set(float64(depth))
}

// QueueTask records one executed task.
func (m *Metrics) QueueTask(queue string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.queueTasks.WithLabelValues(queue, outcome(err)).Inc()
	m.queueDuration.WithLabelValues(queue).Observe(elapsed.Seconds())
}

// LockOp records an acquire/refresh/release against the coordination store.
func (m *Metrics) LockOp(op, result string) {
	if m == nil {
		return
	}
	m.lockOps.WithLabelValues(op, result).Inc()
}

// PendingWrites sets the dirty record count for a store.
func (m *Metrics) PendingWrites(store string, n int) {
	if m == nil {
		return
	}
	m.pendingWrites.WithLabelValues(store).Set(float64(n))
}

// OpenRecords sets the loaded record count for a store.
func (m *Metrics) OpenRecords(store string, n int) {
	if m == nil {
		return
	}
	m.openRecords.WithLabelValues(store).Set(float64(n))
}

// ReconcileCycle counts one background cycle.
func (m *Metrics) ReconcileCycle(store string) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(store).Inc()
}

// ActiveUsers publishes the user count used by the throttle policy.
func (m *Metrics) ActiveUsers(n int) {
	if m == nil {
		return
	}
	m.activeUsers.Set(float64(n))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
