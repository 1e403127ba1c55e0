package queue

import (
	"sync/atomic"
	"time"

	"github.com/creastat/records/metrics"
)

const (
	baseRequestsPerMinute    = 60
	requestsPerMinutePerUser = 10
)

// UserCounter reports how many users are currently connected to the process.
type UserCounter interface {
	ActiveUsers() int
}

// FixedUsers is a constant UserCounter.
type FixedUsers int

// ActiveUsers implements UserCounter.
func (n FixedUsers) ActiveUsers() int {
	return int(n)
}

// UserGauge is a settable UserCounter safe for concurrent use.
type UserGauge struct {
	n       atomic.Int64
	metrics *metrics.Metrics
}

// NewUserGauge returns a gauge that mirrors its value to m.
func NewUserGauge(m *metrics.Metrics) *UserGauge {
	return &UserGauge{metrics: m}
}

// Set replaces the user count.
func (g *UserGauge) Set(n int) {
	if n < 0 {
		n = 0
	}
	g.n.Store(int64(n))
	g.metrics.ActiveUsers(n)
}

// Add adjusts the user count by delta and returns the new value.
func (g *UserGauge) Add(delta int) int {
	n := g.n.Add(int64(delta))
	if n < 0 {
		g.n.CompareAndSwap(n, 0)
		n = 0
	}
	g.metrics.ActiveUsers(int(n))
	return int(n)
}

// ActiveUsers implements UserCounter.
func (g *UserGauge) ActiveUsers() int {
	return int(g.n.Load())
}

// Policy derives request spacing from the number of concurrent users: the
// durable store allows 60 + 10 per user requests per minute.
type Policy struct {
	Users UserCounter
}

// RequestsPerMinute returns the current request budget.
func (p Policy) RequestsPerMinute() int {
	users := 0
	if p.Users != nil {
		users = max(p.Users.ActiveUsers(), 0)
	}
	return baseRequestsPerMinute + requestsPerMinutePerUser*users
}

// MinimumInterval implements Spacer.
func (p Policy) MinimumInterval() time.Duration {
	return time.Minute / time.Duration(p.RequestsPerMinute())
}

// Throttle holds the process-wide read and write queues shared by every
// record store talking to the durable store.
type Throttle struct {
	Reads  *Queue
	Writes *Queue
}

// NewThrottle starts the read and write queues, both spaced by policy.
func NewThrottle(policy Spacer, opts ...Option) *Throttle {
	spaced := append([]Option{WithSpacing(policy)}, opts...)
	return &Throttle{
		Reads:  New("durable.reads", spaced...),
		Writes: New("durable.writes", spaced...),
	}
}

// Close stops both queues.
func (t *Throttle) Close() {
	t.Reads.Close()
	t.Writes.Close()
}
