package records

import (
	"github.com/creastat/records/internal/clock"
	"github.com/creastat/records/lifecycle"
	"github.com/creastat/records/metrics"
	"pkt.systems/pslog"
)

// Option is a functional option for configuring a Store.
type Option func(*settings)

type settings struct {
	config    Config
	logger    pslog.Logger
	clock     clock.Clock
	metrics   *metrics.Metrics
	codec     any
	sessionID string
	lifecycle *lifecycle.Hooks
}

// WithConfig sets the store timings.
func WithConfig(cfg Config) Option {
	return func(s *settings) {
		s.config = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l pslog.Logger) Option {
	return func(s *settings) {
		s.logger = l
	}
}

// WithClock sets the clock driving the reconciliation loop and lock tokens.
func WithClock(c clock.Clock) Option {
	return func(s *settings) {
		s.clock = c
	}
}

// WithMetrics reports store, queue and lock activity to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithCodec replaces the default JSON payload codec.
func WithCodec[T any](c Codec[T]) Option {
	return func(s *settings) {
		s.codec = c
	}
}

// WithSessionID overrides the process session id used for lock ownership.
func WithSessionID(id string) Option {
	return func(s *settings) {
		s.sessionID = id
	}
}

// WithLifecycle registers the store's Shutdown as a termination hook.
func WithLifecycle(h *lifecycle.Hooks) Option {
	return func(s *settings) {
		s.lifecycle = h
	}
}
