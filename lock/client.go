// Package lock turns the coordination store's compare-and-update primitive
// into per-key write ownership for one process session.
//
// A lock entry holds the owning session's token and expires after the TTL
// unless refreshed, so a crashed holder blocks other sessions for at most one
// TTL.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/creastat/records/coordination"
	"github.com/creastat/records/internal/clock"
	"github.com/creastat/records/metrics"
	"pkt.systems/pslog"
)

// DefaultTTL is how long a lock survives without a refresh.
const DefaultTTL = 30 * time.Second

// Client acquires, refreshes and releases locks on behalf of one session.
// It keeps a local cache of the keys it believes it holds; the coordination
// store stays authoritative.
type Client struct {
	store     coordination.Store
	namespace string
	session   string
	ttl       time.Duration
	clock     clock.Clock
	logger    pslog.Logger
	metrics   *metrics.Metrics

	mu   sync.Mutex
	held map[string]struct{}
}

// Option configures a Client.
type Option func(*Client)

// WithTTL sets the lock expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.ttl = ttl
	}
}

// WithClock sets the clock used to stamp tokens.
func WithClock(clk clock.Clock) Option {
	return func(c *Client) {
		c.clock = clk
	}
}

// WithLogger sets the logger.
func WithLogger(l pslog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// WithMetrics reports lock operations to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New returns a Client for sessionID. Keys are scoped by namespace inside the
// coordination store.
func New(store coordination.Store, namespace, sessionID string, opts ...Option) *Client {
	c := &Client{
		store:     store,
		namespace: namespace,
		session:   sessionID,
		ttl:       DefaultTTL,
		held:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	c.clock = clock.Ensure(c.clock)
	if c.logger == nil {
		c.logger = pslog.NoopLogger()
	}
	c.logger = c.logger.With("svc", "lock", "namespace", namespace)
	return c
}

// SessionID returns the session this client acts for.
func (c *Client) SessionID() string {
	return c.session
}

// TTL returns the lock expiry.
func (c *Client) TTL() time.Duration {
	return c.ttl
}

// AcquireOrRefresh takes the lock for key, or pushes back its expiry when this
// session already owns it. It returns a *ConflictError when another session
// holds the lock.
func (c *Client) AcquireOrRefresh(ctx context.Context, key string) error {
	minted := NewToken(c.session, c.clock.Now()).String()

	value, _, err := c.store.CompareAndUpdate(ctx, c.entryKey(key), func(old string, exists bool) (string, bool) {
		holder, ok := ParseToken(old)
		if !ok || holder.OwnedBy(c.session) {
			return minted, true
		}
		return old, false
	}, c.ttl)
	if err != nil {
		c.metrics.LockOp("acquire", "error")
		return fmt.Errorf("lock: acquire %q: %w", key, err)
	}

	if value == minted {
		c.mu.Lock()
		c.held[key] = struct{}{}
		c.mu.Unlock()
		c.metrics.LockOp("acquire", "ok")
		c.logger.Trace("lock.acquire.ok", "key", key)
		return nil
	}

	c.mu.Lock()
	delete(c.held, key)
	c.mu.Unlock()

	holder, _ := ParseToken(value)
	c.metrics.LockOp("acquire", "conflict")
	c.logger.Debug("lock.acquire.conflict", "key", key, "holder", holder.SessionID)
	return &ConflictError{Key: key, Holder: holder}
}

// Release gives up the lock for key. It does nothing when the key is not held
// locally, and never overwrites a token owned by another session.
func (c *Client) Release(ctx context.Context, key string) error {
	c.mu.Lock()
	_, held := c.held[key]
	delete(c.held, key)
	c.mu.Unlock()
	if !held {
		return nil
	}

	released := false
	_, _, err := c.store.CompareAndUpdate(ctx, c.entryKey(key), func(old string, exists bool) (string, bool) {
		holder, ok := ParseToken(old)
		if ok && holder.OwnedBy(c.session) {
			released = true
			return Unset, true
		}
		released = false
		return old, false
	}, c.ttl)
	if err != nil {
		c.metrics.LockOp("release", "error")
		return fmt.Errorf("lock: release %q: %w", key, err)
	}
	if !released {
		c.metrics.LockOp("release", "lost")
		c.logger.Debug("lock.release.lost", "key", key)
		return nil
	}
	c.metrics.LockOp("release", "ok")
	c.logger.Trace("lock.release.ok", "key", key)
	return nil
}

// Owner returns the current holder of key without modifying the entry.
func (c *Client) Owner(ctx context.Context, key string) (Token, bool, error) {
	value, _, err := c.store.CompareAndUpdate(ctx, c.entryKey(key), func(old string, exists bool) (string, bool) {
		return old, false
	}, c.ttl)
	if err != nil {
		return Token{}, false, fmt.Errorf("lock: owner %q: %w", key, err)
	}
	tok, ok := ParseToken(value)
	return tok, ok, nil
}

// Held reports whether this session believes it holds key.
func (c *Client) Held(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.held[key]
	return ok
}

// HeldKeys returns the locally held keys in sorted order.
func (c *Client) HeldKeys() []string {
	c.mu.Lock()
	keys := make([]string, 0, len(c.held))
	for k := range c.held {
		keys = append(keys, k)
	}
	c.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// IsConflict reports whether err is a lock conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func (c *Client) entryKey(key string) string {
	return c.namespace + "/" + key
}
