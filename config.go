package records

import (
	"fmt"
	"time"

	"github.com/creastat/records/lock"
)

const (
	// DefaultReconcileInterval is the period of the background flush and
	// lock refresh cycle.
	DefaultReconcileInterval = 8 * time.Second
	// DefaultLockTTL is how long a lock survives without a refresh.
	DefaultLockTTL = lock.DefaultTTL
)

// Config tunes a Store.
type Config struct {
	// ReconcileInterval must stay well below LockTTL so refreshes land before
	// the lock expires. Validate rejects anything above half the TTL.
	ReconcileInterval time.Duration
	LockTTL           time.Duration
}

// DefaultConfig returns the reference timings (8s cycle, 30s lock TTL).
func DefaultConfig() Config {
	return Config{
		ReconcileInterval: DefaultReconcileInterval,
		LockTTL:           DefaultLockTTL,
	}
}

// Validate fills defaults and checks the timing relationship.
func (c *Config) Validate() error {
	if c.ReconcileInterval == 0 {
		c.ReconcileInterval = DefaultReconcileInterval
	}
	if c.LockTTL == 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.ReconcileInterval < 0 {
		return fmt.Errorf("%w: reconcile interval must be > 0", ErrInvalidConfig)
	}
	if c.LockTTL < 0 {
		return fmt.Errorf("%w: lock ttl must be > 0", ErrInvalidConfig)
	}
	if c.ReconcileInterval*2 > c.LockTTL {
		return fmt.Errorf("%w: reconcile interval %s must be at most half the lock ttl %s", ErrInvalidConfig, c.ReconcileInterval, c.LockTTL)
	}
	return nil
}
