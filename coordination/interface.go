// Package coordination provides the fast, TTL-capable key-value store that
// holds lock ownership tokens.
package coordination

import (
	"context"
	"time"
)

// Updater computes the next value for a key from its current value. exists
// is false when the key has no entry (never written or expired). Returning
// write=false leaves the entry untouched, including its expiry.
type Updater func(old string, exists bool) (next string, write bool)

// Store defines the coordination store operations used by the lock client.
type Store interface {
	// CompareAndUpdate applies update atomically relative to every other
	// caller, including other processes. When update asks for a write the new
	// value is stored with the given ttl and returned; otherwise the current
	// value is returned unchanged.
	CompareAndUpdate(ctx context.Context, key string, update Updater, ttl time.Duration) (value string, exists bool, err error)

	// Close releases any resources held by the store.
	Close() error
}
