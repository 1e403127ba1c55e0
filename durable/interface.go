// Package durable defines the slow, rate-limited key-value store that holds
// record payloads, plus the throttled access path shared by every record store.
package durable

import "context"

// Store defines the durable blob operations consumed by the record layer.
// Implementations may be backed by Redis, Supabase, Qdrant or S3.
type Store interface {
	// Read returns the value stored under key. ok is false when nothing is
	// stored (not an error).
	Read(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Write replaces the value stored under key.
	Write(ctx context.Context, key string, value []byte) error

	// Close releases any resources held by the store.
	Close() error
}
