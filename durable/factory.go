package durable

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// StoreType represents the type of durable store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

// Redis key prefix for record payloads
const defaultKeyPrefix = "record:"

// NewStore creates a new durable Store based on the given type.
// Supports "memory" and "redis" driver types; the remote backends live in
// their own packages (supabase, qdrant, s3).
// For Redis, requires WithRedisClient option.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{keyPrefix: defaultKeyPrefix}

	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return NewMemoryStore(), nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		return &redisStore{
			client: config.redisClient,
			prefix: config.keyPrefix,
		}, nil

	default:
		return nil, ErrInvalidStoreType
	}
}

// MemoryStore implements Store using an in-memory map. It is shared by every
// record store in a process, which makes it useful in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Read implements Store.
func (s *MemoryStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return bytes.Clone(value), true, nil
}

// Write implements Store.
func (s *MemoryStore) Write(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = bytes.Clone(value)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}

// redisStore implements Store using plain Redis strings without expiry.
type redisStore struct {
	client redis.UniversalClient
	prefix string
}

// Read implements Store.
func (s *redisStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Write implements Store.
func (s *redisStore) Write(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}

// key constructs the Redis key for a record payload.
func (s *redisStore) key(key string) string {
	return s.prefix + key
}

// Compile-time checks that the drivers implement Store
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*redisStore)(nil)
)
