package coordination

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/creastat/records/internal/clock"
)

// StoreType represents the type of coordination store.
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeRedis  StoreType = "redis"
)

const (
	// Redis key prefix for lock entries
	defaultKeyPrefix  = "lock:"
	defaultMaxRetries = 16
)

// NewStore creates a new coordination Store based on the given type.
// Supports "memory" and "redis" driver types.
// For Redis, requires WithRedisClient option.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{
		keyPrefix:  defaultKeyPrefix,
		maxRetries: defaultMaxRetries,
	}

	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return &inMemoryStore{
			clock:   clock.Ensure(config.clock),
			entries: make(map[string]entry),
		}, nil

	case StoreTypeRedis:
		if config.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		if config.maxRetries <= 0 {
			config.maxRetries = defaultMaxRetries
		}
		return &redisStore{
			client:     config.redisClient,
			prefix:     config.keyPrefix,
			maxRetries: config.maxRetries,
		}, nil

	default:
		return nil, ErrInvalidStoreType
	}
}

type entry struct {
	value     string
	expiresAt time.Time
}

// inMemoryStore implements Store for a single process. Expired entries are
// treated as absent.
type inMemoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]entry
}

// CompareAndUpdate implements Store.
func (s *inMemoryStore) CompareAndUpdate(ctx context.Context, key string, update Updater, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		return "", false, ErrInvalidTTL
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	current, exists := s.entries[key]
	if exists && !now.Before(current.expiresAt) {
		delete(s.entries, key)
		current, exists = entry{}, false
	}

	next, write := update(current.value, exists)
	if !write {
		return current.value, exists, nil
	}

	s.entries[key] = entry{value: next, expiresAt: now.Add(ttl)}
	return next, true, nil
}

// Close implements Store.
func (s *inMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]entry)
	return nil
}

// redisStore implements Store using Redis WATCH/MULTI/EXEC.
type redisStore struct {
	client     redis.UniversalClient
	prefix     string
	maxRetries int
}

// CompareAndUpdate implements Store.
// A lost WATCH race is retried up to maxRetries times before giving up with
// ErrContention.
func (s *redisStore) CompareAndUpdate(ctx context.Context, key string, update Updater, ttl time.Duration) (string, bool, error) {
	if ttl <= 0 {
		return "", false, ErrInvalidTTL
	}
	redisKey := s.key(key)

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		var (
			value  string
			exists bool
		)
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			old, err := tx.Get(ctx, redisKey).Result()
			switch {
			case errors.Is(err, redis.Nil):
				old, exists = "", false
			case err != nil:
				return err
			default:
				exists = true
			}

			next, write := update(old, exists)
			if !write {
				value = old
				return nil
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, redisKey, next, ttl)
				return nil
			})
			if err != nil {
				return err
			}
			value, exists = next, true
			return nil
		}, redisKey)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return "", false, err
		}
		return value, exists, nil
	}
	return "", false, ErrContention
}

// Close implements Store.
func (s *redisStore) Close() error {
	return s.client.Close()
}

// key constructs the Redis key for a lock entry.
func (s *redisStore) key(key string) string {
	return s.prefix + key
}
