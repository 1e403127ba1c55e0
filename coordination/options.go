package coordination

import (
	"github.com/redis/go-redis/v9"

	"github.com/creastat/records/internal/clock"
)

// StoreOption is a functional option for configuring a coordination store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient redis.UniversalClient
	keyPrefix   string
	clock       clock.Clock
	maxRetries  int
}

// WithRedisClient sets the Redis client for the Redis store.
func WithRedisClient(client redis.UniversalClient) StoreOption {
	return func(c *storeConfig) {
		c.redisClient = client
	}
}

// WithKeyPrefix namespaces every key written by the store.
func WithKeyPrefix(prefix string) StoreOption {
	return func(c *storeConfig) {
		c.keyPrefix = prefix
	}
}

// WithClock sets the clock driving expiry in the memory store.
func WithClock(clk clock.Clock) StoreOption {
	return func(c *storeConfig) {
		c.clock = clk
	}
}

// WithMaxRetries bounds how often the Redis store retries a lost WATCH race.
func WithMaxRetries(n int) StoreOption {
	return func(c *storeConfig) {
		c.maxRetries = n
	}
}
