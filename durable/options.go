package durable

import "github.com/redis/go-redis/v9"

// StoreOption is a functional option for configuring a durable store.
type StoreOption func(*storeConfig)

type storeConfig struct {
	redisClient redis.UniversalClient
	keyPrefix   string
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
