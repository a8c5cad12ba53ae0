package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sjperalta/fintera-lending/pkg/logger"
)

// RedisCache is a Cache backed by redis. Values are stored as JSON and keys
// are rendered with fmt under a namespace prefix.
type RedisCache[K comparable, V any] struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache creates a redis backed cache
func NewRedisCache[K comparable, V any](client *redis.Client, prefix string, ttl time.Duration) *RedisCache[K, V] {
	return &RedisCache[K, V]{client: client, prefix: prefix, ttl: ttl}
}

// NewRedisClient parses a redis URL and verifies the connection
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func (c *RedisCache[K, V]) key(k K) string {
	return fmt.Sprintf("%s:%v", c.prefix, k)
}

// Get returns the cached value. Redis errors are logged and treated as a miss.
func (c *RedisCache[K, V]) Get(ctx context.Context, key K) (V, bool) {
	var zero V
	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("redis cache get failed", "key", c.key(key), "error", err)
		}
		return zero, false
	}
	var value V
	if err := json.Unmarshal(raw, &value); err != nil {
		logger.Warn("redis cache decode failed", "key", c.key(key), "error", err)
		return zero, false
	}
	return value, true
}

// Set stores the value with the cache TTL
func (c *RedisCache[K, V]) Set(ctx context.Context, key K, value V) {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Warn("redis cache encode failed", "key", c.key(key), "error", err)
		return
	}
	if err := c.client.Set(ctx, c.key(key), raw, c.ttl).Err(); err != nil {
		logger.Warn("redis cache set failed", "key", c.key(key), "error", err)
	}
}

// Delete removes a key
func (c *RedisCache[K, V]) Delete(ctx context.Context, key K) {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		logger.Warn("redis cache delete failed", "key", c.key(key), "error", err)
	}
}
