// ABOUTME: Redis implementation of the cache backend capability.
// ABOUTME: One shared client, safe for concurrent key-scoped operations.

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores cache entries in a Redis server.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to the server named by a redis:// URL.
func NewRedisBackend(url string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &RedisBackend{client: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity to the server.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) (string, error) {
	return b.client.Get(ctx, key).Result()
}

func (b *RedisBackend) Set(ctx context.Context, key, value string) error {
	return b.client.Set(ctx, key, value, 0).Err()
}

func (b *RedisBackend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return b.client.Expire(ctx, key, ttl).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
