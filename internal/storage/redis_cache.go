package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisResponseCache caches serialized responses in Redis with a fixed TTL.
type RedisResponseCache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisResponseCache creates a cache whose keys live under namespace.
func NewRedisResponseCache(client *redis.Client, namespace string, ttl time.Duration) *RedisResponseCache {
	return &RedisResponseCache{client: client, namespace: namespace, ttl: ttl}
}

func (c *RedisResponseCache) key(k string) string {
	if c.namespace == "" {
		return k
	}
	return c.namespace + ":" + k
}

func (c *RedisResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (c *RedisResponseCache) Set(ctx context.Context, key string, value []byte) error {
	if err := c.client.Set(ctx, c.key(key), value, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeletePrefix removes every key starting with prefix.
func (c *RedisResponseCache) DeletePrefix(ctx context.Context, prefix string) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", prefix, err)
	}
	return nil
}

// NoopResponseCache is used when Redis is not configured.
type NoopResponseCache struct{}

func (NoopResponseCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopResponseCache) Set(ctx context.Context, key string, value []byte) error { return nil }

func (NoopResponseCache) DeletePrefix(ctx context.Context, prefix string) error { return nil }
