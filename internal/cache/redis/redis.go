// Package redis implements the cache capability on top of a Redis server.
// Atomicity of Increment and of Set-with-TTL is delegated to Redis itself,
// so the core never needs in-process locking around shared counters.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zherdev/url-shortener/internal/cache"
	"github.com/zherdev/url-shortener/internal/config"
)

// scanCount is the page size hint for SCAN. Cursor-based iteration keeps the
// server responsive under large key spaces.
const scanCount = 100

type Cache struct {
	client *redis.Client
}

// New connects to Redis and verifies the connection with a ping.
func New(ctx context.Context, cfg config.Redis) (*Cache, error) {
	const op = "cache.redis.New"

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: failed to connect to redis: %w", op, err)
	}

	return &Cache{client: client}, nil
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	const op = "cache.redis.Cache.Get"

	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%s: %w", op, cache.ErrCacheMiss)
		}

		return nil, fmt.Errorf("%s: failed to get key: %w", op, err)
	}

	return val, nil
}

// Set stores a value under key. A non-positive ttl stores the value without
// expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const op = "cache.redis.Cache.Set"

	if ttl < 0 {
		ttl = 0
	}

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%s: failed to set key: %w", op, err)
	}

	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	const op = "cache.redis.Cache.Delete"

	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%s: failed to delete key: %w", op, err)
	}

	return nil
}

// Increment atomically adds one to the counter stored at key, creating it at
// zero if absent, and returns the new value.
func (c *Cache) Increment(ctx context.Context, key string) (int64, error) {
	const op = "cache.redis.Cache.Increment"

	val, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: failed to increment key: %w", op, err)
	}

	return val, nil
}

// ScanKeys returns every key matching pattern, iterating the cursor until the
// server reports completion. Keys created behind the cursor are picked up by
// a later scan, not this one.
func (c *Cache) ScanKeys(ctx context.Context, pattern string) ([]string, error) {
	const op = "cache.redis.Cache.ScanKeys"

	var (
		keys   []string
		cursor uint64
	)

	for {
		page, next, err := c.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return nil, fmt.Errorf("%s: failed to scan keys: %w", op, err)
		}

		keys = append(keys, page...)

		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

// MGet fetches several keys in one round trip. The result holds one entry per
// requested key, nil for keys that are absent.
func (c *Cache) MGet(ctx context.Context, keys []string) ([][]byte, error) {
	const op = "cache.redis.Cache.MGet"

	if len(keys) == 0 {
		return nil, nil
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to multi-get keys: %w", op, err)
	}

	out := make([][]byte, len(vals))
	for i, val := range vals {
		if s, ok := val.(string); ok {
			out[i] = []byte(s)
		}
	}

	return out, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}
