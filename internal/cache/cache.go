// Package cache is the Redis read-through cache every service puts in front
// of its store. Cache failures never fail a read; writers invalidate after
// their store commits.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultScanBatch = 100

// CacheError wraps a failed Redis command. Reads log it and fall through to
// the store.
type CacheError struct {
	Op  string
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

type Cache struct {
	client    *redis.Client
	logger    *slog.Logger
	scanBatch int64
}

func New(client *redis.Client, logger *slog.Logger, scanBatch int64) *Cache {
	if scanBatch <= 0 {
		scanBatch = DefaultScanBatch
	}
	return &Cache{
		client:    client,
		logger:    logger,
		scanBatch: scanBatch,
	}
}

// Get decodes the value at key into dest. Any failure is reported as a miss.
func (c *Cache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.client == nil {
		return false
	}

	val, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("cache read failed", "error", &CacheError{Op: "get", Key: key, Err: err})
		}
		return false
	}

	if err := json.Unmarshal(val, dest); err != nil {
		c.logger.Warn("cache entry undecodable", "error", &CacheError{Op: "decode", Key: key, Err: err})
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return &CacheError{Op: "encode", Key: key, Err: err}
	}
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return &CacheError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// Invalidate deletes the given keys. Missing keys are not an error.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return &CacheError{Op: "del", Key: keys[0], Err: err}
	}
	return nil
}

// InvalidateByPattern walks the keyspace with SCAN MATCH pattern in batches of
// scanBatch and deletes every batch it finds. It never uses KEYS.
func (c *Cache) InvalidateByPattern(ctx context.Context, pattern string) (int, error) {
	if c == nil || c.client == nil {
		return 0, nil
	}

	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, c.scanBatch).Result()
		if err != nil {
			return deleted, &CacheError{Op: "scan", Key: pattern, Err: err}
		}

		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return deleted, &CacheError{Op: "del", Key: pattern, Err: err}
			}
			deleted += int(n)
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Debug("cache invalidated by pattern", "pattern", pattern, "deleted", deleted)
	return deleted, nil
}

// ReadThrough serves key from the cache or loads it, caching the loaded value
// for ttl. Errors from load are returned as is and nothing is cached.
func ReadThrough[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(ctx context.Context) (T, error)) (T, error) {
	var cached T
	if c.Get(ctx, key, &cached) {
		return cached, nil
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}

	if err := c.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
	return value, nil
}
