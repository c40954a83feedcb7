package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uacr-monitor/internal/domain"
)

// RedisCache shares evaluations between server instances.
type RedisCache struct {
	redis      *redis.Client
	defaultTTL time.Duration
}

// NewRedisCache connects to the Redis server named by cfg.RedisURL.
func NewRedisCache(ctx context.Context, cfg domain.CacheConfig) (*RedisCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.PoolTimeout > 0 {
		opts.PoolTimeout = cfg.PoolTimeout
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.DefaultTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisCache{redis: client, defaultTTL: ttl}, nil
}

// Get returns the entry for key. Corrupted entries are removed and reported
// as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (*Entry, bool, error) {
	val, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get evaluation cache: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(val, &entry); err != nil {
		c.redis.Del(ctx, key)
		return nil, false, nil
	}
	return &entry, true, nil
}

// Set stores entry under key for the default TTL.
func (c *RedisCache) Set(ctx context.Context, key string, entry *Entry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation cache entry: %w", err)
	}
	return c.redis.Set(ctx, key, data, c.defaultTTL).Err()
}

// Len counts cached evaluations.
func (c *RedisCache) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := c.redis.Scan(ctx, cursor, keyPrefix+"*", 500).Result()
		if err != nil {
			return 0, fmt.Errorf("failed to scan evaluation cache: %w", err)
		}
		count += len(keys)
		if next == 0 {
			return count, nil
		}
		cursor = next
	}
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.redis.Close()
}
