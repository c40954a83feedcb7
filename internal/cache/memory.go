package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultMemorySize = 1000
	defaultTTL        = 24 * time.Hour
)

// MemoryCache is a size-bounded in-process cache with per-entry expiry.
// Entries are held encoded, so every hit decodes its own alert.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryCache creates a cache holding at most size entries for ttl each.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = defaultMemorySize
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

// Get returns the entry for key, if present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) (*Entry, bool, error) {
	data, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return &entry, true, nil
}

// Set stores entry under key, evicting the least recently used entry when full.
func (c *MemoryCache) Set(_ context.Context, key string, entry *Entry) error {
	if entry.CachedAt.IsZero() {
		entry.CachedAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal evaluation cache entry: %w", err)
	}
	c.lru.Add(key, data)
	return nil
}

// Len returns the number of live entries.
func (c *MemoryCache) Len(_ context.Context) (int, error) {
	return c.lru.Len(), nil
}

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.lru.Purge()
	return nil
}
