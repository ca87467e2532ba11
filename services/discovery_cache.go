package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"roadtrip-server/models"
	"roadtrip-server/utils/geo"
)

// BucketDegrees is the cache grid; 0.01 degrees is about 1.1 km.
const BucketDegrees = 0.01

type CacheKey struct {
	Bucket   string
	Category string
	Strategy models.Strategy
}

func NewCacheKey(lat, lon float64, category string, strategy models.Strategy) CacheKey {
	return CacheKey{
		Bucket:   geo.Bucket(lat, lon, BucketDegrees),
		Category: models.NormalizeCategory(category),
		Strategy: strategy,
	}
}

func (k CacheKey) String() string {
	return fmt.Sprintf("%s|%s|%s", k.Bucket, k.Category, k.Strategy)
}

// DiscoveryCache memoizes discovery results for a short TTL. Entries are
// replaced on Put, never edited in place.
type DiscoveryCache interface {
	Get(ctx context.Context, key CacheKey) (models.DiscoveryResult, bool, error)
	Put(ctx context.Context, key CacheKey, result models.DiscoveryResult, ttl time.Duration) error
	Clear(ctx context.Context) error
}

type cacheEntry struct {
	result  models.DiscoveryResult
	expires time.Time
}

// MemoryCache is the in-process DiscoveryCache. Expired entries read as
// misses and are dropped when their key is next written.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key CacheKey) (models.DiscoveryResult, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.String()]
	if !ok || !c.now().Before(e.expires) {
		return models.DiscoveryResult{}, false, nil
	}
	return e.result.Clone(), true, nil
}

func (c *MemoryCache) Put(_ context.Context, key CacheKey, result models.DiscoveryResult, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = cacheEntry{
		result:  result.Clone(),
		expires: c.now().Add(ttl),
	}
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
	return nil
}

// Len counts stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
