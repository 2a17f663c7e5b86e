package store

import (
	"context"
	"sync"
	"time"

	"github.com/amase-cc/apremind/types"
)

// CacheTTL is how long a cached activity is served without consulting
// the backing store.
const CacheTTL = 5 * time.Minute

// Getter is the read side of the Store as seen by the cache.
type Getter interface {
	Get(ctx context.Context, uri string) (types.ApObject, error)
}

type cacheEntry struct {
	activity types.ApObject
	fetched  time.Time
}

// Cache is a read-through cache in front of the activity store. Stale
// entries are skipped, not purged: the backing store stays
// authoritative and values are immutable per URI, so a superseding
// fetch always returns the same logical value.
type Cache struct {
	backend Getter
	ttl     time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache returns a cache over backend with the default TTL.
func NewCache(backend Getter) *Cache {
	return &Cache{
		backend: backend,
		ttl:     CacheTTL,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// GetOrFetch returns the activity under uri, serving from the cache
// while the entry is fresher than the TTL. Misses and stale hits read
// through to the backing store; not-found results are never cached, so
// a URI written later is still observed.
func (c *Cache) GetOrFetch(ctx context.Context, uri string) (types.ApObject, error) {
	_, span := tracer.Start(ctx, "Cache.GetOrFetch")
	defer span.End()

	c.mu.RLock()
	entry, ok := c.entries[uri]
	c.mu.RUnlock()
	if ok && c.now().Sub(entry.fetched) < c.ttl {
		return entry.activity, nil
	}

	activity, err := c.backend.Get(ctx, uri)
	if err != nil {
		return types.ApObject{}, err
	}

	c.mu.Lock()
	c.entries[uri] = cacheEntry{activity: activity, fetched: c.now()}
	c.mu.Unlock()

	return activity, nil
}
