package feed

import (
	"odinboard/internal/domain"
	"sync"
	"time"
)

type cacheItem struct {
	perf     *domain.CreatorPerformance
	version  uint64
	lastUsed int64 // unix nano
}

// Bounded reuse cache principal -> last-computed record. Invalidation is
// explicit, driven by "creator touched by a new token"; records are never
// patched, only replaced wholesale.
type CreatorCache struct {
	mu      sync.RWMutex
	max     int
	version uint64
	items   map[string]*cacheItem
}

func NewCreatorCache(max int) *CreatorCache {
	if max <= 0 {
		max = 512
	}
	return &CreatorCache{
		max:   max,
		items: make(map[string]*cacheItem, 64),
	}
}

func (c *CreatorCache) Get(principal string) (*domain.CreatorPerformance, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[principal]
	if !ok {
		return nil, false
	}

	it.lastUsed = time.Now().UnixNano()
	return it.perf, true
}

func (c *CreatorCache) Put(principal string, perf *domain.CreatorPerformance) {
	if perf == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.version++
	c.items[principal] = &cacheItem{
		perf:     perf,
		version:  c.version,
		lastUsed: time.Now().UnixNano(),
	}

	c.evictLocked()
}

func (c *CreatorCache) Invalidate(principal string) {
	c.mu.Lock()
	delete(c.items, principal)
	c.mu.Unlock()
}

// InvalidateSet drops every creator touched by new tokens this cycle
func (c *CreatorCache) InvalidateSet(touched map[string]struct{}) {
	if len(touched) == 0 {
		return
	}

	c.mu.Lock()
	for principal := range touched {
		delete(c.items, principal)
	}
	c.mu.Unlock()
}

// Purge clears everything; used by force-refresh
func (c *CreatorCache) Purge() {
	c.mu.Lock()
	c.items = make(map[string]*cacheItem, 64)
	c.mu.Unlock()
}

func (c *CreatorCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Export/Import move cache contents through the warm-start snapshot
func (c *CreatorCache) Export() map[string]domain.CreatorPerformance {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]domain.CreatorPerformance, len(c.items))
	for principal, it := range c.items {
		out[principal] = *it.perf
	}
	return out
}

func (c *CreatorCache) Import(records map[string]domain.CreatorPerformance) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now().UnixNano()
	for principal, perf := range records {
		cp := perf
		c.version++
		c.items[principal] = &cacheItem{
			perf:     &cp,
			version:  c.version,
			lastUsed: now,
		}
	}

	c.evictLocked()
}

// drop least recently used while over the bound; caller holds the lock
func (c *CreatorCache) evictLocked() {
	for len(c.items) > c.max {
		var (
			oldestKey string
			oldestTs  int64
		)
		for k, it := range c.items {
			if oldestKey == "" || it.lastUsed < oldestTs {
				oldestKey = k
				oldestTs = it.lastUsed
			}
		}
		delete(c.items, oldestKey)
	}
}
