package core

import "sync"

// ResultCache holds processed buildup results keyed by buildup id. The
// processor owns the sole writing path; readers always observe complete,
// post-write snapshots. The cache is an explicit dependency passed to the
// service constructor rather than ambient shared state.
type ResultCache struct {
	mu      sync.RWMutex
	results map[int64]ProcessedBuildup
}

// NewResultCache constructs an empty cache.
func NewResultCache() *ResultCache {
	return &ResultCache{results: make(map[int64]ProcessedBuildup)}
}

// Get returns the cached result for a buildup id, if any.
func (c *ResultCache) Get(id int64) (ProcessedBuildup, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.results[id]
	return result, ok
}

// Set stores a result, replacing any previous entry for the id.
func (c *ResultCache) Set(result ProcessedBuildup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results[result.BuildupID] = result
}

// Invalidate removes one cached result. Removing an absent id is a no-op.
func (c *ResultCache) Invalidate(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.results, id)
}

// InvalidateAll clears the cache; every buildup becomes stale.
func (c *ResultCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.results = make(map[int64]ProcessedBuildup)
}

// Len returns the number of cached results.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

// Snapshot returns a copy of the cache contents.
func (c *ResultCache) Snapshot() map[int64]ProcessedBuildup {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[int64]ProcessedBuildup, len(c.results))
	for id, result := range c.results {
		out[id] = result
	}
	return out
}
