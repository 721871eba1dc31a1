package cache

import "sync"

// ModuleCache memoizes resolved module identities. Module identity is
// immutable for the lifetime of a process, so there is no change watching;
// the only way to drop entries is an explicit Clear, intended for test
// isolation.
type ModuleCache struct {
	mu      sync.Mutex
	entries map[string]interface{}
	hits    uint64
	misses  uint64
}

// NewModuleCache creates an empty module cache.
func NewModuleCache() *ModuleCache {
	return &ModuleCache{
		entries: make(map[string]interface{}),
	}
}

// Resolve returns the cached value for key, calling resolve to produce it on
// first use. Resolution errors are not cached.
func (c *ModuleCache) Resolve(key string, resolve func(key string) (interface{}, error)) (interface{}, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if value, ok := c.entries[key]; ok {
		c.hits++
		return value, nil
	}

	c.misses++
	value, err := resolve(key)
	if err != nil {
		return nil, err
	}
	c.entries[key] = value
	return value, nil
}

// Clear drops all entries.
func (c *ModuleCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]interface{})
}

// Len returns the number of cached entries.
func (c *ModuleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of the cache counters.
func (c *ModuleCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:   c.hits,
		Misses: c.misses,
		Loads:  c.misses,
	}
}
