package cache

import (
	"context"
	"sync"
)

// InMemoryEquivalenceCache is a process-local cache of source-code to
// canonical-SKU mappings. Mappings never change once written (first writer
// wins), so no eviction or TTL is needed within a run.
type InMemoryEquivalenceCache struct {
	mu   sync.RWMutex
	skus map[string]string
}

// NewInMemoryEquivalenceCache creates a new InMemoryEquivalenceCache
func NewInMemoryEquivalenceCache() *InMemoryEquivalenceCache {
	return &InMemoryEquivalenceCache{
		skus: make(map[string]string),
	}
}

// Get returns the cached canonical SKU for a source code
func (c *InMemoryEquivalenceCache) Get(_ context.Context, code string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sku, ok := c.skus[code]
	return sku, ok
}

// Set records a source-code to canonical-SKU mapping
func (c *InMemoryEquivalenceCache) Set(_ context.Context, code, canonicalSKU string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.skus[code] = canonicalSKU
}

// Len returns the number of cached mappings
func (c *InMemoryEquivalenceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.skus)
}
