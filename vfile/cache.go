package vfile

import (
	"sync"

	"github.com/aqualid/aqlbuild/entity"
)

// readCache is an in-memory-only, read-through cache in front of the bolt
// database: once an entity has been read or written in this process, later
// Find calls for the same key skip the bolt transaction entirely.
// GetValues does not consult the cache and always reads from bolt.
//
// Grounded on the teacher's pkg/blobinfocache in-memory cache
// (github.com/containers/image/v5/pkg/blobinfocache), which keeps the
// identical shape - a mutex-guarded map, no eviction, process lifetime only
// - for caching "is this blob already known" facts. Here the cached fact is
// "what entity record is stored under this key".
type readCache struct {
	mu      sync.RWMutex
	entries map[string]entity.Entity
}

func newReadCache() *readCache {
	return &readCache{entries: map[string]entity.Entity{}}
}

func (c *readCache) get(key Key) (entity.Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key.String()]
	return e, ok
}

func (c *readCache) put(key Key, e entity.Entity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = e
}

func (c *readCache) delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
}
