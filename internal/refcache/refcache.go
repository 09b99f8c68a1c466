// Package refcache implements the reference-dump cache shared by
// concurrent service jobs: a path-keyed registry with interior-locked
// load-on-miss, grounded on request_handler.cpp's refdumps_ vector plus
// std::recursive_mutex, expressed here as a sync.Mutex-guarded map.
package refcache

import (
	"sync"

	"github.com/mbrengel/memscrimper/internal/errors"
	"github.com/mbrengel/memscrimper/internal/pagestore"
)

// Cache holds loaded reference dumps keyed by their path on disk.
type Cache struct {
	mu     sync.Mutex
	byPath map[string]*pagestore.Store
}

// New returns an empty cache.
func New() *Cache {
	return &Cache{byPath: make(map[string]*pagestore.Store)}
}

// Get returns the cached store for path if present; otherwise it loads
// the dump outside the lock, then re-checks under the lock before
// inserting — a concurrent Get for the same path that won the race
// simply has its own load discarded, matching request_handler.cpp's
// get_refdump double-check.
func (c *Cache) Get(path string, pageSize uint32) (*pagestore.Store, error) {
	if store, ok := c.lookup(path); ok {
		return store, nil
	}

	store, err := pagestore.Load(path, pageSize)
	if err != nil {
		return nil, errors.Wrap(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.byPath[path]; ok {
		return existing, nil
	}

	c.byPath[path] = store
	return store, nil
}

func (c *Cache) lookup(path string) (*pagestore.Store, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	store, ok := c.byPath[path]
	return store, ok
}

// Add loads path and unconditionally replaces whatever is cached for
// it, matching request_handler.cpp's add_reference "erase then
// push_back" behavior.
func (c *Cache) Add(path string, pageSize uint32) error {
	store, err := pagestore.Load(path, pageSize)
	if err != nil {
		return errors.Wrap(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.byPath[path] = store
	return nil
}

// Remove evicts path from the cache, if present.
func (c *Cache) Remove(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.byPath, path)
}

// Len reports the number of cached reference dumps.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.byPath)
}
