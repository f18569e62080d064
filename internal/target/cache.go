package target

import (
	"os"
	"sort"
	"sync"
	"time"
)

// DirCacheTTL is how long a directory listing stays valid. Staleness up
// to the TTL is accepted in exchange for read throughput.
const DirCacheTTL = 60 * time.Second

type dirEntry struct {
	names   []string
	fetched time.Time
}

// DirCache is a TTL cache of directory listings keyed by absolute path.
type DirCache struct {
	mu  sync.RWMutex
	ttl time.Duration
	dir map[string]dirEntry

	now func() time.Time // test hook
}

// NewDirCache creates a directory cache. A zero ttl uses DirCacheTTL.
func NewDirCache(ttl time.Duration) *DirCache {
	if ttl <= 0 {
		ttl = DirCacheTTL
	}
	return &DirCache{
		ttl: ttl,
		dir: make(map[string]dirEntry),
		now: time.Now,
	}
}

// List returns the sorted entry names of a directory, re-reading from
// disk once the cached listing has expired.
func (c *DirCache) List(path string) ([]string, error) {
	c.mu.RLock()
	e, ok := c.dir[path]
	c.mu.RUnlock()
	if ok && c.now().Sub(e.fetched) < c.ttl {
		return e.names, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, de := range entries {
		names = append(names, de.Name())
	}
	sort.Strings(names)

	c.mu.Lock()
	c.dir[path] = dirEntry{names: names, fetched: c.now()}
	c.mu.Unlock()
	return names, nil
}

// Invalidate drops the cached listing for a directory.
func (c *DirCache) Invalidate(path string) {
	c.mu.Lock()
	delete(c.dir, path)
	c.mu.Unlock()
}

// Clear drops all cached listings.
func (c *DirCache) Clear() {
	c.mu.Lock()
	c.dir = make(map[string]dirEntry)
	c.mu.Unlock()
}

// BufferCache is a bounded FIFO cache for decoded file contents. Large
// export files are expensive to decode, but a long-running process must
// not hold every file it ever touched, so the oldest entry is evicted
// once the capacity ceiling is reached.
type BufferCache[T any] struct {
	mu    sync.RWMutex
	cache map[string]T
	order []string
	max   int
}

// NewBufferCache creates a FIFO cache holding at most max entries.
func NewBufferCache[T any](max int) *BufferCache[T] {
	return &BufferCache[T]{
		cache: make(map[string]T),
		order: make([]string, 0, max),
		max:   max,
	}
}

// Get retrieves a decoded file from the cache.
func (c *BufferCache[T]) Get(path string) (T, bool) {
	c.mu.RLock()
	v, ok := c.cache[path]
	c.mu.RUnlock()
	return v, ok
}

// Put adds a decoded file, evicting the oldest entry if at capacity.
func (c *BufferCache[T]) Put(path string, v T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[path]; exists {
		c.cache[path] = v
		return
	}
	if c.max == 0 {
		return
	}
	// A dropped key may still sit in the queue; remove it so the path
	// is never queued twice, which would let eviction pop the stale
	// occurrence and delete the fresh entry.
	for i, p := range c.order {
		if p == path {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	for len(c.cache) >= c.max && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.cache, oldest)
	}
	c.cache[path] = v
	c.order = append(c.order, path)
}

// Drop removes one path from the cache. The stale queue entry is
// cleaned up by the next Put of the same path; eviction of an
// already-dropped key is a no-op.
func (c *BufferCache[T]) Drop(path string) {
	c.mu.Lock()
	delete(c.cache, path)
	c.mu.Unlock()
}

// Clear removes all entries.
func (c *BufferCache[T]) Clear() {
	c.mu.Lock()
	c.cache = make(map[string]T)
	c.order = c.order[:0]
	c.mu.Unlock()
}

// Size returns the number of cached files.
func (c *BufferCache[T]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
