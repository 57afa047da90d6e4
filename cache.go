package pubstatic

import (
	"sync"
	"time"
)

// ItemCache keeps parsed source files between rebuilds. An entry is reused
// while the file's modification time and size are unchanged and the entry
// is younger than the TTL.
type ItemCache struct {
	mu      sync.RWMutex
	entries map[string]cachedSource
	ttl     time.Duration
}

type cachedSource struct {
	modTime time.Time
	size    int64
	data    Metadata
	body    []byte
	fetched time.Time
}

// NewItemCache creates an ItemCache. A zero ttl never expires entries.
func NewItemCache(ttl time.Duration) *ItemCache {
	return &ItemCache{entries: make(map[string]cachedSource), ttl: ttl}
}

func (c *ItemCache) valid(e cachedSource, modTime time.Time, size int64) bool {
	if !e.modTime.Equal(modTime) || e.size != size {
		return false
	}
	return c.ttl == 0 || time.Since(e.fetched) < c.ttl
}

// Get returns a copy of the cached frontmatter and body for path.
func (c *ItemCache) Get(path string, modTime time.Time, size int64) (Metadata, []byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[path]
	if !ok || !c.valid(e, modTime, size) {
		return nil, nil, false
	}
	return e.data.Clone(), e.body, true
}

// Put stores parsed frontmatter and body for path.
func (c *ItemCache) Put(path string, modTime time.Time, size int64, data Metadata, body []byte) {
	c.mu.Lock()
	c.entries[path] = cachedSource{
		modTime: modTime,
		size:    size,
		data:    data.Clone(),
		body:    body,
		fetched: time.Now(),
	}
	c.mu.Unlock()
}

// Retain drops every entry whose path is not in keep.
func (c *ItemCache) Retain(keep map[string]struct{}) {
	c.mu.Lock()
	for p := range c.entries {
		if _, ok := keep[p]; !ok {
			delete(c.entries, p)
		}
	}
	c.mu.Unlock()
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (c *ItemCache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cachedSource)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *ItemCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
