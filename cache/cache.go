package cache

import (
	"container/list"
	"sync"
)

// DefaultMaxSize is used when a cache is created with a non-positive capacity.
const DefaultMaxSize = 100

// Stats tracks cumulative buffer-cache counters. The counters are purely
// observational: operation outcomes never depend on them.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Size      int    `json:"size"`
	MaxSize   int    `json:"maxSize"`
}

// PageCache simulates an LRU buffer cache over page ids. A page access is a
// hit when the page is resident, a miss when it has to be loaded, and may
// evict the least-recently-used page when the cache is at capacity.
type PageCache struct {
	mu      sync.RWMutex
	maxSize int
	pages   map[uint64]*list.Element
	lruList *list.List
	stats   Stats
}

// New creates a page cache with the given capacity.
func New(maxSize int) *PageCache {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &PageCache{
		maxSize: maxSize,
		pages:   make(map[uint64]*list.Element),
		lruList: list.New(),
	}
}

// Restore creates a page cache that continues from previously persisted
// counters. The resident set starts empty, so the first touch of every page
// is a miss again.
func Restore(maxSize int, stats Stats) *PageCache {
	c := New(maxSize)
	c.stats.Hits = stats.Hits
	c.stats.Misses = stats.Misses
	c.stats.Evictions = stats.Evictions
	return c
}

// Touch records an access to pageID. It returns whether the access was a hit
// and, when the access caused an eviction, the id of the evicted page.
func (c *PageCache) Touch(pageID uint64) (hit bool, evicted uint64, didEvict bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.pages[pageID]; ok {
		c.lruList.MoveToFront(elem)
		c.stats.Hits++
		return true, 0, false
	}

	c.stats.Misses++

	if c.lruList.Len() >= c.maxSize {
		back := c.lruList.Back()
		if back != nil {
			evicted = back.Value.(uint64)
			delete(c.pages, evicted)
			c.lruList.Remove(back)
			c.stats.Evictions++
			didEvict = true
		}
	}

	c.pages[pageID] = c.lruList.PushFront(pageID)
	return false, evicted, didEvict
}

// Drop removes a page from the resident set, used when a page is freed by a
// merge so its id can never produce a stale hit.
func (c *PageCache) Drop(pageID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.pages[pageID]; ok {
		delete(c.pages, pageID)
		c.lruList.Remove(elem)
	}
}

// Contains reports whether the page is currently resident.
func (c *PageCache) Contains(pageID uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.pages[pageID]
	return ok
}

// Stats returns a copy of the current counters.
func (c *PageCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.stats
	s.Size = c.lruList.Len()
	s.MaxSize = c.maxSize
	return s
}

// Clear empties the resident set while keeping the cumulative counters.
func (c *PageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pages = make(map[uint64]*list.Element)
	c.lruList = list.New()
}
