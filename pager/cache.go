package pager

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/vecscan/internal/resource"
	"github.com/hupe1980/vecscan/model"
)

// cacheEntry is one cached page image with its pin count. Pinned entries
// are never evicted.
type cacheEntry struct {
	id   model.PageID
	data []byte
	pins int
}

// pageCache is a pin-aware LRU over decoded page images. Capacity is
// byte-based; admissions beyond the evictable budget are refused rather
// than queued, so a burst of pins can never grow the cache unbounded.
type pageCache struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[model.PageID]*list.Element
	evictList *list.List
	rc        *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

func newPageCache(capacity int64, rc *resource.Controller) *pageCache {
	return &pageCache{
		capacity:  capacity,
		items:     make(map[model.PageID]*list.Element),
		evictList: list.New(),
		rc:        rc,
	}
}

// acquire pins a cached page, reporting a miss when absent.
func (c *pageCache) acquire(id model.PageID) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		ent := el.Value.(*cacheEntry)
		ent.pins++
		c.evictList.MoveToFront(el)
		c.hits.Add(1)
		return ent.data, true
	}

	c.misses.Add(1)
	return nil, false
}

// admit offers a freshly read page to the cache with one pin taken. It
// returns the canonical page bytes and whether the pin is cache-backed;
// when admission is refused the caller keeps serving the passed slice
// unpinned.
func (c *pageCache) admit(id model.PageID, data []byte) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// A concurrent reader may have admitted the page already.
	if el, ok := c.items[id]; ok {
		ent := el.Value.(*cacheEntry)
		ent.pins++
		c.evictList.MoveToFront(el)
		return ent.data, true
	}

	n := int64(len(data))
	if n > c.capacity {
		return data, false
	}

	for c.size+n > c.capacity {
		if !c.evictOne() {
			return data, false
		}
	}

	for !c.rc.TryAcquireMemory(n) {
		if !c.evictOne() {
			return data, false
		}
	}

	c.items[id] = c.evictList.PushFront(&cacheEntry{id: id, data: data, pins: 1})
	c.size += n

	return data, true
}

// release drops one pin from a cached page.
func (c *pageCache) release(id model.PageID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		ent := el.Value.(*cacheEntry)
		if ent.pins > 0 {
			ent.pins--
		}
	}
}

// evictOne removes the coldest unpinned page. Caller holds the lock.
func (c *pageCache) evictOne() bool {
	for el := c.evictList.Back(); el != nil; el = el.Prev() {
		ent := el.Value.(*cacheEntry)
		if ent.pins > 0 {
			continue
		}

		c.evictList.Remove(el)
		delete(c.items, ent.id)
		c.size -= int64(len(ent.data))
		c.rc.ReleaseMemory(int64(len(ent.data)))
		return true
	}

	return false
}

func (c *pageCache) stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *pageCache) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, el := range c.items {
		ent := el.Value.(*cacheEntry)
		c.rc.ReleaseMemory(int64(len(ent.data)))
	}

	c.items = make(map[model.PageID]*list.Element)
	c.evictList.Init()
	c.size = 0
}
