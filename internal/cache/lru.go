package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/hupe1980/pointstore/internal/resource"
	"github.com/hupe1980/pointstore/model"
)

// LRU is a byte-budgeted least-recently-used chunk cache.
type LRU struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[Key]*list.Element
	evictList *list.List
	rc        *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type entry struct {
	key    Key
	points []model.Point
}

// NewLRU creates a cache holding at most capacity bytes. If rc is not nil,
// every entry is also reserved against its memory budget.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity:  capacity,
		items:     make(map[Key]*list.Element),
		evictList: list.New(),
		rc:        rc,
	}
}

func (c *LRU) Get(key Key) ([]model.Point, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(el)
		return el.Value.(*entry).points, true
	}
	c.misses.Add(1)
	return nil, false
}

func (c *LRU) Set(key Key, points []model.Point) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cost := Cost(points)
	if el, ok := c.items[key]; ok {
		// Chunks are immutable, a second decode is identical.
		c.evictList.MoveToFront(el)
		return
	}
	if cost > c.capacity {
		return
	}
	for c.size+cost > c.capacity {
		el := c.evictList.Back()
		if el == nil {
			break
		}
		c.removeElement(el)
	}
	// A full global budget means the entry is simply not cached.
	if !c.rc.TryAcquireMemory(cost) {
		return
	}

	c.items[key] = c.evictList.PushFront(&entry{key: key, points: points})
	c.size += cost
}

func (c *LRU) Invalidate(dataset uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var drop []*list.Element
	for key, el := range c.items {
		if key.Dataset == dataset {
			drop = append(drop, el)
		}
	}
	for _, el := range drop {
		c.removeElement(el)
	}
}

func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the number of bytes held.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Len returns the number of entries.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU) removeElement(el *list.Element) {
	c.evictList.Remove(el)
	e := el.Value.(*entry)
	delete(c.items, e.key)
	cost := Cost(e.points)
	c.size -= cost
	c.rc.ReleaseMemory(cost)
}
