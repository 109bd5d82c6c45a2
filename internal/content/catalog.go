package content

import (
	"sort"
	"sync"

	"pairwise/internal/domain"
)

// Catalog is the process-wide content pool. Every change bumps Version so
// dispensers can tell their snapshots are stale.
type Catalog struct {
	mu      sync.RWMutex
	items   []domain.ContentItem
	version uint64
	nextID  int64
}

func NewCatalog(items ...domain.ContentItem) *Catalog {
	c := &Catalog{}
	c.Replace(items)
	return c
}

// Add stores item, assigning the next free id when item.ID is zero.
func (c *Catalog) Add(item domain.ContentItem) domain.ContentItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	if item.ID == 0 {
		item.ID = c.nextID
	}
	for i, existing := range c.items {
		if existing.ID == item.ID {
			c.items[i] = item
			c.version++
			return item
		}
	}
	c.items = append(c.items, item)
	c.sortLocked()
	c.version++
	return item
}

// Replace swaps the whole pool.
func (c *Catalog) Replace(items []domain.ContentItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make([]domain.ContentItem, 0, len(items))
	c.nextID = 1
	for _, it := range items {
		if it.ID == 0 {
			continue
		}
		c.items = append(c.items, it)
	}
	c.sortLocked()
	for _, it := range items {
		if it.ID != 0 {
			continue
		}
		it.ID = c.nextID
		c.items = append(c.items, it)
		c.nextID++
	}
	c.version++
}

func (c *Catalog) sortLocked() {
	sort.Slice(c.items, func(i, j int) bool { return c.items[i].ID < c.items[j].ID })
	if n := len(c.items); n > 0 && c.items[n-1].ID >= c.nextID {
		c.nextID = c.items[n-1].ID + 1
	}
}

// Items returns a copy of the pool ordered by ascending id.
func (c *Catalog) Items() []domain.ContentItem {
	items, _ := c.Snapshot()
	return items
}

// Snapshot returns a copy of the pool together with its version.
func (c *Catalog) Snapshot() ([]domain.ContentItem, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.ContentItem, len(c.items))
	copy(out, c.items)
	return out, c.version
}

func (c *Catalog) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
