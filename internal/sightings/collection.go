package sightings

import (
	"slices"
	"sync"
)

// Collection is the in-memory list of sightings, newest first. Safe for
// concurrent use.
type Collection struct {
	mu    sync.RWMutex
	items []Sighting
}

// NewCollection returns a collection holding a copy of initial.
func NewCollection(initial ...Sighting) *Collection {
	return &Collection{items: slices.Clone(initial)}
}

// Prepend adds s to the front.
func (c *Collection) Prepend(s Sighting) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = slices.Insert(c.items, 0, s)
}

// Replace swaps the sighting with the given id for s. It reports whether a
// match was found.
func (c *Collection) Replace(id string, s Sighting) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.items[i] = s
	return true
}

// Remove deletes the sighting with the given id.
func (c *Collection) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return false
	}
	c.items = slices.Delete(c.items, i, i+1)
	return true
}

// Reset replaces the whole collection.
func (c *Collection) Reset(items []Sighting) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = slices.Clone(items)
}

// Snapshot returns a copy of the current items.
func (c *Collection) Snapshot() []Sighting {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.items)
}

// Len returns the number of items.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Collection) indexLocked(id string) int {
	return slices.IndexFunc(c.items, func(s Sighting) bool { return s.ID == id })
}
