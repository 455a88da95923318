package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Cache stages entries in memory in front of a Store. Bootstrap pulls
// existing entries in; Set stages writes that Flush persists in one Save.
// Reads never perform I/O. Safe for concurrent use.
type Cache struct {
	store   Store
	entries map[string][]byte
	dirty   map[string]bool
	mu      sync.RWMutex
}

func NewCache(store Store) *Cache {
	return &Cache{
		store:   store,
		entries: make(map[string][]byte),
		dirty:   make(map[string]bool),
	}
}

// Bootstrap loads every stored key that starts with one of prefixes, or every
// key when no prefix is given.
func (c *Cache) Bootstrap(ctx context.Context, prefixes ...string) error {
	keys, err := c.store.List(ctx)
	if err != nil {
		return fmt.Errorf("bootstrap index: %w", err)
	}

	var load []string
	for _, key := range keys {
		if len(prefixes) == 0 || slices.ContainsFunc(prefixes, func(p string) bool { return strings.HasPrefix(key, p) }) {
			load = append(load, key)
		}
	}
	if len(load) == 0 {
		return nil
	}

	loaded, err := c.store.Load(ctx, load...)
	if err != nil {
		return fmt.Errorf("bootstrap load: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range loaded {
		if !c.dirty[e.Key] {
			c.entries[e.Key] = e.Value
		}
	}
	return nil
}

func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	val, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(val), true
}

// Set stages an entry for the next Flush.
func (c *Cache) Set(entries ...Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range entries {
		c.entries[e.Key] = slices.Clone(e.Value)
		c.dirty[e.Key] = true
	}
}

// Keys returns the cached keys, sorted.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	keys := make([]string, 0, len(c.entries))
	for key := range c.entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// Entries returns cached entries whose key starts with prefix, sorted by key.
func (c *Cache) Entries(prefix string) []Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var entries []Entry
	for key, val := range c.entries {
		if strings.HasPrefix(key, prefix) {
			entries = append(entries, Entry{Key: key, Value: slices.Clone(val)})
		}
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Key, b.Key) })
	return entries
}

// Pending returns the number of staged entries not yet flushed.
func (c *Cache) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.dirty)
}

// Flush saves staged entries. On failure the entries stay staged.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.RLock()
	save := make([]Entry, 0, len(c.dirty))
	for key := range c.dirty {
		save = append(save, Entry{Key: key, Value: c.entries[key]})
	}
	c.mu.RUnlock()

	if len(save) == 0 {
		return nil
	}
	slices.SortFunc(save, func(a, b Entry) int { return strings.Compare(a.Key, b.Key) })

	if err := c.store.Save(ctx, save...); err != nil {
		return fmt.Errorf("flush: %w", err)
	}

	c.mu.Lock()
	for _, e := range save {
		delete(c.dirty, e.Key)
	}
	c.mu.Unlock()
	return nil
}
