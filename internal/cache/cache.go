// Package cache provides the read-through entity cache consulted by the
// key-batch and identity executors.
//
// Entries are never authoritative: every consumer re-validates a cached
// entity against its own filters before trusting it.
package cache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/disjunct/internal/ir"
)

// Cache is the cache capability the engine consumes.
type Cache interface {
	// Get returns a copy of the entity cached under id.
	Get(id string) (*ir.Entity, bool)

	// Put caches a copy of e under its key identifier and any extra
	// identifiers (such as unique markers).
	Put(e *ir.Entity, ids ...string)

	// Invalidate drops every identifier pointing at the given keys.
	Invalidate(keys ...*ir.Key)

	Len() int
}

// KeyID returns the identifier an entity is cached under by key.
func KeyID(k *ir.Key) string {
	return ir.KeyProperty + "|" + k.String()
}

// LRUCache is a bounded least-recently-used Cache.
//
// Thread-safety: safe for concurrent use.
type LRUCache struct {
	mu    sync.Mutex
	cache *lru.Cache[string, *ir.Entity]

	// byKey maps an entity's KeyID to every identifier caching it, so
	// invalidation by key also drops marker entries.
	byKey map[string]map[string]struct{}
}

// NewLRUCache returns a cache holding at most maxEntries identifiers.
func NewLRUCache(maxEntries int) (*LRUCache, error) {
	c := &LRUCache{byKey: make(map[string]map[string]struct{})}
	inner, err := lru.NewWithEvict[string, *ir.Entity](maxEntries, c.onEvicted)
	if err != nil {
		return nil, err
	}
	c.cache = inner
	return c, nil
}

// Get returns a copy of the entity cached under id.
func (c *LRUCache) Get(id string) (*ir.Entity, bool) {
	e, ok := c.cache.Get(id)
	if !ok {
		return nil, false
	}
	return e.Clone(), true
}

// Put caches a copy of e under KeyID(e.Key) and ids.
func (c *LRUCache) Put(e *ir.Entity, ids ...string) {
	if e == nil || e.Key == nil || e.Key.Incomplete() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := e.Clone()
	keyID := KeyID(e.Key)
	for _, id := range append([]string{keyID}, ids...) {
		if prev, ok := c.cache.Peek(id); ok && !prev.Key.Equal(e.Key) {
			c.forget(KeyID(prev.Key), id)
		}
		c.cache.Add(id, stored)
		refs, ok := c.byKey[keyID]
		if !ok {
			refs = make(map[string]struct{})
			c.byKey[keyID] = refs
		}
		refs[id] = struct{}{}
	}
}

// Invalidate drops every identifier pointing at the given keys.
func (c *LRUCache) Invalidate(keys ...*ir.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range keys {
		if k == nil {
			continue
		}
		for id := range c.byKey[KeyID(k)] {
			c.cache.Remove(id)
		}
		delete(c.byKey, KeyID(k))
	}
}

// Len returns the number of cached identifiers.
func (c *LRUCache) Len() int {
	return c.cache.Len()
}

// onEvicted runs inside Put and Invalidate, with c.mu held.
func (c *LRUCache) onEvicted(id string, e *ir.Entity) {
	c.forget(KeyID(e.Key), id)
}

func (c *LRUCache) forget(keyID, id string) {
	refs := c.byKey[keyID]
	delete(refs, id)
	if len(refs) == 0 {
		delete(c.byKey, keyID)
	}
}

// Disabled is a Cache that holds nothing.
type Disabled struct{}

func (Disabled) Get(string) (*ir.Entity, bool) { return nil, false }
func (Disabled) Put(*ir.Entity, ...string)     {}
func (Disabled) Invalidate(...*ir.Key)         {}
func (Disabled) Len() int                      { return 0 }

// Ensure implementations satisfy Cache.
var (
	_ Cache = (*LRUCache)(nil)
	_ Cache = Disabled{}
)
