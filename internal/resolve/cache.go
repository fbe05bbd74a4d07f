package resolve

import (
	gocache "github.com/patrickmn/go-cache"

	"github.com/sydlexius/crosswalk/internal/entity"
)

// Cache is a process-local map from (source, source_id, entity_type) to a
// previously resolved mapping. It is populated lazily from the mapping
// store, never expires, and is invalidated only by explicit administrative
// action. Each worker process constructs its own; cross-worker consistency
// comes from the mapping store alone.
type Cache struct {
	c *gocache.Cache
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{c: gocache.New(gocache.NoExpiration, 0)}
}

func cacheKey(source, sourceID string, typ entity.Type) string {
	return source + "\x1f" + sourceID + "\x1f" + string(typ)
}

// Get returns the cached mapping for the key, or nil. Cached mappings are
// trusted as-is; callers must not mutate them.
func (c *Cache) Get(source, sourceID string, typ entity.Type) *Mapping {
	if v, ok := c.c.Get(cacheKey(source, sourceID, typ)); ok {
		return v.(*Mapping)
	}
	return nil
}

// Put stores a mapping under its own key.
func (c *Cache) Put(m *Mapping) {
	c.c.Set(cacheKey(m.Source, m.SourceID, m.EntityType), m, gocache.NoExpiration)
}

// Invalidate drops one key, typically after a manual override.
func (c *Cache) Invalidate(source, sourceID string, typ entity.Type) {
	c.c.Delete(cacheKey(source, sourceID, typ))
}

// Flush drops everything, typically before an administrative
// re-resolution pass.
func (c *Cache) Flush() {
	c.c.Flush()
}

// Len reports the number of cached mappings.
func (c *Cache) Len() int {
	return c.c.ItemCount()
}
