package expr

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the parse cache size used when none is configured.
const DefaultCacheSize = 256

// Cache is a bounded LRU of parsed expressions keyed by source text. Parsed
// trees are immutable, so a cached tree may be shared by any number of
// selections. A Cache is safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, Expression]
}

// NewCache creates a cache holding up to size expressions.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, Expression](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// Parse returns the cached tree for text, parsing and caching it on a miss.
// Failed parses are not cached.
func (c *Cache) Parse(text string) (Expression, error) {
	if e, ok := c.entries.Get(text); ok {
		return e, nil
	}
	e, err := Parse(text)
	if err != nil {
		return nil, err
	}
	c.entries.Add(text, e)
	return e, nil
}

// Len returns the number of cached expressions.
func (c *Cache) Len() int { return c.entries.Len() }

// Purge empties the cache.
func (c *Cache) Purge() { c.entries.Purge() }
