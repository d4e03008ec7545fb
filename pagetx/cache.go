// Package pagetx implements the page read and write transactions (C6,
// C7): the process-shared page cache, versioned snapshot reads, and
// the copy-on-write commit protocol that publishes a new uber page.
package pagetx

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"sirixgo/page"
)

// PageCache is the process-wide cache shared by every read transaction
// of a resource, keyed by a page's physical offset (§4.6: "a
// process-shared page cache fronts the PageReader so concurrently open
// read transactions at different revisions still share disk pages
// they have in common"). It wraps golang-lru's fixed-capacity LRU,
// the same "bounded cache in front of slow storage" shape FiloDB's own
// buffer pool follows in filodb_storage.go, generalized from raw byte
// pages to this engine's typed page.Page values.
type PageCache struct {
	cache *lru.Cache[uint64, page.Page]
}

// NewPageCache builds a page cache holding up to size pages.
func NewPageCache(size int) (*PageCache, error) {
	c, err := lru.New[uint64, page.Page](size)
	if err != nil {
		return nil, err
	}
	return &PageCache{cache: c}, nil
}

func (c *PageCache) get(key uint64) (page.Page, bool) {
	return c.cache.Get(key)
}

func (c *PageCache) put(key uint64, p page.Page) {
	c.cache.Add(key, p)
}

// Purge drops every cached page — used when a resource is closed.
func (c *PageCache) Purge() {
	c.cache.Purge()
}
