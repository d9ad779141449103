package stickers

import (
	"github.com/coocood/freecache"
)

const (
	listCacheSize      = 10 * 1024 * 1024
	listCacheTTLSecs   = 10
	listCacheEntryName = "stickers-all"
)

var listCacheKey = []byte(listCacheEntryName)

// ListCache keeps the rendered sticker list JSON hot for a few seconds,
// the board is read far more often than it is written to.
type ListCache struct {
	cache *freecache.Cache
}

func NewListCache() *ListCache {
	return &ListCache{
		cache: freecache.NewCache(listCacheSize),
	}
}

func (c *ListCache) Get() ([]byte, bool) {
	cached, err := c.cache.Get(listCacheKey)
	if err != nil {
		return nil, false
	}
	return cached, true
}

func (c *ListCache) Set(listJson []byte) {
	// a set failure only means the next read hits the repo again
	_ = c.cache.Set(listCacheKey, listJson, listCacheTTLSecs)
}

func (c *ListCache) Invalidate() {
	c.cache.Del(listCacheKey)
}
