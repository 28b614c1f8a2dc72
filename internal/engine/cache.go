package engine

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/zeebo/xxh3"

	"github.com/deerbay/olympics-dashboard/internal/models"
)

type cachedTable struct {
	key   string
	table *models.Table
}

// resultCache memoises query results by an xxh3 hash of the view name and
// the canonical filter key. Entries keep the full key so a hash collision
// reads as a miss.
type resultCache struct {
	ttl   time.Duration
	cache *ttlcache.Cache[uint64, cachedTable]
}

// newResultCache returns nil when capacity is 0; a nil cache never hits.
func newResultCache(ttl time.Duration, capacity int) *resultCache {
	if capacity <= 0 {
		return nil
	}
	return &resultCache{
		ttl: ttl,
		cache: ttlcache.New(
			ttlcache.WithTTL[uint64, cachedTable](ttl),
			ttlcache.WithCapacity[uint64, cachedTable](uint64(capacity)),
		),
	}
}

func (c *resultCache) get(key string) *models.Table {
	if c == nil {
		return nil
	}
	item := c.cache.Get(xxh3.HashString(key))
	if item == nil || item.Value().key != key {
		return nil
	}
	return item.Value().table
}

func (c *resultCache) set(key string, t *models.Table) {
	if c == nil {
		return
	}
	c.cache.Set(xxh3.HashString(key), cachedTable{key: key, table: t}, c.ttl)
}

func (c *resultCache) len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}
