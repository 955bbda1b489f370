package voices

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"kiosk/internal/domain"
)

const (
	catalogKey  = "catalog"
	loadTimeout = 30 * time.Second
)

// CachedCatalog keeps the last listing for a short TTL and collapses
// concurrent loads into one provider call.
type CachedCatalog struct {
	source Source
	cache  *gocache.Cache
	group  singleflight.Group
}

func NewCachedCatalog(source Source, ttl time.Duration) *CachedCatalog {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedCatalog{
		source: source,
		cache:  gocache.New(ttl, 2*ttl),
	}
}

// ListVoices returns the cached catalog, loading it when it expired.
func (c *CachedCatalog) ListVoices(ctx context.Context) (domain.Catalog, error) {
	if v, ok := c.cache.Get(catalogKey); ok {
		return v.(domain.Catalog), nil
	}
	return c.load(ctx)
}

// Refresh bypasses the cache and stores the fresh listing.
func (c *CachedCatalog) Refresh(ctx context.Context) (domain.Catalog, error) {
	c.cache.Delete(catalogKey)
	return c.load(ctx)
}

func (c *CachedCatalog) load(ctx context.Context) (domain.Catalog, error) {
	// The shared load outlives any single caller; each caller only stops
	// waiting when its own context ends.
	ch := c.group.DoChan(catalogKey, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		cat, err := c.source.ListVoices(loadCtx)
		if err != nil {
			return nil, err
		}
		c.cache.SetDefault(catalogKey, cat)
		return cat, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Catalog{}, res.Err
		}
		return res.Val.(domain.Catalog), nil
	case <-ctx.Done():
		return domain.Catalog{}, ctx.Err()
	}
}
