package places

import (
	"context"
	"fmt"
	"time"

	"github.com/couchcryptid/poolpocket-venues/internal/domain"
	"github.com/couchcryptid/poolpocket-venues/internal/observability"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedSearcher wraps a PlacesSearcher with an in-memory LRU of pages. TTL
// keeps cached first pages from handing out pagination tokens the provider
// has already expired.
type CachedSearcher struct {
	inner   domain.PlacesSearcher
	cache   *expirable.LRU[string, domain.Page]
	metrics *observability.Metrics
}

// NewCachedSearcher creates a cache decorator around a searcher.
func NewCachedSearcher(inner domain.PlacesSearcher, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedSearcher {
	return &CachedSearcher{
		inner:   inner,
		cache:   expirable.NewLRU[string, domain.Page](maxEntries, nil, ttl),
		metrics: metrics,
	}
}

// SearchPage implements domain.PlacesSearcher.
func (c *CachedSearcher) SearchPage(ctx context.Context, q domain.PageQuery) (domain.Page, error) {
	key := cacheKey(q)
	if page, ok := c.cache.Get(key); ok {
		c.metrics.PlacesCache.WithLabelValues("hit").Inc()
		return page, nil
	}
	c.metrics.PlacesCache.WithLabelValues("miss").Inc()

	page, err := c.inner.SearchPage(ctx, q)
	if err != nil {
		return page, err
	}
	// Only cache non-empty pages so transient empty answers can be retried.
	if len(page.Venues) > 0 || page.NextPageToken != "" {
		c.cache.Add(key, page)
	}
	return page, nil
}

// cacheKey rounds the center to ~1 m so jittery fixes share a page.
func cacheKey(q domain.PageQuery) string {
	return fmt.Sprintf("%.5f,%.5f|%d|%s|%s|%s",
		q.Center.Latitude, q.Center.Longitude, q.RadiusMeters, q.PlaceType, q.Keyword, q.PageToken)
}
