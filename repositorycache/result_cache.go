package repositorycache

import (
	"context"
	"net/url"

	"github.com/goliatone/go-donation-cache/cache"
)

// ResultCache caches query results under tag-prefixed keys. It is a thin
// layer over cache.Service that knows the list/object/retrieve/queryset key
// layout.
type ResultCache struct {
	svc *cache.Service
}

// NewResultCache creates a result cache on svc.
func NewResultCache(svc *cache.Service) *ResultCache {
	return &ResultCache{svc: svc}
}

// Service returns the underlying cache service.
func (rc *ResultCache) Service() *cache.Service {
	return rc.svc
}

// Invalidator returns the write side used by Wrap.
func (rc *ResultCache) Invalidator() cache.Invalidator {
	return rc.svc
}

// ReadThrough returns the cached value under key or computes, stores and
// returns it. Errors from compute are returned and never cached.
func ReadThrough[T any](ctx context.Context, rc *ResultCache, key cache.Key, compute func(ctx context.Context) (T, error)) (T, error) {
	return cache.Fetch(ctx, rc.svc, key, compute)
}

// Page is the cached form of a listing: one page and the total count.
type Page[T any] struct {
	Records []T `msgpack:"records" json:"records"`
	Total   int `msgpack:"total" json:"total"`
}

// ReadList caches a paginated listing under ListKey(tag, params).
func ReadList[T any](ctx context.Context, rc *ResultCache, tag cache.Tag, params url.Values, compute func(ctx context.Context) ([]T, int, error)) ([]T, int, error) {
	page, err := ReadThrough(ctx, rc, ListKey(tag, params), func(ctx context.Context) (Page[T], error) {
		records, total, err := compute(ctx)
		return Page[T]{Records: records, Total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Records, page.Total, nil
}
