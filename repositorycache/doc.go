// Package repositorycache caches query results under tag-prefixed keys and
// invalidates them after writes.
//
// # Keys
//
// Every key starts with the owning tag, so invalidating the tag drops all of
// them:
//
//	{tag}_list_{hash}       one filtered page, hash of normalized params
//	{tag}_object_{lookup}   entity loaded for a write path
//	{tag}_retrieve_{lookup} entity loaded for a detail view
//	{tag}_queryset[_scope]  unfiltered result set, optionally per user
//
// # Reads
//
// ReadThrough and ReadList compute on a miss and store the result unless the
// tag was invalidated while computing.
//
//	page, total, err := repositorycache.ReadList(ctx, rc, cache.TagOrganization, params,
//		func(ctx context.Context) ([]*store.Organization, int, error) {
//			return orgs.List(ctx, filter)
//		})
//
// # Writes
//
// Wrap decorates a mutation with the scopes it makes stale. Invalidation runs
// once, after the mutation returned without error:
//
//	update := repositorycache.Wrap(svc, mutation,
//		repositorycache.TagScope[*store.Collect](cache.TagCollect),
//		repositorycache.LookupScope(cache.TagCollect, (*store.Collect).GetSlug),
//	)
//
// # Repository decorator
//
// CachedRepository implements repository.Repository[T] from go-repository-bun.
// Reads by id or identifier are cached; List, Count and Get are cached only
// when the context carries list parameters (WithListParams), because
// criteria functions have no stable key. Transactional methods bypass the
// cache in both directions.
package repositorycache
