// Package cache provides the keyed store contract, tag-scoped keys and the
// read-through and invalidation primitives the rest of the module builds on.
//
// # Overview
//
// Every cache entry belongs to exactly one Tag and its key starts with
// "{tag}_". Keys are built from the closed Tag enum instead of ad hoc strings:
//
//	key := cache.TagCollect.Key("retrieve", slug) // collect_retrieve_<slug>
//	all := cache.TagCollect.Prefix("list")        // collect_list_
//
// A Service ties a Store to the tag Registry:
//
//	store, _ := cache.NewStore(ctx, cache.DefaultConfig())
//	svc := cache.NewService(store, cache.WithLogger(logger))
//
//	view, err := cache.Fetch(ctx, svc, key, func(ctx context.Context) (CollectView, error) {
//		return loadFromDatabase(ctx, slug)
//	})
//
// # Invalidation
//
// Invalidation is coarse on purpose. Invalidate(ctx, TagCollect) drops every
// collect entry, including list pages keyed by filter combinations that
// cannot be enumerated. Plans batch tags, prefixes and exact keys and are
// deduplicated before they reach the store:
//
//	svc.Apply(ctx, cache.Plan{
//		Keys:     []cache.Key{cache.TagPayment.Key("queryset", userID)},
//		Prefixes: []cache.Prefix{cache.TagCollect.Prefix("list")},
//	})
//
// Callers invalidate only after the write they are reacting to has been
// committed. Each invalidation bumps the epoch of the touched tags, and Fetch
// refuses to store a value whose computation started before the bump.
//
// # Degradation
//
// Caching is an optimization. A store that errors is treated as a miss and
// the value is computed from the source; the error is logged and reported to
// the Observer but never returned to the caller.
package cache
