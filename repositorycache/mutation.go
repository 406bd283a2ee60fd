package repositorycache

import (
	"context"

	"github.com/goliatone/go-donation-cache/cache"
)

// Mutation is a write that returns the affected record.
type Mutation[T any] func(ctx context.Context) (T, error)

// Scope derives the cache entries a successful mutation makes stale.
type Scope[T any] func(result T) cache.Plan

// TagScope invalidates whole tags.
func TagScope[T any](tags ...cache.Tag) Scope[T] {
	return func(T) cache.Plan {
		return cache.Plan{Tags: tags}
	}
}

// LookupScope invalidates the object and retrieve keys of the lookup read
// from the result.
func LookupScope[T any](tag cache.Tag, lookup func(T) string) Scope[T] {
	return func(result T) cache.Plan {
		value := lookup(result)
		if value == "" {
			return cache.Plan{}
		}
		return cache.Plan{Keys: LookupKeys(tag, value)}
	}
}

// KeyScope invalidates exact keys computed from the result.
func KeyScope[T any](keys func(T) []cache.Key) Scope[T] {
	return func(result T) cache.Plan {
		return cache.Plan{Keys: keys(result)}
	}
}

// PlanScope hands the whole plan to fn.
func PlanScope[T any](fn func(T) cache.Plan) Scope[T] {
	return Scope[T](fn)
}

// Wrap returns a mutation that runs m and, only if it succeeded, applies the
// union of every scope in one invalidation pass. Invalidation failures are
// reported by the invalidator and do not fail the write, which already
// committed.
func Wrap[T any](inv cache.Invalidator, m Mutation[T], scopes ...Scope[T]) Mutation[T] {
	return func(ctx context.Context) (T, error) {
		result, err := m(ctx)
		if err != nil {
			return result, err
		}
		var plan cache.Plan
		for _, scope := range scopes {
			plan = plan.Merge(scope(result))
		}
		if !plan.IsEmpty() {
			_, _ = inv.Apply(ctx, plan)
		}
		return result, nil
	}
}

// Run is Wrap followed by an immediate call.
func Run[T any](ctx context.Context, inv cache.Invalidator, m Mutation[T], scopes ...Scope[T]) (T, error) {
	return Wrap(inv, m, scopes...)(ctx)
}
