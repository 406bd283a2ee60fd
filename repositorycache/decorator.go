package repositorycache

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-donation-cache/cache"
)

var _ repository.Repository[any] = (*CachedRepository[any])(nil)

// CachedRepository decorates a go-repository-bun repository with the tag
// cache. Entries live under one tag:
//
//   - GetByID without criteria reads {tag}_object_{id}
//   - GetByIdentifier without criteria reads {tag}_retrieve_{identifier}
//   - Get, List and Count are cached only when the context carries list
//     parameters (see WithListParams)
//
// Successful non-transactional writes invalidate the whole tag plus any
// related tags. Writes inside a transaction are passed through untouched:
// the caller invalidates after commit.
type CachedRepository[T any] struct {
	base    repository.Repository[T]
	results *ResultCache
	tag     cache.Tag
	related []cache.Tag
}

// Option configures a CachedRepository.
type Option func(*options)

type options struct {
	related []cache.Tag
}

// WithRelatedTags adds tags invalidated together with the repository tag,
// e.g. listings of another entity that embed this one.
func WithRelatedTags(tags ...cache.Tag) Option {
	return func(o *options) {
		o.related = append(o.related, tags...)
	}
}

// New wraps base with caching under tag.
func New[T any](base repository.Repository[T], results *ResultCache, tag cache.Tag, opts ...Option) *CachedRepository[T] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &CachedRepository[T]{
		base:    base,
		results: results,
		tag:     tag,
		related: o.related,
	}
}

// Tag returns the tag that owns every entry of this repository.
func (c *CachedRepository[T]) Tag() cache.Tag {
	return c.tag
}

// Get retrieves a single record using the provided criteria.
func (c *CachedRepository[T]) Get(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	params, ok := listParamsFromContext(ctx)
	if !ok {
		return c.base.Get(ctx, criteria...)
	}
	return ReadThrough(ctx, c.results, c.tag.Key("get", cache.HashParams(params)), func(ctx context.Context) (T, error) {
		return c.base.Get(ctx, criteria...)
	})
}

// GetByID retrieves a record by id.
func (c *CachedRepository[T]) GetByID(ctx context.Context, id string, criteria ...repository.SelectCriteria) (T, error) {
	if len(criteria) > 0 {
		return c.base.GetByID(ctx, id, criteria...)
	}
	return ReadThrough(ctx, c.results, ObjectKey(c.tag, id), func(ctx context.Context) (T, error) {
		return c.base.GetByID(ctx, id)
	})
}

// List retrieves multiple records using the provided criteria.
func (c *CachedRepository[T]) List(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	params, ok := listParamsFromContext(ctx)
	if !ok {
		return c.base.List(ctx, criteria...)
	}
	return ReadList(ctx, c.results, c.tag, params, func(ctx context.Context) ([]T, int, error) {
		return c.base.List(ctx, criteria...)
	})
}

// Count returns the number of records matching the criteria.
func (c *CachedRepository[T]) Count(ctx context.Context, criteria ...repository.SelectCriteria) (int, error) {
	params, ok := listParamsFromContext(ctx)
	if !ok {
		return c.base.Count(ctx, criteria...)
	}
	return ReadThrough(ctx, c.results, CountKey(c.tag, params), func(ctx context.Context) (int, error) {
		return c.base.Count(ctx, criteria...)
	})
}

// GetByIdentifier retrieves a record by its identifier column.
func (c *CachedRepository[T]) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	if len(criteria) > 0 {
		return c.base.GetByIdentifier(ctx, identifier, criteria...)
	}
	return ReadThrough(ctx, c.results, RetrieveKey(c.tag, identifier), func(ctx context.Context) (T, error) {
		return c.base.GetByIdentifier(ctx, identifier)
	})
}

func (c *CachedRepository[T]) Create(ctx context.Context, record T, criteria ...repository.InsertCriteria) (T, error) {
	result, err := c.base.Create(ctx, record, criteria...)
	if err == nil {
		c.invalidate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) CreateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.InsertCriteria) (T, error) {
	return c.base.CreateTx(ctx, tx, record, criteria...)
}

func (c *CachedRepository[T]) CreateMany(ctx context.Context, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	result, err := c.base.CreateMany(ctx, records, criteria...)
	if err == nil {
		c.invalidate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) CreateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.InsertCriteria) ([]T, error) {
	return c.base.CreateManyTx(ctx, tx, records, criteria...)
}

// GetOrCreate may insert, so it invalidates like a create.
func (c *CachedRepository[T]) GetOrCreate(ctx context.Context, record T) (T, error) {
	result, err := c.base.GetOrCreate(ctx, record)
	if err == nil {
		c.invalidate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) GetOrCreateTx(ctx context.Context, tx bun.IDB, record T) (T, error) {
	return c.base.GetOrCreateTx(ctx, tx, record)
}

func (c *CachedRepository[T]) Update(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Update(ctx, record, criteria...)
	if err == nil {
		c.invalidate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) UpdateTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return c.base.UpdateTx(ctx, tx, record, criteria...)
}

func (c *CachedRepository[T]) UpdateMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpdateMany(ctx, records, criteria...)
	if err == nil {
		c.invalidate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) UpdateManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return c.base.UpdateManyTx(ctx, tx, records, criteria...)
}

func (c *CachedRepository[T]) Upsert(ctx context.Context, record T, criteria ...repository.UpdateCriteria) (T, error) {
	result, err := c.base.Upsert(ctx, record, criteria...)
	if err == nil {
		c.invalidate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) UpsertTx(ctx context.Context, tx bun.IDB, record T, criteria ...repository.UpdateCriteria) (T, error) {
	return c.base.UpsertTx(ctx, tx, record, criteria...)
}

func (c *CachedRepository[T]) UpsertMany(ctx context.Context, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	result, err := c.base.UpsertMany(ctx, records, criteria...)
	if err == nil {
		c.invalidate(ctx)
	}
	return result, err
}

func (c *CachedRepository[T]) UpsertManyTx(ctx context.Context, tx bun.IDB, records []T, criteria ...repository.UpdateCriteria) ([]T, error) {
	return c.base.UpsertManyTx(ctx, tx, records, criteria...)
}

func (c *CachedRepository[T]) Delete(ctx context.Context, record T) error {
	err := c.base.Delete(ctx, record)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *CachedRepository[T]) DeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return c.base.DeleteTx(ctx, tx, record)
}

func (c *CachedRepository[T]) DeleteMany(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteMany(ctx, criteria...)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *CachedRepository[T]) DeleteManyTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return c.base.DeleteManyTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) DeleteWhere(ctx context.Context, criteria ...repository.DeleteCriteria) error {
	err := c.base.DeleteWhere(ctx, criteria...)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *CachedRepository[T]) DeleteWhereTx(ctx context.Context, tx bun.IDB, criteria ...repository.DeleteCriteria) error {
	return c.base.DeleteWhereTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) ForceDelete(ctx context.Context, record T) error {
	err := c.base.ForceDelete(ctx, record)
	if err == nil {
		c.invalidate(ctx)
	}
	return err
}

func (c *CachedRepository[T]) ForceDeleteTx(ctx context.Context, tx bun.IDB, record T) error {
	return c.base.ForceDeleteTx(ctx, tx, record)
}

// Transactional reads never touch the cache.

func (c *CachedRepository[T]) GetTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) GetByIDTx(ctx context.Context, tx bun.IDB, id string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIDTx(ctx, tx, id, criteria...)
}

func (c *CachedRepository[T]) ListTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) ([]T, int, error) {
	return c.base.ListTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) CountTx(ctx context.Context, tx bun.IDB, criteria ...repository.SelectCriteria) (int, error) {
	return c.base.CountTx(ctx, tx, criteria...)
}

func (c *CachedRepository[T]) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (T, error) {
	return c.base.GetByIdentifierTx(ctx, tx, identifier, criteria...)
}

func (c *CachedRepository[T]) Raw(ctx context.Context, sql string, args ...any) ([]T, error) {
	return c.base.Raw(ctx, sql, args...)
}

func (c *CachedRepository[T]) RawTx(ctx context.Context, tx bun.IDB, sql string, args ...any) ([]T, error) {
	return c.base.RawTx(ctx, tx, sql, args...)
}

func (c *CachedRepository[T]) Handlers() repository.ModelHandlers[T] {
	return c.base.Handlers()
}

// invalidate drops every entry of the repository tag and its related tags.
// Failures are logged by the cache service; the write already succeeded.
func (c *CachedRepository[T]) invalidate(ctx context.Context) {
	tags := append([]cache.Tag{c.tag}, c.related...)
	_, _ = c.results.Invalidator().InvalidateMany(ctx, tags...)
}
