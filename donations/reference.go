package donations

import (
	"context"
	"net/url"

	"github.com/google/uuid"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-donation-cache/cache"
	rc "github.com/goliatone/go-donation-cache/repositorycache"
	"github.com/goliatone/go-donation-cache/store"
)

// ReferenceService serves one kind of reference data (problems, regions,
// occasions, default covers) through a cached repository. Lists and lookups
// are cached under the kind's tag; writes drop the tag.
type ReferenceService[T store.Record] struct {
	repo *rc.CachedRepository[T]
}

// NewReferenceService wraps refs with a cache under tag.
func NewReferenceService[T store.Record](refs *store.ReferenceStore[T], results *rc.ResultCache, tag cache.Tag) *ReferenceService[T] {
	return &ReferenceService[T]{repo: rc.New(refs.Repository(), results, tag)}
}

// Tag returns the cache tag of the kind.
func (s *ReferenceService[T]) Tag() cache.Tag {
	return s.repo.Tag()
}

// List returns every record ordered by name.
func (s *ReferenceService[T]) List(ctx context.Context) ([]T, error) {
	ctx = rc.WithListParams(ctx, url.Values{})
	records, _, err := s.repo.List(ctx, byName)
	return records, err
}

// Get returns the record with slug.
func (s *ReferenceService[T]) Get(ctx context.Context, slug string) (T, error) {
	return s.repo.GetByIdentifier(ctx, slug)
}

// Create stores record, assigning an id when it has none.
func (s *ReferenceService[T]) Create(ctx context.Context, record T) (T, error) {
	if record.GetID() == uuid.Nil {
		record.SetID(uuid.New())
	}
	return s.repo.Create(ctx, record)
}

// Update saves record.
func (s *ReferenceService[T]) Update(ctx context.Context, record T) (T, error) {
	return s.repo.Update(ctx, record)
}

// Delete removes the record with slug.
func (s *ReferenceService[T]) Delete(ctx context.Context, slug string) error {
	record, err := s.repo.GetByIdentifier(ctx, slug)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, record)
}

var byName repository.SelectCriteria = func(q *bun.SelectQuery) *bun.SelectQuery {
	return q.OrderExpr("?TableAlias.name ASC")
}
