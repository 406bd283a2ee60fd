package store

import (
	"context"

	"github.com/google/uuid"
	repository "github.com/goliatone/go-repository-bun"
	pkgerrors "github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// ReferenceStore persists one kind of reference data: occasions, problems,
// regions or default covers.
type ReferenceStore[T Record] struct {
	db        *bun.DB
	repo      repository.Repository[T]
	newRecord func() T
}

// NewReferenceStore creates a store for reference records of type T.
func NewReferenceStore[T Record](db *bun.DB, newRecord func() T) *ReferenceStore[T] {
	return &ReferenceStore[T]{
		db:        db,
		repo:      newRepository(db, newRecord),
		newRecord: newRecord,
	}
}

// NewOccasionStore, NewProblemStore, NewRegionStore and NewDefaultCoverStore
// bind the generic store to each model.
func NewOccasionStore(db *bun.DB) *ReferenceStore[*Occasion] {
	return NewReferenceStore(db, func() *Occasion { return &Occasion{} })
}

func NewProblemStore(db *bun.DB) *ReferenceStore[*Problem] {
	return NewReferenceStore(db, func() *Problem { return &Problem{} })
}

func NewRegionStore(db *bun.DB) *ReferenceStore[*Region] {
	return NewReferenceStore(db, func() *Region { return &Region{} })
}

func NewDefaultCoverStore(db *bun.DB) *ReferenceStore[*DefaultCover] {
	return NewReferenceStore(db, func() *DefaultCover { return &DefaultCover{} })
}

// Repository exposes the underlying generic repository.
func (s *ReferenceStore[T]) Repository() repository.Repository[T] {
	return s.repo
}

// List returns every record ordered by name.
func (s *ReferenceStore[T]) List(ctx context.Context) ([]T, error) {
	records, _, err := s.repo.List(ctx, orderBy("?TableAlias.name ASC"))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list reference records")
	}
	return records, nil
}

// GetBySlug loads a record by slug.
func (s *ReferenceStore[T]) GetBySlug(ctx context.Context, slug string) (T, error) {
	record := s.newRecord()
	err := s.db.NewSelect().Model(record).Where("?TableAlias.slug = ?", slug).Limit(1).Scan(ctx)
	if err != nil {
		var zero T
		return zero, notFound(err)
	}
	return record, nil
}

// Create inserts record, assigning an id if it has none.
func (s *ReferenceStore[T]) Create(ctx context.Context, record T) (T, error) {
	ensureID(record)
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return created, pkgerrors.Wrapf(err, "create %s", record.GetSlug())
	}
	return created, nil
}

// Update saves record.
func (s *ReferenceStore[T]) Update(ctx context.Context, record T) (T, error) {
	updated, err := s.repo.Update(ctx, record)
	if err != nil {
		return updated, pkgerrors.Wrapf(err, "update %s", record.GetSlug())
	}
	return updated, nil
}

// Delete removes the record with id.
func (s *ReferenceStore[T]) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.NewDelete().Model(s.newRecord()).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return pkgerrors.Wrapf(err, "delete %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
