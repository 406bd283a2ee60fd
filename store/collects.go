package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	repository "github.com/goliatone/go-repository-bun"
	pkgerrors "github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// CollectFilter narrows a collect listing.
type CollectFilter struct {
	OrganizationID uuid.UUID
	ActiveOnly     bool
	Page           Page
}

// CollectStore persists collects.
type CollectStore struct {
	db   *bun.DB
	repo repository.Repository[*Collect]
}

// NewCollectStore creates a collect store.
func NewCollectStore(db *bun.DB) *CollectStore {
	return &CollectStore{
		db:   db,
		repo: newRepository(db, func() *Collect { return &Collect{} }),
	}
}

// Repository exposes the underlying generic repository.
func (s *CollectStore) Repository() repository.Repository[*Collect] {
	return s.repo
}

// Create inserts a new active collect. A taken slug gets a numeric suffix.
func (s *CollectStore) Create(ctx context.Context, c *Collect) (*Collect, error) {
	ensureID(c)
	c.IsActive = true
	slug, err := uniqueSlug(ctx, s.db, (*Collect)(nil), c.Slug)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "pick slug for %s", c.Slug)
	}
	c.Slug = slug
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	created, err := s.repo.Create(ctx, c)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "create collect %s", c.Slug)
	}
	return created, nil
}

// Update saves every column of c.
func (s *CollectStore) Update(ctx context.Context, c *Collect) (*Collect, error) {
	updated, err := s.repo.Update(ctx, c)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "update collect %s", c.Slug)
	}
	return updated, nil
}

// GetBySlug loads a collect by its lookup.
func (s *CollectStore) GetBySlug(ctx context.Context, slug string) (*Collect, error) {
	c := new(Collect)
	err := s.db.NewSelect().Model(c).Where("?TableAlias.slug = ?", slug).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// GetByID loads a collect by id.
func (s *CollectStore) GetByID(ctx context.Context, id uuid.UUID) (*Collect, error) {
	c := new(Collect)
	err := s.db.NewSelect().Model(c).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// List returns a page of collects, newest first, and the total count.
func (s *CollectStore) List(ctx context.Context, f CollectFilter) ([]*Collect, int, error) {
	criteria := []repository.SelectCriteria{
		func(q *bun.SelectQuery) *bun.SelectQuery {
			if f.OrganizationID != uuid.Nil {
				q = q.Where("?TableAlias.organization_id = ?", f.OrganizationID)
			}
			if f.ActiveOnly {
				q = q.Where("?TableAlias.is_active = ?", true)
			}
			return q
		},
		orderBy("?TableAlias.created_at DESC"),
		paginate(f.Page),
	}
	records, total, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "list collects")
	}
	return records, total, nil
}

// Close marks the collect inactive and returns it.
func (s *CollectStore) Close(ctx context.Context, slug string) (*Collect, error) {
	c, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	_, err = s.db.NewUpdate().
		Model((*Collect)(nil)).
		Set("is_active = ?", false).
		Where("id = ?", c.ID).
		Exec(ctx)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "close collect %s", slug)
	}
	c.IsActive = false
	return c, nil
}

// CloseExpired deactivates every active collect whose close date is today or
// earlier in now's location, and reports how many were closed.
func (s *CollectStore) CloseExpired(ctx context.Context, now time.Time) (int64, error) {
	y, m, d := now.Date()
	cutoff := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)

	res, err := s.db.NewUpdate().
		Model((*Collect)(nil)).
		Set("is_active = ?", false).
		Where("is_active = ?", true).
		Where("close_datetime IS NOT NULL").
		Where("close_datetime < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "close expired collects")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, pkgerrors.Wrap(err, "close expired collects")
	}
	return n, nil
}

// Delete removes a collect that has no payments.
func (s *CollectStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		count, err := tx.NewSelect().
			Model((*Payment)(nil)).
			Where("collect_id = ?", id).
			Count(ctx)
		if err != nil {
			return pkgerrors.Wrap(err, "count collect payments")
		}
		if count > 0 {
			return ErrCollectHasPayments
		}
		res, err := tx.NewDelete().Model((*Collect)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return pkgerrors.Wrap(err, "delete collect")
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// OrganizationIDs maps collect ids to the ids of their organizations.
func (s *CollectStore) OrganizationIDs(ctx context.Context, collectIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	return organizationIDs(ctx, s.db, collectIDs)
}

func organizationIDs(ctx context.Context, db bun.IDB, collectIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID, len(collectIDs))
	if len(collectIDs) == 0 {
		return out, nil
	}
	var rows []Collect
	err := db.NewSelect().
		Model(&rows).
		Column("id", "organization_id").
		Where("?TableAlias.id IN (?)", bun.In(collectIDs)).
		Scan(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "load collect organizations")
	}
	for _, r := range rows {
		out[r.ID] = r.OrganizationID
	}
	return out, nil
}
