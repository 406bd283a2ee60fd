package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	repository "github.com/goliatone/go-repository-bun"
	pkgerrors "github.com/pkg/errors"
	"github.com/uptrace/bun"
)

// OrganizationFilter narrows an organization listing. Problems and Regions
// hold slugs; an organization matches when it has any of them.
type OrganizationFilter struct {
	Name     string
	Problems []string
	Regions  []string
	Page     Page
}

// OrganizationStore persists organizations and their problem/region links.
type OrganizationStore struct {
	db   *bun.DB
	repo repository.Repository[*Organization]
}

// NewOrganizationStore creates an organization store.
func NewOrganizationStore(db *bun.DB) *OrganizationStore {
	return &OrganizationStore{
		db:   db,
		repo: newRepository(db, func() *Organization { return &Organization{} }),
	}
}

// Repository exposes the underlying generic repository.
func (s *OrganizationStore) Repository() repository.Repository[*Organization] {
	return s.repo
}

// Create inserts an organization linked to the given problems and regions.
func (s *OrganizationStore) Create(ctx context.Context, org *Organization, problemIDs, regionIDs []uuid.UUID) (*Organization, error) {
	ensureID(org)
	if org.CreatedAt.IsZero() {
		org.CreatedAt = time.Now().UTC()
	}
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		slug, err := uniqueSlug(ctx, tx, (*Organization)(nil), org.Slug)
		if err != nil {
			return pkgerrors.Wrapf(err, "pick slug for %s", org.Slug)
		}
		org.Slug = slug
		if _, err := s.repo.CreateTx(ctx, tx, org); err != nil {
			return pkgerrors.Wrapf(err, "create organization %s", org.Slug)
		}
		return linkOrganization(ctx, tx, org.ID, problemIDs, regionIDs)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// Update saves org and, when non-nil, replaces its problem and region links.
func (s *OrganizationStore) Update(ctx context.Context, org *Organization, problemIDs, regionIDs []uuid.UUID) (*Organization, error) {
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.UpdateTx(ctx, tx, org); err != nil {
			return pkgerrors.Wrapf(err, "update organization %s", org.Slug)
		}
		if problemIDs != nil {
			if _, err := tx.NewDelete().Model((*OrganizationProblem)(nil)).Where("organization_id = ?", org.ID).Exec(ctx); err != nil {
				return pkgerrors.Wrap(err, "unlink problems")
			}
		}
		if regionIDs != nil {
			if _, err := tx.NewDelete().Model((*OrganizationRegion)(nil)).Where("organization_id = ?", org.ID).Exec(ctx); err != nil {
				return pkgerrors.Wrap(err, "unlink regions")
			}
		}
		return linkOrganization(ctx, tx, org.ID, problemIDs, regionIDs)
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

func linkOrganization(ctx context.Context, tx bun.Tx, orgID uuid.UUID, problemIDs, regionIDs []uuid.UUID) error {
	if len(problemIDs) > 0 {
		links := make([]OrganizationProblem, 0, len(problemIDs))
		for _, id := range problemIDs {
			links = append(links, OrganizationProblem{OrganizationID: orgID, ProblemID: id})
		}
		if _, err := tx.NewInsert().Model(&links).Exec(ctx); err != nil {
			return pkgerrors.Wrap(err, "link problems")
		}
	}
	if len(regionIDs) > 0 {
		links := make([]OrganizationRegion, 0, len(regionIDs))
		for _, id := range regionIDs {
			links = append(links, OrganizationRegion{OrganizationID: orgID, RegionID: id})
		}
		if _, err := tx.NewInsert().Model(&links).Exec(ctx); err != nil {
			return pkgerrors.Wrap(err, "link regions")
		}
	}
	return nil
}

// GetBySlug loads an organization with its problems and regions.
func (s *OrganizationStore) GetBySlug(ctx context.Context, slug string) (*Organization, error) {
	org := new(Organization)
	err := s.db.NewSelect().
		Model(org).
		Relation("Problems").
		Relation("Regions").
		Where("?TableAlias.slug = ?", slug).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return org, nil
}

// GetByID loads an organization by id.
func (s *OrganizationStore) GetByID(ctx context.Context, id uuid.UUID) (*Organization, error) {
	org := new(Organization)
	err := s.db.NewSelect().Model(org).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return org, nil
}

// List returns a page of organizations ordered by name and the total count.
func (s *OrganizationStore) List(ctx context.Context, f OrganizationFilter) ([]*Organization, int, error) {
	criteria := []repository.SelectCriteria{
		func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Relation("Problems").Relation("Regions")
			if f.Name != "" {
				q = q.Where("LOWER(?TableAlias.name) LIKE ?", "%"+strings.ToLower(f.Name)+"%")
			}
			// The subqueries carry their own ?TableAlias, so the outer
			// alias is spelled out.
			if len(f.Problems) > 0 {
				q = q.Where("o.id IN (?)", s.db.NewSelect().
					Model((*OrganizationProblem)(nil)).
					ColumnExpr("op.organization_id").
					Join("JOIN problems AS pr ON pr.id = op.problem_id").
					Where("pr.slug IN (?)", bun.In(f.Problems)))
			}
			if len(f.Regions) > 0 {
				q = q.Where("o.id IN (?)", s.db.NewSelect().
					Model((*OrganizationRegion)(nil)).
					ColumnExpr("orr.organization_id").
					Join("JOIN regions AS r ON r.id = orr.region_id").
					Where("r.slug IN (?)", bun.In(f.Regions)))
			}
			return q
		},
		orderBy("?TableAlias.name ASC"),
		paginate(f.Page),
	}
	records, total, err := s.repo.List(ctx, criteria...)
	if err != nil {
		return nil, 0, pkgerrors.Wrap(err, "list organizations")
	}
	return records, total, nil
}
