package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// handlers builds the go-repository-bun model handlers for a Record type.
// Records are addressed by slug as their identifier.
func handlers[T Record](newRecord func() T) repository.ModelHandlers[T] {
	return repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			return record.GetID()
		},
		SetID: func(record T, id uuid.UUID) {
			record.SetID(id)
		},
		GetIdentifier: func() string {
			return "slug"
		},
	}
}

func newRepository[T Record](db *bun.DB, newRecord func() T) repository.Repository[T] {
	return repository.NewRepository[T](db, handlers(newRecord))
}

// ensureID assigns a fresh id to records created without one.
func ensureID(record Record) {
	if record.GetID() == uuid.Nil {
		record.SetID(uuid.New())
	}
}

// uniqueSlug returns base when no row of model uses it, otherwise the first
// free base-2, base-3 and so on. The unique index still guards concurrent
// inserts that pick the same suffix.
func uniqueSlug(ctx context.Context, db bun.IDB, model any, base string) (string, error) {
	var taken []string
	err := db.NewSelect().
		Model(model).
		Column("slug").
		Where("?TableAlias.slug = ? OR ?TableAlias.slug LIKE ?", base, base+"-%").
		Scan(ctx, &taken)
	if err != nil {
		return "", err
	}

	used := make(map[string]struct{}, len(taken))
	for _, slug := range taken {
		used[slug] = struct{}{}
	}
	if _, ok := used[base]; !ok {
		return base, nil
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, ok := used[candidate]; !ok {
			return candidate, nil
		}
	}
}

// Page bounds a list query.
type Page struct {
	Limit  int
	Offset int
}

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 20
)

// Normalize clamps the page to the allowed range.
func (p Page) Normalize() Page {
	switch {
	case p.Limit <= 0:
		p.Limit = DefaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

func paginate(p Page) repository.SelectCriteria {
	p = p.Normalize()
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(p.Limit).Offset(p.Offset)
	}
}

func orderBy(expr string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr(expr)
	}
}
