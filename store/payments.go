package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	repository "github.com/goliatone/go-repository-bun"
	pkgerrors "github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-donation-cache/aggregate"
	"github.com/goliatone/go-donation-cache/payments"
)

// RegisterFunc registers a freshly inserted payment with the provider and
// returns its external id.
type RegisterFunc func(ctx context.Context, p *Payment) (string, error)

// PaymentStore persists payments and answers aggregate queries. It is the
// aggregate.Source and the payments.Ledger of the application.
type PaymentStore struct {
	db   *bun.DB
	repo repository.Repository[*Payment]
}

var (
	_ aggregate.Source = (*PaymentStore)(nil)
	_ payments.Ledger  = (*PaymentStore)(nil)
)

// NewPaymentStore creates a payment store.
func NewPaymentStore(db *bun.DB) *PaymentStore {
	return &PaymentStore{
		db: db,
		repo: repository.NewRepository[*Payment](db, repository.ModelHandlers[*Payment]{
			NewRecord: func() *Payment { return &Payment{} },
			GetID:     func(p *Payment) uuid.UUID { return p.ID },
			SetID:     func(p *Payment, id uuid.UUID) { p.ID = id },
			GetIdentifier: func() string {
				return "external_id"
			},
		}),
	}
}

// Create inserts p in a transaction, calls register and stores the returned
// external id. A register failure rolls the insert back so no local payment
// references a provider payment that does not exist.
func (s *PaymentStore) Create(ctx context.Context, p *Payment, register RegisterFunc) (*Payment, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = payments.StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := s.repo.CreateTx(ctx, tx, p); err != nil {
			return pkgerrors.Wrap(err, "insert payment")
		}
		if register == nil {
			return nil
		}
		externalID, err := register(ctx, p)
		if err != nil {
			return err
		}
		p.ExternalID = externalID
		_, err = tx.NewUpdate().
			Model(p).
			Column("external_id").
			WherePK().
			Exec(ctx)
		return pkgerrors.Wrap(err, "store external id")
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Get loads a payment by id.
func (s *PaymentStore) Get(ctx context.Context, id uuid.UUID) (*Payment, error) {
	p := new(Payment)
	err := s.db.NewSelect().Model(p).Where("?TableAlias.id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// ListForUser returns the payments of a user, newest first.
func (s *PaymentStore) ListForUser(ctx context.Context, userID uuid.UUID) ([]*Payment, error) {
	records, _, err := s.repo.List(ctx,
		func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.user_id = ?", userID)
		},
		orderBy("?TableAlias.created_at DESC"),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list user payments")
	}
	return records, nil
}

// SumSucceeded sums succeeded payment amounts of a collect, or of every
// collect of an organization. No rows yields an invalid Value.
func (s *PaymentStore) SumSucceeded(ctx context.Context, kind aggregate.Kind, id uuid.UUID) (aggregate.Value, error) {
	var sum sql.NullInt64
	q := s.db.NewSelect().
		Model((*Payment)(nil)).
		ColumnExpr("SUM(?TableAlias.amount)").
		Where("?TableAlias.status = ?", payments.StatusSucceeded)

	switch kind {
	case aggregate.KindCollect:
		q = q.Where("?TableAlias.collect_id = ?", id)
	case aggregate.KindOrganization:
		q = q.Join("JOIN collects AS c ON c.id = ?TableAlias.collect_id").
			Where("c.organization_id = ?", id)
	default:
		return aggregate.Value{}, aggregate.ErrUnsupportedMetric
	}

	if err := q.Scan(ctx, &sum); err != nil {
		return aggregate.Value{}, pkgerrors.Wrapf(err, "sum %s %s", kind, id)
	}
	if !sum.Valid {
		return aggregate.Value{}, nil
	}
	return aggregate.Of(sum.Int64), nil
}

// CountDonors counts distinct users with a succeeded payment to a collect.
func (s *PaymentStore) CountDonors(ctx context.Context, collectID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.NewSelect().
		Model((*Payment)(nil)).
		ColumnExpr("COUNT(DISTINCT ?TableAlias.user_id)").
		Where("?TableAlias.collect_id = ?", collectID).
		Where("?TableAlias.status = ?", payments.StatusSucceeded).
		Scan(ctx, &n)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "count donors of %s", collectID)
	}
	return n, nil
}

// PaymentStatus returns the stored status of a payment.
func (s *PaymentStore) PaymentStatus(ctx context.Context, id uuid.UUID) (payments.Status, error) {
	var status payments.Status
	err := s.db.NewSelect().
		Model((*Payment)(nil)).
		Column("status").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %w", ErrNotFound, payments.ErrPaymentNotFound)
	}
	if err != nil {
		return "", pkgerrors.Wrapf(err, "load payment %s", id)
	}
	return status, nil
}

// ApplyChanges commits changes in one transaction. Each update only applies
// while the row still holds the expected From status; the changes that
// actually applied are returned.
func (s *PaymentStore) ApplyChanges(ctx context.Context, changes []payments.Change) ([]payments.Change, error) {
	if len(changes) == 0 {
		return nil, nil
	}
	var applied []payments.Change
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		applied = applied[:0]
		for _, c := range changes {
			res, err := tx.NewUpdate().
				Model((*Payment)(nil)).
				Set("status = ?", c.To).
				Where("id = ?", c.PaymentID).
				Where("status = ?", c.From).
				Exec(ctx)
			if err != nil {
				return pkgerrors.Wrapf(err, "update payment %s", c.PaymentID)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return pkgerrors.Wrapf(err, "update payment %s", c.PaymentID)
			}
			if n > 0 {
				applied = append(applied, c)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

// CollectOrganizations maps collect ids to organization ids.
func (s *PaymentStore) CollectOrganizations(ctx context.Context, collectIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	return organizationIDs(ctx, s.db, collectIDs)
}
