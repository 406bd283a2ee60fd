package payments

import (
	"context"

	"github.com/google/uuid"
)

// Ledger is the local payment book the reconciler writes to.
type Ledger interface {
	// PaymentStatus returns the stored status. Unknown payments yield an
	// error matching ErrPaymentNotFound.
	PaymentStatus(ctx context.Context, id uuid.UUID) (Status, error)
	// ApplyChanges commits changes in one transaction, each conditional on
	// the payment still holding From, and returns those that applied.
	ApplyChanges(ctx context.Context, changes []Change) ([]Change, error)
	// CollectOrganizations maps collect ids to their organization ids.
	CollectOrganizations(ctx context.Context, collectIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
}
