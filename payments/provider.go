package payments

import (
	"context"
	"errors"
	"time"
)

// ErrProviderUnavailable wraps failures talking to the payment provider.
var ErrProviderUnavailable = errors.New("payments: provider unavailable")

// ErrPaymentNotFound is returned by a Ledger for an unknown local payment.
var ErrPaymentNotFound = errors.New("payments: local payment not found")

// CreateRequest describes a new provider payment.
type CreateRequest struct {
	Amount      int64
	Currency    string
	ReturnURL   string
	Description string
	Metadata    Metadata
}

// CreateResult is the provider's answer to a create call.
type CreateResult struct {
	ExternalID      string
	Status          Status
	ConfirmationURL string
}

// ListRequest selects a page of recent provider payments.
type ListRequest struct {
	CreatedAtGTE time.Time
	Limit        int
	Cursor       string
}

// Item is one provider payment in a list page.
type Item struct {
	ExternalID string
	Status     Status
	Metadata   map[string]string
}

// Page is a list response. An empty NextCursor ends the feed.
type Page struct {
	Items      []Item
	NextCursor string
}

// Provider is the narrow contract the core needs from the payment provider.
type Provider interface {
	Create(ctx context.Context, req CreateRequest) (CreateResult, error)
	List(ctx context.Context, req ListRequest) (Page, error)
	Capture(ctx context.Context, externalID string) (Status, error)
}
