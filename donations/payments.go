package donations

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-donation-cache/cache"
	"github.com/goliatone/go-donation-cache/notify"
	"github.com/goliatone/go-donation-cache/payments"
	rc "github.com/goliatone/go-donation-cache/repositorycache"
	"github.com/goliatone/go-donation-cache/store"
)

// DefaultCurrency is used for provider payments.
const DefaultCurrency = "RUB"

// PaymentInput creates a payment. Collect is the collect slug.
type PaymentInput struct {
	Collect string `json:"collect"`
	Amount  int64  `json:"payment_amount"`
	Comment string `json:"comment"`

	UserID uuid.UUID `json:"-"`
	Email  string    `json:"-"`
}

// PaymentResult is a stored payment and the URL where the user confirms it.
type PaymentResult struct {
	Payment         *store.Payment `json:"payment"`
	ConfirmationURL string         `json:"confirmation_url"`
}

// PaymentService creates payments through the provider and lists a user's
// payments.
type PaymentService struct {
	options
	payments  *store.PaymentStore
	collects  *store.CollectStore
	provider  payments.Provider
	results   *rc.ResultCache
	returnURL string
	currency  string
}

// NewPaymentService creates a payment service. returnURL is where the
// provider sends the user after confirmation.
func NewPaymentService(
	paymentStore *store.PaymentStore,
	collects *store.CollectStore,
	provider payments.Provider,
	results *rc.ResultCache,
	returnURL string,
	opts ...Option,
) *PaymentService {
	return &PaymentService{
		options:   newOptions(opts),
		payments:  paymentStore,
		collects:  collects,
		provider:  provider,
		results:   results,
		returnURL: returnURL,
		currency:  DefaultCurrency,
	}
}

// Create registers a payment with the provider and stores it pending. The
// local insert and the provider call share one transaction, so a provider
// failure leaves no local payment behind.
func (s *PaymentService) Create(ctx context.Context, in PaymentInput) (*PaymentResult, error) {
	err := validation.ValidateStruct(&in,
		validation.Field(&in.Collect, validation.Required),
		validation.Field(&in.Amount, amountRules()...),
	)
	if err != nil {
		return nil, err
	}

	collect, err := s.collects.GetBySlug(ctx, in.Collect)
	if err != nil {
		return nil, referenceError(err, "collect", ErrUnknownReference)
	}
	if !collect.IsActive {
		return nil, ErrCollectClosed
	}

	var confirmationURL string
	register := func(ctx context.Context, p *store.Payment) (string, error) {
		res, err := s.provider.Create(ctx, payments.CreateRequest{
			Amount:      p.Amount,
			Currency:    s.currency,
			ReturnURL:   s.returnURL,
			Description: fmt.Sprintf("Donation to %s", collect.Name),
			Metadata: payments.Metadata{
				PaymentID:     p.ID,
				CollectLookup: collect.Slug,
				UserID:        p.UserID,
				CollectID:     collect.ID,
			},
		})
		if err != nil {
			return "", err
		}
		confirmationURL = res.ConfirmationURL
		return res.ExternalID, nil
	}

	payment := &store.Payment{
		CollectID: collect.ID,
		UserID:    in.UserID,
		Amount:    in.Amount,
		Comment:   in.Comment,
	}
	created, err := rc.Run(ctx, s.results.Invalidator(), func(ctx context.Context) (*store.Payment, error) {
		return s.payments.Create(ctx, payment, register)
	},
		rc.KeyScope(func(p *store.Payment) []cache.Key {
			return []cache.Key{rc.QuerysetKey(cache.TagPayment, p.UserID.String())}
		}),
		rc.TagScope[*store.Payment](cache.TagCollect),
	)
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment created",
		zap.String("payment_id", created.ID.String()),
		zap.String("collect_id", collect.ID.String()),
		zap.String("external_id", created.ExternalID),
	)
	s.notify(ctx, notify.Message{
		Subject:    notify.SubjectPaymentCreated,
		Body:       fmt.Sprintf("Payment to collect %q created.", collect.Name),
		Recipients: recipients(in.Email),
		Key:        created.ID.String(),
		CreatedAt:  s.now().UTC(),
	})

	return &PaymentResult{Payment: created, ConfirmationURL: confirmationURL}, nil
}

// ListForUser returns the user's payments, cached per user.
func (s *PaymentService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*store.Payment, error) {
	key := rc.QuerysetKey(cache.TagPayment, userID.String())
	return rc.ReadThrough(ctx, s.results, key, func(ctx context.Context) ([]*store.Payment, error) {
		return s.payments.ListForUser(ctx, userID)
	})
}
