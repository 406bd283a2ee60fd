package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-donation-cache/aggregate"
	"github.com/goliatone/go-donation-cache/cache"
	"github.com/goliatone/go-donation-cache/repositorycache"
)

const (
	// DefaultWindow is how far back each run looks for provider payments.
	DefaultWindow = 30 * time.Minute
	// DefaultPageSize is the provider list page size.
	DefaultPageSize = 100
)

// Report summarizes one reconciliation run.
type Report struct {
	Pages       int
	Seen        int
	Captured    int
	Changed     int
	Skipped     int
	Invalidated int
}

// Reconciler brings local payment statuses in line with the provider and
// invalidates the cache entries that depend on them.
type Reconciler struct {
	provider Provider
	ledger   Ledger
	inv      cache.Invalidator
	logger   *zap.Logger
	observer Observer
	now      func() time.Time
	window   time.Duration
	pageSize int
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver sets the observer.
func WithObserver(observer Observer) ReconcilerOption {
	return func(r *Reconciler) {
		if observer != nil {
			r.observer = observer
		}
	}
}

// WithClock overrides the clock used to compute the window start.
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}

// WithWindow overrides DefaultWindow.
func WithWindow(window time.Duration) ReconcilerOption {
	return func(r *Reconciler) {
		if window > 0 {
			r.window = window
		}
	}
}

// WithPageSize overrides DefaultPageSize.
func WithPageSize(size int) ReconcilerOption {
	return func(r *Reconciler) {
		if size > 0 {
			r.pageSize = size
		}
	}
}

// NewReconciler creates a reconciler.
func NewReconciler(provider Provider, ledger Ledger, inv cache.Invalidator, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		provider: provider,
		ledger:   ledger,
		inv:      inv,
		logger:   zap.NewNop(),
		observer: NopObserver{},
		now:      time.Now,
		window:   DefaultWindow,
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run walks the provider feed page by page. Each page's changes commit in
// one transaction. A failing page aborts the run; earlier pages stay
// committed and their invalidations are flushed before Run returns.
func (r *Reconciler) Run(ctx context.Context) (Report, error) {
	var (
		report  Report
		applied []Change
		runErr  error
	)
	since := r.now().Add(-r.window)
	cursor := ""

	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		page, err := r.provider.List(ctx, ListRequest{
			CreatedAtGTE: since,
			Limit:        r.pageSize,
			Cursor:       cursor,
		})
		if err != nil {
			runErr = pkgerrors.Wrapf(err, "list provider payments (page %d)", report.Pages+1)
			break
		}
		report.Pages++

		changes, err := r.reconcilePage(ctx, page.Items, &report)
		if err != nil {
			runErr = pkgerrors.Wrapf(err, "reconcile page %d", report.Pages)
			break
		}

		committed, err := r.ledger.ApplyChanges(ctx, changes)
		if err != nil {
			runErr = pkgerrors.Wrapf(err, "commit page %d", report.Pages)
			break
		}
		for _, c := range committed {
			r.observer.StatusChanged(c.From, c.To)
		}
		report.Changed += len(committed)
		applied = append(applied, committed...)

		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	// Committed pages are invalidated even when the run was cancelled.
	report.Invalidated = r.flush(context.WithoutCancel(ctx), applied)

	r.observer.ReconcileFinished(report, runErr)
	fields := []zap.Field{
		zap.Int("pages", report.Pages),
		zap.Int("seen", report.Seen),
		zap.Int("captured", report.Captured),
		zap.Int("changed", report.Changed),
		zap.Int("skipped", report.Skipped),
		zap.Int("invalidated", report.Invalidated),
	}
	if runErr != nil {
		r.logger.Error("payment reconciliation failed", append(fields, zap.Error(runErr))...)
		return report, runErr
	}
	r.logger.Info("payment reconciliation finished", fields...)
	return report, nil
}

// reconcilePage computes the changes for one page. Provider and database
// errors abort the page; integrity problems skip the item.
func (r *Reconciler) reconcilePage(ctx context.Context, items []Item, report *Report) ([]Change, error) {
	var changes []Change
	for _, item := range items {
		report.Seen++

		meta, err := ParseMetadata(item.Metadata)
		if err != nil {
			report.Skipped++
			r.logger.Error("provider payment has malformed metadata",
				zap.String("external_id", item.ExternalID),
				zap.Error(err),
			)
			continue
		}

		local, err := r.ledger.PaymentStatus(ctx, meta.PaymentID)
		if errors.Is(err, ErrPaymentNotFound) {
			report.Skipped++
			r.logger.Error("provider payment has no local record",
				zap.String("external_id", item.ExternalID),
				zap.String("payment_id", meta.PaymentID.String()),
			)
			continue
		}
		if err != nil {
			return nil, err
		}

		target := item.Status
		if item.Status == StatusWaitingForCapture {
			captured, err := r.provider.Capture(ctx, item.ExternalID)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "capture %s", item.ExternalID)
			}
			report.Captured++
			r.observer.PaymentCaptured(captured)
			target = captured
		}

		if target == local {
			continue
		}
		changes = append(changes, Change{
			PaymentID:     meta.PaymentID,
			CollectID:     meta.CollectID,
			CollectLookup: meta.CollectLookup,
			UserID:        meta.UserID,
			From:          local,
			To:            target,
		})
	}
	return changes, nil
}

// flush applies one invalidation plan for every committed change.
func (r *Reconciler) flush(ctx context.Context, changes []Change) int {
	if len(changes) == 0 {
		return 0
	}
	plan := r.plan(ctx, changes)
	n, err := r.inv.Apply(ctx, plan)
	if err != nil {
		r.logger.Warn("reconcile invalidation incomplete", zap.Int("deleted", n), zap.Error(err))
	}
	return n
}

// plan lists what a batch of status changes makes stale: each user's payment
// list, and for succeeded payments the collect views, collect listings and
// the collect and organization aggregates.
func (r *Reconciler) plan(ctx context.Context, changes []Change) cache.Plan {
	var (
		plan       cache.Plan
		collectIDs []uuid.UUID
		seen       = make(map[uuid.UUID]struct{})
	)
	for _, c := range changes {
		plan.Keys = append(plan.Keys, repositorycache.QuerysetKey(cache.TagPayment, c.UserID.String()))
		if c.To != StatusSucceeded {
			continue
		}
		plan.Keys = append(plan.Keys, repositorycache.LookupKeys(cache.TagCollect, c.CollectLookup)...)
		plan.Keys = append(plan.Keys, aggregate.Keys(aggregate.CollectRefs(c.CollectID)...)...)
		if _, ok := seen[c.CollectID]; !ok {
			seen[c.CollectID] = struct{}{}
			collectIDs = append(collectIDs, c.CollectID)
		}
	}
	if len(collectIDs) == 0 {
		return plan
	}

	plan.Keys = append(plan.Keys, repositorycache.QuerysetKey(cache.TagCollect))
	plan.Prefixes = append(plan.Prefixes, repositorycache.ListPrefix(cache.TagCollect))

	orgs, err := r.ledger.CollectOrganizations(ctx, collectIDs)
	if err != nil {
		// Without the mapping every aggregate goes.
		r.logger.Warn("cannot resolve collect organizations", zap.Error(err))
		plan.Tags = append(plan.Tags, cache.TagAggregate)
		return plan
	}
	for _, id := range collectIDs {
		if orgID, ok := orgs[id]; ok {
			plan.Keys = append(plan.Keys, aggregate.Keys(aggregate.OrganizationRefs(orgID)...)...)
		}
	}
	return plan
}
