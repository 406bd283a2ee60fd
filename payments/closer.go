package payments

import (
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/goliatone/go-donation-cache/cache"
)

// ExpiringCollects closes collects whose close date has passed.
type ExpiringCollects interface {
	CloseExpired(ctx context.Context, now time.Time) (int64, error)
}

// ExpiredCloser is the daily job that deactivates expired collects.
type ExpiredCloser struct {
	collects ExpiringCollects
	inv      cache.Invalidator
	logger   *zap.Logger
	now      func() time.Time
}

// CloserOption configures an ExpiredCloser.
type CloserOption func(*ExpiredCloser)

// WithLocation makes the job decide "today" in loc instead of local time.
func WithLocation(loc *time.Location) CloserOption {
	return func(c *ExpiredCloser) {
		if loc != nil {
			c.now = func() time.Time { return time.Now().In(loc) }
		}
	}
}

// NewExpiredCloser creates the job.
func NewExpiredCloser(collects ExpiringCollects, inv cache.Invalidator, logger *zap.Logger, opts ...CloserOption) *ExpiredCloser {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &ExpiredCloser{
		collects: collects,
		inv:      inv,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run closes expired collects and, if any closed, drops the collect tag.
func (c *ExpiredCloser) Run(ctx context.Context) error {
	n, err := c.collects.CloseExpired(ctx, c.now())
	if err != nil {
		return pkgerrors.Wrap(err, "close expired collects")
	}
	if n == 0 {
		c.logger.Debug("no expired collects")
		return nil
	}
	if _, err := c.inv.Invalidate(ctx, cache.TagCollect); err != nil {
		c.logger.Warn("collect cache invalidation failed", zap.Error(err))
	}
	c.logger.Info("expired collects closed", zap.Int64("closed", n))
	return nil
}
