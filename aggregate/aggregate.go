package aggregate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/goliatone/go-donation-cache/cache"
)

// ErrUnsupportedMetric is returned for a kind/metric pair that has no
// definition, e.g. the donor count of an organization.
var ErrUnsupportedMetric = errors.New("aggregate: unsupported metric")

// Kind is the entity an aggregate belongs to.
type Kind string

const (
	KindCollect      Kind = "collect"
	KindOrganization Kind = "organization"
)

// Metric names a derived value.
type Metric string

const (
	MetricSumAmount  Metric = "sum_amount"
	MetricDonorCount Metric = "donor_count"
)

// Supported reports whether metric is defined for kind.
func Supported(kind Kind, metric Metric) bool {
	switch kind {
	case KindCollect:
		return metric == MetricSumAmount || metric == MetricDonorCount
	case KindOrganization:
		return metric == MetricSumAmount
	}
	return false
}

// Value is an aggregate result. Valid is false when the source has no rows
// to aggregate, which SQL reports as a NULL sum.
type Value struct {
	N     int64
	Valid bool
}

// Int returns v as a nullable integer.
func (v Value) Int() *int64 {
	if !v.Valid {
		return nil
	}
	n := v.N
	return &n
}

// Of builds a valid value.
func Of(n int64) Value {
	return Value{N: n, Valid: true}
}

// Entry is the cached form of a Value. A nil Value pointer is the cached
// "no data" result; it is stored like any other entry so a zero aggregate
// is not recomputed on every read.
type Entry struct {
	Kind       Kind      `msgpack:"kind"`
	EntityID   string    `msgpack:"entity_id"`
	Metric     Metric    `msgpack:"metric"`
	Value      *int64    `msgpack:"value"`
	ComputedAt time.Time `msgpack:"computed_at"`
}

func (e Entry) result() Value {
	if e.Value == nil {
		return Value{}
	}
	return Of(*e.Value)
}

// Source computes aggregates from succeeded payments.
type Source interface {
	// SumSucceeded sums the amounts of succeeded payments owned by the entity.
	SumSucceeded(ctx context.Context, kind Kind, id uuid.UUID) (Value, error)
	// CountDonors counts distinct users with a succeeded payment to a collect.
	CountDonors(ctx context.Context, collectID uuid.UUID) (int64, error)
}

// Ref addresses a single aggregate entry.
type Ref struct {
	Kind   Kind
	ID     uuid.UUID
	Metric Metric
}

// Key returns the cache key aggregate_{kind}_{id}_{metric}.
func (r Ref) Key() cache.Key {
	return cache.TagAggregate.Key(string(r.Kind), r.ID.String(), string(r.Metric))
}

// CollectRefs returns every aggregate of a collect.
func CollectRefs(id uuid.UUID) []Ref {
	return []Ref{
		{Kind: KindCollect, ID: id, Metric: MetricSumAmount},
		{Kind: KindCollect, ID: id, Metric: MetricDonorCount},
	}
}

// OrganizationRefs returns every aggregate of an organization.
func OrganizationRefs(id uuid.UUID) []Ref {
	return []Ref{{Kind: KindOrganization, ID: id, Metric: MetricSumAmount}}
}

// Keys converts refs to cache keys.
func Keys(refs ...Ref) []cache.Key {
	keys := make([]cache.Key, 0, len(refs))
	for _, r := range refs {
		keys = append(keys, r.Key())
	}
	return keys
}

// Cache serves aggregates through the shared cache service.
type Cache struct {
	svc    *cache.Service
	source Source
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock overrides the clock used for ComputedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an aggregate cache.
func New(svc *cache.Service, source Source, opts ...Option) *Cache {
	c := &Cache{
		svc:    svc,
		source: source,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the cached aggregate or computes it from the source.
// Concurrent misses for the same entry share one computation.
func (c *Cache) GetOrCompute(ctx context.Context, kind Kind, id uuid.UUID, metric Metric) (Value, error) {
	if !Supported(kind, metric) {
		return Value{}, ErrUnsupportedMetric
	}
	ref := Ref{Kind: kind, ID: id, Metric: metric}

	entry, err := cache.Fetch(ctx, c.svc, ref.Key(), func(ctx context.Context) (Entry, error) {
		v, err := c.compute(ctx, ref)
		if err != nil {
			return Entry{}, err
		}
		c.logger.Debug("aggregate computed",
			zap.String("kind", string(kind)),
			zap.String("entity_id", id.String()),
			zap.String("metric", string(metric)),
			zap.Bool("valid", v.Valid),
		)
		return Entry{
			Kind:       kind,
			EntityID:   id.String(),
			Metric:     metric,
			Value:      v.Int(),
			ComputedAt: c.now().UTC(),
		}, nil
	})
	if err != nil {
		return Value{}, err
	}
	return entry.result(), nil
}

func (c *Cache) compute(ctx context.Context, ref Ref) (Value, error) {
	switch ref.Metric {
	case MetricSumAmount:
		return c.source.SumSucceeded(ctx, ref.Kind, ref.ID)
	case MetricDonorCount:
		n, err := c.source.CountDonors(ctx, ref.ID)
		if err != nil {
			return Value{}, err
		}
		return Of(n), nil
	}
	return Value{}, ErrUnsupportedMetric
}

// Invalidate drops exactly the given entries, never the whole tag.
func (c *Cache) Invalidate(ctx context.Context, refs ...Ref) (int, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	return c.svc.InvalidateKeys(ctx, Keys(refs...)...)
}
