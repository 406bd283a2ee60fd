package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/goliatone/go-donation-cache/internal/cacheinfra"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = cacheinfra.ErrMiss

// ErrInvalidResultType is returned when a shared fetch produced a value of
// an unexpected type for the caller.
var ErrInvalidResultType = errors.New("cache: invalid result type")

// Store is the keyed blob store every cache component builds on.
// Implementations must be safe for concurrent use. DeleteByPrefix is atomic
// per key only.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int, error)
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

// MultiPrefixDeleter is implemented by stores that can drop several prefixes
// in a single pass over the keyspace.
type MultiPrefixDeleter interface {
	DeleteByPrefixes(ctx context.Context, prefixes []string) (int, error)
}

// FetchFn loads a value from the source of truth on a cache miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// Service wires a Store with the tag registry, the codec and the per-tag
// epochs used to keep stale computations out of the cache.
type Service struct {
	store    Store
	registry *Registry
	codec    Codec
	ttl      time.Duration
	logger   *zap.Logger
	observer Observer
	group    singleflight.Group
	epochs   [tagCount]atomic.Uint64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for degraded cache operations.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver sets the observer notified about hits, misses and errors.
func WithObserver(observer Observer) Option {
	return func(s *Service) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// WithTTL overrides the default entry TTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithRegistry replaces the default tag registry.
func WithRegistry(registry *Registry) Option {
	return func(s *Service) {
		if registry != nil {
			s.registry = registry
		}
	}
}

// WithCodec replaces the msgpack codec.
func WithCodec(codec Codec) Option {
	return func(s *Service) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// NewService creates a cache service on top of store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		registry: NewRegistry(),
		codec:    MsgpackCodec{},
		ttl:      DefaultTTL,
		logger:   zap.NewNop(),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() Store {
	return s.store
}

// TTL returns the default entry TTL.
func (s *Service) TTL() time.Duration {
	return s.ttl
}

// Registry returns the tag registry used for invalidation.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Epoch reports the invalidation epoch of tag.
func (s *Service) Epoch(tag Tag) uint64 {
	if !tag.valid() {
		return 0
	}
	return s.epochs[tag].Load()
}

func (s *Service) bump(tag Tag) {
	if tag.valid() {
		s.epochs[tag].Add(1)
	}
}

// Fetch is the typed read-through primitive. A hit returns the decoded value
// untouched. A miss, a store failure or an undecodable entry all fall back to
// fetch; the result is stored only if no invalidation of key's tag happened
// while it was being computed. Concurrent misses on key share one fetch; a
// caller whose ctx ends stops waiting without cancelling it for the others.
func Fetch[T any](ctx context.Context, s *Service, key Key, fetch FetchFn[T]) (T, error) {
	var zero T

	if value, ok := lookup[T](ctx, s, key); ok {
		s.observer.CacheHit(key.Tag)
		return value, nil
	}
	s.observer.CacheMiss(key.Tag)

	name := key.String()
	ch := s.group.DoChan(name, func() (any, error) {
		// Every caller waiting on key shares this computation, so no single
		// caller's cancellation may abort it.
		shared := context.WithoutCancel(ctx)
		epoch := s.Epoch(key.Tag)
		value, err := fetch(shared)
		if err != nil {
			return nil, err
		}
		s.populate(shared, key, epoch, value)
		return value, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res = <-ch:
	}
	if res.Err != nil {
		return zero, res.Err
	}
	result := res.Val
	if result == nil {
		return zero, nil
	}
	value, ok := result.(T)
	if !ok {
		return zero, ErrInvalidResultType
	}
	return value, nil
}

func lookup[T any](ctx context.Context, s *Service, key Key) (T, bool) {
	var value T
	data, err := s.store.Get(ctx, key.String())
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			s.degraded("get", key, err)
		}
		return value, false
	}
	if err := s.codec.Decode(data, &value); err != nil {
		s.degraded("decode", key, err)
		return value, false
	}
	return value, true
}

func (s *Service) populate(ctx context.Context, key Key, epoch uint64, value any) {
	if s.Epoch(key.Tag) != epoch {
		return
	}
	data, err := s.codec.Encode(value)
	if err != nil {
		s.degraded("encode", key, err)
		return
	}
	name := key.String()
	if err := s.store.Set(ctx, name, data, s.ttl); err != nil {
		s.degraded("set", key, err)
		return
	}
	// An invalidation that raced with the Set above must still win.
	if s.Epoch(key.Tag) != epoch {
		if _, err := s.store.Delete(ctx, name); err != nil {
			s.degraded("delete", key, err)
		}
	}
}

func (s *Service) degraded(op string, key Key, err error) {
	s.observer.CacheError(op, err)
	s.logger.Warn("cache operation failed, serving from source",
		zap.String("op", op),
		zap.String("key", key.String()),
		zap.Error(err),
	)
}
