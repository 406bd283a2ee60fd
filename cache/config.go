package cache

import (
	"context"
	"time"

	"github.com/goliatone/go-donation-cache/internal/cacheinfra"
)

// DefaultTTL is the window after which entries expire even without an
// explicit invalidation.
const DefaultTTL = 8 * time.Minute

// Backend names a store implementation.
type Backend = cacheinfra.Backend

const (
	BackendMemory = cacheinfra.BackendMemory
	BackendRedis  = cacheinfra.BackendRedis
)

// Config exposes store configuration options for consumers of the cache package.
type Config struct {
	Backend            Backend
	Capacity           int
	NumShards          int
	TTL                time.Duration
	EvictionPercentage int
	EvictionInterval   time.Duration
	RedisURL           string
	Namespace          string
	ScanCount          int64
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	return convertFromInternal(cacheinfra.DefaultConfig())
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	return c.toInternal().Validate()
}

// NewStore constructs the store selected by cfg.Backend. The redis backend
// connects and pings the server before returning.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Backend == BackendRedis {
		store, err := cacheinfra.OpenRedisStore(ctx, cfg.toInternal())
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	store, err := cacheinfra.NewSturdycStore(cfg.toInternal())
	if err != nil {
		return nil, err
	}
	return store, nil
}

func (c Config) toInternal() cacheinfra.Config {
	return cacheinfra.Config{
		Backend:            c.Backend,
		Capacity:           c.Capacity,
		NumShards:          c.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.EvictionPercentage,
		EvictionInterval:   c.EvictionInterval,
		RedisURL:           c.RedisURL,
		Namespace:          c.Namespace,
		ScanCount:          c.ScanCount,
	}
}

func convertFromInternal(cfg cacheinfra.Config) Config {
	return Config{
		Backend:            cfg.Backend,
		Capacity:           cfg.Capacity,
		NumShards:          cfg.NumShards,
		TTL:                cfg.TTL,
		EvictionPercentage: cfg.EvictionPercentage,
		EvictionInterval:   cfg.EvictionInterval,
		RedisURL:           cfg.RedisURL,
		Namespace:          cfg.Namespace,
		ScanCount:          cfg.ScanCount,
	}
}
