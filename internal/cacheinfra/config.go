package cacheinfra

import (
	"time"
)

// Backend names a Store implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
)

// Config holds the configuration shared by the store backends.
type Config struct {
	// Backend selects the store implementation. Default: memory.
	Backend Backend

	// Capacity defines the maximum number of entries the in-process store keeps.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of shards of the in-process store.
	// Must be greater than 0. Default: 256
	NumShards int

	// TTL is the default time-to-live for entries. Entries expire after TTL
	// even if nothing invalidates them. Default: 8 minutes
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict
	// when the in-process store reaches its capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are swept.
	// Zero value uses the sturdyc default.
	EvictionInterval time.Duration

	// RedisURL is used by the redis backend, e.g. redis://localhost:6379/0.
	RedisURL string

	// Namespace is prepended to every redis key so several deployments can
	// share one database.
	Namespace string

	// ScanCount is the COUNT hint for redis SCAN during prefix deletes.
	ScanCount int64
}

// DefaultConfig returns a Config with the defaults used in production.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendMemory,
		Capacity:           10000,
		NumShards:          256,
		TTL:                8 * time.Minute,
		EvictionPercentage: 10,
		ScanCount:          500,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory, "":
		if c.Capacity <= 0 {
			return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
		}
		if c.NumShards <= 0 {
			return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
		}
		if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
			return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
		}
		if c.EvictionInterval < 0 {
			return &ConfigError{Field: "EvictionInterval", Message: "must be non-negative"}
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return &ConfigError{Field: "RedisURL", Message: "is required for the redis backend"}
		}
		if c.ScanCount < 0 {
			return &ConfigError{Field: "ScanCount", Message: "must be non-negative"}
		}
	default:
		return &ConfigError{Field: "Backend", Message: "must be memory or redis"}
	}

	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}
