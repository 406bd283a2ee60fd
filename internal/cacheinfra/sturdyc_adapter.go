package cacheinfra

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/viccon/sturdyc"
)

// ErrMiss reports an absent or expired key.
var ErrMiss = errors.New("cache: miss")

// entry carries the per-key expiry. sturdyc only knows one client-wide TTL,
// so shorter TTLs are enforced on read.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// SturdycStore is the in-process Store backed by a sharded sturdyc client.
type SturdycStore struct {
	client *sturdyc.Client[entry]
	ttl    time.Duration
	now    func() time.Time
}

// NewSturdycStore creates the in-process store. It validates cfg first.
func NewSturdycStore(cfg Config) (*SturdycStore, error) {
	if cfg.Backend == "" {
		cfg.Backend = BackendMemory
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []sturdyc.Option
	if cfg.EvictionInterval > 0 {
		opts = append(opts, sturdyc.WithEvictionInterval(cfg.EvictionInterval))
	}

	client := sturdyc.New[entry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		opts...,
	)

	return &SturdycStore{client: client, ttl: cfg.TTL, now: time.Now}, nil
}

// Get returns the blob stored under key or ErrMiss.
func (s *SturdycStore) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := s.client.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !s.live(e) {
		s.client.Delete(key)
		return nil, ErrMiss
	}
	return e.value, nil
}

// live reports whether e has not reached its expiry yet.
func (s *SturdycStore) live(e entry) bool {
	return e.expiresAt.IsZero() || s.now().Before(e.expiresAt)
}

// Set stores value under key. A ttl of zero or above the client TTL falls
// back to the client TTL.
func (s *SturdycStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 || ttl > s.ttl {
		ttl = s.ttl
	}
	s.client.Set(key, entry{value: value, expiresAt: s.now().Add(ttl)})
	return nil
}

// Delete removes keys and reports how many were live. Expired entries not
// yet swept are removed but not counted, matching the redis backend.
func (s *SturdycStore) Delete(_ context.Context, keys ...string) (int, error) {
	deleted := 0
	for _, key := range keys {
		if e, ok := s.client.Get(key); ok && s.live(e) {
			deleted++
		}
		s.client.Delete(key)
	}
	return deleted, nil
}

// DeleteByPrefix removes every key that starts with prefix.
func (s *SturdycStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	return s.DeleteByPrefixes(ctx, []string{prefix})
}

// DeleteByPrefixes removes every key that starts with any of prefixes using a
// single scan of the keyspace.
func (s *SturdycStore) DeleteByPrefixes(_ context.Context, prefixes []string) (int, error) {
	if len(prefixes) == 0 {
		return 0, nil
	}
	deleted := 0
	for _, key := range s.client.ScanKeys() {
		if !hasAnyPrefix(key, prefixes) {
			continue
		}
		if e, ok := s.client.Get(key); ok && s.live(e) {
			deleted++
		}
		s.client.Delete(key)
	}
	return deleted, nil
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (s *SturdycStore) Len() int {
	return s.client.Size()
}

func hasAnyPrefix(key string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}
