package cacheinfra

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const deleteBatch = 256

// RedisStore is the shared Store backed by Redis. Prefix deletes walk the
// keyspace with SCAN so they never block the server the way KEYS does.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
	ttl       time.Duration
	scanCount int64
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, cfg Config) *RedisStore {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultConfig().TTL
	}
	scan := cfg.ScanCount
	if scan <= 0 {
		scan = DefaultConfig().ScanCount
	}
	return &RedisStore{
		client:    client,
		namespace: cfg.Namespace,
		ttl:       ttl,
		scanCount: scan,
	}
}

// OpenRedisStore parses cfg.RedisURL, connects and pings the server.
func OpenRedisStore(ctx context.Context, cfg Config) (*RedisStore, error) {
	cfg.Backend = BackendRedis
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedisStore(client, cfg), nil
}

// Client exposes the underlying redis client, e.g. for leases.
func (s *RedisStore) Client() redis.UniversalClient {
	return s.client
}

func (s *RedisStore) key(k string) string {
	return s.namespace + k
}

// Get returns the blob stored under key or ErrMiss.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Set stores value under key with ttl, or the default TTL when ttl <= 0.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.ttl
	}
	return s.client.Set(ctx, s.key(key), value, ttl).Err()
}

// Delete removes keys and reports how many existed.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = s.key(k)
	}
	n, err := s.client.Del(ctx, names...).Result()
	return int(n), err
}

// DeleteByPrefix removes every key starting with prefix.
func (s *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	var (
		total int
		batch = make([]string, 0, deleteBatch)
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.client.Del(ctx, batch...).Result()
		total += int(n)
		batch = batch[:0]
		return err
	}

	iter := s.client.Scan(ctx, 0, escapeGlob(s.key(prefix))+"*", s.scanCount).Iterator()
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == deleteBatch {
			if err := flush(); err != nil {
				return total, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return total, err
	}
	return total, flush()
}

// DeleteByPrefixes removes the keys of several prefixes. Redis has no
// multi-pattern SCAN, so this is one SCAN per prefix.
func (s *RedisStore) DeleteByPrefixes(ctx context.Context, prefixes []string) (int, error) {
	total := 0
	for _, p := range prefixes {
		n, err := s.DeleteByPrefix(ctx, p)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var globReplacer = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`?`, `\?`,
	`[`, `\[`,
	`]`, `\]`,
)

// escapeGlob quotes MATCH metacharacters so a prefix is taken literally.
func escapeGlob(s string) string {
	return globReplacer.Replace(s)
}
