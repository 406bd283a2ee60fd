package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newRedisTestStore(t *testing.T, namespace string) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)

	cfg := DefaultConfig()
	cfg.RedisURL = "redis://" + srv.Addr() + "/0"
	cfg.Namespace = namespace

	store, err := OpenRedisStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("open redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store, srv
}

func TestRedisStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	store, srv := newRedisTestStore(t, "donations:")

	if _, err := store.Get(ctx, "collect_1"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	if err := store.Set(ctx, "collect_1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !srv.Exists("donations:collect_1") {
		t.Fatal("expected namespaced key in redis")
	}

	got, err := store.Get(ctx, "collect_1")
	if err != nil || string(got) != "v1" {
		t.Fatalf("expected v1, got %q, %v", got, err)
	}

	n, err := store.Delete(ctx, "collect_1", "collect_2")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deletion, got %d", n)
	}
}

func TestRedisStore_TTL(t *testing.T) {
	ctx := context.Background()
	store, srv := newRedisTestStore(t, "")

	if err := store.Set(ctx, "payment_queryset_u1", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ttl := srv.TTL("payment_queryset_u1"); ttl != DefaultConfig().TTL {
		t.Errorf("expected default TTL, got %s", ttl)
	}

	srv.FastForward(DefaultConfig().TTL)
	if _, err := store.Get(ctx, "payment_queryset_u1"); !errors.Is(err, ErrMiss) {
		t.Errorf("expected miss after TTL, got %v", err)
	}
}

func TestRedisStore_DeleteByPrefix(t *testing.T) {
	ctx := context.Background()
	store, srv := newRedisTestStore(t, "ns:")

	for i := 0; i < deleteBatch+10; i++ {
		_ = store.Set(ctx, fmt.Sprintf("collect_list_%d", i), []byte("v"), 0)
	}
	_ = store.Set(ctx, "organization_1", []byte("v"), 0)
	_ = srv.Set("other:collect_1", "foreign")

	n, err := store.DeleteByPrefix(ctx, "collect_")
	if err != nil {
		t.Fatalf("delete by prefix: %v", err)
	}
	if n != deleteBatch+10 {
		t.Errorf("expected %d deletions, got %d", deleteBatch+10, n)
	}
	if !srv.Exists("ns:organization_1") {
		t.Error("organization entry should survive")
	}
	if !srv.Exists("other:collect_1") {
		t.Error("keys of another namespace should survive")
	}
}

func TestRedisStore_DeleteByPrefixIsLiteral(t *testing.T) {
	ctx := context.Background()
	store, srv := newRedisTestStore(t, "")

	_ = srv.Set("collect_list_x", "v")
	_ = srv.Set("collect_*_y", "v")

	n, err := store.DeleteByPrefix(ctx, "collect_*")
	if err != nil {
		t.Fatalf("delete by prefix: %v", err)
	}
	if n != 1 {
		t.Errorf("expected only the literal match, got %d", n)
	}
	if !srv.Exists("collect_list_x") {
		t.Error("glob characters in the prefix must not match other keys")
	}
}

func TestRedisStore_DeleteByPrefixes(t *testing.T) {
	ctx := context.Background()
	store, srv := newRedisTestStore(t, "")
	for _, k := range []string{"region_1", "problem_1", "occasion_1"} {
		_ = srv.Set(k, "v")
	}

	n, err := store.DeleteByPrefixes(ctx, []string{"region_", "problem_"})
	if err != nil {
		t.Fatalf("delete by prefixes: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deletions, got %d", n)
	}
	if !srv.Exists("occasion_1") {
		t.Error("occasion entry should survive")
	}
}

func TestOpenRedisStore_Unreachable(t *testing.T) {
	srv := miniredis.RunT(t)
	addr := srv.Addr()
	srv.Close()

	cfg := DefaultConfig()
	cfg.RedisURL = "redis://" + addr + "/0"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := OpenRedisStore(ctx, cfg); err == nil {
		t.Fatal("expected ping failure")
	}
}
