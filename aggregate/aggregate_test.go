package aggregate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-donation-cache/cache"
	"github.com/goliatone/go-donation-cache/internal/cacheinfra"
)

type payment struct {
	collect uuid.UUID
	org     uuid.UUID
	user    uuid.UUID
	amount  int64
	status  string
}

// fakeSource aggregates an in-memory payment table and counts calls.
type fakeSource struct {
	mu       sync.Mutex
	payments []payment
	calls    []string
	err      error
}

func (f *fakeSource) SumSucceeded(ctx context.Context, kind Kind, id uuid.UUID) (Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "sum:"+string(kind)+":"+id.String())
	if f.err != nil {
		return Value{}, f.err
	}
	var v Value
	for _, p := range f.payments {
		if p.status != "succeeded" {
			continue
		}
		if (kind == KindCollect && p.collect == id) || (kind == KindOrganization && p.org == id) {
			v.N += p.amount
			v.Valid = true
		}
	}
	return v, nil
}

func (f *fakeSource) CountDonors(ctx context.Context, collectID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "donors:"+collectID.String())
	if f.err != nil {
		return 0, f.err
	}
	users := map[uuid.UUID]struct{}{}
	for _, p := range f.payments {
		if p.status == "succeeded" && p.collect == collectID {
			users[p.user] = struct{}{}
		}
	}
	return int64(len(users)), nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func newTestCache(t *testing.T, source Source) (*Cache, *cache.Service) {
	t.Helper()
	store, err := cacheinfra.NewSturdycStore(cacheinfra.DefaultConfig())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	svc := cache.NewService(store)
	return New(svc, source), svc
}

func TestGetOrCompute_GroundTruth(t *testing.T) {
	collect, org := uuid.New(), uuid.New()
	alice, bob, carol := uuid.New(), uuid.New(), uuid.New()
	source := &fakeSource{payments: []payment{
		{collect: collect, org: org, user: alice, amount: 100, status: "succeeded"},
		{collect: collect, org: org, user: bob, amount: 200, status: "succeeded"},
		{collect: collect, org: org, user: alice, amount: 300, status: "succeeded"},
		{collect: collect, org: org, user: carol, amount: 500, status: "pending"},
	}}
	agg, _ := newTestCache(t, source)
	ctx := context.Background()

	sum, err := agg.GetOrCompute(ctx, KindCollect, collect, MetricSumAmount)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if !sum.Valid || sum.N != 600 {
		t.Errorf("expected sum 600, got %+v", sum)
	}

	donors, err := agg.GetOrCompute(ctx, KindCollect, collect, MetricDonorCount)
	if err != nil {
		t.Fatalf("donors: %v", err)
	}
	if donors.N != 2 {
		t.Errorf("expected 2 distinct donors, got %d", donors.N)
	}

	orgSum, err := agg.GetOrCompute(ctx, KindOrganization, org, MetricSumAmount)
	if err != nil {
		t.Fatalf("organization sum: %v", err)
	}
	if orgSum.N != 600 {
		t.Errorf("expected organization sum 600, got %d", orgSum.N)
	}
}

func TestGetOrCompute_Idempotent(t *testing.T) {
	collect := uuid.New()
	source := &fakeSource{payments: []payment{
		{collect: collect, user: uuid.New(), amount: 250, status: "succeeded"},
	}}
	agg, _ := newTestCache(t, source)
	ctx := context.Background()

	first, err := agg.GetOrCompute(ctx, KindCollect, collect, MetricSumAmount)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := agg.GetOrCompute(ctx, KindCollect, collect, MetricSumAmount)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if first != second {
		t.Errorf("expected identical values, got %+v and %+v", first, second)
	}
	if source.callCount() != 1 {
		t.Errorf("expected one computation, got %d", source.callCount())
	}
}

func TestGetOrCompute_ZeroDonationsIsCached(t *testing.T) {
	collect := uuid.New()
	source := &fakeSource{}
	agg, svc := newTestCache(t, source)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		v, err := agg.GetOrCompute(ctx, KindCollect, collect, MetricSumAmount)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if v.Valid {
			t.Fatalf("expected no data, got %+v", v)
		}
		if v.Int() != nil {
			t.Fatal("expected nil integer for no data")
		}
	}
	if source.callCount() != 1 {
		t.Errorf("no-data result should be served from cache, got %d computations", source.callCount())
	}

	ref := Ref{Kind: KindCollect, ID: collect, Metric: MetricSumAmount}
	if _, err := svc.Store().Get(ctx, ref.Key().String()); err != nil {
		t.Errorf("expected sentinel entry in the store, got %v", err)
	}
}

func TestGetOrCompute_ZeroDonorsIsAValue(t *testing.T) {
	collect := uuid.New()
	agg, _ := newTestCache(t, &fakeSource{})

	v, err := agg.GetOrCompute(context.Background(), KindCollect, collect, MetricDonorCount)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !v.Valid || v.N != 0 {
		t.Errorf("expected a valid zero, got %+v", v)
	}
}

func TestGetOrCompute_UnsupportedMetric(t *testing.T) {
	source := &fakeSource{}
	agg, _ := newTestCache(t, source)

	_, err := agg.GetOrCompute(context.Background(), KindOrganization, uuid.New(), MetricDonorCount)
	if !errors.Is(err, ErrUnsupportedMetric) {
		t.Fatalf("expected ErrUnsupportedMetric, got %v", err)
	}
	_, err = agg.GetOrCompute(context.Background(), Kind("payment"), uuid.New(), MetricSumAmount)
	if !errors.Is(err, ErrUnsupportedMetric) {
		t.Fatalf("expected ErrUnsupportedMetric, got %v", err)
	}
	if source.callCount() != 0 {
		t.Error("source must not be queried for unsupported metrics")
	}
}

func TestGetOrCompute_SourceErrorNotCached(t *testing.T) {
	collect := uuid.New()
	source := &fakeSource{err: errors.New("db down")}
	agg, _ := newTestCache(t, source)
	ctx := context.Background()

	if _, err := agg.GetOrCompute(ctx, KindCollect, collect, MetricSumAmount); err == nil {
		t.Fatal("expected source error")
	}

	source.mu.Lock()
	source.err = nil
	source.mu.Unlock()

	if _, err := agg.GetOrCompute(ctx, KindCollect, collect, MetricSumAmount); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if source.callCount() != 2 {
		t.Errorf("expected the failure to be retried, got %d calls", source.callCount())
	}
}

func TestInvalidate_OnlyGivenEntries(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	source := &fakeSource{}
	agg, _ := newTestCache(t, source)
	ctx := context.Background()

	for _, id := range []uuid.UUID{a, b} {
		if _, err := agg.GetOrCompute(ctx, KindCollect, id, MetricSumAmount); err != nil {
			t.Fatalf("warm: %v", err)
		}
	}

	source.mu.Lock()
	source.payments = append(source.payments, payment{collect: a, user: uuid.New(), amount: 50, status: "succeeded"})
	source.mu.Unlock()

	deleted, err := agg.Invalidate(ctx, CollectRefs(a)...)
	if err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if deleted != 1 {
		t.Errorf("expected the cached sum of a to be dropped, got %d", deleted)
	}

	v, _ := agg.GetOrCompute(ctx, KindCollect, a, MetricSumAmount)
	if !v.Valid || v.N != 50 {
		t.Errorf("expected fresh sum 50, got %+v", v)
	}
	if _, err := agg.GetOrCompute(ctx, KindCollect, b, MetricSumAmount); err != nil {
		t.Fatalf("get b: %v", err)
	}
	// Two warm-up computations plus the recomputation of a.
	if source.callCount() != 3 {
		t.Errorf("expected b to stay cached, got %d calls", source.callCount())
	}
}

func TestRefKeys(t *testing.T) {
	id := uuid.MustParse("8f0c6f5e-5a0f-4c3e-9a7c-6c1f1f4b9e01")

	keys := Keys(append(CollectRefs(id), OrganizationRefs(id)...)...)
	want := []string{
		"aggregate_collect_" + id.String() + "_sum_amount",
		"aggregate_collect_" + id.String() + "_donor_count",
		"aggregate_organization_" + id.String() + "_sum_amount",
	}
	for i, k := range keys {
		if k.String() != want[i] {
			t.Errorf("key %d: expected %q, got %q", i, want[i], k.String())
		}
		if k.Tag != cache.TagAggregate || !strings.HasPrefix(k.String(), "aggregate_") {
			t.Errorf("key %q is not owned by the aggregate tag", k)
		}
	}
}

func TestEntryComputedAt(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store, _ := cacheinfra.NewSturdycStore(cacheinfra.DefaultConfig())
	svc := cache.NewService(store)
	collect := uuid.New()
	agg := New(svc, &fakeSource{}, WithClock(func() time.Time { return fixed }))

	if _, err := agg.GetOrCompute(context.Background(), KindCollect, collect, MetricDonorCount); err != nil {
		t.Fatalf("get: %v", err)
	}

	ref := Ref{Kind: KindCollect, ID: collect, Metric: MetricDonorCount}
	entry, err := cache.Fetch(context.Background(), svc, ref.Key(), func(ctx context.Context) (Entry, error) {
		t.Fatal("entry should be cached")
		return Entry{}, nil
	})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !entry.ComputedAt.Equal(fixed) {
		t.Errorf("expected computed at %s, got %s", fixed, entry.ComputedAt)
	}
	if entry.EntityID != collect.String() || entry.Metric != MetricDonorCount {
		t.Errorf("unexpected entry %+v", entry)
	}
}
