package di

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap/zaptest"

	"github.com/goliatone/go-donation-cache/cache"
	"github.com/goliatone/go-donation-cache/donations"
	"github.com/goliatone/go-donation-cache/internal/config"
	"github.com/goliatone/go-donation-cache/payments"
	"github.com/goliatone/go-donation-cache/pkg/testsupport"
	"github.com/goliatone/go-donation-cache/store"
)

// fakeProvider remembers created payments and reports them back from List
// with whatever status the test assigns.
type fakeProvider struct {
	mu       sync.Mutex
	created  []payments.Item
	captures int
}

func (p *fakeProvider) Create(_ context.Context, req payments.CreateRequest) (payments.CreateResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := "ext-" + req.Metadata.PaymentID.String()
	p.created = append(p.created, payments.Item{
		ExternalID: id,
		Status:     payments.StatusPending,
		Metadata:   req.Metadata.Map(),
	})
	return payments.CreateResult{ExternalID: id, Status: payments.StatusPending, ConfirmationURL: "https://pay.example/" + id}, nil
}

func (p *fakeProvider) List(context.Context, payments.ListRequest) (payments.Page, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return payments.Page{Items: append([]payments.Item(nil), p.created...)}, nil
}

func (p *fakeProvider) Capture(_ context.Context, externalID string) (payments.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captures++
	p.setLocked(externalID, payments.StatusSucceeded)
	return payments.StatusSucceeded, nil
}

func (p *fakeProvider) setAll(status payments.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.created {
		p.created[i].Status = status
	}
}

func (p *fakeProvider) setLocked(externalID string, status payments.Status) {
	for i := range p.created {
		if p.created[i].ExternalID == externalID {
			p.created[i].Status = status
		}
	}
}

type recordingWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error { return nil }

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

func testConfig(t testing.TB) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("app:\n  env: test\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	return cfg
}

func newTestContainer(t testing.TB, cfg *config.Config, opts ...Option) *Container {
	t.Helper()
	ctx := context.Background()

	opts = append([]Option{
		WithDB(testsupport.OpenSQLite(t)),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	c, err := NewContainer(ctx, cfg, opts...)
	if err != nil {
		t.Fatalf("new container: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	if err := c.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return c
}

func seed(t testing.TB, c *Container, owner uuid.UUID) *donations.CollectView {
	t.Helper()
	ctx := context.Background()

	if _, err := c.Occasions().Create(ctx, &store.Occasion{Slug: "birthday", Name: "Birthday"}); err != nil {
		t.Fatalf("occasion: %v", err)
	}
	if _, err := c.Organizations().Create(ctx, donations.OrganizationInput{Name: "Paws", Description: "shelter"}); err != nil {
		t.Fatalf("organization: %v", err)
	}
	collect, err := c.Collects().Create(ctx, donations.CollectInput{
		Name:         "Cats",
		Description:  "food for cats",
		Organization: "paws",
		Occasion:     "birthday",
		UserID:       owner,
		Email:        "owner@example.com",
	})
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	return collect
}

func TestNewContainer_Defaults(t *testing.T) {
	c := newTestContainer(t, testConfig(t))

	if c.ProviderEnabled() {
		t.Error("provider must be disabled without credentials")
	}
	if c.CacheService() == nil || c.Results() == nil || c.Aggregates() == nil {
		t.Fatal("cache components must be wired")
	}
	if c.CacheService().TTL() != cache.DefaultTTL {
		t.Errorf("expected ttl %s, got %s", cache.DefaultTTL, c.CacheService().TTL())
	}
	if _, ok := c.locker.(*payments.LocalLocker); !ok {
		t.Errorf("expected local locker without redis, got %T", c.locker)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("ping: %v", err)
	}

	s, err := c.Scheduler()
	if err != nil {
		t.Fatalf("scheduler: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Start()
	s.Stop(ctx)
}

func TestNewContainer_DisabledProviderRejectsPayments(t *testing.T) {
	c := newTestContainer(t, testConfig(t))
	seed(t, c, uuid.New())

	_, err := c.Payments().Create(context.Background(), donations.PaymentInput{Collect: "cats", Amount: 10, UserID: uuid.New()})
	if err == nil {
		t.Fatal("expected provider error")
	}
}

func TestNewContainer_InvalidScheduleFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Reconcile.CloseSchedule = "sometimes"
	c := newTestContainer(t, cfg)

	if _, err := c.Scheduler(); err == nil {
		t.Fatal("expected schedule error")
	}
}

func TestNewContainer_RedisWiring(t *testing.T) {
	_, client := testsupport.StartRedis(t)
	cfg := testConfig(t)
	cfg.Notify.Backend = config.NotifyRedis

	c := newTestContainer(t, cfg, WithRedis(client))
	if _, ok := c.locker.(*payments.RedisLocker); !ok {
		t.Errorf("expected redis locker, got %T", c.locker)
	}

	seed(t, c, uuid.New())
	if err := c.notifier.Close(context.Background()); err != nil {
		t.Fatalf("drain notifier: %v", err)
	}

	n, err := client.XLen(context.Background(), cfg.Notify.Stream).Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 notification in the stream, got %d", n)
	}
}

func TestNewContainer_KafkaNotifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notify.Backend = config.NotifyKafka
	w := &recordingWriter{}

	c := newTestContainer(t, cfg, WithKafkaWriter(w))
	seed(t, c, uuid.New())
	if err := c.notifier.Close(context.Background()); err != nil {
		t.Fatalf("drain notifier: %v", err)
	}
	if w.count() != 1 {
		t.Errorf("expected 1 kafka message, got %d", w.count())
	}
}

func TestNewCachedRepository(t *testing.T) {
	c := newTestContainer(t, testConfig(t))

	repo := NewCachedRepository(c, c.problemStore.Repository(), cache.TagProblem)
	if repo.Tag() != cache.TagProblem {
		t.Errorf("expected problem tag, got %s", repo.Tag())
	}
}

func TestClose_Idempotent(t *testing.T) {
	c := newTestContainer(t, testConfig(t))
	if err := c.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Close(context.Background()); err != nil {
		t.Errorf("second close: %v", err)
	}
}
