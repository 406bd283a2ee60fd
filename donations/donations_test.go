package donations

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/goliatone/go-donation-cache/aggregate"
	"github.com/goliatone/go-donation-cache/cache"
	"github.com/goliatone/go-donation-cache/notify"
	"github.com/goliatone/go-donation-cache/payments"
	"github.com/goliatone/go-donation-cache/pkg/testsupport"
	rc "github.com/goliatone/go-donation-cache/repositorycache"
	"github.com/goliatone/go-donation-cache/store"
	"github.com/uptrace/bun"
)

var fixedNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu       sync.Mutex
	messages []notify.Message
}

func (r *recordingNotifier) Notify(_ context.Context, msg notify.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
	return nil
}

func (r *recordingNotifier) received() []notify.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Message(nil), r.messages...)
}

type fakeProvider struct {
	mu       sync.Mutex
	requests []payments.CreateRequest
	err      error
}

func (p *fakeProvider) Create(_ context.Context, req payments.CreateRequest) (payments.CreateResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return payments.CreateResult{}, p.err
	}
	return payments.CreateResult{
		ExternalID:      "ext-" + req.Metadata.PaymentID.String(),
		Status:          payments.StatusPending,
		ConfirmationURL: "https://pay.example/confirm/" + req.Metadata.PaymentID.String(),
	}, nil
}

func (p *fakeProvider) List(context.Context, payments.ListRequest) (payments.Page, error) {
	return payments.Page{}, nil
}

func (p *fakeProvider) Capture(context.Context, string) (payments.Status, error) {
	return payments.StatusSucceeded, nil
}

type fixture struct {
	db         *bun.DB
	stats      *cache.Stats
	results    *rc.ResultCache
	aggregates *aggregate.Cache
	notifier   *recordingNotifier
	provider   *fakeProvider

	collectStore *store.CollectStore
	paymentStore *store.PaymentStore
	orgStore     *store.OrganizationStore
	problems     *store.ReferenceStore[*store.Problem]
	regions      *store.ReferenceStore[*store.Region]
	occasions    *store.ReferenceStore[*store.Occasion]

	collects      *CollectService
	payments      *PaymentService
	organizations *OrganizationService

	owner uuid.UUID
	org   *store.Organization
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db := testsupport.OpenSQLite(t)
	if err := store.CreateSchema(ctx, db); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	backend, err := cache.NewStore(ctx, cache.DefaultConfig())
	if err != nil {
		t.Fatalf("cache store: %v", err)
	}

	f := &fixture{
		db:           db,
		stats:        cache.NewStats(),
		notifier:     &recordingNotifier{},
		provider:     &fakeProvider{},
		collectStore: store.NewCollectStore(db),
		paymentStore: store.NewPaymentStore(db),
		orgStore:     store.NewOrganizationStore(db),
		problems:     store.NewProblemStore(db),
		regions:      store.NewRegionStore(db),
		occasions:    store.NewOccasionStore(db),
		owner:        uuid.New(),
	}
	svc := cache.NewService(backend, cache.WithObserver(f.stats))
	f.results = rc.NewResultCache(svc)
	f.aggregates = aggregate.New(svc, f.paymentStore)

	opts := []Option{WithNotifier(f.notifier), WithClock(func() time.Time { return fixedNow })}
	f.collects = NewCollectService(f.collectStore, f.orgStore, f.occasions, f.results, f.aggregates, opts...)
	f.payments = NewPaymentService(f.paymentStore, f.collectStore, f.provider, f.results, "https://donations.example/return", opts...)
	f.organizations = NewOrganizationService(f.orgStore, f.problems, f.regions, f.results, f.aggregates, opts...)

	if _, err := f.occasions.Create(ctx, &store.Occasion{Slug: "birthday", Name: "Birthday"}); err != nil {
		t.Fatalf("create occasion: %v", err)
	}
	org, err := f.orgStore.Create(ctx, &store.Organization{Slug: "paws", Name: "Paws", Description: "animal shelter"}, nil, nil)
	if err != nil {
		t.Fatalf("create organization: %v", err)
	}
	f.org = org
	return f
}

func (f *fixture) createCollect(t *testing.T, name string) *CollectView {
	t.Helper()
	view, err := f.collects.Create(context.Background(), CollectInput{
		Name:         name,
		Description:  "help " + name,
		Organization: f.org.Slug,
		Occasion:     "birthday",
		UserID:       f.owner,
		Email:        "owner@example.com",
	})
	if err != nil {
		t.Fatalf("create collect %s: %v", name, err)
	}
	return view
}

func (f *fixture) succeededPayment(t *testing.T, collectID, userID uuid.UUID, amount int64) {
	t.Helper()
	_, err := f.db.NewInsert().Model(&store.Payment{
		ID:        uuid.New(),
		CollectID: collectID,
		UserID:    userID,
		Amount:    amount,
		Status:    payments.StatusSucceeded,
		CreatedAt: fixedNow,
	}).Exec(context.Background())
	if err != nil {
		t.Fatalf("insert payment: %v", err)
	}
}

func fieldErrors(t *testing.T, err error) validation.Errors {
	t.Helper()
	var errs validation.Errors
	if !errors.As(err, &errs) {
		t.Fatalf("expected validation.Errors, got %T: %v", err, err)
	}
	return errs
}

func ptr[T any](v T) *T { return &v }

func TestCollectService_CreateValidation(t *testing.T) {
	f := newFixture(t)

	valid := func() CollectInput {
		return CollectInput{Name: "Cats", Description: "food", Organization: "paws", Occasion: "birthday", UserID: f.owner}
	}

	tests := []struct {
		name   string
		modify func(*CollectInput)
		field  string
	}{
		{"missing name", func(in *CollectInput) { in.Name = "" }, "name"},
		{"close date today", func(in *CollectInput) { in.CloseDatetime = ptr(fixedNow.Add(time.Hour)) }, "close_datetime"},
		{"close date past", func(in *CollectInput) { in.CloseDatetime = ptr(fixedNow.AddDate(0, 0, -3)) }, "close_datetime"},
		{"video without v", func(in *CollectInput) { in.URLVideo = ptr("https://www.youtube.com/watch") }, "url_video"},
		{"video other host", func(in *CollectInput) { in.URLVideo = ptr("https://vimeo.com/watch?v=1") }, "url_video"},
		{"zero required amount", func(in *CollectInput) { in.RequiredAmount = ptr(int64(0)) }, "required_amount"},
		{"required amount too large", func(in *CollectInput) { in.RequiredAmount = ptr(MaxAmount + 1) }, "required_amount"},
		{"unknown organization", func(in *CollectInput) { in.Organization = "nobody" }, "organization"},
		{"unknown occasion", func(in *CollectInput) { in.Occasion = "wedding" }, "occasion"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.modify(&in)
			_, err := f.collects.Create(context.Background(), in)
			errs := fieldErrors(t, err)
			if _, ok := errs[tt.field]; !ok {
				t.Errorf("expected error on %s, got %v", tt.field, errs)
			}
		})
	}

	if got := len(f.notifier.received()); got != 0 {
		t.Errorf("rejected input must not notify, got %d messages", got)
	}
}

func TestCollectService_CreateNormalizesAndNotifies(t *testing.T) {
	f := newFixture(t)

	view, err := f.collects.Create(context.Background(), CollectInput{
		Name:           "Winter Food",
		Description:    "feed the cats",
		Organization:   "paws",
		Occasion:       "birthday",
		RequiredAmount: ptr(int64(5000)),
		URLVideo:       ptr("https://www.youtube.com/watch?v=abc123&t=42s"),
		CloseDatetime:  ptr(fixedNow.AddDate(0, 0, 1)),
		UserID:         f.owner,
		Email:          "owner@example.com",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if view.Slug != "winter-food" {
		t.Errorf("expected slug winter-food, got %q", view.Slug)
	}
	if !view.IsActive {
		t.Error("new collect should be active")
	}
	if view.URLVideo == nil || *view.URLVideo != "https://www.youtube.com/watch?v=abc123" {
		t.Errorf("unexpected video url %v", view.URLVideo)
	}
	if view.SumAmount != nil || view.DonorCount != 0 {
		t.Errorf("new collect should have no donations, got %v/%d", view.SumAmount, view.DonorCount)
	}

	msgs := f.notifier.received()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(msgs))
	}
	if msgs[0].Subject != notify.SubjectCollectCreated || len(msgs[0].Recipients) != 1 || msgs[0].Recipients[0] != "owner@example.com" {
		t.Errorf("unexpected notification %+v", msgs[0])
	}
}

func TestCollectService_GetIsCachedAndUpdateInvalidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createCollect(t, "Cats")

	if _, err := f.collects.Get(ctx, "cats"); err != nil {
		t.Fatalf("first get: %v", err)
	}
	hits := f.stats.Hits(cache.TagCollect)
	if _, err := f.collects.Get(ctx, "cats"); err != nil {
		t.Fatalf("second get: %v", err)
	}
	if got := f.stats.Hits(cache.TagCollect); got != hits+1 {
		t.Errorf("second get should hit the cache, hits %d -> %d", hits, got)
	}

	if _, err := f.collects.Update(ctx, "cats", f.owner, CollectUpdate{Description: ptr("updated")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	view, err := f.collects.Get(ctx, "cats")
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if view.Description != "updated" {
		t.Errorf("expected fresh description after update, got %q", view.Description)
	}
}

func TestCollectService_CreateDeduplicatesSlugs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.createCollect(t, "Help kids!")
	second := f.createCollect(t, "Help kids?")
	third := f.createCollect(t, "Help, kids")

	got := []string{first.Slug, second.Slug, third.Slug}
	want := []string{"help-kids", "help-kids-2", "help-kids-3"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("collect %d: expected slug %q, got %q", i, want[i], got[i])
		}
	}

	view, err := f.collects.Get(ctx, "help-kids-2")
	if err != nil {
		t.Fatalf("get by suffixed slug: %v", err)
	}
	if view.Name != "Help kids?" {
		t.Errorf("expected the second collect, got %q", view.Name)
	}
}

func TestCollectService_UpdateRequiresOwner(t *testing.T) {
	f := newFixture(t)
	f.createCollect(t, "Cats")

	_, err := f.collects.Update(context.Background(), "cats", uuid.New(), CollectUpdate{Description: ptr("x")})
	if !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner, got %v", err)
	}
	if err := f.collects.Close(context.Background(), "cats", uuid.New()); !errors.Is(err, ErrNotOwner) {
		t.Errorf("expected ErrNotOwner on close, got %v", err)
	}
}

func TestCollectService_CloseInvalidatesCachedCollect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createCollect(t, "Cats")

	if _, err := f.collects.Get(ctx, "cats"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	if err := f.collects.Close(ctx, "cats", f.owner); err != nil {
		t.Fatalf("close: %v", err)
	}
	view, err := f.collects.Get(ctx, "cats")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.IsActive {
		t.Error("closed collect must not be served active from cache")
	}
}

func TestCollectService_EmbedsAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCollect(t, "Cats")

	donor := uuid.New()
	f.succeededPayment(t, c.ID, donor, 100)
	f.succeededPayment(t, c.ID, donor, 200)
	f.succeededPayment(t, c.ID, uuid.New(), 300)

	// Create computed and cached the empty aggregates; drop them the way
	// the reconciler does after a status change.
	if _, err := f.aggregates.Invalidate(ctx, aggregate.CollectRefs(c.ID)...); err != nil {
		t.Fatalf("invalidate: %v", err)
	}

	view, err := f.collects.Get(ctx, "cats")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if view.SumAmount == nil || *view.SumAmount != 600 {
		t.Errorf("expected sum 600, got %v", view.SumAmount)
	}
	if view.DonorCount != 2 {
		t.Errorf("expected 2 donors, got %d", view.DonorCount)
	}

	org, err := f.organizations.Get(ctx, "paws")
	if err != nil {
		t.Fatalf("organization get: %v", err)
	}
	if org.SumAmount == nil || *org.SumAmount != 600 {
		t.Errorf("expected organization sum 600, got %v", org.SumAmount)
	}
}

func TestCollectService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createCollect(t, "Cats")
	f.createCollect(t, "Dogs")

	views, total, err := f.collects.List(ctx, url.Values{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(views) != 2 {
		t.Fatalf("expected 2 collects, got %d/%d", len(views), total)
	}

	hits := f.stats.Hits(cache.TagCollect)
	if _, _, err := f.collects.List(ctx, url.Values{}); err != nil {
		t.Fatalf("second list: %v", err)
	}
	if f.stats.Hits(cache.TagCollect) <= hits {
		t.Error("second list should be served from cache")
	}

	views, total, err = f.collects.List(ctx, url.Values{ParamOrganization: {"nobody"}})
	if err != nil {
		t.Fatalf("list unknown organization: %v", err)
	}
	if total != 0 || len(views) != 0 {
		t.Errorf("expected empty list, got %d/%d", len(views), total)
	}

	views, _, err = f.collects.List(ctx, url.Values{ParamLimit: {"1"}, ParamOrganization: {"paws"}})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(views) != 1 {
		t.Errorf("expected one collect per page, got %d", len(views))
	}

	// A new collect invalidates every cached list page.
	f.createCollect(t, "Birds")
	if _, total, _ = f.collects.List(ctx, url.Values{}); total != 3 {
		t.Errorf("expected 3 collects after create, got %d", total)
	}
}

func TestPaymentService_Create(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.createCollect(t, "Cats")
	user := uuid.New()

	if _, err := f.payments.ListForUser(ctx, user); err != nil {
		t.Fatalf("warm payments: %v", err)
	}

	res, err := f.payments.Create(ctx, PaymentInput{Collect: "cats", Amount: 500, UserID: user, Email: "donor@example.com"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.Payment.Status != payments.StatusPending {
		t.Errorf("expected pending, got %s", res.Payment.Status)
	}
	if res.Payment.ExternalID == "" || res.ConfirmationURL == "" {
		t.Errorf("expected provider ids, got %+v", res)
	}

	req := f.provider.requests[0]
	if req.Metadata.CollectID != c.ID || req.Metadata.CollectLookup != "cats" || req.Metadata.UserID != user {
		t.Errorf("unexpected metadata %+v", req.Metadata)
	}
	if req.Currency != DefaultCurrency || req.Amount != 500 {
		t.Errorf("unexpected request %+v", req)
	}

	list, err := f.payments.ListForUser(ctx, user)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("cached empty list must be invalidated by create, got %d payments", len(list))
	}

	msgs := f.notifier.received()
	if last := msgs[len(msgs)-1]; last.Subject != notify.SubjectPaymentCreated {
		t.Errorf("expected payment notification, got %+v", last)
	}
}

func TestPaymentService_CreateRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createCollect(t, "Cats")
	f.createCollect(t, "Dogs")
	if err := f.collects.Close(ctx, "dogs", f.owner); err != nil {
		t.Fatalf("close: %v", err)
	}
	user := uuid.New()

	t.Run("amount out of range", func(t *testing.T) {
		for _, amount := range []int64{0, -5, MaxAmount + 1} {
			_, err := f.payments.Create(ctx, PaymentInput{Collect: "cats", Amount: amount, UserID: user})
			if _, ok := fieldErrors(t, err)["payment_amount"]; !ok {
				t.Errorf("amount %d: expected payment_amount error", amount)
			}
		}
	})

	t.Run("unknown collect", func(t *testing.T) {
		_, err := f.payments.Create(ctx, PaymentInput{Collect: "nothing", Amount: 10, UserID: user})
		if _, ok := fieldErrors(t, err)["collect"]; !ok {
			t.Error("expected collect error")
		}
	})

	t.Run("closed collect", func(t *testing.T) {
		_, err := f.payments.Create(ctx, PaymentInput{Collect: "dogs", Amount: 10, UserID: user})
		if !errors.Is(err, ErrCollectClosed) {
			t.Errorf("expected ErrCollectClosed, got %v", err)
		}
	})

	t.Run("provider failure rolls back", func(t *testing.T) {
		f.provider.err = payments.ErrProviderUnavailable
		defer func() { f.provider.err = nil }()

		_, err := f.payments.Create(ctx, PaymentInput{Collect: "cats", Amount: 10, UserID: user})
		if !errors.Is(err, payments.ErrProviderUnavailable) {
			t.Fatalf("expected provider error, got %v", err)
		}
		list, err := f.payments.ListForUser(ctx, user)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 0 {
			t.Errorf("failed payment must not be stored, got %d", len(list))
		}
	})

	if got := len(f.provider.requests); got != 1 {
		t.Errorf("only the provider failure case should reach the provider, got %d calls", got)
	}
}

func TestOrganizationService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.problems.Create(ctx, &store.Problem{Slug: "hunger", Name: "Hunger"}); err != nil {
		t.Fatalf("problem: %v", err)
	}
	if _, err := f.regions.Create(ctx, &store.Region{Slug: "north", Name: "North"}); err != nil {
		t.Fatalf("region: %v", err)
	}

	created, err := f.organizations.Create(ctx, OrganizationInput{
		Name:        "Food Bank",
		Description: "feeds people",
		Problems:    []string{"hunger"},
		Regions:     []string{"north"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Slug != "food-bank" || created.SumAmount != nil {
		t.Errorf("unexpected organization %+v", created)
	}

	_, err = f.organizations.Create(ctx, OrganizationInput{Name: "X", Description: "y", Problems: []string{"war"}})
	if _, ok := fieldErrors(t, err)["problems"]; !ok {
		t.Error("expected problems error for unknown slug")
	}

	tests := []struct {
		name   string
		params url.Values
		total  int
	}{
		{"all", url.Values{}, 2},
		{"by name", url.Values{ParamName: {"food"}}, 1},
		{"by problem", url.Values{ParamProblems: {"hunger"}}, 1},
		{"by region list", url.Values{ParamRegions: {"south,north"}}, 1},
		{"no match", url.Values{ParamProblems: {"war"}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views, total, err := f.organizations.List(ctx, tt.params)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if total != tt.total || len(views) != tt.total {
				t.Errorf("expected %d, got %d/%d", tt.total, len(views), total)
			}
		})
	}

	if _, err := f.organizations.Update(ctx, "food-bank", OrganizationInput{Name: "Food Bank", Description: "feeds everyone", Problems: []string{}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	_, total, err := f.organizations.List(ctx, url.Values{ParamProblems: {"hunger"}})
	if err != nil {
		t.Fatalf("list after update: %v", err)
	}
	if total != 0 {
		t.Errorf("cleared problem links must be visible after update, got %d", total)
	}
}

func TestReferenceService(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	regions := NewReferenceService(f.regions, f.results, cache.TagRegion)

	for _, r := range []*store.Region{{Slug: "south", Name: "South"}, {Slug: "north", Name: "North"}} {
		if _, err := regions.Create(ctx, r); err != nil {
			t.Fatalf("create %s: %v", r.Slug, err)
		}
	}

	list, err := regions.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Slug != "north" {
		t.Fatalf("expected regions ordered by name, got %+v", list)
	}
	hits := f.stats.Hits(cache.TagRegion)
	if _, err := regions.List(ctx); err != nil {
		t.Fatalf("second list: %v", err)
	}
	if f.stats.Hits(cache.TagRegion) != hits+1 {
		t.Error("second list should hit the cache")
	}

	got, err := regions.Get(ctx, "south")
	if err != nil || got.Name != "South" {
		t.Fatalf("get: %+v %v", got, err)
	}

	if err := regions.Delete(ctx, "south"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	list, err = regions.List(ctx)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("delete must invalidate the cached list, got %d", len(list))
	}
	if _, err := regions.Get(ctx, "south"); err == nil {
		t.Error("deleted region must not be served from cache")
	}
	if regions.Tag() != cache.TagRegion {
		t.Errorf("unexpected tag %s", regions.Tag())
	}
}

func TestNormalizeVideoURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"https://www.youtube.com/watch?v=abc", "https://www.youtube.com/watch?v=abc", true},
		{"http://youtube.com/watch?list=x&v=abc", "http://youtube.com/watch?v=abc", true},
		{"https://m.youtube.com/watch?v=a%20b", "https://m.youtube.com/watch?v=a+b", true},
		{"ftp://www.youtube.com/watch?v=abc", "", false},
		{"https://youtu.be/abc", "", false},
		{"https://www.youtube.com/watch", "", false},
		{"not a url", "", false},
	}
	for _, tt := range tests {
		got, err := NormalizeVideoURL(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("%q: unexpected error state %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Winter Food":      "winter-food",
		"  Cats & Dogs!! ": "cats-and-dogs",
		"Help kids?":       "help-kids",
		"2024 drive":       "2024-drive",
	}
	for in, want := range tests {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}

	// Cyrillic names are transliterated so lookups stay ASCII.
	got := Slugify("Помощь детям")
	if !strings.HasPrefix(got, "pomoshch-") {
		t.Errorf("expected transliterated slug, got %q", got)
	}
	for _, r := range got {
		if r > unicode.MaxASCII {
			t.Errorf("expected ASCII slug, got %q", got)
			break
		}
	}
	if got := Slugify("!!!"); len(got) != 8 {
		t.Errorf("expected random 8 char slug, got %q", got)
	}
}

func TestPageFromParams(t *testing.T) {
	tests := []struct {
		params url.Values
		want   store.Page
	}{
		{url.Values{}, store.Page{Limit: store.DefaultPageLimit}},
		{url.Values{ParamLimit: {"5"}, ParamOffset: {"10"}}, store.Page{Limit: 5, Offset: 10}},
		{url.Values{ParamLimit: {"500"}}, store.Page{Limit: store.MaxPageLimit}},
		{url.Values{ParamLimit: {"abc"}, ParamOffset: {"-1"}}, store.Page{Limit: store.DefaultPageLimit}},
	}
	for _, tt := range tests {
		if got := pageFromParams(tt.params); got != tt.want {
			t.Errorf("%v: expected %+v, got %+v", tt.params, tt.want, got)
		}
	}
}
