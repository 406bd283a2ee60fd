package di

import (
	"context"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/hashicorp/go-multierror"
	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-donation-cache/aggregate"
	"github.com/goliatone/go-donation-cache/cache"
	"github.com/goliatone/go-donation-cache/donations"
	"github.com/goliatone/go-donation-cache/internal/config"
	"github.com/goliatone/go-donation-cache/internal/metrics"
	"github.com/goliatone/go-donation-cache/notify"
	"github.com/goliatone/go-donation-cache/payments"
	"github.com/goliatone/go-donation-cache/payments/yookassa"
	"github.com/goliatone/go-donation-cache/repositorycache"
	"github.com/goliatone/go-donation-cache/store"
)

// Job names double as lease names.
const (
	JobReconcile    = "reconcile-payments"
	JobCloseExpired = "close-expired-collects"
)

// Container wires the application from a config. Every component is built
// once in NewContainer and shared; Close releases the connections it opened.
type Container struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Collector

	db    *bun.DB
	redis redis.UniversalClient

	cacheService *cache.Service
	results      *repositorycache.ResultCache
	aggregates   *aggregate.Cache

	collectStore  *store.CollectStore
	paymentStore  *store.PaymentStore
	orgStore      *store.OrganizationStore
	problemStore  *store.ReferenceStore[*store.Problem]
	regionStore   *store.ReferenceStore[*store.Region]
	occasionStore *store.ReferenceStore[*store.Occasion]
	coverStore    *store.ReferenceStore[*store.DefaultCover]

	notifier    *notify.Async
	kafkaWriter notify.MessageWriter
	provider    payments.Provider
	locker      payments.Locker
	reconciler  *payments.Reconciler
	closer      *payments.ExpiredCloser

	collects      *donations.CollectService
	payments      *donations.PaymentService
	organizations *donations.OrganizationService
	problems      *donations.ReferenceService[*store.Problem]
	regions       *donations.ReferenceService[*store.Region]
	occasions     *donations.ReferenceService[*store.Occasion]
	covers        *donations.ReferenceService[*store.DefaultCover]

	closers []func(context.Context) error
}

// Option overrides a dependency the container would otherwise build.
type Option func(*Container)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Container) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDB uses db instead of opening the configured database. The caller
// keeps ownership of db.
func WithDB(db *bun.DB) Option {
	return func(c *Container) {
		c.db = db
	}
}

// WithRedis uses client instead of connecting to the configured URL. The
// caller keeps ownership of client.
func WithRedis(client redis.UniversalClient) Option {
	return func(c *Container) {
		c.redis = client
	}
}

// WithProvider uses provider instead of the YooKassa client.
func WithProvider(provider payments.Provider) Option {
	return func(c *Container) {
		c.provider = provider
	}
}

// WithKafkaWriter uses w for the kafka notifier instead of dialing brokers.
func WithKafkaWriter(w notify.MessageWriter) Option {
	return func(c *Container) {
		c.kafkaWriter = w
	}
}

// NewContainer builds every component from cfg.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	c := &Container{
		cfg:     cfg,
		logger:  zap.NewNop(),
		metrics: metrics.New(),
	}
	for _, opt := range opts {
		opt(c)
	}

	steps := []func(context.Context) error{
		c.openDatabase,
		c.openRedis,
		c.buildCache,
		c.buildNotifier,
		c.buildProvider,
		c.buildServices,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			_ = c.Close(context.WithoutCancel(ctx))
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) openDatabase(context.Context) error {
	if c.db != nil {
		return nil
	}
	db, err := store.Open(c.cfg.Database.Driver, c.cfg.Database.DSN)
	if err != nil {
		return err
	}
	c.db = db
	c.onClose(func(context.Context) error { return db.Close() })
	return nil
}

func (c *Container) openRedis(ctx context.Context) error {
	if c.redis != nil || c.cfg.Redis.URL == "" {
		return nil
	}
	opts, err := redis.ParseURL(c.cfg.Redis.URL)
	if err != nil {
		return pkgerrors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return pkgerrors.Wrap(err, "ping redis")
	}
	c.redis = client
	c.onClose(func(context.Context) error { return client.Close() })
	return nil
}

func (c *Container) buildCache(ctx context.Context) error {
	backend, err := cache.NewStore(ctx, c.cfg.CacheConfig())
	if err != nil {
		return pkgerrors.Wrap(err, "cache store")
	}
	if closer, ok := backend.(interface{ Close() error }); ok {
		c.onClose(func(context.Context) error { return closer.Close() })
	}
	c.cacheService = cache.NewService(backend,
		cache.WithLogger(c.logger.Named("cache")),
		cache.WithObserver(c.metrics),
		cache.WithTTL(c.cfg.Cache.TTL),
	)
	c.results = repositorycache.NewResultCache(c.cacheService)
	return nil
}

func (c *Container) buildNotifier(context.Context) error {
	var base notify.Notifier
	switch c.cfg.Notify.Backend {
	case config.NotifyRedis:
		if c.redis == nil {
			return pkgerrors.New("redis notifier needs a redis connection")
		}
		base = notify.NewRedisStream(c.redis, c.cfg.Notify.Stream, c.cfg.Notify.MaxLen)
	case config.NotifyKafka:
		if c.kafkaWriter == nil {
			c.kafkaWriter = notify.NewKafkaWriter(c.cfg.Notify.Brokers, c.cfg.Notify.Topic)
		}
		k := notify.NewKafka(c.kafkaWriter)
		c.onClose(func(context.Context) error { return k.Close() })
		base = k
	default:
		base = notify.NewLog(c.logger.Named("notify"))
	}

	c.notifier = notify.NewAsync(base, c.cfg.Notify.QueueSize, c.cfg.Notify.Workers,
		notify.WithAsyncLogger(c.logger.Named("notify")),
	)
	// Registered after the transport so it drains before the transport closes.
	c.onClose(c.notifier.Close)
	return nil
}

func (c *Container) buildProvider(context.Context) error {
	if c.provider != nil {
		return nil
	}
	if !c.cfg.ProviderConfigured() {
		c.logger.Warn("payment provider not configured, payments and reconciliation are disabled")
		c.provider = unavailableProvider{}
		return nil
	}
	client, err := yookassa.NewClient(yookassa.Options{
		ShopID:         c.cfg.Provider.ShopID,
		SecretKey:      c.cfg.Provider.SecretKey,
		BaseURL:        c.cfg.Provider.BaseURL,
		ReturnURL:      c.cfg.Provider.ReturnURL,
		RequestTimeout: c.cfg.Provider.RequestTimeout,
		Logger:         c.logger.Named("yookassa"),
	})
	if err != nil {
		return err
	}
	c.provider = client
	return nil
}

func (c *Container) buildServices(context.Context) error {
	db := c.db
	c.collectStore = store.NewCollectStore(db)
	c.paymentStore = store.NewPaymentStore(db)
	c.orgStore = store.NewOrganizationStore(db)
	c.problemStore = store.NewProblemStore(db)
	c.regionStore = store.NewRegionStore(db)
	c.occasionStore = store.NewOccasionStore(db)
	c.coverStore = store.NewDefaultCoverStore(db)

	c.aggregates = aggregate.New(c.cacheService, c.paymentStore, aggregate.WithLogger(c.logger.Named("aggregate")))

	loc := c.cfg.Location()
	serviceOpts := []donations.Option{
		donations.WithLogger(c.logger.Named("donations")),
		donations.WithNotifier(c.notifier),
		donations.WithClock(func() time.Time { return time.Now().In(loc) }),
	}
	c.collects = donations.NewCollectService(c.collectStore, c.orgStore, c.occasionStore, c.results, c.aggregates, serviceOpts...)
	c.payments = donations.NewPaymentService(c.paymentStore, c.collectStore, c.provider, c.results, c.cfg.Provider.ReturnURL, serviceOpts...)
	c.organizations = donations.NewOrganizationService(c.orgStore, c.problemStore, c.regionStore, c.results, c.aggregates, serviceOpts...)
	c.problems = donations.NewReferenceService(c.problemStore, c.results, cache.TagProblem)
	c.regions = donations.NewReferenceService(c.regionStore, c.results, cache.TagRegion)
	c.occasions = donations.NewReferenceService(c.occasionStore, c.results, cache.TagOccasion)
	c.covers = donations.NewReferenceService(c.coverStore, c.results, cache.TagDefaultCover)

	c.reconciler = payments.NewReconciler(c.provider, c.paymentStore, c.cacheService,
		payments.WithLogger(c.logger.Named("reconcile")),
		payments.WithObserver(c.metrics),
		payments.WithWindow(c.cfg.Reconcile.Window),
		payments.WithPageSize(c.cfg.Reconcile.PageSize),
	)
	c.closer = payments.NewExpiredCloser(c.collectStore, c.cacheService, c.logger.Named("close-expired"),
		payments.WithLocation(loc),
	)

	if c.redis != nil {
		c.locker = payments.NewRedisLocker(c.redis, "donations:lock:")
	} else {
		c.locker = payments.NewLocalLocker()
	}
	return nil
}

func (c *Container) onClose(fn func(context.Context) error) {
	c.closers = append(c.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (c *Container) Close(ctx context.Context) error {
	var result *multierror.Error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	c.closers = nil
	return result.ErrorOrNil()
}

// Migrate creates the database schema.
func (c *Container) Migrate(ctx context.Context) error {
	return store.CreateSchema(ctx, c.db)
}

// Scheduler returns a scheduler with the reconcile and close-expired jobs
// registered on their configured schedules. Reconciliation is skipped when
// no provider is configured.
func (c *Container) Scheduler() (*payments.Scheduler, error) {
	s := payments.NewScheduler(c.locker, payments.WithSchedulerLogger(c.logger.Named("scheduler")))
	if c.ProviderEnabled() {
		if err := s.Add(c.cfg.Reconcile.Schedule, JobReconcile, c.cfg.Reconcile.LockTTL, c.ReconcileJob); err != nil {
			return nil, err
		}
	}
	if err := s.Add(c.cfg.Reconcile.CloseSchedule, JobCloseExpired, c.cfg.Reconcile.LockTTL, c.closer.Run); err != nil {
		return nil, err
	}
	return s, nil
}

// ReconcileJob runs one reconciliation and reports only its error.
func (c *Container) ReconcileJob(ctx context.Context) error {
	_, err := c.reconciler.Run(ctx)
	return err
}

// ProviderEnabled reports whether a real payment provider is wired.
func (c *Container) ProviderEnabled() bool {
	_, disabled := c.provider.(unavailableProvider)
	return !disabled
}

// Ping checks the database and, when configured, redis.
func (c *Container) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return pkgerrors.Wrap(err, "database")
	}
	if c.redis != nil {
		if err := c.redis.Ping(ctx).Err(); err != nil {
			return pkgerrors.Wrap(err, "redis")
		}
	}
	return nil
}

// Accessors for the wired components.

func (c *Container) Config() *config.Config {
	return c.cfg
}

func (c *Container) Logger() *zap.Logger {
	return c.logger
}

func (c *Container) Metrics() *metrics.Collector {
	return c.metrics
}

func (c *Container) DB() *bun.DB {
	return c.db
}

func (c *Container) CacheService() *cache.Service {
	return c.cacheService
}

func (c *Container) Results() *repositorycache.ResultCache {
	return c.results
}

func (c *Container) Aggregates() *aggregate.Cache {
	return c.aggregates
}

func (c *Container) Reconciler() *payments.Reconciler {
	return c.reconciler
}

func (c *Container) ExpiredCloser() *payments.ExpiredCloser {
	return c.closer
}

func (c *Container) Collects() *donations.CollectService {
	return c.collects
}

func (c *Container) Payments() *donations.PaymentService {
	return c.payments
}

func (c *Container) Organizations() *donations.OrganizationService {
	return c.organizations
}

func (c *Container) Problems() *donations.ReferenceService[*store.Problem] {
	return c.problems
}

func (c *Container) Regions() *donations.ReferenceService[*store.Region] {
	return c.regions
}

func (c *Container) Occasions() *donations.ReferenceService[*store.Occasion] {
	return c.occasions
}

func (c *Container) DefaultCovers() *donations.ReferenceService[*store.DefaultCover] {
	return c.covers
}

// NewCachedRepository wraps base in a cached repository sharing the
// container's cache. Go methods cannot take type parameters, so this is a
// package-level function.
func NewCachedRepository[T any](c *Container, base repository.Repository[T], tag cache.Tag, opts ...repositorycache.Option) *repositorycache.CachedRepository[T] {
	return repositorycache.New(base, c.results, tag, opts...)
}

// unavailableProvider stands in when no provider credentials are configured.
type unavailableProvider struct{}

func (unavailableProvider) Create(context.Context, payments.CreateRequest) (payments.CreateResult, error) {
	return payments.CreateResult{}, pkgerrors.Wrap(payments.ErrProviderUnavailable, "not configured")
}

func (unavailableProvider) List(context.Context, payments.ListRequest) (payments.Page, error) {
	return payments.Page{}, pkgerrors.Wrap(payments.ErrProviderUnavailable, "not configured")
}

func (unavailableProvider) Capture(context.Context, string) (payments.Status, error) {
	return "", pkgerrors.Wrap(payments.ErrProviderUnavailable, "not configured")
}
