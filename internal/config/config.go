// Package config loads the application configuration from an optional file,
// a .env file and DONATIONS_* environment variables.
package config

import (
	"errors"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	pkgerrors "github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/goliatone/go-donation-cache/cache"
	"github.com/goliatone/go-donation-cache/payments"
	"github.com/goliatone/go-donation-cache/store"
)

// EnvPrefix prefixes every environment variable, e.g. DONATIONS_CACHE_TTL.
const EnvPrefix = "DONATIONS"

// Notification backends.
const (
	NotifyLog   = "log"
	NotifyRedis = "redis"
	NotifyKafka = "kafka"
)

// Config is the full application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Provider  ProviderConfig  `mapstructure:"provider"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
	HTTPAddr string `mapstructure:"http_addr"`
	// Timezone decides which calendar day a collect closes on.
	Timezone string `mapstructure:"timezone"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type CacheConfig struct {
	Backend            string        `mapstructure:"backend"`
	TTL                time.Duration `mapstructure:"ttl"`
	Capacity           int           `mapstructure:"capacity"`
	NumShards          int           `mapstructure:"num_shards"`
	EvictionPercentage int           `mapstructure:"eviction_percentage"`
	EvictionInterval   time.Duration `mapstructure:"eviction_interval"`
	Namespace          string        `mapstructure:"namespace"`
	ScanCount          int64         `mapstructure:"scan_count"`
}

// RedisConfig is shared by the redis cache backend, the job lease and the
// stream notifier. An empty URL disables all three.
type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type ProviderConfig struct {
	ShopID         string        `mapstructure:"shop_id"`
	SecretKey      string        `mapstructure:"secret_key"`
	BaseURL        string        `mapstructure:"base_url"`
	ReturnURL      string        `mapstructure:"return_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

type ReconcileConfig struct {
	Schedule      string        `mapstructure:"schedule"`
	Window        time.Duration `mapstructure:"window"`
	PageSize      int           `mapstructure:"page_size"`
	CloseSchedule string        `mapstructure:"close_schedule"`
	LockTTL       time.Duration `mapstructure:"lock_ttl"`
}

type NotifyConfig struct {
	Backend   string   `mapstructure:"backend"`
	Stream    string   `mapstructure:"stream"`
	MaxLen    int64    `mapstructure:"max_len"`
	Brokers   []string `mapstructure:"brokers"`
	Topic     string   `mapstructure:"topic"`
	QueueSize int      `mapstructure:"queue_size"`
	Workers   int      `mapstructure:"workers"`
}

func setDefaults(v *viper.Viper) {
	defaults := cache.DefaultConfig()

	v.SetDefault("app.env", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.http_addr", ":8080")
	v.SetDefault("app.timezone", "UTC")

	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", "file:donations.db?_foreign_keys=on")

	v.SetDefault("cache.backend", string(defaults.Backend))
	v.SetDefault("cache.ttl", defaults.TTL)
	v.SetDefault("cache.capacity", defaults.Capacity)
	v.SetDefault("cache.num_shards", defaults.NumShards)
	v.SetDefault("cache.eviction_percentage", defaults.EvictionPercentage)
	v.SetDefault("cache.eviction_interval", time.Duration(0))
	v.SetDefault("cache.namespace", "")
	v.SetDefault("cache.scan_count", defaults.ScanCount)

	v.SetDefault("redis.url", "")

	v.SetDefault("provider.shop_id", "")
	v.SetDefault("provider.secret_key", "")
	v.SetDefault("provider.base_url", "https://api.yookassa.ru/v3")
	v.SetDefault("provider.return_url", "")
	v.SetDefault("provider.request_timeout", 10*time.Second)

	v.SetDefault("reconcile.schedule", payments.DefaultReconcileSchedule)
	v.SetDefault("reconcile.window", payments.DefaultWindow)
	v.SetDefault("reconcile.page_size", payments.DefaultPageSize)
	v.SetDefault("reconcile.close_schedule", payments.DefaultCloseSchedule)
	v.SetDefault("reconcile.lock_ttl", payments.DefaultLeaseTTL)

	v.SetDefault("notify.backend", NotifyLog)
	v.SetDefault("notify.stream", "donations:notifications")
	v.SetDefault("notify.max_len", 10000)
	v.SetDefault("notify.brokers", []string{"localhost:9092"})
	v.SetDefault("notify.topic", "donations.notifications")
	v.SetDefault("notify.queue_size", 100)
	v.SetDefault("notify.workers", 2)
}

// Load reads the configuration. A .env file in the working directory is
// applied to the environment first. path may be empty, in which case
// config.{yaml,toml,json} is looked up in . and ./config and is optional.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, pkgerrors.Wrap(err, "load .env")
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, pkgerrors.Wrapf(err, "read config %s", path)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, pkgerrors.Wrap(err, "read config")
			}
		}
	}

	cfg := new(Config)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, pkgerrors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Database.Driver {
	case store.DriverPostgres, store.DriverSQLite:
	default:
		result = multierror.Append(result, pkgerrors.Errorf("database.driver %q is not supported", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		result = multierror.Append(result, errors.New("database.dsn is required"))
	}

	if err := c.CacheConfig().Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		result = multierror.Append(result, pkgerrors.Wrapf(err, "app.timezone %q", c.App.Timezone))
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"reconcile.schedule":       c.Reconcile.Schedule,
		"reconcile.close_schedule": c.Reconcile.CloseSchedule,
	} {
		if _, err := parser.Parse(spec); err != nil {
			result = multierror.Append(result, pkgerrors.Wrapf(err, "%s %q", name, spec))
		}
	}
	if c.Reconcile.Window <= 0 {
		result = multierror.Append(result, errors.New("reconcile.window must be positive"))
	}
	if c.Reconcile.PageSize <= 0 {
		result = multierror.Append(result, errors.New("reconcile.page_size must be positive"))
	}
	if c.Reconcile.LockTTL <= 0 {
		result = multierror.Append(result, errors.New("reconcile.lock_ttl must be positive"))
	}

	switch c.Notify.Backend {
	case NotifyLog:
	case NotifyRedis:
		if c.Redis.URL == "" {
			result = multierror.Append(result, errors.New("redis.url is required for the redis notifier"))
		}
	case NotifyKafka:
		if len(c.Notify.Brokers) == 0 || c.Notify.Topic == "" {
			result = multierror.Append(result, errors.New("notify.brokers and notify.topic are required for the kafka notifier"))
		}
	default:
		result = multierror.Append(result, pkgerrors.Errorf("notify.backend %q must be log, redis or kafka", c.Notify.Backend))
	}

	return result.ErrorOrNil()
}

// CacheConfig converts the cache section for cache.NewStore. The redis
// backend uses the shared redis URL.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Backend:            cache.Backend(c.Cache.Backend),
		Capacity:           c.Cache.Capacity,
		NumShards:          c.Cache.NumShards,
		TTL:                c.Cache.TTL,
		EvictionPercentage: c.Cache.EvictionPercentage,
		EvictionInterval:   c.Cache.EvictionInterval,
		RedisURL:           c.Redis.URL,
		Namespace:          c.Cache.Namespace,
		ScanCount:          c.Cache.ScanCount,
	}
}

// Location returns the configured time zone.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ProviderConfigured reports whether provider credentials are set.
func (c *Config) ProviderConfigured() bool {
	return c.Provider.ShopID != "" && c.Provider.SecretKey != ""
}
