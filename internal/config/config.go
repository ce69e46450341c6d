package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"newspenguin/domain"
)

// EnvPrefix prefixes every environment override, e.g. NEWSPENGUIN_FEED_URL.
const EnvPrefix = "NEWSPENGUIN"

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMemory   = "memory"
)

type Config struct {
	AppKey     string
	Schedule   string
	RunOnStart bool

	FeedURL          string
	TimestampLayouts []string
	MalformedItems   domain.MalformedItemPolicy
	HTTPTimeout      time.Duration

	PublishBaseURL string
	PublishToken   string

	LeaseStaleAfter time.Duration

	StoreDriver string

	PGHost     string
	PGPort     int
	PGUser     string
	PGPassword string
	PGDatabase string
	PGSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	ControlAddr    string
	MetricsEnabled bool

	LogLevel      string
	LogFormat     string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app_key", "newspenguin-rss")
	v.SetDefault("schedule", "@every 1m")
	v.SetDefault("run_on_start", true)

	v.SetDefault("feed.url", "")
	v.SetDefault("feed.timestamp_layouts", []string{domain.TimestampLayout})
	v.SetDefault("feed.malformed_items", string(domain.MalformedFail))
	v.SetDefault("http.timeout", 20*time.Second)

	v.SetDefault("publish.base_url", "")
	v.SetDefault("publish.token", "")

	v.SetDefault("lease.stale_after", 5*time.Minute)

	v.SetDefault("store.driver", DriverPostgres)
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "postgres")
	v.SetDefault("postgres.password", "changeme")
	v.SetDefault("postgres.dbname", "newspenguin")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "newspenguin:")

	v.SetDefault("control.addr", "127.0.0.1:8088")
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	return v
}

// Load reads the optional YAML file at path into v and decodes the result.
// It does not validate; callers needing a complete config call Validate.
func Load(v *viper.Viper, path string) (Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return Config{
		AppKey:     v.GetString("app_key"),
		Schedule:   v.GetString("schedule"),
		RunOnStart: v.GetBool("run_on_start"),

		FeedURL:          v.GetString("feed.url"),
		TimestampLayouts: layouts(v.Get("feed.timestamp_layouts")),
		MalformedItems:   domain.MalformedItemPolicy(strings.ToLower(v.GetString("feed.malformed_items"))),
		HTTPTimeout:      v.GetDuration("http.timeout"),

		PublishBaseURL: v.GetString("publish.base_url"),
		PublishToken:   v.GetString("publish.token"),

		LeaseStaleAfter: v.GetDuration("lease.stale_after"),

		StoreDriver: strings.ToLower(v.GetString("store.driver")),

		PGHost:     v.GetString("postgres.host"),
		PGPort:     v.GetInt("postgres.port"),
		PGUser:     v.GetString("postgres.user"),
		PGPassword: v.GetString("postgres.password"),
		PGDatabase: v.GetString("postgres.dbname"),
		PGSSLMode:  v.GetString("postgres.sslmode"),

		RedisAddr:     v.GetString("redis.addr"),
		RedisPassword: v.GetString("redis.password"),
		RedisDB:       v.GetInt("redis.db"),
		RedisPrefix:   v.GetString("redis.key_prefix"),

		ControlAddr:    v.GetString("control.addr"),
		MetricsEnabled: v.GetBool("metrics.enabled"),

		LogLevel:      v.GetString("log.level"),
		LogFormat:     v.GetString("log.format"),
		LogFile:       v.GetString("log.file"),
		LogMaxSizeMB:  v.GetInt("log.max_size_mb"),
		LogMaxBackups: v.GetInt("log.max_backups"),
	}, nil
}

// layouts reads feed.timestamp_layouts. Layouts contain spaces and commas, so
// the string form (environment) is split on ";" only.
func layouts(raw interface{}) []string {
	var parts []string
	switch val := raw.(type) {
	case string:
		parts = strings.Split(val, ";")
	default:
		parts = cast.ToStringSlice(val)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the fields needed to run the synchronizer.
func (c Config) Validate() error {
	var errs []error
	if c.AppKey == "" {
		errs = append(errs, errors.New("app_key must not be empty"))
	}
	if err := IsValidURL("feed.url", c.FeedURL); err != nil {
		errs = append(errs, err)
	}
	if err := IsValidURL("publish.base_url", c.PublishBaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.PublishToken == "" {
		errs = append(errs, errors.New("publish.token is required"))
	}
	if !c.MalformedItems.Valid() {
		errs = append(errs, fmt.Errorf("feed.malformed_items must be %q or %q, got %q",
			domain.MalformedFail, domain.MalformedSkip, c.MalformedItems))
	}
	if c.LeaseStaleAfter <= 0 {
		errs = append(errs, fmt.Errorf("lease.stale_after must be positive, got %s", c.LeaseStaleAfter))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout must be positive, got %s", c.HTTPTimeout))
	}
	if err := c.ValidateStore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateStore checks only the store settings. State-inspection commands use
// it so they work without feed or publish credentials.
func (c Config) ValidateStore() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverMemory:
		return nil
	case DriverRedis:
		if c.RedisAddr == "" {
			return errors.New("redis.addr is required for the redis store")
		}
		return nil
	default:
		return fmt.Errorf("store.driver must be one of postgres, redis, memory; got %q", c.StoreDriver)
	}
}

// PostgresDSN builds a lib/pq connection URL.
func (c Config) PostgresDSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.PGUser, c.PGPassword),
		Host:     fmt.Sprintf("%s:%d", c.PGHost, c.PGPort),
		Path:     "/" + c.PGDatabase,
		RawQuery: "sslmode=" + url.QueryEscape(c.PGSSLMode),
	}
	return u.String()
}

// IsValidURL checks that raw is an absolute http(s) URL. It does not dial.
func IsValidURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported %s scheme: %s", field, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("%s has no host", field)
	}
	return nil
}
