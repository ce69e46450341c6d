package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newspenguin/domain"
)

func validConfig() Config {
	cfg, _ := Load(New(), "")
	cfg.FeedURL = "https://example.org/rss"
	cfg.PublishBaseURL = "https://mastodon.example"
	cfg.PublishToken = "secret"
	return cfg
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "newspenguin-rss", cfg.AppKey)
	assert.Equal(t, "@every 1m", cfg.Schedule)
	assert.True(t, cfg.RunOnStart)
	assert.Equal(t, []string{domain.TimestampLayout}, cfg.TimestampLayouts)
	assert.Equal(t, domain.MalformedFail, cfg.MalformedItems)
	assert.Equal(t, 20*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, 5*time.Minute, cfg.LeaseStaleAfter)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, "127.0.0.1:8088", cfg.ControlAddr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NEWSPENGUIN_FEED_URL", "https://news.example/rss")
	t.Setenv("NEWSPENGUIN_LEASE_STALE_AFTER", "90s")
	t.Setenv("NEWSPENGUIN_STORE_DRIVER", "Redis")
	t.Setenv("NEWSPENGUIN_FEED_MALFORMED_ITEMS", "skip")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "https://news.example/rss", cfg.FeedURL)
	assert.Equal(t, 90*time.Second, cfg.LeaseStaleAfter)
	assert.Equal(t, DriverRedis, cfg.StoreDriver)
	assert.Equal(t, domain.MalformedSkip, cfg.MalformedItems)
}

func TestLoad_EnvTimestampLayouts(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want []string
	}{
		{"single layout with a space", "2006-01-02 15:04:05", []string{"2006-01-02 15:04:05"}},
		{
			"semicolon separated",
			"2006-01-02 15:04:05; Mon, 02 Jan 2006 15:04:05 -0700",
			[]string{"2006-01-02 15:04:05", "Mon, 02 Jan 2006 15:04:05 -0700"},
		},
		{"empty entries dropped", "2006-01-02 15:04:05;;", []string{"2006-01-02 15:04:05"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("NEWSPENGUIN_FEED_TIMESTAMP_LAYOUTS", tt.env)

			cfg, err := Load(New(), "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.TimestampLayouts)

			// a date-only value must not slip through a split layout
			p := domain.NewTimestampParser(cfg.TimestampLayouts...)
			_, err = p.Parse("lastBuildDate", "2024-05-01 12:00:00")
			assert.NoError(t, err)
			_, err = p.Parse("pubDate", "2024-05-01")
			assert.Error(t, err)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newspenguin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_key: staging
schedule: "*/5 * * * *"
feed:
  url: https://example.org/rss
  timestamp_layouts:
    - "2006-01-02 15:04:05"
    - "Mon, 02 Jan 2006 15:04:05 -0700"
publish:
  base_url: https://mastodon.example
  token: abc
store:
  driver: memory
`), 0o600))

	cfg, err := Load(New(), path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "staging", cfg.AppKey)
	assert.Equal(t, "*/5 * * * *", cfg.Schedule)
	assert.Len(t, cfg.TimestampLayouts, 2)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing feed url", func(c *Config) { c.FeedURL = "" }, "feed.url is required"},
		{"ftp feed", func(c *Config) { c.FeedURL = "ftp://example.org/rss" }, "unsupported feed.url scheme"},
		{"relative publish url", func(c *Config) { c.PublishBaseURL = "mastodon" }, "invalid publish.base_url"},
		{"missing token", func(c *Config) { c.PublishToken = "" }, "publish.token is required"},
		{"bad policy", func(c *Config) { c.MalformedItems = "ignore" }, "feed.malformed_items"},
		{"zero stale", func(c *Config) { c.LeaseStaleAfter = 0 }, "lease.stale_after"},
		{"bad driver", func(c *Config) { c.StoreDriver = "sqlite" }, "store.driver"},
		{"redis without addr", func(c *Config) { c.StoreDriver = DriverRedis; c.RedisAddr = "" }, "redis.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateStore_IgnoresFeedSettings(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())
	assert.NoError(t, cfg.ValidateStore())
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{PGHost: "db", PGPort: 5433, PGUser: "app", PGPassword: "p@ss", PGDatabase: "np", PGSSLMode: "disable"}
	assert.Equal(t, "postgres://app:p%40ss@db:5433/np?sslmode=disable", cfg.PostgresDSN())
}
