// Package cmd wires the newspenguin command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"newspenguin/adapter/mastodon"
	"newspenguin/adapter/rss"
	"newspenguin/app"
	"newspenguin/domain"
	"newspenguin/internal/config"
	"newspenguin/internal/db"
	"newspenguin/internal/logging"
	"newspenguin/internal/telemetry"
)

// Version is set at build time with -ldflags "-X newspenguin/internal/cmd.Version=...".
var Version = "dev"

// env is shared by every subcommand of one invocation.
type env struct {
	v      *viper.Viper
	cfg    config.Config
	logger *slog.Logger
	closer io.Closer

	openStore func(context.Context, config.Config) (domain.StateStore, error)
	now       func() time.Time
}

func NewRootCmd() *cobra.Command {
	return newRootCmd(&env{openStore: db.OpenStore, now: time.Now})
}

func newRootCmd(e *env) *cobra.Command {
	e.v = config.New()

	root := &cobra.Command{
		Use:           "newspenguin",
		Short:         "Mirror new RSS feed items to a Mastodon account",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.load(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if e.closer != nil {
				return e.closer.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	root.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	if err := e.v.BindPFlag("log.level", root.PersistentFlags().Lookup("log-level")); err != nil {
		slog.Error("Error binding log-level flag", "error", err)
	}

	root.AddCommand(
		newRunCmd(e),
		newOnceCmd(e),
		newStatusCmd(e),
		newReleaseCmd(e),
		newWatermarkCmd(e),
		newTriggerCmd(e),
		newSetScheduleCmd(e),
		newVersionCmd(),
	)
	return root
}

func (e *env) load(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(e.v, path)
	if err != nil {
		return err
	}
	e.cfg = cfg

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		Format:     cfg.LogFormat,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	e.logger, e.closer = logger, closer
	slog.SetDefault(logger)
	return nil
}

// store opens the configured state store after validating only its settings.
func (e *env) store(ctx context.Context) (domain.StateStore, error) {
	if err := e.cfg.ValidateStore(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return e.openStore(ctx, e.cfg)
}

func (e *env) synchronizer(store domain.StateStore, metrics *telemetry.SyncMetrics) *app.FeedSynchronizer {
	cfg := e.cfg
	return app.NewSynchronizer(
		store,
		rss.NewHTTPFetcher(cfg.HTTPTimeout, cfg.TimestampLayouts...),
		mastodon.NewPublisher(cfg.PublishBaseURL, cfg.PublishToken, cfg.HTTPTimeout),
		cfg.FeedURL,
		cfg.AppKey,
		app.WithStaleAfter(cfg.LeaseStaleAfter),
		app.WithMalformedItemPolicy(cfg.MalformedItems),
		app.WithClock(e.now),
		app.WithLogger(e.logger),
		app.WithMetrics(metrics),
	)
}
