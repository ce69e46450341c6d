package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"newspenguin/app"
	"newspenguin/cli/control"
	"newspenguin/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the scheduler and run the synchronizer on every tick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return e.run(ctx, cmd)
		},
	}
}

func (e *env) run(ctx context.Context, cmd *cobra.Command) error {
	cfg := e.cfg
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := app.ValidateSchedule(cfg.Schedule); err != nil {
		return err
	}

	listener, err := control.TryListen(cfg.ControlAddr)
	if err != nil {
		if errors.Is(err, control.ErrAlreadyRunning) {
			fmt.Fprintln(cmd.OutOrStdout(), "Background process is already running")
			return err
		}
		return fmt.Errorf("failed to start control server: %w", err)
	}
	defer listener.Close()

	store, err := e.store(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	provider, err := telemetry.NewProvider(cfg.MetricsEnabled)
	if err != nil {
		return err
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		_ = provider.Shutdown(sctx)
	}()
	metrics, err := telemetry.NewSyncMetrics(provider.MeterProvider)
	if err != nil {
		return err
	}

	sched := app.NewScheduler(e.synchronizer(store, metrics), cfg.Schedule, cfg.RunOnStart, e.logger)
	state := func(ctx context.Context) (app.State, error) {
		return app.ReadState(ctx, store, cfg.AppKey, cfg.LeaseStaleAfter, e.now())
	}
	srv := &http.Server{
		Handler:           control.NewServer(sched, state, provider.Handler, e.logger),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			e.logger.Error("control server error", "error", err)
		}
	}()

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	e.logger.Info("newspenguin started",
		"feed", cfg.FeedURL,
		"schedule", cfg.Schedule,
		"store", cfg.StoreDriver,
		"control", listener.Addr().String(),
	)

	<-ctx.Done()

	sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer scancel()
	_ = srv.Shutdown(sctx)
	if err := sched.Stop(); err != nil {
		e.logger.Error("error during shutdown", "error", err)
	}
	e.logger.Info("graceful shutdown complete")
	return nil
}
