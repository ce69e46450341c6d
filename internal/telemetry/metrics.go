// Package telemetry provides OpenTelemetry instrumentation for sync runs.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "newspenguin/sync"

// SyncMetrics holds the OpenTelemetry instruments for synchronizer runs
type SyncMetrics struct {
	runs        metric.Int64Counter
	published   metric.Int64Counter
	failed      metric.Int64Counter
	runDuration metric.Float64Histogram
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	runs, err := meter.Int64Counter(
		"newspenguin_runs",
		metric.WithDescription("Synchronizer runs by outcome"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, err
	}

	published, err := meter.Int64Counter(
		"newspenguin_items_published",
		metric.WithDescription("Feed items posted successfully"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	failed, err := meter.Int64Counter(
		"newspenguin_items_failed",
		metric.WithDescription("Feed items whose publish attempt failed"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, err
	}

	runDuration, err := meter.Float64Histogram(
		"newspenguin_run_duration",
		metric.WithDescription("Duration of synchronizer runs in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		runs:        runs,
		published:   published,
		failed:      failed,
		runDuration: runDuration,
	}, nil
}

// RecordRun records one finished run. outcome is the run outcome, or "error"
// for runs that ended with a fatal error.
func (m *SyncMetrics) RecordRun(ctx context.Context, outcome string, duration time.Duration, published, failed int) {
	if m == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, duration.Seconds(), attrs)
	if published > 0 {
		m.published.Add(ctx, int64(published))
	}
	if failed > 0 {
		m.failed.Add(ctx, int64(failed))
	}
}
