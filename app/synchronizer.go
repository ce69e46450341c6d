package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"newspenguin/domain"
	"newspenguin/internal/telemetry"
)

// WatermarkKey and LeaseKey derive the two kv_store keys from the app key.
func WatermarkKey(appKey string) string { return appKey + ".last_build_date" }

func LeaseKey(appKey string) string { return appKey + ".lock" }

// FeedSynchronizer runs one incremental sync of the feed into the publisher.
type FeedSynchronizer struct {
	store     domain.StateStore
	fetcher   domain.FeedFetcher
	publisher domain.Publisher
	lease     *LeaseManager

	feedURL      string
	watermarkKey string
	leaseKey     string

	policy  domain.MalformedItemPolicy
	now     func() time.Time
	logger  *slog.Logger
	metrics *telemetry.SyncMetrics
}

// Option configures a FeedSynchronizer.
type Option func(*syncOptions)

type syncOptions struct {
	staleAfter time.Duration
	policy     domain.MalformedItemPolicy
	now        func() time.Time
	logger     *slog.Logger
	metrics    *telemetry.SyncMetrics
}

// WithStaleAfter sets the lease reclamation threshold.
func WithStaleAfter(d time.Duration) Option {
	return func(o *syncOptions) { o.staleAfter = d }
}

// WithMalformedItemPolicy sets the policy for items with unparseable dates.
func WithMalformedItemPolicy(p domain.MalformedItemPolicy) Option {
	return func(o *syncOptions) { o.policy = p }
}

func WithClock(now func() time.Time) Option {
	return func(o *syncOptions) { o.now = now }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *syncOptions) { o.logger = l }
}

func WithMetrics(m *telemetry.SyncMetrics) Option {
	return func(o *syncOptions) { o.metrics = m }
}

func NewSynchronizer(store domain.StateStore, fetcher domain.FeedFetcher, publisher domain.Publisher, feedURL, appKey string, opts ...Option) *FeedSynchronizer {
	o := &syncOptions{
		staleAfter: DefaultStaleAfter,
		policy:     domain.MalformedFail,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	lease := NewLeaseManager(store, o.staleAfter, o.logger)
	lease.now = o.now

	return &FeedSynchronizer{
		store:        store,
		fetcher:      fetcher,
		publisher:    publisher,
		lease:        lease,
		feedURL:      feedURL,
		watermarkKey: WatermarkKey(appKey),
		leaseKey:     LeaseKey(appKey),
		policy:       o.policy,
		now:          o.now,
		logger:       o.logger,
		metrics:      o.metrics,
	}
}

// Run executes one sync. A held lease is not an error: the result carries
// OutcomeLeaseHeld. On any fatal error the lease is left in place and expires
// through the staleness threshold.
func (s *FeedSynchronizer) Run(ctx context.Context) (domain.RunResult, error) {
	res := domain.RunResult{RunID: uuid.NewString(), StartedAt: s.now()}
	log := s.logger.With("run_id", res.RunID)

	err := s.run(ctx, log, &res)
	res.Duration = s.now().Sub(res.StartedAt)

	outcome := string(res.Outcome)
	if err != nil {
		outcome = "error"
		log.Error("sync run failed", "error", err)
	} else {
		log.Info("sync run finished",
			"outcome", res.Outcome,
			"published", len(res.Published),
			"failed", len(res.Failed),
			"skipped", len(res.Skipped),
			"duration", res.Duration,
		)
	}
	s.metrics.RecordRun(ctx, outcome, res.Duration, len(res.Published), len(res.Failed))
	return res, err
}

func (s *FeedSynchronizer) run(ctx context.Context, log *slog.Logger, res *domain.RunResult) error {
	status, err := s.lease.TryAcquire(ctx, s.leaseKey, res.RunID)
	if err != nil {
		return err
	}
	if status == domain.LeaseHeld {
		res.Outcome = domain.OutcomeLeaseHeld
		return nil
	}

	if err := s.reconcile(ctx, log, res); err != nil {
		return err
	}
	return s.lease.Release(ctx, s.leaseKey)
}

func (s *FeedSynchronizer) reconcile(ctx context.Context, log *slog.Logger, res *domain.RunResult) error {
	snap, err := s.fetcher.Fetch(ctx, s.feedURL)
	if err != nil {
		var dpe *domain.DateParseError
		var fe *domain.FetchError
		if !errors.As(err, &dpe) && !errors.As(err, &fe) {
			err = &domain.FetchError{URL: s.feedURL, Err: err}
		}
		return err
	}

	wm, err := s.store.GetWatermark(ctx, s.watermarkKey)
	if err != nil {
		return &domain.StoreError{Op: "get watermark", Key: s.watermarkKey, Err: err}
	}
	res.Previous = wm

	switch {
	case wm == nil:
		log.Info("no watermark recorded, bootstrapping without publishing",
			"build", domain.FormatTimestamp(snap.BuildTimestamp))
		res.Outcome = domain.OutcomeBootstrapped
		return s.setWatermark(ctx, res, snap.BuildTimestamp)

	case !snap.BuildTimestamp.After(*wm):
		log.Info("feed unchanged since last run",
			"build", domain.FormatTimestamp(snap.BuildTimestamp),
			"watermark", domain.FormatTimestamp(*wm))
		res.Outcome = domain.OutcomeUnchanged
		return s.setWatermark(ctx, res, *wm)
	}

	items, skipped, err := SelectNewItems(snap, *wm, s.policy)
	if err != nil {
		return err
	}
	for _, r := range skipped {
		log.Warn("skipping item with malformed pubDate", "title", r.Title, "link", r.Link, "error", r.Err)
	}
	res.Skipped = skipped

	if len(items) == 0 {
		log.Info("nothing to publish")
	}
	for _, item := range items {
		if err := s.publisher.Publish(ctx, item); err != nil {
			log.Warn("publish failed", "title", item.Title, "link", item.Link, "error", err)
			res.Failed = append(res.Failed, domain.FailedItem{Item: item, Err: err})
			continue
		}
		log.Info("item published", "title", item.Title, "published_at", item.PublishedRaw)
		res.Published = append(res.Published, item)
	}

	res.Outcome = domain.OutcomeAdvanced
	return s.setWatermark(ctx, res, snap.BuildTimestamp)
}

func (s *FeedSynchronizer) setWatermark(ctx context.Context, res *domain.RunResult, ts time.Time) error {
	if err := s.store.SetWatermark(ctx, s.watermarkKey, ts); err != nil {
		return &domain.StoreError{Op: "set watermark", Key: s.watermarkKey, Err: err}
	}
	ts = ts.UTC()
	res.Watermark = &ts
	return nil
}

// SelectNewItems returns the items published strictly after watermark in
// oldest-first order. snap.Items is expected newest-first. Under
// MalformedFail any rejected item aborts selection with its parse error.
func SelectNewItems(snap domain.FeedSnapshot, watermark time.Time, policy domain.MalformedItemPolicy) ([]domain.FeedItem, []domain.RejectedItem, error) {
	if len(snap.Rejected) > 0 && policy != domain.MalformedSkip {
		return nil, nil, snap.Rejected[0].Err
	}

	var selected []domain.FeedItem
	for _, it := range snap.Items {
		if it.PublishedAt.After(watermark) {
			selected = append(selected, it)
		}
	}
	for i, j := 0, len(selected)-1; i < j; i, j = i+1, j-1 {
		selected[i], selected[j] = selected[j], selected[i]
	}
	return selected, snap.Rejected, nil
}

var _ domain.Synchronizer = (*FeedSynchronizer)(nil)
