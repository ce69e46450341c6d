package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"newspenguin/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func ts(hour int) time.Time {
	return time.Date(2024, 5, 1, hour, 0, 0, 0, time.UTC)
}

func item(hour int) domain.FeedItem {
	t := ts(hour)
	return domain.FeedItem{
		Title:        "item " + domain.FormatTimestamp(t),
		Link:         "https://example.org/" + t.Format("15"),
		PublishedAt:  t,
		PublishedRaw: domain.FormatTimestamp(t),
	}
}

type fakeFetcher struct {
	snap  domain.FeedSnapshot
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(context.Context, string) (domain.FeedSnapshot, error) {
	f.calls++
	return f.snap, f.err
}

type recordingPublisher struct {
	mu     sync.Mutex
	posted []domain.FeedItem
	fail   map[string]bool
}

func (p *recordingPublisher) Publish(_ context.Context, it domain.FeedItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.posted = append(p.posted, it)
	if p.fail[it.Link] {
		return &domain.PublishError{StatusCode: 500}
	}
	return nil
}

func (p *recordingPublisher) Posted() []domain.FeedItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.FeedItem(nil), p.posted...)
}

// gatedPublisher blocks each publish until gate is closed and fails when
// the publish context is already cancelled, like an HTTP client would.
type gatedPublisher struct {
	gate    chan struct{}
	entered chan struct{}
}

func (p *gatedPublisher) Publish(ctx context.Context, _ domain.FeedItem) error {
	p.entered <- struct{}{}
	<-p.gate
	if err := ctx.Err(); err != nil {
		return &domain.PublishError{Err: err}
	}
	return nil
}

// failingStore wraps a StateStore and fails selected operations.
type failingStore struct {
	domain.StateStore
	getErr, setErr, deleteErr, acquireErr error
}

var errBoom = errors.New("boom")

func (s *failingStore) GetWatermark(ctx context.Context, key string) (*time.Time, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.StateStore.GetWatermark(ctx, key)
}

func (s *failingStore) SetWatermark(ctx context.Context, key string, t time.Time) error {
	if s.setErr != nil {
		return s.setErr
	}
	return s.StateStore.SetWatermark(ctx, key, t)
}

func (s *failingStore) AcquireLease(ctx context.Context, l domain.Lease, staleBefore time.Time) (bool, *domain.Lease, error) {
	if s.acquireErr != nil {
		return false, nil, s.acquireErr
	}
	return s.StateStore.AcquireLease(ctx, l, staleBefore)
}

func (s *failingStore) DeleteLease(ctx context.Context, key string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.StateStore.DeleteLease(ctx, key)
}
