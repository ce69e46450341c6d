package domain

import (
	"context"
	"time"
)

// WatermarkStore persists the build timestamp of the last fully processed feed.
type WatermarkStore interface {
	// GetWatermark returns nil when the key was never written.
	GetWatermark(ctx context.Context, key string) (*time.Time, error)
	// SetWatermark overwrites the value, inserting the record if it is absent.
	SetWatermark(ctx context.Context, key string, ts time.Time) error
}

// LeaseStore persists run leases.
type LeaseStore interface {
	// AcquireLease writes lease as a single atomic step when no record exists
	// for lease.Key or the existing record was acquired before staleBefore.
	// previous is the record that blocked the write (acquired == false) or the
	// stale record that was replaced (acquired == true); nil when there was none.
	AcquireLease(ctx context.Context, lease Lease, staleBefore time.Time) (acquired bool, previous *Lease, err error)
	GetLease(ctx context.Context, key string) (*Lease, error)
	// DeleteLease removes the record. Deleting an absent record is not an error.
	DeleteLease(ctx context.Context, key string) error
}

// StateStore is the shared keyed store behind watermark and lease.
type StateStore interface {
	WatermarkStore
	LeaseStore
	Ensure(ctx context.Context) error
	Close() error
}

// FeedFetcher turns the feed URL into a parsed snapshot.
type FeedFetcher interface {
	Fetch(ctx context.Context, feedURL string) (FeedSnapshot, error)
}

// Publisher posts a single item to the destination.
type Publisher interface {
	Publish(ctx context.Context, item FeedItem) error
}

// Synchronizer runs one incremental sync.
type Synchronizer interface {
	Run(ctx context.Context) (RunResult, error)
}
