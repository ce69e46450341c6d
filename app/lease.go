package app

import (
	"context"
	"log/slog"
	"time"

	"newspenguin/domain"
)

// DefaultStaleAfter is how old a lease must be before another run may reclaim it.
const DefaultStaleAfter = 5 * time.Minute

// LeaseManager grants run exclusion through lease records in the store.
// It keeps no state between calls.
type LeaseManager struct {
	store      domain.LeaseStore
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

func NewLeaseManager(store domain.LeaseStore, staleAfter time.Duration, logger *slog.Logger) *LeaseManager {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaseManager{store: store, staleAfter: staleAfter, now: time.Now, logger: logger}
}

// TryAcquire takes the lease for key on behalf of holder. A live lease yields
// LeaseHeld and leaves the store untouched; a stale one is replaced.
func (m *LeaseManager) TryAcquire(ctx context.Context, key, holder string) (domain.LeaseStatus, error) {
	now := m.now().UTC()
	lease := domain.Lease{Key: key, Holder: holder, AcquiredAt: now}

	acquired, prev, err := m.store.AcquireLease(ctx, lease, now.Add(-m.staleAfter))
	if err != nil {
		return domain.LeaseHeld, &domain.StoreError{Op: "acquire lease", Key: key, Err: err}
	}
	if !acquired {
		attrs := []any{"key", key}
		if prev != nil {
			attrs = append(attrs, "holder", prev.Holder, "age", prev.Age(now).Round(time.Second))
		}
		m.logger.Info("lease held by another run", attrs...)
		return domain.LeaseHeld, nil
	}
	if prev != nil {
		m.logger.Warn("reclaimed stale lease",
			"key", key,
			"previous_holder", prev.Holder,
			"age", prev.Age(now).Round(time.Second),
		)
	}
	m.logger.Debug("lease acquired", "key", key, "holder", holder)
	return domain.LeaseAcquired, nil
}

// Release deletes the lease for key whoever holds it.
func (m *LeaseManager) Release(ctx context.Context, key string) error {
	if err := m.store.DeleteLease(ctx, key); err != nil {
		return &domain.StoreError{Op: "release lease", Key: key, Err: err}
	}
	m.logger.Debug("lease released", "key", key)
	return nil
}

// StaleAfter returns the reclamation threshold.
func (m *LeaseManager) StaleAfter() time.Duration { return m.staleAfter }
