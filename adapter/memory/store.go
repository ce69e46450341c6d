// Package memory is an in-process state store. It backs `store.driver: memory`
// and the synchronizer tests.
package memory

import (
	"context"
	"sync"
	"time"

	"newspenguin/domain"
)

type Store struct {
	mu         sync.Mutex
	watermarks map[string]time.Time
	leases     map[string]domain.Lease

	// write counters, read by tests
	watermarkWrites int
	leaseWrites     int
}

func New() *Store {
	return &Store{
		watermarks: make(map[string]time.Time),
		leases:     make(map[string]domain.Lease),
	}
}

func (s *Store) Ensure(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) GetWatermark(_ context.Context, key string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.watermarks[key]
	if !ok {
		return nil, nil
	}
	return &ts, nil
}

func (s *Store) SetWatermark(_ context.Context, key string, ts time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[key] = ts.UTC()
	s.watermarkWrites++
	return nil
}

func (s *Store) AcquireLease(_ context.Context, lease domain.Lease, staleBefore time.Time) (bool, *domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.leases[lease.Key]
	if ok && !cur.AcquiredAt.Before(staleBefore) {
		return false, &cur, nil
	}
	s.leases[lease.Key] = lease
	s.leaseWrites++
	if ok {
		return true, &cur, nil
	}
	return true, nil, nil
}

func (s *Store) GetLease(_ context.Context, key string) (*domain.Lease, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.leases[key]
	if !ok {
		return nil, nil
	}
	return &cur, nil
}

func (s *Store) DeleteLease(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.leases, key)
	return nil
}

// PutLease stores a lease as-is, bypassing the staleness check.
func (s *Store) PutLease(lease domain.Lease) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leases[lease.Key] = lease
}

// WatermarkWrites counts SetWatermark calls.
func (s *Store) WatermarkWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watermarkWrites
}

// LeaseWrites counts successful lease acquisitions.
func (s *Store) LeaseWrites() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.leaseWrites
}

var _ domain.StateStore = (*Store)(nil)
