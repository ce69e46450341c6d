package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newspenguin/domain"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, WithKeyPrefix("test:")), mr
}

func TestNew(t *testing.T) {
	t.Run("nil client panics", func(t *testing.T) {
		assert.Panics(t, func() { New(nil) })
	})

	t.Run("default prefix", func(t *testing.T) {
		mr, err := miniredis.Run()
		require.NoError(t, err)
		defer mr.Close()
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		s := New(client)
		assert.Equal(t, "newspenguin:", s.prefix)
		assert.NoError(t, s.Ensure(context.Background()))
	})
}

func TestStore_Watermark(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	got, err := s.GetWatermark(ctx, "app.last_build_date")
	require.NoError(t, err)
	assert.Nil(t, got)

	ts := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetWatermark(ctx, "app.last_build_date", ts))
	assert.Equal(t, "2024-05-01 10:00:00", mr.HGet("test:app.last_build_date", "value"))

	got, err = s.GetWatermark(ctx, "app.last_build_date")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, ts.Equal(*got))
}

func TestStore_WatermarkCorrupt(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	mr.HSet("test:wm", "value", "yesterday")
	_, err := s.GetWatermark(ctx, "wm")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stored watermark")
}

func TestStore_Lease(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	ok, prev, err := s.AcquireLease(ctx, domain.Lease{Key: "app.lock", Holder: "a", AcquiredAt: now}, now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, prev)

	ok, prev, err = s.AcquireLease(ctx, domain.Lease{Key: "app.lock", Holder: "b", AcquiredAt: now.Add(time.Minute)}, now.Add(-4*time.Minute))
	require.NoError(t, err)
	assert.False(t, ok)
	require.NotNil(t, prev)
	assert.Equal(t, "a", prev.Holder)
	assert.True(t, now.Equal(prev.AcquiredAt))

	later := now.Add(6 * time.Minute)
	ok, prev, err = s.AcquireLease(ctx, domain.Lease{Key: "app.lock", Holder: "c", AcquiredAt: later}, later.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	require.NotNil(t, prev)
	assert.Equal(t, "a", prev.Holder)

	cur, err := s.GetLease(ctx, "app.lock")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "c", cur.Holder)
	assert.True(t, later.Equal(cur.AcquiredAt))

	require.NoError(t, s.DeleteLease(ctx, "app.lock"))
	require.NoError(t, s.DeleteLease(ctx, "app.lock"))

	cur, err = s.GetLease(ctx, "app.lock")
	require.NoError(t, err)
	assert.Nil(t, cur)
}
