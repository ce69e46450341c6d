package db

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newspenguin/adapter/memory"
	"newspenguin/internal/config"
)

func TestOpenStore_Memory(t *testing.T) {
	store, err := OpenStore(context.Background(), config.Config{StoreDriver: config.DriverMemory})
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &memory.Store{}, store)
}

func TestOpenStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	store, err := OpenStore(ctx, config.Config{StoreDriver: config.DriverRedis, RedisAddr: mr.Addr(), RedisPrefix: "np:"})
	require.NoError(t, err)
	defer store.Close()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetWatermark(ctx, "k.last_build_date", ts))
	assert.True(t, mr.Exists("np:k.last_build_date"))
}

func TestOpenStore_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := OpenStore(context.Background(), config.Config{StoreDriver: config.DriverRedis, RedisAddr: addr})
	assert.Error(t, err)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), config.Config{StoreDriver: "sqlite"})
	assert.ErrorContains(t, err, "unknown store driver")
}
