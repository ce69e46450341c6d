package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"newspenguin/adapter/memory"
	"newspenguin/adapter/postgres"
	"newspenguin/adapter/redis"
	"newspenguin/domain"
	"newspenguin/internal/config"
)

func OpenDB(ctx context.Context, dsn string) (*sql.DB, error) {
	dbConn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	dbConn.SetMaxOpenConns(4)
	dbConn.SetMaxIdleConns(4)
	dbConn.SetConnMaxLifetime(30 * time.Minute)
	if err := dbConn.PingContext(ctx); err != nil {
		_ = dbConn.Close()
		return nil, err
	}
	return dbConn, nil
}

// OpenStore connects the state store selected by cfg.StoreDriver and ensures
// its schema. The caller closes it.
func OpenStore(ctx context.Context, cfg config.Config) (domain.StateStore, error) {
	var store domain.StateStore
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		dbConn, err := OpenDB(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		store = postgres.New(dbConn)
	case config.DriverRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		store = redis.New(client, redis.WithKeyPrefix(cfg.RedisPrefix))
	case config.DriverMemory:
		store = memory.New()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	if err := store.Ensure(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("prepare %s store: %w", cfg.StoreDriver, err)
	}
	return store, nil
}
