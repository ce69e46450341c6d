// Package redis keeps the kv_store rows as Redis hashes with "value" and
// "updated_at" (unix milliseconds) fields.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"newspenguin/domain"
)

const (
	fieldValue     = "value"
	fieldUpdatedAt = "updated_at"
)

// acquireScript writes the lease unless a record newer than ARGV[3] exists.
// Reply: {acquired, previous holder, previous updated_at} or {1} when the key was empty.
var acquireScript = redis.NewScript(`
local cur = redis.call("HMGET", KEYS[1], "value", "updated_at")
if cur[2] and tonumber(cur[2]) >= tonumber(ARGV[3]) then
	return {0, cur[1] or "", cur[2]}
end
redis.call("HSET", KEYS[1], "value", ARGV[1], "updated_at", ARGV[2])
if cur[2] then
	return {1, cur[1] or "", cur[2]}
end
return {1}
`)

type Store struct {
	client redis.UniversalClient
	prefix string
}

type Option func(*Store)

// WithKeyPrefix namespaces every key. Default "newspenguin:".
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New panics on a nil client.
func New(client redis.UniversalClient, opts ...Option) *Store {
	if client == nil {
		panic("redis store: client cannot be nil")
	}
	s := &Store{client: client, prefix: "newspenguin:"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Ensure(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error { return s.client.Close() }

func (s *Store) GetWatermark(ctx context.Context, key string) (*time.Time, error) {
	v, err := s.client.HGet(ctx, s.prefix+key, fieldValue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ts, err := domain.ParseTimestamp(v)
	if err != nil {
		return nil, fmt.Errorf("stored watermark: %w", err)
	}
	return &ts, nil
}

func (s *Store) SetWatermark(ctx context.Context, key string, ts time.Time) error {
	return s.client.HSet(ctx, s.prefix+key,
		fieldValue, domain.FormatTimestamp(ts),
		fieldUpdatedAt, time.Now().UnixMilli(),
	).Err()
}

func (s *Store) AcquireLease(ctx context.Context, lease domain.Lease, staleBefore time.Time) (bool, *domain.Lease, error) {
	res, err := acquireScript.Run(ctx, s.client, []string{s.prefix + lease.Key},
		lease.Holder, lease.AcquiredAt.UnixMilli(), staleBefore.UnixMilli()).Slice()
	if err != nil {
		return false, nil, err
	}
	if len(res) == 0 {
		return false, nil, fmt.Errorf("acquire lease: empty script reply")
	}
	flag, ok := res[0].(int64)
	if !ok {
		return false, nil, fmt.Errorf("acquire lease: unexpected reply %v", res[0])
	}
	acquired := flag == 1
	if len(res) < 3 {
		return acquired, nil, nil
	}
	holder, _ := res[1].(string)
	at, err := parseMillis(res[2])
	if err != nil {
		return false, nil, err
	}
	return acquired, &domain.Lease{Key: lease.Key, Holder: holder, AcquiredAt: at}, nil
}

func (s *Store) GetLease(ctx context.Context, key string) (*domain.Lease, error) {
	vals, err := s.client.HMGet(ctx, s.prefix+key, fieldValue, fieldUpdatedAt).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) < 2 || vals[1] == nil {
		return nil, nil
	}
	at, err := parseMillis(vals[1])
	if err != nil {
		return nil, err
	}
	holder, _ := vals[0].(string)
	return &domain.Lease{Key: key, Holder: holder, AcquiredAt: at}, nil
}

func (s *Store) DeleteLease(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}

func parseMillis(v interface{}) (time.Time, error) {
	str, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("lease updated_at: unexpected type %T", v)
	}
	ms, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("lease updated_at: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

var _ domain.StateStore = (*Store)(nil)
