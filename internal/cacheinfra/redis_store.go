package cacheinfra

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/promptdeck/promptdeck/cache"
)

// defaultOpTimeout bounds each individual Redis operation independently
// of the caller's deadline, so a slow cache degrades to a direct backend
// query instead of propagating the stall.
const defaultOpTimeout = 500 * time.Millisecond

// scanBatchSize is the COUNT hint used for prefix scans.
const scanBatchSize = 256

// RedisStore is the shared cache.Store variant. Invalidation is visible
// to every process sharing the Redis instance; GetOrFetch coalescing
// remains per-process (a cluster of N processes may each run one
// producer for the same cold key, bounded by TTL).
type RedisStore struct {
	client    *redis.Client
	group     singleflight.Group
	log       *zap.Logger
	opTimeout time.Duration
}

// RedisStoreOption customises a RedisStore.
type RedisStoreOption func(*RedisStore)

// WithOpTimeout overrides the per-operation Redis timeout.
func WithOpTimeout(d time.Duration) RedisStoreOption {
	return func(s *RedisStore) {
		if d > 0 {
			s.opTimeout = d
		}
	}
}

// NewRedisStore wraps an established Redis client. The caller owns the
// client lifecycle; pinging it at startup is the application's job.
func NewRedisStore(client *redis.Client, log *zap.Logger, opts ...RedisStoreOption) *RedisStore {
	if log == nil {
		log = zap.NewNop()
	}
	s := &RedisStore{
		client:    client,
		log:       log,
		opTimeout: defaultOpTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

// Get returns the cached value for key. A missing key is not an error.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	value, err := s.client.Get(opCtx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set stores the value with PX expiry semantics.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.client.Set(opCtx, key, value, ttl).Err()
}

// Delete removes the supplied keys, ignoring missing ones.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	opCtx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.client.Del(opCtx, keys...).Err()
}

// DeleteByPrefix scans for keys sharing prefix and deletes them in
// batches, returning how many were removed.
func (s *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	// Prefix scans walk the keyspace; give them more room than a point op.
	opCtx, cancel := context.WithTimeout(ctx, 4*s.opTimeout)
	defer cancel()

	deleted := 0
	iter := s.client.Scan(opCtx, 0, prefix+"*", scanBatchSize).Iterator()

	batch := make([]string, 0, scanBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.client.Del(opCtx, batch...).Err(); err != nil {
			return err
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	for iter.Next(opCtx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatchSize {
			if err := flush(); err != nil {
				return deleted, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return deleted, err
	}
	if err := flush(); err != nil {
		return deleted, err
	}
	return deleted, nil
}

// GetOrFetch implements the read-through primitive with per-process
// coalescing via singleflight. Any cache failure degrades to calling the
// producer directly and skipping the write-back; the caller never sees a
// cache error.
func (s *RedisStore) GetOrFetch(ctx context.Context, key string, ttl time.Duration, producer cache.Producer) ([]byte, error) {
	result, err, _ := s.group.Do(key, func() (any, error) {
		value, found, cacheErr := s.Get(ctx, key)
		if cacheErr != nil {
			s.log.Warn("cache read failed, serving from backend",
				zap.String("key", key), zap.Error(cacheErr))
			return producer(ctx)
		}
		if found {
			return value, nil
		}

		value, err := producer(ctx)
		if err != nil {
			return nil, err
		}
		if setErr := s.Set(ctx, key, value, ttl); setErr != nil {
			s.log.Warn("cache write-back failed",
				zap.String("key", key), zap.Error(setErr))
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
