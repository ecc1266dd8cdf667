package cache

import (
	"context"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Producer fetches the authoritative value for a key on a cache miss.
// It is typically an expensive backend query.
type Producer func(ctx context.Context) ([]byte, error)

// Store is the shared cache contract used across the application. Two
// implementations exist: an in-process store for single-instance
// deployments and a Redis-backed store shared between instances.
//
// Implementations must never let a cache failure fail the caller:
// GetOrFetch degrades to invoking the producer directly when the cache
// backend is unreachable, and invalidation errors are logged and
// swallowed.
type Store interface {
	// Get returns the cached value for key, reporting whether a live
	// (non-expired) entry was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value under key for the supplied TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the supplied keys, ignoring missing ones.
	Delete(ctx context.Context, keys ...string) error

	// DeleteByPrefix removes every key sharing the namespace prefix and
	// returns how many entries were dropped. Calling it again immediately
	// is a no-op returning 0.
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)

	// GetOrFetch returns the cached value for key or, on a miss, invokes
	// producer, stores the result for ttl, and returns it. Within one
	// process at most one producer runs per key at a time; concurrent
	// callers for the same cold key share the in-flight result.
	GetOrFetch(ctx context.Context, key string, ttl time.Duration, producer Producer) ([]byte, error)
}

// FetchFn is the typed producer signature used with GetOrFetch.
type FetchFn[T any] func(ctx context.Context) (T, error)

// GetOrFetch is the typed read-through primitive built on Store. Values
// are encoded with msgpack so both store variants hold the same canonical
// byte representation. A corrupt or undecodable entry degrades to a
// direct fetch rather than failing the request.
func GetOrFetch[T any](ctx context.Context, store Store, key string, ttl time.Duration, fetch FetchFn[T]) (T, error) {
	var zero T

	raw, err := store.GetOrFetch(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		return msgpack.Marshal(value)
	})
	if err != nil {
		// Stores absorb their own failures, so this is the producer's error.
		return zero, err
	}

	var out T
	if err := msgpack.Unmarshal(raw, &out); err != nil {
		_ = store.Delete(ctx, key)
		return fetch(ctx)
	}
	return out, nil
}
