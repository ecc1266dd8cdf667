package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

// mapStore is a minimal Store for exercising the typed layer. No TTL
// handling; entries live until deleted.
type mapStore struct {
	mu      sync.Mutex
	entries map[string][]byte
	fetches int
}

func newMapStore() *mapStore {
	return &mapStore{entries: make(map[string][]byte)}
}

func (s *mapStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *mapStore) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = value
	return nil
}

func (s *mapStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

func (s *mapStore) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k := range s.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}

func (s *mapStore) GetOrFetch(ctx context.Context, key string, ttl time.Duration, producer Producer) ([]byte, error) {
	if v, ok, _ := s.Get(ctx, key); ok {
		return v, nil
	}
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
	v, err := producer(ctx)
	if err != nil {
		return nil, err
	}
	_ = s.Set(ctx, key, v, ttl)
	return v, nil
}

type payload struct {
	Name  string
	Count int
}

func TestGetOrFetchMissThenHit(t *testing.T) {
	store := newMapStore()
	calls := 0
	fetch := func(context.Context) (payload, error) {
		calls++
		return payload{Name: "a", Count: 7}, nil
	}

	got, err := GetOrFetch(context.Background(), store, "prompt:1", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "a", Count: 7}, got)
	assert.Equal(t, 1, calls)

	got, err = GetOrFetch(context.Background(), store, "prompt:1", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, payload{Name: "a", Count: 7}, got)
	assert.Equal(t, 1, calls, "second read must be served from cache")
}

func TestGetOrFetchProducerErrorNotCached(t *testing.T) {
	store := newMapStore()
	boom := errors.New("backend down")
	calls := 0
	fetch := func(context.Context) (payload, error) {
		calls++
		return payload{}, boom
	}

	_, err := GetOrFetch(context.Background(), store, "prompt:1", time.Minute, fetch)
	require.ErrorIs(t, err, boom)

	_, err = GetOrFetch(context.Background(), store, "prompt:1", time.Minute, fetch)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls, "errors must not be cached")
}

func TestGetOrFetchCorruptEntryDegradesToFetch(t *testing.T) {
	store := newMapStore()
	require.NoError(t, store.Set(context.Background(), "prompt:1", []byte("not msgpack"), time.Minute))

	fetch := func(context.Context) (payload, error) {
		return payload{Name: "fresh"}, nil
	}
	got, err := GetOrFetch(context.Background(), store, "prompt:1", time.Minute, fetch)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Name)

	// Corrupt entry was evicted.
	_, ok, _ := store.Get(context.Background(), "prompt:1")
	assert.False(t, ok)
}

func TestGetOrFetchCanonicalEncoding(t *testing.T) {
	store := newMapStore()
	_, err := GetOrFetch(context.Background(), store, "prompt:1", time.Minute, func(context.Context) (payload, error) {
		return payload{Name: "a", Count: 7}, nil
	})
	require.NoError(t, err)

	raw, ok, _ := store.Get(context.Background(), "prompt:1")
	require.True(t, ok)
	var out payload
	require.NoError(t, msgpack.Unmarshal(raw, &out))
	assert.Equal(t, payload{Name: "a", Count: 7}, out)
}
