// Package cacheinfra contains the concrete cache.Store implementations:
// an in-process sturdyc-backed store and a shared Redis-backed store.
package cacheinfra

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/viccon/sturdyc"

	"github.com/promptdeck/promptdeck/cache"
)

// MemoryStore is the in-process cache.Store variant backed by sturdyc.
// sturdyc provides sharding, TTL expiry, capacity-based eviction, and
// per-key in-flight request coalescing for GetOrFetch.
//
// sturdyc fixes the TTL per client, while our TTL policy is
// per-operation-class, so the store keeps one client per distinct TTL.
// In practice that is the three configured classes.
type MemoryStore struct {
	cfg cache.Config

	mu      sync.RWMutex
	clients map[time.Duration]*sturdyc.Client[[]byte]
}

// NewMemoryStore constructs an in-process store from the shared cache
// configuration, eagerly creating one client per configured TTL class.
func NewMemoryStore(cfg cache.Config) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &MemoryStore{
		cfg:     cfg,
		clients: make(map[time.Duration]*sturdyc.Client[[]byte]),
	}
	for _, ttl := range []time.Duration{cfg.TTL.List, cfg.TTL.Entity, cfg.TTL.Trending} {
		s.clientFor(ttl)
	}
	return s, nil
}

func (s *MemoryStore) clientFor(ttl time.Duration) *sturdyc.Client[[]byte] {
	if ttl <= 0 {
		ttl = s.cfg.TTL.List
	}

	s.mu.RLock()
	client, ok := s.clients[ttl]
	s.mu.RUnlock()
	if ok {
		return client
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[ttl]; ok {
		return client
	}
	client = sturdyc.New[[]byte](s.cfg.Capacity, s.cfg.NumShards, ttl, s.cfg.EvictionPercentage)
	s.clients[ttl] = client
	return client
}

func (s *MemoryStore) snapshot() []*sturdyc.Client[[]byte] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	clients := make([]*sturdyc.Client[[]byte], 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	return clients
}

// Get checks every TTL-class client for a live entry.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	for _, client := range s.snapshot() {
		if value, ok := client.Get(key); ok {
			return value, true, nil
		}
	}
	return nil, false, nil
}

// Set stores the value in the client matching the TTL class.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.clientFor(ttl).Set(key, value)
	return nil
}

// Delete removes the keys from every TTL-class client.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, client := range s.snapshot() {
		for _, key := range keys {
			client.Delete(key)
		}
	}
	return nil
}

// DeleteByPrefix drops every key sharing prefix and returns the count.
// A second immediate call finds nothing and returns 0.
func (s *MemoryStore) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	deleted := 0
	for _, client := range s.snapshot() {
		for _, key := range client.ScanKeys() {
			if strings.HasPrefix(key, prefix) {
				client.Delete(key)
				deleted++
			}
		}
	}
	return deleted, nil
}

// GetOrFetch delegates to sturdyc's read-through primitive, which caches
// the producer result for the client's TTL and guarantees at most one
// in-flight producer per key within this process.
func (s *MemoryStore) GetOrFetch(ctx context.Context, key string, ttl time.Duration, producer cache.Producer) ([]byte, error) {
	return s.clientFor(ttl).GetOrFetch(ctx, key, sturdyc.FetchFn[[]byte](producer))
}
