// Package cache provides the caching contract and key derivation used by
// the repository layer.
//
// # Overview
//
// The package exports:
//
//   - Store: the shared cache contract (get/set/delete, prefix
//     invalidation, read-through GetOrFetch with per-process request
//     coalescing)
//   - KeyBuilder: deterministic cache keys from operation names and
//     filter parameters
//   - GetOrFetch: the typed read-through helper used at every repository
//     call site
//
// Two Store implementations live in internal/cacheinfra: an in-process
// sturdyc-backed store for single-instance deployments and a Redis-backed
// store shared across instances.
//
// # Key derivation
//
// List keys follow "<operation>:<sorted-serialized-filters>"; entity keys
// follow "<operation>:<id>". Parameter maps are serialized with sorted
// field names, slice values are sorted before serialization, and nil or
// empty fields are omitted, so semantically equal filter sets always
// yield identical keys. Keys longer than 200 characters are truncated
// with an xxhash suffix to stay under backend key-length limits.
//
// The ':' separator appears only between the operation namespace and the
// serialized parameters, which is what makes prefix-based invalidation
// ("prompts:", "prompt:", "trending:") safe.
//
// # Failure semantics
//
// Key derivation never fails; unserializable values degrade to a stable
// best-effort representation. Store implementations absorb their own
// backend failures: GetOrFetch falls through to the producer and skips
// the write-back, logging the cache error instead of surfacing it.
package cache
