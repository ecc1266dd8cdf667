package cache

import (
	"fmt"
	"time"
)

// TTLClass selects which staleness bound applies to an operation.
// List results change often and get the shortest TTL; single-entity
// lookups live longer; trending aggregates live longest.
type TTLClass int

const (
	TTLList TTLClass = iota
	TTLEntity
	TTLTrending
)

// TTLConfig is the per-operation-class TTL policy. It is a configuration
// surface, not a set of per-call-site constants.
type TTLConfig struct {
	List     time.Duration `mapstructure:"list"`
	Entity   time.Duration `mapstructure:"entity"`
	Trending time.Duration `mapstructure:"trending"`
}

// For returns the TTL for the supplied class.
func (c TTLConfig) For(class TTLClass) time.Duration {
	switch class {
	case TTLEntity:
		return c.Entity
	case TTLTrending:
		return c.Trending
	default:
		return c.List
	}
}

// Config holds sizing and TTL settings shared by both store variants.
type Config struct {
	// Capacity is the maximum entry count per in-process cache shard set.
	Capacity int
	// NumShards controls in-process cache sharding. Higher values improve
	// concurrency at the cost of memory overhead.
	NumShards int
	// EvictionPercentage is how much of the in-process cache to evict when
	// capacity is reached, in percent.
	EvictionPercentage int
	// TTL is the per-class staleness policy.
	TTL TTLConfig
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          64,
		EvictionPercentage: 10,
		TTL: TTLConfig{
			List:     30 * time.Second,
			Entity:   5 * time.Minute,
			Trending: 15 * time.Minute,
		},
	}
}

// Validate checks whether the configuration values are usable.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return fmt.Errorf("cache: capacity must be greater than 0")
	}
	if c.NumShards <= 0 {
		return fmt.Errorf("cache: num shards must be greater than 0")
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return fmt.Errorf("cache: eviction percentage must be between 1 and 100")
	}
	for _, ttl := range []time.Duration{c.TTL.List, c.TTL.Entity, c.TTL.Trending} {
		if ttl <= 0 {
			return fmt.Errorf("cache: every TTL class must be greater than 0")
		}
	}
	return nil
}
