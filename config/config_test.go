package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck/backend"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "sqlite", cfg.Backend.Mode)
	assert.Equal(t, "memory", cfg.Cache.Driver)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL.List)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL.Entity)
	assert.Equal(t, 15*time.Minute, cfg.Cache.TTL.Trending)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PROMPTDECK_BACKEND_MODE", "both")
	t.Setenv("PROMPTDECK_CACHE_TTL_LIST", "10s")
	t.Setenv("PROMPTDECK_SERVER_PORT", "9999")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "both", cfg.Backend.Mode)
	assert.Equal(t, 10*time.Second, cfg.Cache.TTL.List)
	assert.Equal(t, 9999, cfg.Server.Port)

	mode, err := cfg.Backend.ParsedMode()
	require.NoError(t, err)
	assert.Equal(t, backend.ModeDual, mode)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	t.Setenv("PROMPTDECK_BACKEND_MODE", "mysql")
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoadRejectsRedisWithoutAddress(t *testing.T) {
	t.Setenv("PROMPTDECK_CACHE_DRIVER", "redis")
	t.Setenv("PROMPTDECK_CACHE_REDIS_ADDRESS", "")
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestDivergenceFollowsMode(t *testing.T) {
	var c BackendConfig
	assert.True(t, c.DivergenceEnabled(backend.ModeDual))
	assert.False(t, c.DivergenceEnabled(backend.ModeSQLite))

	off := false
	c.Divergence = &off
	assert.False(t, c.DivergenceEnabled(backend.ModeDual))
}

func TestStoreConfigOverrides(t *testing.T) {
	c := CacheConfig{Capacity: 500, TTL: TTLConfig{List: time.Second}}
	got := c.StoreConfig()
	assert.Equal(t, 500, got.Capacity)
	assert.Equal(t, time.Second, got.TTL.List)
	// Unset values keep the defaults.
	assert.Equal(t, 64, got.NumShards)
	assert.Equal(t, 5*time.Minute, got.TTL.Entity)
}
