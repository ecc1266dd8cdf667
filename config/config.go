package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/promptdeck/promptdeck/backend"
	"github.com/promptdeck/promptdeck/cache"
)

// Config is the runtime configuration for the promptdeck backend.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Backend BackendConfig `mapstructure:"backend"`
	Cache   CacheConfig   `mapstructure:"cache"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// BackendConfig selects the storage backend(s) and their connections.
type BackendConfig struct {
	// Mode is "sqlite", "supabase", or "both". It is overridden to
	// "supabase" when a serverless platform is detected at startup.
	Mode     string         `mapstructure:"mode"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
	Supabase SupabaseConfig `mapstructure:"supabase"`

	// Divergence toggles dual-write result comparison. Empty means
	// "follow the mode": enabled exactly when mode is both.
	Divergence *bool `mapstructure:"divergence"`
}

// SQLiteConfig holds the legacy backend's file path.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// SupabaseConfig holds the Postgres connection string.
type SupabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// CacheConfig describes the cache variant and its sizing.
type CacheConfig struct {
	// Driver is "memory" or "redis".
	Driver             string           `mapstructure:"driver"`
	Capacity           int              `mapstructure:"capacity"`
	NumShards          int              `mapstructure:"num_shards"`
	EvictionPercentage int              `mapstructure:"eviction_percentage"`
	TTL                TTLConfig        `mapstructure:"ttl"`
	Redis              RedisCacheConfig `mapstructure:"redis"`
}

// TTLConfig sets the lifetime per operation class.
type TTLConfig struct {
	List     time.Duration `mapstructure:"list"`
	Entity   time.Duration `mapstructure:"entity"`
	Trending time.Duration `mapstructure:"trending"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Load initialises configuration using Viper with sensible defaults.
// Precedence is environment (PROMPTDECK_*) over config file over
// defaults.
func Load(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("PROMPTDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects combinations the rest of the system cannot run with.
func (c *Config) Validate() error {
	if _, err := backend.ParseMode(c.Backend.Mode); err != nil {
		return err
	}
	switch c.Cache.Driver {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: unknown cache driver %q", c.Cache.Driver)
	}
	if c.Cache.Driver == "redis" && strings.TrimSpace(c.Cache.Redis.Address) == "" {
		return errors.New("config: cache.redis.address is required for the redis driver")
	}
	return nil
}

// ParsedMode parses the configured backend mode string.
func (c *BackendConfig) ParsedMode() (backend.Mode, error) {
	return backend.ParseMode(c.Mode)
}

// DivergenceEnabled reports whether dual-write comparison should run.
func (c *BackendConfig) DivergenceEnabled(mode backend.Mode) bool {
	if c.Divergence != nil {
		return *c.Divergence
	}
	return mode == backend.ModeDual
}

// StoreConfig converts the cache section into the cache package's
// representation.
func (c CacheConfig) StoreConfig() cache.Config {
	cfg := cache.DefaultConfig()
	if c.Capacity > 0 {
		cfg.Capacity = c.Capacity
	}
	if c.NumShards > 0 {
		cfg.NumShards = c.NumShards
	}
	if c.EvictionPercentage > 0 {
		cfg.EvictionPercentage = c.EvictionPercentage
	}
	if c.TTL.List > 0 {
		cfg.TTL.List = c.TTL.List
	}
	if c.TTL.Entity > 0 {
		cfg.TTL.Entity = c.TTL.Entity
	}
	if c.TTL.Trending > 0 {
		cfg.TTL.Trending = c.TTL.Trending
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("backend.mode", "sqlite")
	v.SetDefault("backend.sqlite.path", "./data/promptdeck.sqlite")
	v.SetDefault("backend.supabase.dsn", "")

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.capacity", 10000)
	v.SetDefault("cache.num_shards", 64)
	v.SetDefault("cache.eviction_percentage", 10)
	v.SetDefault("cache.ttl.list", "30s")
	v.SetDefault("cache.ttl.entity", "5m")
	v.SetDefault("cache.ttl.trending", "15m")
	v.SetDefault("cache.redis.address", "")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.timeout", "5s")
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}
