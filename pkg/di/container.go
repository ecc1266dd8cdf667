// Package di wires configuration into the object graph the server runs
// on: cache store, key builder, backend stores, divergence logger, and
// the repositories. Everything is a singleton owned by the Container.
package di

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/backend"
	"github.com/promptdeck/promptdeck/cache"
	"github.com/promptdeck/promptdeck/config"
	"github.com/promptdeck/promptdeck/internal/cacheinfra"
	"github.com/promptdeck/promptdeck/repository"
	"github.com/promptdeck/promptdeck/sqlitestore"
	"github.com/promptdeck/promptdeck/supastore"
)

// Container holds the fully wired application graph.
type Container struct {
	cfg      *config.Config
	log      *zap.Logger
	selector backend.Selector
	cache    cache.Store
	keys     cache.KeyBuilder

	sqlite   *sqlitestore.Store
	supabase *supastore.Store

	prompts     *repository.PromptRepository
	collections *repository.CollectionRepository
	profiles    *repository.ProfileRepository
}

// NewContainer builds the graph from configuration. Only the backends
// the effective mode needs are opened; a serverless environment forces
// Supabase-only operation.
func NewContainer(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Container, error) {
	if log == nil {
		log = zap.NewNop()
	}

	mode, err := cfg.Backend.ParsedMode()
	if err != nil {
		return nil, err
	}
	serverless := backend.DetectServerless()
	selector := backend.NewSelector(mode, serverless)
	if serverless && mode != backend.ModeSupabase {
		log.Info("serverless environment detected, forcing supabase backend",
			zap.String("configured_mode", string(mode)))
	}

	c := &Container{cfg: cfg, log: log, selector: selector}

	if err := c.initCache(); err != nil {
		return nil, err
	}
	if err := c.initStores(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.initRepositories(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) initCache() error {
	c.keys = cache.NewKeyBuilder()

	switch c.cfg.Cache.Driver {
	case "redis":
		rc := c.cfg.Cache.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Address,
			Username: rc.Username,
			Password: rc.Password,
			DB:       rc.DB,
		})
		c.cache = cacheinfra.NewRedisStore(client, c.log.Named("cache"))
	default:
		store, err := cacheinfra.NewMemoryStore(c.cfg.Cache.StoreConfig())
		if err != nil {
			return err
		}
		c.cache = store
	}
	return nil
}

func (c *Container) initStores(ctx context.Context) error {
	needed := make(map[backend.ID]bool)
	needed[c.selector.PrimaryForReads()] = true
	for _, t := range c.selector.WriteTargets() {
		needed[t] = true
	}

	if needed[backend.SQLite] {
		store, err := sqlitestore.Open(c.cfg.Backend.SQLite.Path)
		if err != nil {
			return fmt.Errorf("di: open sqlite backend: %w", err)
		}
		c.sqlite = store
	}
	if needed[backend.Supabase] {
		store, err := supastore.Open(ctx, c.cfg.Backend.Supabase.DSN)
		if err != nil {
			return fmt.Errorf("di: open supabase backend: %w", err)
		}
		c.supabase = store
	}
	return nil
}

func (c *Container) initRepositories() error {
	ttl := c.cfg.Cache.StoreConfig().TTL
	diverge := repository.NewDivergenceLogger(
		c.cfg.Backend.DivergenceEnabled(c.selector.Mode()),
		repository.NewZapSink(c.log.Named("divergence")),
		c.log,
	)

	promptStores := make(map[backend.ID]repository.PromptStore)
	collectionStores := make(map[backend.ID]repository.CollectionStore)
	profileStores := make(map[backend.ID]repository.ProfileStore)
	if c.sqlite != nil {
		promptStores[backend.SQLite] = c.sqlite
		collectionStores[backend.SQLite] = c.sqlite
		profileStores[backend.SQLite] = c.sqlite
	}
	if c.supabase != nil {
		promptStores[backend.Supabase] = c.supabase
		collectionStores[backend.Supabase] = c.supabase
		profileStores[backend.Supabase] = c.supabase
	}

	prompts, err := repository.NewPromptRepository(
		promptStores, c.selector, c.cache, c.keys, ttl, diverge, c.log.Named("prompts"))
	if err != nil {
		return err
	}
	collections, err := repository.NewCollectionRepository(
		collectionStores, c.selector, c.cache, c.keys, ttl, diverge, c.log.Named("collections"))
	if err != nil {
		return err
	}
	profiles, err := repository.NewProfileRepository(
		profileStores, c.selector, c.cache, c.keys, ttl)
	if err != nil {
		return err
	}

	c.prompts = prompts
	c.collections = collections
	c.profiles = profiles
	return nil
}

// Close releases backend connections. Safe to call on a partially
// initialised container.
func (c *Container) Close() {
	if c.sqlite != nil {
		if err := c.sqlite.Close(); err != nil {
			c.log.Warn("closing sqlite backend", zap.Error(err))
		}
	}
	if c.supabase != nil {
		c.supabase.Close()
	}
}

// Selector returns the effective backend selector.
func (c *Container) Selector() backend.Selector { return c.selector }

// Cache returns the shared cache store.
func (c *Container) Cache() cache.Store { return c.cache }

// KeyBuilder returns the shared cache key builder.
func (c *Container) KeyBuilder() cache.KeyBuilder { return c.keys }

// SQLite returns the SQLite store, or nil when the mode does not use it.
func (c *Container) SQLite() *sqlitestore.Store { return c.sqlite }

// Prompts returns the prompt repository.
func (c *Container) Prompts() *repository.PromptRepository { return c.prompts }

// Collections returns the collection repository.
func (c *Container) Collections() *repository.CollectionRepository { return c.collections }

// Profiles returns the profile repository.
func (c *Container) Profiles() *repository.ProfileRepository { return c.profiles }
