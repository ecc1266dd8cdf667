package repository

import (
	"context"

	"github.com/promptdeck/promptdeck/backend"
	"github.com/promptdeck/promptdeck/cache"
	"github.com/promptdeck/promptdeck/domain"
)

const profileNamespace = "profile"

// ProfileRepository serves author profiles cache-first. Profiles are
// read-only through this surface, so there is no write fan-out and no
// invalidation beyond TTL expiry.
type ProfileRepository struct {
	stores   storeSet[ProfileStore]
	selector backend.Selector
	cache    cache.Store
	keys     cache.KeyBuilder
	ttl      cache.TTLConfig
}

func NewProfileRepository(
	stores map[backend.ID]ProfileStore,
	selector backend.Selector,
	cacheStore cache.Store,
	keys cache.KeyBuilder,
	ttl cache.TTLConfig,
) (*ProfileRepository, error) {
	if len(stores) == 0 || cacheStore == nil || keys == nil {
		return nil, errNilDependency
	}
	return &ProfileRepository{
		stores:   stores,
		selector: selector,
		cache:    cacheStore,
		keys:     keys,
		ttl:      ttl,
	}, nil
}

func (r *ProfileRepository) primaryStore() (ProfileStore, error) {
	return r.stores.get(r.selector.PrimaryForReads())
}

// GetByID serves a profile cache-first with the entity TTL.
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (domain.Profile, error) {
	key := r.keys.EntityKey(profileNamespace, id)

	return cache.GetOrFetch(ctx, r.cache, key, r.ttl.For(cache.TTLEntity), func(ctx context.Context) (domain.Profile, error) {
		store, err := r.primaryStore()
		if err != nil {
			return domain.Profile{}, err
		}
		return store.GetProfileByID(ctx, id)
	})
}

// GetByUsername serves a profile by username cache-first. Username keys
// share the profile namespace with id keys.
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (domain.Profile, error) {
	key := r.keys.EntityKey(profileNamespace, username)

	return cache.GetOrFetch(ctx, r.cache, key, r.ttl.For(cache.TTLEntity), func(ctx context.Context) (domain.Profile, error) {
		store, err := r.primaryStore()
		if err != nil {
			return domain.Profile{}, err
		}
		return store.GetProfileByUsername(ctx, username)
	})
}
