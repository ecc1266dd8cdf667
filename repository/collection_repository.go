package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/backend"
	"github.com/promptdeck/promptdeck/cache"
	"github.com/promptdeck/promptdeck/domain"
)

const (
	collectionListNamespace   = "collections"
	collectionEntityNamespace = "collection"
)

// CollectionRepository orchestrates collection operations with the same
// cache-first read and dual-write semantics as the prompt repository.
type CollectionRepository struct {
	stores   storeSet[CollectionStore]
	selector backend.Selector
	cache    cache.Store
	keys     cache.KeyBuilder
	ttl      cache.TTLConfig
	diverge  *DivergenceLogger
	log      *zap.Logger
	dispatch func(fn func())
}

func NewCollectionRepository(
	stores map[backend.ID]CollectionStore,
	selector backend.Selector,
	cacheStore cache.Store,
	keys cache.KeyBuilder,
	ttl cache.TTLConfig,
	diverge *DivergenceLogger,
	log *zap.Logger,
) (*CollectionRepository, error) {
	if len(stores) == 0 || cacheStore == nil || keys == nil {
		return nil, errNilDependency
	}
	if log == nil {
		log = zap.NewNop()
	}
	for _, target := range selector.WriteTargets() {
		if _, ok := stores[target]; !ok {
			return nil, fmt.Errorf("repository: backend %s is write-enabled but has no store", target)
		}
	}
	return &CollectionRepository{
		stores:   stores,
		selector: selector,
		cache:    cacheStore,
		keys:     keys,
		ttl:      ttl,
		diverge:  diverge,
		log:      log,
		dispatch: func(fn func()) { go fn() },
	}, nil
}

func (r *CollectionRepository) primaryStore() (CollectionStore, error) {
	return r.stores.get(r.selector.PrimaryForReads())
}

// List serves a user's collections cache-first.
func (r *CollectionRepository) List(ctx context.Context, ownerID string) ([]domain.Collection, error) {
	key := r.keys.ListKey(collectionListNamespace, map[string]any{"owner": ownerID})

	return cache.GetOrFetch(ctx, r.cache, key, r.ttl.For(cache.TTLList), func(ctx context.Context) ([]domain.Collection, error) {
		store, err := r.primaryStore()
		if err != nil {
			return nil, err
		}
		return store.ListCollections(ctx, ownerID)
	})
}

// GetByID serves a single collection cache-first.
func (r *CollectionRepository) GetByID(ctx context.Context, id string) (domain.Collection, error) {
	key := r.keys.EntityKey(collectionEntityNamespace, id)

	return cache.GetOrFetch(ctx, r.cache, key, r.ttl.For(cache.TTLEntity), func(ctx context.Context) (domain.Collection, error) {
		store, err := r.primaryStore()
		if err != nil {
			return domain.Collection{}, err
		}
		return store.GetCollectionByID(ctx, id)
	})
}

// Create assigns identity once so every backend stores the same row,
// then writes to all write targets.
func (r *CollectionRepository) Create(ctx context.Context, in domain.CreateCollectionInput) (domain.Collection, error) {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.OwnerID) == "" {
		return domain.Collection{}, fmt.Errorf("%w: name and owner are required", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	c := domain.Collection{
		ID:          uuid.NewString(),
		Slug:        domain.NewSlug(in.Name),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		OwnerID:     in.OwnerID,
		PromptIDs:   []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	outcomes := writeAll(ctx, r.stores, r.selector, func(ctx context.Context, s CollectionStore) (domain.Collection, error) {
		return s.CreateCollection(ctx, c)
	})
	auditOutcomes(r.selector, r.diverge, r.dispatch, "collections.create", outcomes)
	primary, err := pickPrimary(outcomes, r.selector.PrimaryForReads())
	if err != nil {
		return domain.Collection{}, err
	}
	if primary.err != nil {
		return domain.Collection{}, primary.err
	}

	r.invalidate(ctx, primary.result.ID)
	return primary.result, nil
}

// Update applies the non-nil fields on every write target and returns
// the primary backend's row.
func (r *CollectionRepository) Update(ctx context.Context, id string, in domain.UpdateCollectionInput) (domain.Collection, error) {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return domain.Collection{}, fmt.Errorf("%w: name cannot be empty", domain.ErrInvalidInput)
	}
	in.UpdatedAt = time.Now().UTC()

	outcomes := writeAll(ctx, r.stores, r.selector, func(ctx context.Context, s CollectionStore) (domain.Collection, error) {
		return s.UpdateCollection(ctx, id, in)
	})
	auditOutcomes(r.selector, r.diverge, r.dispatch, "collections.update", outcomes)
	primary, err := pickPrimary(outcomes, r.selector.PrimaryForReads())
	if err != nil {
		return domain.Collection{}, err
	}
	if primary.err != nil {
		return domain.Collection{}, primary.err
	}

	r.invalidate(ctx, id)
	return primary.result, nil
}

// Delete removes the collection from every write target.
func (r *CollectionRepository) Delete(ctx context.Context, id string) error {
	outcomes := writeAll(ctx, r.stores, r.selector, func(ctx context.Context, s CollectionStore) (struct{}, error) {
		return struct{}{}, s.DeleteCollection(ctx, id)
	})
	auditOutcomes(r.selector, r.diverge, r.dispatch, "collections.delete", outcomes)
	primary, err := pickPrimary(outcomes, r.selector.PrimaryForReads())
	if err != nil {
		return err
	}
	if primary.err != nil {
		return primary.err
	}

	r.invalidate(ctx, id)
	return nil
}

// AddPrompt links a prompt into the collection on every write target.
// Re-adding an already linked prompt is a no-op, not an error.
func (r *CollectionRepository) AddPrompt(ctx context.Context, collectionID, promptID string) error {
	return r.link(ctx, "collections.add_prompt", collectionID, func(ctx context.Context, s CollectionStore) error {
		return s.AddToCollection(ctx, collectionID, promptID)
	})
}

// RemovePrompt unlinks a prompt from the collection on every write target.
func (r *CollectionRepository) RemovePrompt(ctx context.Context, collectionID, promptID string) error {
	return r.link(ctx, "collections.remove_prompt", collectionID, func(ctx context.Context, s CollectionStore) error {
		return s.RemoveFromCollection(ctx, collectionID, promptID)
	})
}

func (r *CollectionRepository) link(ctx context.Context, op, collectionID string, apply func(context.Context, CollectionStore) error) error {
	outcomes := writeAll(ctx, r.stores, r.selector, func(ctx context.Context, s CollectionStore) (struct{}, error) {
		return struct{}{}, apply(ctx, s)
	})
	auditOutcomes(r.selector, r.diverge, r.dispatch, op, outcomes)
	primary, err := pickPrimary(outcomes, r.selector.PrimaryForReads())
	if err != nil {
		return err
	}
	if primary.err != nil {
		return primary.err
	}

	r.invalidate(ctx, collectionID)
	return nil
}

// invalidate drops the collection's entity key and the whole collection
// list namespace before the write returns.
func (r *CollectionRepository) invalidate(ctx context.Context, id string) {
	key := r.keys.EntityKey(collectionEntityNamespace, id)
	if err := r.cache.Delete(ctx, key); err != nil {
		r.log.Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
	if _, err := r.cache.DeleteByPrefix(ctx, collectionListNamespace+":"); err != nil {
		r.log.Warn("cache invalidation failed", zap.String("prefix", collectionListNamespace+":"), zap.Error(err))
	}
}
