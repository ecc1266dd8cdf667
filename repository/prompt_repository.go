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

// Cache key namespaces. The trailing ':' in the invalidation prefixes is
// what scopes a bulk delete to one namespace.
const (
	listNamespace     = "prompts"
	entityNamespace   = "prompt"
	trendingNamespace = "trending"
)

// counterTimeout bounds the detached best-effort counter writes.
const counterTimeout = 5 * time.Second

// PromptRepository orchestrates every prompt operation: it derives cache
// keys, serves reads cache-first from the primary backend, routes writes
// to every write-enabled backend, invalidates affected cache entries
// before returning, and feeds dual-write results to the divergence
// logger.
type PromptRepository struct {
	stores   storeSet[PromptStore]
	selector backend.Selector
	cache    cache.Store
	keys     cache.KeyBuilder
	ttl      cache.TTLConfig
	diverge  *DivergenceLogger
	log      *zap.Logger

	// dispatch runs fire-and-forget work. Tests replace it with a
	// synchronous runner.
	dispatch func(fn func())
}

// NewPromptRepository wires the orchestrator. Every dependency is
// injected; the repository owns no global state.
func NewPromptRepository(
	stores map[backend.ID]PromptStore,
	selector backend.Selector,
	cacheStore cache.Store,
	keys cache.KeyBuilder,
	ttl cache.TTLConfig,
	diverge *DivergenceLogger,
	log *zap.Logger,
) (*PromptRepository, error) {
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
	return &PromptRepository{
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

// listParams flattens the filters into the unordered parameter map the
// key builder serializes. Zero values are treated as absent.
func listParams(f domain.PromptFilters) map[string]any {
	return map[string]any{
		"query":     f.Query,
		"types":     f.Types,
		"tags":      f.Tags,
		"author":    f.AuthorID,
		"sort":      string(f.SortBy),
		"page":      f.Page,
		"page_size": f.PageSize,
	}
}

func (r *PromptRepository) primaryStore() (PromptStore, error) {
	return r.stores.get(r.selector.PrimaryForReads())
}

// List serves a filtered page cache-first. The producer queries only the
// primary backend and caches the canonical page.
func (r *PromptRepository) List(ctx context.Context, f domain.PromptFilters) (domain.PromptPage, error) {
	f = f.Normalized()
	key := r.keys.ListKey(listNamespace, listParams(f))

	return cache.GetOrFetch(ctx, r.cache, key, r.ttl.For(cache.TTLList), func(ctx context.Context) (domain.PromptPage, error) {
		store, err := r.primaryStore()
		if err != nil {
			return domain.PromptPage{}, err
		}
		return store.List(ctx, f)
	})
}

// GetByID serves a single prompt cache-first.
func (r *PromptRepository) GetByID(ctx context.Context, id string) (domain.Prompt, error) {
	key := r.keys.EntityKey(entityNamespace, id)

	return cache.GetOrFetch(ctx, r.cache, key, r.ttl.For(cache.TTLEntity), func(ctx context.Context) (domain.Prompt, error) {
		store, err := r.primaryStore()
		if err != nil {
			return domain.Prompt{}, err
		}
		return store.GetByID(ctx, id)
	})
}

// GetBySlug serves a single prompt by slug cache-first. Slug keys share
// the entity namespace, so entity invalidation covers both.
func (r *PromptRepository) GetBySlug(ctx context.Context, slug string) (domain.Prompt, error) {
	key := r.keys.EntityKey(entityNamespace, slug)

	return cache.GetOrFetch(ctx, r.cache, key, r.ttl.For(cache.TTLEntity), func(ctx context.Context) (domain.Prompt, error) {
		store, err := r.primaryStore()
		if err != nil {
			return domain.Prompt{}, err
		}
		return store.GetBySlug(ctx, slug)
	})
}

// Trending serves the aggregate ranking with the longest TTL class.
func (r *PromptRepository) Trending(ctx context.Context, period domain.TrendingPeriod, limit int) ([]domain.Prompt, error) {
	key := r.keys.EntityKey(trendingNamespace, string(period))

	return cache.GetOrFetch(ctx, r.cache, key, r.ttl.For(cache.TTLTrending), func(ctx context.Context) ([]domain.Prompt, error) {
		store, err := r.primaryStore()
		if err != nil {
			return nil, err
		}
		return store.Trending(ctx, period, limit)
	})
}

// Create validates the submission, assigns identity once so every
// backend stores the same row, writes to all write targets, and
// invalidates before returning. A duplicate fingerprint surfaces as the
// typed duplicate error from the primary backend.
func (r *PromptRepository) Create(ctx context.Context, in domain.CreatePromptInput) (domain.CreatedPrompt, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.PromptText) == "" {
		return domain.CreatedPrompt{}, fmt.Errorf("%w: title and prompt text are required", domain.ErrInvalidInput)
	}
	if in.Type == "" {
		return domain.CreatedPrompt{}, fmt.Errorf("%w: prompt type is required", domain.ErrInvalidInput)
	}

	now := time.Now().UTC()
	p := domain.Prompt{
		ID:          uuid.NewString(),
		Slug:        domain.NewSlug(in.Title),
		Title:       strings.TrimSpace(in.Title),
		PromptText:  in.PromptText,
		Type:        in.Type,
		Tags:        domain.NormalizeTags(in.Tags),
		AuthorID:    in.AuthorID,
		Fingerprint: domain.Fingerprint(in.PromptText),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	outcomes := writeAll(ctx, r.stores, r.selector, func(ctx context.Context, s PromptStore) (domain.Prompt, error) {
		return s.Create(ctx, p)
	})
	auditOutcomes(r.selector, r.diverge, r.dispatch, "prompts.create", outcomes)
	primary, err := pickPrimary(outcomes, r.selector.PrimaryForReads())
	if err != nil {
		return domain.CreatedPrompt{}, err
	}
	if primary.err != nil {
		return domain.CreatedPrompt{}, primary.err
	}

	r.invalidateEntity(ctx, primary.result.ID, primary.result.Slug)
	return domain.CreatedPrompt{ID: primary.result.ID, Slug: primary.result.Slug}, nil
}

// Update applies a partial update on every write target and returns the
// primary backend's canonical result.
func (r *PromptRepository) Update(ctx context.Context, id string, in domain.UpdatePromptInput) (domain.Prompt, error) {
	in.UpdatedAt = time.Now().UTC()

	outcomes := writeAll(ctx, r.stores, r.selector, func(ctx context.Context, s PromptStore) (domain.Prompt, error) {
		return s.Update(ctx, id, in)
	})
	auditOutcomes(r.selector, r.diverge, r.dispatch, "prompts.update", outcomes)
	primary, err := pickPrimary(outcomes, r.selector.PrimaryForReads())
	if err != nil {
		return domain.Prompt{}, err
	}
	if primary.err != nil {
		return domain.Prompt{}, primary.err
	}

	r.invalidateEntity(ctx, primary.result.ID, primary.result.Slug)
	return primary.result, nil
}

// Delete removes the prompt from every write target. The entity is read
// first (uncached, from the primary) so its slug key can be invalidated.
func (r *PromptRepository) Delete(ctx context.Context, id string) error {
	store, err := r.primaryStore()
	if err != nil {
		return err
	}
	existing, err := store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	outcomes := writeAll(ctx, r.stores, r.selector, func(ctx context.Context, s PromptStore) (struct{}, error) {
		return struct{}{}, s.Delete(ctx, id)
	})
	auditOutcomes(r.selector, r.diverge, r.dispatch, "prompts.delete", outcomes)
	primary, err := pickPrimary(outcomes, r.selector.PrimaryForReads())
	if err != nil {
		return err
	}
	if primary.err != nil {
		return primary.err
	}

	r.invalidateEntity(ctx, existing.ID, existing.Slug)
	return nil
}

// LikeResult is what ToggleLike returns: the new state and counter.
type LikeResult struct {
	Liked bool `json:"liked"`
	Likes int  `json:"likes"`
}

// ToggleLike flips the caller's like synchronously on every write target.
func (r *PromptRepository) ToggleLike(ctx context.Context, promptID, userID string) (LikeResult, error) {
	outcomes := writeAll(ctx, r.stores, r.selector, func(ctx context.Context, s PromptStore) (LikeResult, error) {
		liked, likes, err := s.ToggleLike(ctx, promptID, userID)
		return LikeResult{Liked: liked, Likes: likes}, err
	})
	auditOutcomes(r.selector, r.diverge, r.dispatch, "prompts.toggle_like", outcomes)
	primary, err := pickPrimary(outcomes, r.selector.PrimaryForReads())
	if err != nil {
		return LikeResult{}, err
	}
	if primary.err != nil {
		return LikeResult{}, primary.err
	}

	r.invalidateEntity(ctx, promptID, "")
	return primary.result, nil
}

// IncrementView records a view as a non-blocking best-effort dispatch:
// the caller never waits, and a count may be lost if the process dies
// before the write lands.
func (r *PromptRepository) IncrementView(ctx context.Context, id string) {
	r.incrementCounter("prompts.increment_view", id, PromptStore.IncrementView)
}

// IncrementCopy records a copy with the same best-effort contract as
// IncrementView.
func (r *PromptRepository) IncrementCopy(ctx context.Context, id string) {
	r.incrementCounter("prompts.increment_copy", id, PromptStore.IncrementCopy)
}

func (r *PromptRepository) incrementCounter(op, id string, apply func(PromptStore, context.Context, string) error) {
	r.dispatch(func() {
		ctx, cancel := context.WithTimeout(context.Background(), counterTimeout)
		defer cancel()

		primaryID := r.selector.PrimaryForReads()
		for _, target := range r.selector.WriteTargets() {
			store, err := r.stores.get(target)
			if err == nil {
				err = apply(store, ctx, id)
			}
			if err == nil {
				continue
			}
			if target == primaryID {
				r.log.Warn("best-effort counter update failed",
					zap.String("operation", op), zap.String("id", id), zap.Error(err))
			} else {
				r.diverge.PartialWrite(op, target, err)
			}
		}

		// Only the entity key is invalidated; list staleness for counters
		// is bounded by the short list TTL.
		if err := r.cache.Delete(ctx, r.keys.EntityKey(entityNamespace, id)); err != nil {
			r.log.Warn("cache invalidation failed", zap.String("operation", op), zap.Error(err))
		}
	})
}

// invalidateEntity synchronously drops every cache entry that could
// contain the prompt: its id and slug keys plus the whole list and
// trending namespaces. This runs before the write returns so a
// re-read in the same process never sees the pre-write state. When the
// slug is unknown the slug-keyed entry cannot be addressed directly, so
// the whole entity namespace is dropped instead.
func (r *PromptRepository) invalidateEntity(ctx context.Context, id, slug string) {
	if slug == "" {
		if _, err := r.cache.DeleteByPrefix(ctx, entityNamespace+":"); err != nil {
			r.log.Warn("cache invalidation failed", zap.String("prefix", entityNamespace+":"), zap.Error(err))
		}
	} else {
		keys := []string{
			r.keys.EntityKey(entityNamespace, id),
			r.keys.EntityKey(entityNamespace, slug),
		}
		if err := r.cache.Delete(ctx, keys...); err != nil {
			r.log.Warn("cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
		}
	}
	for _, prefix := range []string{listNamespace + ":", trendingNamespace + ":"} {
		if _, err := r.cache.DeleteByPrefix(ctx, prefix); err != nil {
			r.log.Warn("cache invalidation failed", zap.String("prefix", prefix), zap.Error(err))
		}
	}
}
