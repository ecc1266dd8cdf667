package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/promptdeck/promptdeck/backend"
	"github.com/promptdeck/promptdeck/domain"
)

// PromptStore is the contract both storage backends satisfy for the
// prompt family. Implementations transform native rows into canonical
// shapes before returning; repositories never see backend-native rows.
type PromptStore interface {
	ID() backend.ID
	List(ctx context.Context, f domain.PromptFilters) (domain.PromptPage, error)
	GetByID(ctx context.Context, id string) (domain.Prompt, error)
	GetBySlug(ctx context.Context, slug string) (domain.Prompt, error)
	Create(ctx context.Context, p domain.Prompt) (domain.Prompt, error)
	Update(ctx context.Context, id string, in domain.UpdatePromptInput) (domain.Prompt, error)
	Delete(ctx context.Context, id string) error
	IncrementView(ctx context.Context, id string) error
	IncrementCopy(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, promptID, userID string) (liked bool, likes int, err error)
	Trending(ctx context.Context, period domain.TrendingPeriod, limit int) ([]domain.Prompt, error)
}

// CollectionStore is the backend contract for the collection family.
type CollectionStore interface {
	ID() backend.ID
	ListCollections(ctx context.Context, ownerID string) ([]domain.Collection, error)
	GetCollectionByID(ctx context.Context, id string) (domain.Collection, error)
	CreateCollection(ctx context.Context, c domain.Collection) (domain.Collection, error)
	UpdateCollection(ctx context.Context, id string, in domain.UpdateCollectionInput) (domain.Collection, error)
	DeleteCollection(ctx context.Context, id string) error
	AddToCollection(ctx context.Context, collectionID, promptID string) error
	RemoveFromCollection(ctx context.Context, collectionID, promptID string) error
}

// ProfileStore is the backend contract for author profiles.
type ProfileStore interface {
	ID() backend.ID
	GetProfileByID(ctx context.Context, id string) (domain.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error)
}

// writeOutcome captures one backend's result for a single logical write
// so dual-write failures can be handled per target.
type writeOutcome[T any] struct {
	target backend.ID
	result T
	err    error
}

// pickPrimary returns the outcome for the primary-for-reads backend. The
// selector guarantees the primary is always among the write targets.
func pickPrimary[T any](outcomes []writeOutcome[T], primary backend.ID) (writeOutcome[T], error) {
	for _, o := range outcomes {
		if o.target == primary {
			return o, nil
		}
	}
	var zero writeOutcome[T]
	return zero, fmt.Errorf("repository: no outcome for primary backend %s", primary)
}

// storeSet resolves a backend ID to a store, failing loudly on
// misconfiguration instead of silently skipping a write target.
type storeSet[S any] map[backend.ID]S

func (s storeSet[S]) get(id backend.ID) (S, error) {
	store, ok := s[id]
	if !ok {
		var zero S
		return zero, fmt.Errorf("repository: no store registered for backend %s", id)
	}
	return store, nil
}

var errNilDependency = errors.New("repository: missing dependency")

// writeAll performs one logical write against every write-enabled
// backend, collecting each outcome independently so one backend's
// failure never prevents attempting the other.
func writeAll[S, T any](ctx context.Context, stores storeSet[S], selector backend.Selector, apply func(context.Context, S) (T, error)) []writeOutcome[T] {
	targets := selector.WriteTargets()
	outcomes := make([]writeOutcome[T], 0, len(targets))
	for _, target := range targets {
		outcome := writeOutcome[T]{target: target}
		store, err := stores.get(target)
		if err != nil {
			outcome.err = err
		} else {
			outcome.result, outcome.err = apply(ctx, store)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// auditOutcomes feeds dual-write results to the divergence logger:
// whenever exactly one backend fails the surviving write is recorded as
// partial (the record names the backend that failed), and dual
// successes are compared off the request path via dispatch.
func auditOutcomes[T any](selector backend.Selector, diverge *DivergenceLogger, dispatch func(func()), op string, outcomes []writeOutcome[T]) {
	if !selector.IsDualWrite() || len(outcomes) < 2 {
		return
	}
	primaryID := selector.PrimaryForReads()

	var primary, secondary writeOutcome[T]
	for _, o := range outcomes {
		if o.target == primaryID {
			primary = o
		} else {
			secondary = o
		}
	}

	switch {
	case primary.err == nil && secondary.err != nil:
		diverge.PartialWrite(op, secondary.target, secondary.err)
	case primary.err != nil && secondary.err == nil:
		// The operation fails for the caller, but the secondary's
		// committed row is now orphaned and must leave an audit trace.
		diverge.PartialWrite(op, primary.target, primary.err)
	case primary.err == nil && secondary.err == nil:
		a, b := primary.result, secondary.result
		dispatch(func() { diverge.Compare(op, a, b) })
	}
}
