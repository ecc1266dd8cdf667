package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/promptdeck/promptdeck/backend"
	"github.com/promptdeck/promptdeck/cache"
	"github.com/promptdeck/promptdeck/domain"
	"github.com/promptdeck/promptdeck/internal/cacheinfra"
	"github.com/promptdeck/promptdeck/pkg/testsupport"
)

// fakePromptStore is an in-memory PromptStore with call counting and
// per-operation failure injection.
type fakePromptStore struct {
	id backend.ID

	mu      sync.Mutex
	prompts map[string]domain.Prompt

	listCalls int
	getCalls  int

	createErr error
	updateErr error
	deleteErr error
	toggleErr error
	viewErr   error

	// onCreate lets a test skew what this backend reports it stored.
	onCreate func(domain.Prompt) domain.Prompt
}

func newFakePromptStore(id backend.ID) *fakePromptStore {
	return &fakePromptStore{id: id, prompts: make(map[string]domain.Prompt)}
}

func (f *fakePromptStore) ID() backend.ID { return f.id }

func (f *fakePromptStore) List(_ context.Context, _ domain.PromptFilters) (domain.PromptPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	items := make([]domain.Prompt, 0, len(f.prompts))
	for _, p := range f.prompts {
		items = append(items, p)
	}
	return domain.PromptPage{Items: items, Total: len(items)}, nil
}

func (f *fakePromptStore) GetByID(_ context.Context, id string) (domain.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	p, ok := f.prompts[id]
	if !ok {
		return domain.Prompt{}, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakePromptStore) GetBySlug(_ context.Context, slug string) (domain.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	for _, p := range f.prompts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return domain.Prompt{}, domain.ErrNotFound
}

func (f *fakePromptStore) Create(_ context.Context, p domain.Prompt) (domain.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return domain.Prompt{}, f.createErr
	}
	if f.onCreate != nil {
		p = f.onCreate(p)
	}
	f.prompts[p.ID] = p
	return p, nil
}

func (f *fakePromptStore) Update(_ context.Context, id string, in domain.UpdatePromptInput) (domain.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return domain.Prompt{}, f.updateErr
	}
	p, ok := f.prompts[id]
	if !ok {
		return domain.Prompt{}, domain.ErrNotFound
	}
	if in.Title != nil {
		p.Title = *in.Title
	}
	if in.PromptText != nil {
		p.PromptText = *in.PromptText
		p.Fingerprint = domain.Fingerprint(*in.PromptText)
	}
	if in.Tags != nil {
		p.Tags = domain.NormalizeTags(*in.Tags)
	}
	p.UpdatedAt = in.UpdatedAt
	f.prompts[id] = p
	return p, nil
}

func (f *fakePromptStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.prompts[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.prompts, id)
	return nil
}

func (f *fakePromptStore) IncrementView(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.viewErr != nil {
		return f.viewErr
	}
	p := f.prompts[id]
	p.Views++
	f.prompts[id] = p
	return nil
}

func (f *fakePromptStore) IncrementCopy(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.prompts[id]
	p.Copies++
	f.prompts[id] = p
	return nil
}

func (f *fakePromptStore) ToggleLike(_ context.Context, promptID, _ string) (bool, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toggleErr != nil {
		return false, 0, f.toggleErr
	}
	p, ok := f.prompts[promptID]
	if !ok {
		return false, 0, domain.ErrNotFound
	}
	p.Likes++
	f.prompts[promptID] = p
	return true, p.Likes, nil
}

func (f *fakePromptStore) Trending(_ context.Context, _ domain.TrendingPeriod, limit int) ([]domain.Prompt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	items := make([]domain.Prompt, 0, len(f.prompts))
	for _, p := range f.prompts {
		items = append(items, p)
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// captureSink records divergence records for assertions.
type captureSink struct {
	mu      sync.Mutex
	records []DivergenceRecord
}

func (s *captureSink) Record(rec DivergenceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func (s *captureSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type testEnv struct {
	repo     *PromptRepository
	sqlite   *fakePromptStore
	supabase *fakePromptStore
	sink     *captureSink
	cache    cache.Store
}

func newTestEnv(t *testing.T, mode backend.Mode) *testEnv {
	t.Helper()

	store, err := cacheinfra.NewMemoryStore(cache.DefaultConfig())
	require.NoError(t, err)

	env := &testEnv{
		sqlite:   newFakePromptStore(backend.SQLite),
		supabase: newFakePromptStore(backend.Supabase),
		sink:     &captureSink{},
		cache:    store,
	}

	selector := backend.NewSelector(mode, false)
	diverge := NewDivergenceLogger(selector.IsDualWrite(), env.sink, zap.NewNop())

	repo, err := NewPromptRepository(
		map[backend.ID]PromptStore{
			backend.SQLite:   env.sqlite,
			backend.Supabase: env.supabase,
		},
		selector,
		store,
		cache.NewKeyBuilder(),
		cache.DefaultConfig().TTL,
		diverge,
		zap.NewNop(),
	)
	require.NoError(t, err)

	// Run fire-and-forget work inline so assertions see its effects.
	repo.dispatch = func(fn func()) { fn() }

	env.repo = repo
	return env
}

func (e *testEnv) seed(t *testing.T, p domain.Prompt) {
	t.Helper()
	e.sqlite.prompts[p.ID] = p
	e.supabase.prompts[p.ID] = p
}

func validCreateInput() domain.CreatePromptInput {
	return domain.CreatePromptInput{
		Title:      "Neon city at dusk",
		PromptText: "a rain-soaked neon city street at dusk, cinematic lighting",
		Type:       domain.TypeTextToImage,
		Tags:       []string{"neon", "city"},
		AuthorID:   "author-1",
	}
}

func TestListServedFromCache(t *testing.T) {
	env := newTestEnv(t, backend.ModeSQLite)
	env.seed(t, testsupport.NewPrompt("p1"))

	ctx := context.Background()
	first, err := env.repo.List(ctx, domain.PromptFilters{})
	require.NoError(t, err)
	second, err := env.repo.List(ctx, domain.PromptFilters{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, env.sqlite.listCalls, "second identical list must hit the cache")
}

func TestListDistinctFiltersQuerySeparately(t *testing.T) {
	env := newTestEnv(t, backend.ModeSQLite)
	ctx := context.Background()

	_, err := env.repo.List(ctx, domain.PromptFilters{Page: 1})
	require.NoError(t, err)
	_, err = env.repo.List(ctx, domain.PromptFilters{Page: 2})
	require.NoError(t, err)

	assert.Equal(t, 2, env.sqlite.listCalls)
}

func TestGetByIDCachedAndNotFound(t *testing.T) {
	env := newTestEnv(t, backend.ModeSQLite)
	env.seed(t, testsupport.NewPrompt("p1"))
	ctx := context.Background()

	got, err := env.repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)

	_, err = env.repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, env.sqlite.getCalls)

	_, err = env.repo.GetByID(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestCreateValidation(t *testing.T) {
	env := newTestEnv(t, backend.ModeSQLite)

	in := validCreateInput()
	in.Title = "   "
	_, err := env.repo.Create(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	in = validCreateInput()
	in.Type = ""
	_, err = env.repo.Create(context.Background(), in)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.Empty(t, env.sqlite.prompts, "invalid input must not reach the backend")
}

func TestCreateAssignsIdentityOnceForBothBackends(t *testing.T) {
	env := newTestEnv(t, backend.ModeDual)

	created, err := env.repo.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.NotEmpty(t, created.Slug)

	a := env.sqlite.prompts[created.ID]
	b := env.supabase.prompts[created.ID]
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, a.Slug, b.Slug)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
	assert.Equal(t, a.CreatedAt, b.CreatedAt)
	assert.Equal(t, []string{"city", "neon"}, a.Tags)
}

func TestCreateInvalidatesListCache(t *testing.T) {
	env := newTestEnv(t, backend.ModeSQLite)
	ctx := context.Background()

	_, err := env.repo.List(ctx, domain.PromptFilters{})
	require.NoError(t, err)

	_, err = env.repo.Create(ctx, validCreateInput())
	require.NoError(t, err)

	page, err := env.repo.List(ctx, domain.PromptFilters{})
	require.NoError(t, err)
	assert.Equal(t, 2, env.sqlite.listCalls, "create must invalidate the list namespace")
	assert.Equal(t, 1, page.Total)
}

func TestCreateSecondaryFailureDoesNotSurface(t *testing.T) {
	env := newTestEnv(t, backend.ModeDual)
	env.supabase.createErr = errors.New("supabase unreachable")

	created, err := env.repo.Create(context.Background(), validCreateInput())
	require.NoError(t, err, "a secondary write failure must not fail the request")
	assert.Contains(t, env.sqlite.prompts, created.ID)
	assert.Equal(t, 1, env.sink.len(), "the partial write must be recorded")
}

func TestCreatePrimaryFailureSurfaces(t *testing.T) {
	env := newTestEnv(t, backend.ModeDual)
	dup := &domain.DuplicateError{Fingerprint: "f", ExistingID: "p0"}
	env.sqlite.createErr = dup

	_, err := env.repo.Create(context.Background(), validCreateInput())
	assert.True(t, domain.IsDuplicate(err), "typed errors from the primary pass through")
	assert.Equal(t, 1, env.sink.len(), "the secondary's orphaned row must leave an audit record")
}

func TestDualWriteDivergenceRecorded(t *testing.T) {
	env := newTestEnv(t, backend.ModeDual)
	env.supabase.onCreate = func(p domain.Prompt) domain.Prompt {
		p.Likes = 99
		return p
	}

	_, err := env.repo.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, 1, env.sink.len())
}

func TestDualWriteSubSecondTimestampSkewIsNotDivergence(t *testing.T) {
	env := newTestEnv(t, backend.ModeDual)
	env.supabase.onCreate = func(p domain.Prompt) domain.Prompt {
		p.CreatedAt = p.CreatedAt.Truncate(time.Second)
		p.UpdatedAt = p.UpdatedAt.Truncate(time.Second)
		return p
	}

	_, err := env.repo.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	assert.Equal(t, 0, env.sink.len())
}

func TestUpdateInvalidatesEntityCache(t *testing.T) {
	env := newTestEnv(t, backend.ModeSQLite)
	p := testsupport.NewPrompt("p1")
	env.seed(t, p)
	ctx := context.Background()

	_, err := env.repo.GetByID(ctx, "p1")
	require.NoError(t, err)

	title := "Updated title"
	updated, err := env.repo.Update(ctx, "p1", domain.UpdatePromptInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Updated title", updated.Title)

	got, err := env.repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Updated title", got.Title, "entity cache must not serve the pre-write state")
}

func TestDeleteInvalidatesSlugKey(t *testing.T) {
	env := newTestEnv(t, backend.ModeSQLite)
	p := testsupport.NewPrompt("p1")
	env.seed(t, p)
	ctx := context.Background()

	_, err := env.repo.GetBySlug(ctx, p.Slug)
	require.NoError(t, err)

	require.NoError(t, env.repo.Delete(ctx, "p1"))

	_, err = env.repo.GetBySlug(ctx, p.Slug)
	assert.True(t, domain.IsNotFound(err), "the slug key must be invalidated on delete")
}

func TestToggleLikeInvalidatesEntity(t *testing.T) {
	env := newTestEnv(t, backend.ModeSQLite)
	env.seed(t, testsupport.NewPrompt("p1"))
	ctx := context.Background()

	before, err := env.repo.GetByID(ctx, "p1")
	require.NoError(t, err)

	result, err := env.repo.ToggleLike(ctx, "p1", "user-1")
	require.NoError(t, err)
	assert.True(t, result.Liked)
	assert.Equal(t, before.Likes+1, result.Likes)

	after, err := env.repo.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, result.Likes, after.Likes)
}

func TestToggleLikeInvalidatesSlugKey(t *testing.T) {
	env := newTestEnv(t, backend.ModeSQLite)
	p := testsupport.NewPrompt("p1")
	env.seed(t, p)
	ctx := context.Background()

	before, err := env.repo.GetBySlug(ctx, p.Slug)
	require.NoError(t, err)

	result, err := env.repo.ToggleLike(ctx, "p1", "user-1")
	require.NoError(t, err)
	require.Equal(t, before.Likes+1, result.Likes)

	after, err := env.repo.GetBySlug(ctx, p.Slug)
	require.NoError(t, err)
	assert.Equal(t, result.Likes, after.Likes, "the slug key must reflect the like immediately after the write")
}

func TestUpdateStampsOneTimestampForBothBackends(t *testing.T) {
	env := newTestEnv(t, backend.ModeDual)
	env.seed(t, testsupport.NewPrompt("p1"))

	title := "Updated title"
	updated, err := env.repo.Update(context.Background(), "p1", domain.UpdatePromptInput{Title: &title})
	require.NoError(t, err)

	a := env.sqlite.prompts["p1"]
	b := env.supabase.prompts["p1"]
	assert.Equal(t, a.UpdatedAt, b.UpdatedAt, "both backends must store the same instant")
	assert.Equal(t, updated.UpdatedAt, a.UpdatedAt)
	assert.Equal(t, 0, env.sink.len())
}

func TestIncrementViewBestEffort(t *testing.T) {
	env := newTestEnv(t, backend.ModeDual)
	env.seed(t, testsupport.NewPrompt("p1"))
	env.supabase.viewErr = errors.New("supabase unreachable")

	// Dispatch runs inline in tests, so the write has landed on return.
	env.repo.IncrementView(context.Background(), "p1")

	assert.Equal(t, testsupport.NewPrompt("p1").Views+1, env.sqlite.prompts["p1"].Views)
	assert.Equal(t, 1, env.sink.len(), "the secondary counter failure is recorded, not surfaced")
}

func TestTrendingCachedPerPeriod(t *testing.T) {
	env := newTestEnv(t, backend.ModeSQLite)
	env.seed(t, testsupport.NewPrompt("p1"))
	ctx := context.Background()

	_, err := env.repo.Trending(ctx, domain.TrendingWeek, 10)
	require.NoError(t, err)
	_, err = env.repo.Trending(ctx, domain.TrendingWeek, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, env.sqlite.listCalls)

	_, err = env.repo.Trending(ctx, domain.TrendingDay, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, env.sqlite.listCalls, "each period has its own key")
}

func TestSupabaseModeRoutesToSupabase(t *testing.T) {
	env := newTestEnv(t, backend.ModeSupabase)
	env.supabase.prompts["p1"] = testsupport.NewPrompt("p1")

	got, err := env.repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, 0, env.sqlite.getCalls)

	_, err = env.repo.Create(context.Background(), validCreateInput())
	require.NoError(t, err)
	assert.Empty(t, env.sqlite.prompts, "sqlite receives no writes in supabase mode")
}
