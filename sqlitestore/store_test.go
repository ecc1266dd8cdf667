package sqlitestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptdeck/promptdeck/domain"
	"github.com/promptdeck/promptdeck/pkg/testsupport"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.ResetModel(context.Background()))

	_, err = store.CreateProfile(context.Background(), domain.Profile{
		ID:        "author-1",
		Username:  "ada",
		CreatedAt: testsupport.FixtureTime,
	})
	require.NoError(t, err)

	return store
}

func seedPrompt(t *testing.T, store *Store, id string, mutate func(*domain.Prompt)) domain.Prompt {
	t.Helper()

	p := testsupport.NewPrompt(id)
	if mutate != nil {
		mutate(&p)
	}
	created, err := store.Create(context.Background(), p)
	require.NoError(t, err)
	return created
}

func TestCreateAndGetRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created := seedPrompt(t, store, "p1", nil)
	assert.Equal(t, "p1", created.ID)
	assert.Equal(t, "ada", created.AuthorName, "author relation must be joined")
	assert.Equal(t, []string{"city", "neon"}, created.Tags)

	bySlug, err := store.GetBySlug(ctx, created.Slug)
	require.NoError(t, err)
	assert.Equal(t, created, bySlug)

	_, err = store.GetByID(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestCreateDuplicateFingerprint(t *testing.T) {
	store := newTestStore(t)

	seedPrompt(t, store, "p1", nil)

	dup := testsupport.NewPrompt("p2")
	dup.Slug = "other-slug-p2"
	// Same prompt text means the same fingerprint.
	_, err := store.Create(context.Background(), dup)
	assert.True(t, domain.IsDuplicate(err))
}

func TestUpdatePartialFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedPrompt(t, store, "p1", nil)

	title := "New title"
	text := "completely new prompt text"
	stamp := time.Now().UTC()
	updated, err := store.Update(ctx, "p1", domain.UpdatePromptInput{Title: &title, PromptText: &text, UpdatedAt: stamp})
	require.NoError(t, err)

	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, text, updated.PromptText)
	assert.Equal(t, domain.Fingerprint(text), updated.Fingerprint, "fingerprint follows the text")
	assert.Equal(t, created.Tags, updated.Tags, "untouched fields survive")
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt), "the caller-stamped instant is stored")

	_, err = store.Update(ctx, "missing", domain.UpdatePromptInput{Title: &title, UpdatedAt: stamp})
	assert.True(t, domain.IsNotFound(err))
}

func TestDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedPrompt(t, store, "p1", nil)

	_, _, err := store.ToggleLike(ctx, "p1", "user-1")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "p1"))
	_, err = store.GetByID(ctx, "p1")
	assert.True(t, domain.IsNotFound(err))

	assert.True(t, domain.IsNotFound(store.Delete(ctx, "p1")))
}

func TestCounters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedPrompt(t, store, "p1", nil)

	require.NoError(t, store.IncrementView(ctx, "p1"))
	require.NoError(t, store.IncrementCopy(ctx, "p1"))

	got, err := store.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, created.Views+1, got.Views)
	assert.Equal(t, created.Copies+1, got.Copies)

	assert.True(t, domain.IsNotFound(store.IncrementView(ctx, "missing")))
}

func TestToggleLikeFlips(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	created := seedPrompt(t, store, "p1", nil)

	liked, likes, err := store.ToggleLike(ctx, "p1", "user-1")
	require.NoError(t, err)
	assert.True(t, liked)
	assert.Equal(t, created.Likes+1, likes)

	liked, likes, err = store.ToggleLike(ctx, "p1", "user-1")
	require.NoError(t, err)
	assert.False(t, liked)
	assert.Equal(t, created.Likes, likes)

	_, _, err = store.ToggleLike(ctx, "missing", "user-1")
	assert.True(t, domain.IsNotFound(err))
}

func TestListFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedPrompt(t, store, "p1", nil)
	seedPrompt(t, store, "p2", func(p *domain.Prompt) {
		p.Slug = "chatty-p2"
		p.Title = "Socratic tutor"
		p.PromptText = "act as a socratic tutor for algebra"
		p.Type = domain.TypeChat
		p.Tags = []string{"education"}
		p.Fingerprint = domain.Fingerprint(p.PromptText)
	})

	page, err := store.List(ctx, domain.PromptFilters{Query: "socratic"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "p2", page.Items[0].ID)

	page, err = store.List(ctx, domain.PromptFilters{Types: []domain.PromptType{domain.TypeChat}})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)

	page, err = store.List(ctx, domain.PromptFilters{Tags: []string{"neon"}})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, "p1", page.Items[0].ID)

	page, err = store.List(ctx, domain.PromptFilters{AuthorID: "author-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
}

func TestListPaginationStableOnTies(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Identical created_at on every row forces the tie-breaker.
	texts := map[string]string{
		"a": "first unique text",
		"b": "second unique text",
		"c": "third unique text",
	}
	for _, id := range []string{"c", "a", "b"} {
		seedPrompt(t, store, id, func(p *domain.Prompt) {
			p.Slug = "tie-" + id
			p.PromptText = texts[id]
			p.Fingerprint = domain.Fingerprint(texts[id])
		})
	}

	page1, err := store.List(ctx, domain.PromptFilters{SortBy: domain.SortNewest, Page: 1, PageSize: 2})
	require.NoError(t, err)
	page2, err := store.List(ctx, domain.PromptFilters{SortBy: domain.SortNewest, Page: 2, PageSize: 2})
	require.NoError(t, err)

	var ids []string
	for _, p := range append(page1.Items, page2.Items...) {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids, "tied rows must paginate without skips or duplicates")
	assert.Equal(t, 3, page1.Total)
}

func TestListSortOrders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	seedPrompt(t, store, "old", func(p *domain.Prompt) {
		p.Slug = "old-prompt"
		p.PromptText = "old prompt text"
		p.Fingerprint = domain.Fingerprint(p.PromptText)
		p.CreatedAt = testsupport.FixtureTime.Add(-48 * time.Hour)
		p.Likes = 100
	})
	seedPrompt(t, store, "new", func(p *domain.Prompt) {
		p.Slug = "new-prompt"
		p.PromptText = "new prompt text"
		p.Fingerprint = domain.Fingerprint(p.PromptText)
		p.Likes = 1
	})

	page, err := store.List(ctx, domain.PromptFilters{SortBy: domain.SortNewest})
	require.NoError(t, err)
	assert.Equal(t, "new", page.Items[0].ID)

	page, err = store.List(ctx, domain.PromptFilters{SortBy: domain.SortOldest})
	require.NoError(t, err)
	assert.Equal(t, "old", page.Items[0].ID)

	page, err = store.List(ctx, domain.PromptFilters{SortBy: domain.SortMostLiked})
	require.NoError(t, err)
	assert.Equal(t, "old", page.Items[0].ID)
}

func TestTrendingWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	seedPrompt(t, store, "recent", func(p *domain.Prompt) {
		p.Slug = "recent-prompt"
		p.PromptText = "recent prompt text"
		p.Fingerprint = domain.Fingerprint(p.PromptText)
		p.CreatedAt = now.Add(-time.Hour)
		p.Likes, p.Views, p.Copies = 1, 1, 1
	})
	seedPrompt(t, store, "stale", func(p *domain.Prompt) {
		p.Slug = "stale-prompt"
		p.PromptText = "stale prompt text"
		p.Fingerprint = domain.Fingerprint(p.PromptText)
		p.CreatedAt = now.AddDate(0, -2, 0)
		p.Likes, p.Views, p.Copies = 100, 100, 100
	})

	items, err := store.Trending(ctx, domain.TrendingWeek, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "recent", items[0].ID)

	items, err = store.Trending(ctx, domain.TrendingMonth, 10)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCollectionsLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedPrompt(t, store, "p1", nil)

	col, err := store.CreateCollection(ctx, testsupport.NewCollection("c1", "author-1"))
	require.NoError(t, err)
	assert.Equal(t, []string{}, col.PromptIDs)

	require.NoError(t, store.AddToCollection(ctx, "c1", "p1"))
	require.NoError(t, store.AddToCollection(ctx, "c1", "p1"), "re-adding must be a no-op")

	got, err := store.GetCollectionByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, got.PromptIDs)

	list, err := store.ListCollections(ctx, "author-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	name := "Renamed"
	stamp := time.Now().UTC()
	renamed, err := store.UpdateCollection(ctx, "c1", domain.UpdateCollectionInput{Name: &name, UpdatedAt: stamp})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", renamed.Name)
	assert.Equal(t, []string{"p1"}, renamed.PromptIDs, "membership survives updates")

	_, err = store.UpdateCollection(ctx, "missing", domain.UpdateCollectionInput{Name: &name, UpdatedAt: stamp})
	assert.True(t, domain.IsNotFound(err))

	require.NoError(t, store.RemoveFromCollection(ctx, "c1", "p1"))
	require.NoError(t, store.DeleteCollection(ctx, "c1"))
	_, err = store.GetCollectionByID(ctx, "c1")
	assert.True(t, domain.IsNotFound(err))
}

func TestProfiles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	byID, err := store.GetProfileByID(ctx, "author-1")
	require.NoError(t, err)
	assert.Equal(t, "ada", byID.Username)

	byName, err := store.GetProfileByUsername(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, byID, byName)

	_, err = store.GetProfileByUsername(ctx, "nobody")
	assert.True(t, domain.IsNotFound(err))
}
