package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListKeyDeterministicAcrossMapOrder(t *testing.T) {
	b := NewKeyBuilder()

	// Maps iterate in random order; repeated calls must not drift.
	params := map[string]any{
		"query":     "sunset",
		"types":     []string{"chat", "code"},
		"page":      2,
		"page_size": 20,
	}

	first := b.ListKey("prompts", params)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, b.ListKey("prompts", params))
	}
}

func TestListKeySliceOrderInsensitive(t *testing.T) {
	b := NewKeyBuilder()

	a := b.ListKey("prompts", map[string]any{"tags": []string{"neon", "city"}})
	bKey := b.ListKey("prompts", map[string]any{"tags": []string{"city", "neon"}})
	assert.Equal(t, a, bKey)
}

func TestListKeyAbsentParamsEquivalent(t *testing.T) {
	b := NewKeyBuilder()

	var nilSlice []string
	withNils := b.ListKey("prompts", map[string]any{
		"query": "",
		"tags":  nilSlice,
		"page":  1,
	})
	without := b.ListKey("prompts", map[string]any{"page": 1})
	assert.Equal(t, without, withNils)
}

func TestListKeyDistinguishesDifferentFilters(t *testing.T) {
	b := NewKeyBuilder()

	page1 := b.ListKey("prompts", map[string]any{"page": 1})
	page2 := b.ListKey("prompts", map[string]any{"page": 2})
	assert.NotEqual(t, page1, page2)
}

func TestListKeyNilPointerValue(t *testing.T) {
	b := NewKeyBuilder()

	var p *string
	// Must not panic and must equal the omitted form.
	key := b.ListKey("prompts", map[string]any{"author": p})
	assert.Equal(t, b.ListKey("prompts", map[string]any{}), key)
}

func TestEntityKeyNamespacing(t *testing.T) {
	b := NewKeyBuilder()

	key := b.EntityKey("prompt", "abc-123")
	assert.Equal(t, "prompt:abc-123", key)
	assert.True(t, strings.HasPrefix(key, "prompt:"))
}

func TestEntityKeySanitizesSeparator(t *testing.T) {
	b := NewKeyBuilder()

	// A ':' inside the id must not fabricate a namespace boundary.
	key := b.EntityKey("prompt", "evil:slug name")
	assert.Equal(t, "prompt:evil.slug_name", key)
	assert.Equal(t, 1, strings.Count(key, ":"))
}

func TestBoundKeyTruncatesLongKeys(t *testing.T) {
	b := NewKeyBuilder()

	long := b.ListKey("prompts", map[string]any{
		"query": strings.Repeat("very long search text ", 30),
	})
	require.LessOrEqual(t, len(long), maxKeyLength)
	assert.Contains(t, long, "#")

	// Distinct long inputs keep distinct keys via the digest suffix.
	other := b.ListKey("prompts", map[string]any{
		"query": strings.Repeat("another long search text ", 30),
	})
	assert.NotEqual(t, long, other)
}
