// Package testsupport holds shared test fixtures and builders.
package testsupport

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/promptdeck/promptdeck/domain"
)

// LoadFixture loads test data from a fixture file.
// The path is relative to the test package directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to load fixture from %s: %v", path, err)
	}

	return data
}

// LoadFixtureJSON loads JSON test data from a fixture file and unmarshals it.
func LoadFixtureJSON(t *testing.T, path string, dest any) {
	t.Helper()

	data := LoadFixture(t, path)
	if err := json.Unmarshal(data, dest); err != nil {
		t.Fatalf("failed to unmarshal JSON fixture from %s: %v", path, err)
	}
}

// FixturePath constructs a path to a fixture file relative to the
// testdata directory.
func FixturePath(filename string) string {
	return filepath.Join("testdata", filename)
}

// FixtureTime is the fixed reference timestamp fixtures are built
// around, at whole-second precision.
var FixtureTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// NewPrompt builds a fully populated canonical prompt with
// deterministic values. Mutate the returned value for per-test
// variations.
func NewPrompt(id string) domain.Prompt {
	return domain.Prompt{
		ID:          id,
		Slug:        "neon-city-at-dusk-" + id,
		Title:       "Neon city at dusk",
		PromptText:  "a rain-soaked neon city street at dusk, cinematic lighting",
		Type:        domain.TypeTextToImage,
		Tags:        []string{"city", "neon"},
		AuthorID:    "author-1",
		AuthorName:  "ada",
		Likes:       3,
		Views:       40,
		Copies:      5,
		Fingerprint: domain.Fingerprint("a rain-soaked neon city street at dusk, cinematic lighting"),
		CreatedAt:   FixtureTime,
		UpdatedAt:   FixtureTime,
	}
}

// NewCollection builds a deterministic collection fixture.
func NewCollection(id, ownerID string) domain.Collection {
	return domain.Collection{
		ID:        id,
		Slug:      "favorites-" + id,
		Name:      "Favorites",
		OwnerID:   ownerID,
		PromptIDs: []string{},
		CreatedAt: FixtureTime,
		UpdatedAt: FixtureTime,
	}
}
