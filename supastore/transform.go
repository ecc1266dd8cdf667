package supastore

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/promptdeck/promptdeck/domain"
)

// promptRecord is the backend-native row shape: snake_case columns with
// tags aggregated from the join table into a JSON array of {name, slug}
// objects.
type promptRecord struct {
	ID          string
	Slug        string
	Title       string
	PromptText  string
	Type        string
	TagsJSON    []byte
	AuthorID    *string
	AuthorName  *string
	Likes       int
	Views       int
	Copies      int
	Fingerprint string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// promptFromRecord transforms the native record into the canonical
// shape. Nullable relation columns (absent author) produce empty values;
// tags normalize to a sorted []string of names regardless of whether the
// aggregate returned objects or plain strings.
func promptFromRecord(r *promptRecord) domain.Prompt {
	p := domain.Prompt{
		ID:          r.ID,
		Slug:        r.Slug,
		Title:       r.Title,
		PromptText:  r.PromptText,
		Type:        domain.PromptType(r.Type),
		Tags:        normalizeTagsJSON(r.TagsJSON),
		Likes:       r.Likes,
		Views:       r.Views,
		Copies:      r.Copies,
		Fingerprint: r.Fingerprint,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.AuthorID != nil {
		p.AuthorID = *r.AuthorID
	}
	if r.AuthorName != nil {
		p.AuthorName = *r.AuthorName
	}
	return p
}

// normalizeTagsJSON accepts the three tag encodings observed in the
// wild: a JSON array of {name, slug} objects, a JSON array of strings,
// or a JSON-encoded string containing either. Anything malformed
// collapses to an empty list.
func normalizeTagsJSON(raw []byte) []string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "[]" || trimmed == "null" {
		return []string{}
	}

	// Double-encoded payload: a JSON string holding the real array.
	if strings.HasPrefix(trimmed, `"`) {
		var inner string
		if err := json.Unmarshal([]byte(trimmed), &inner); err != nil {
			return []string{}
		}
		return normalizeTagsJSON([]byte(inner))
	}

	var objects []struct {
		Name string `json:"name"`
		Slug string `json:"slug"`
	}
	if err := json.Unmarshal([]byte(trimmed), &objects); err == nil {
		names := make([]string, 0, len(objects))
		for _, o := range objects {
			names = append(names, o.Name)
		}
		return domain.NormalizeTags(names)
	}

	var names []string
	if err := json.Unmarshal([]byte(trimmed), &names); err == nil {
		return domain.NormalizeTags(names)
	}

	return []string{}
}
