package sqlitestore

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/promptdeck/promptdeck/domain"
)

// promptRow is the backend-native row shape: camelCase struct fields and
// a legacy JSON-encoded string for tags, with the author available as a
// nested relation.
type promptRow struct {
	bun.BaseModel `bun:"table:prompts,alias:p"`

	ID          string      `bun:"id,pk"`
	Slug        string      `bun:"slug,notnull,unique"`
	Title       string      `bun:"title,notnull"`
	PromptText  string      `bun:"prompt_text,notnull"`
	Type        string      `bun:"type,notnull"`
	Tags        string      `bun:"tags"`
	AuthorID    string      `bun:"author_id"`
	Author      *profileRow `bun:"rel:belongs-to,join:author_id=id"`
	Likes       int         `bun:"likes,notnull,default:0"`
	Views       int         `bun:"views,notnull,default:0"`
	Copies      int         `bun:"copies,notnull,default:0"`
	Fingerprint string      `bun:"fingerprint,notnull,unique"`
	CreatedAt   time.Time   `bun:"created_at,notnull"`
	UpdatedAt   time.Time   `bun:"updated_at,notnull"`
}

type profileRow struct {
	bun.BaseModel `bun:"table:profiles,alias:pr"`

	ID          string    `bun:"id,pk"`
	Username    string    `bun:"username,notnull,unique"`
	DisplayName string    `bun:"display_name"`
	AvatarURL   string    `bun:"avatar_url"`
	Bio         string    `bun:"bio"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

type promptLikeRow struct {
	bun.BaseModel `bun:"table:prompt_likes,alias:pl"`

	PromptID  string    `bun:"prompt_id,pk"`
	UserID    string    `bun:"user_id,pk"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

type collectionRow struct {
	bun.BaseModel `bun:"table:collections,alias:c"`

	ID          string    `bun:"id,pk"`
	Slug        string    `bun:"slug,notnull,unique"`
	Name        string    `bun:"name,notnull"`
	Description string    `bun:"description"`
	OwnerID     string    `bun:"owner_id,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
	UpdatedAt   time.Time `bun:"updated_at,notnull"`
}

type collectionPromptRow struct {
	bun.BaseModel `bun:"table:collection_prompts,alias:cp"`

	CollectionID string    `bun:"collection_id,pk"`
	PromptID     string    `bun:"prompt_id,pk"`
	CreatedAt    time.Time `bun:"created_at,notnull"`
}

// promptFromRow transforms the native row into the canonical shape. It
// is a pure function: nullable relations produce zero values and the
// legacy tag column normalizes to a sorted []string of names.
func promptFromRow(row *promptRow) domain.Prompt {
	p := domain.Prompt{
		ID:          row.ID,
		Slug:        row.Slug,
		Title:       row.Title,
		PromptText:  row.PromptText,
		Type:        domain.PromptType(row.Type),
		Tags:        decodeTags(row.Tags),
		AuthorID:    row.AuthorID,
		Likes:       row.Likes,
		Views:       row.Views,
		Copies:      row.Copies,
		Fingerprint: row.Fingerprint,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
	if row.Author != nil {
		p.AuthorName = row.Author.Username
	}
	return p
}

func promptToRow(p domain.Prompt) *promptRow {
	return &promptRow{
		ID:          p.ID,
		Slug:        p.Slug,
		Title:       p.Title,
		PromptText:  p.PromptText,
		Type:        string(p.Type),
		Tags:        encodeTags(p.Tags),
		AuthorID:    p.AuthorID,
		Likes:       p.Likes,
		Views:       p.Views,
		Copies:      p.Copies,
		Fingerprint: p.Fingerprint,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func profileFromRow(row *profileRow) domain.Profile {
	return domain.Profile{
		ID:          row.ID,
		Username:    row.Username,
		DisplayName: row.DisplayName,
		AvatarURL:   row.AvatarURL,
		Bio:         row.Bio,
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

// encodeTags writes the canonical tag list back into the legacy
// JSON-string column.
func encodeTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return "[]"
	}
	return string(data)
}

// decodeTags normalizes whatever the tags column holds into a sorted
// []string of names. Historical rows carry either a JSON array of
// strings, a JSON array of {name, slug} objects, or a bare
// comma-separated list; all three collapse to the same canonical form
// and malformed data yields an empty slice, never an error.
func decodeTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "[]" || raw == "null" {
		return []string{}
	}

	if strings.HasPrefix(raw, "[") {
		var names []string
		if err := json.Unmarshal([]byte(raw), &names); err == nil {
			return domain.NormalizeTags(names)
		}

		var objects []struct {
			Name string `json:"name"`
			Slug string `json:"slug"`
		}
		if err := json.Unmarshal([]byte(raw), &objects); err == nil {
			names = make([]string, 0, len(objects))
			for _, o := range objects {
				names = append(names, o.Name)
			}
			return domain.NormalizeTags(names)
		}
		return []string{}
	}

	return domain.NormalizeTags(strings.Split(raw, ","))
}
