package domain

import "time"

// PromptType identifies the model family a prompt targets.
type PromptType string

const (
	TypeTextToImage PromptType = "text-to-image"
	TypeTextToVideo PromptType = "text-to-video"
	TypeChat        PromptType = "chat"
	TypeCode        PromptType = "code"
)

// SortOrder names the user-selectable orderings for prompt listings.
// Every ordering is made stable by a secondary sort on the prompt ID,
// so pagination never skips or duplicates rows when the primary sort
// field has ties.
type SortOrder string

const (
	SortNewest     SortOrder = "newest"
	SortOldest     SortOrder = "oldest"
	SortMostLiked  SortOrder = "most_liked"
	SortMostCopied SortOrder = "most_copied"
	SortMostViewed SortOrder = "most_viewed"
)

// Prompt is the canonical prompt representation returned to all callers,
// independent of which storage backend produced it. Tags are always a
// slice of plain tag names; timestamps are always UTC.
type Prompt struct {
	ID          string     `json:"id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	PromptText  string     `json:"prompt_text"`
	Type        PromptType `json:"type"`
	Tags        []string   `json:"tags"`
	AuthorID    string     `json:"author_id"`
	AuthorName  string     `json:"author_name,omitempty"`
	Likes       int        `json:"likes"`
	Views       int        `json:"views"`
	Copies      int        `json:"copies"`
	Fingerprint string     `json:"-"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Collection groups prompts curated by a user.
type Collection struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	PromptIDs   []string  `json:"prompt_ids"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Profile is the public shape of a prompt author.
type Profile struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	Bio         string    `json:"bio,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// PromptFilters describes a prompt listing request. Zero values mean
// "no constraint"; Page is 1-based.
type PromptFilters struct {
	Query    string
	Types    []PromptType
	Tags     []string
	AuthorID string
	SortBy   SortOrder
	Page     int
	PageSize int
}

// Normalized returns a copy with pagination defaults applied.
func (f PromptFilters) Normalized() PromptFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 || f.PageSize > 100 {
		f.PageSize = 20
	}
	if f.SortBy == "" {
		f.SortBy = SortNewest
	}
	return f
}

// Offset converts the 1-based page into a row offset.
func (f PromptFilters) Offset() int {
	n := f.Normalized()
	return (n.Page - 1) * n.PageSize
}

// PromptPage is the result of a prompt listing: one page of canonical
// prompts plus the total match count for pagination.
type PromptPage struct {
	Items []Prompt `json:"items"`
	Total int      `json:"total"`
}

// CreatePromptInput captures the fields required to submit a prompt.
type CreatePromptInput struct {
	Title      string
	PromptText string
	Type       PromptType
	Tags       []string
	AuthorID   string
}

// UpdatePromptInput describes mutable prompt fields. A nil pointer means
// the field is left unchanged. UpdatedAt is stamped once by the
// repository so every backend stores the identical instant.
type UpdatePromptInput struct {
	Title      *string
	PromptText *string
	Type       *PromptType
	Tags       *[]string
	UpdatedAt  time.Time
}

// CreatedPrompt is returned by Create so callers can redirect to the new
// prompt without a follow-up read.
type CreatedPrompt struct {
	ID   string `json:"id"`
	Slug string `json:"slug"`
}

// CreateCollectionInput captures the fields required to create a collection.
type CreateCollectionInput struct {
	Name        string
	Description string
	OwnerID     string
}

// UpdateCollectionInput describes mutable collection fields. A nil
// pointer means the field is left unchanged. UpdatedAt is stamped once
// by the repository so every backend stores the identical instant.
type UpdateCollectionInput struct {
	Name        *string
	Description *string
	UpdatedAt   time.Time
}

// TrendingPeriod names the aggregation window for trending queries.
type TrendingPeriod string

const (
	TrendingDay   TrendingPeriod = "day"
	TrendingWeek  TrendingPeriod = "week"
	TrendingMonth TrendingPeriod = "month"
)
