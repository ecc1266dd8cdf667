package supastore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/promptdeck/promptdeck/domain"
)

const collectionColumns = `
	c.id, c.slug, c.name, c.description, c.owner_id,
	coalesce(array_agg(cp.prompt_id order by cp.created_at) filter (where cp.prompt_id is not null), '{}') as prompt_ids,
	c.created_at, c.updated_at`

const collectionJoins = `
	from collections c
	left join collection_prompts cp on cp.collection_id = c.id`

const collectionGroupBy = ` group by c.id`

// ListCollections returns the owner's collections with membership loaded.
func (s *Store) ListCollections(ctx context.Context, ownerID string) ([]domain.Collection, error) {
	sql := "select" + collectionColumns + collectionJoins
	var args []any
	if ownerID != "" {
		sql += " where c.owner_id = $1"
		args = append(args, ownerID)
	}
	sql += collectionGroupBy + " order by c.created_at desc, c.id asc"

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, s.wrap("list collections", err)
	}
	defer rows.Close()

	return scanCollections(rows)
}

// GetCollectionByID fetches one collection with its prompt IDs.
func (s *Store) GetCollectionByID(ctx context.Context, id string) (domain.Collection, error) {
	sql := "select" + collectionColumns + collectionJoins + " where c.id = $1" + collectionGroupBy

	rows, err := s.pool.Query(ctx, sql, id)
	if err != nil {
		return domain.Collection{}, s.wrap("get collection", err)
	}
	defer rows.Close()

	items, err := scanCollections(rows)
	if err != nil {
		return domain.Collection{}, err
	}
	if len(items) == 0 {
		return domain.Collection{}, domain.ErrNotFound
	}
	return items[0], nil
}

func scanCollections(rows pgx.Rows) ([]domain.Collection, error) {
	items := []domain.Collection{}
	for rows.Next() {
		var c domain.Collection
		var description *string
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &description, &c.OwnerID,
			&c.PromptIDs, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		if description != nil {
			c.Description = *description
		}
		if c.PromptIDs == nil {
			c.PromptIDs = []string{}
		}
		c.CreatedAt = c.CreatedAt.UTC()
		c.UpdatedAt = c.UpdatedAt.UTC()
		items = append(items, c)
	}
	return items, rows.Err()
}

// CreateCollection inserts a fully-populated canonical collection.
func (s *Store) CreateCollection(ctx context.Context, c domain.Collection) (domain.Collection, error) {
	_, err := s.pool.Exec(ctx, `
		insert into collections (id, slug, name, description, owner_id, created_at, updated_at)
		values ($1, $2, $3, nullif($4, ''), $5, $6, $7)`,
		c.ID, c.Slug, c.Name, c.Description, c.OwnerID, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return domain.Collection{}, s.mapWriteError("create collection", "", err)
	}
	return s.GetCollectionByID(ctx, c.ID)
}

// UpdateCollection applies the non-nil fields and bumps updated_at.
func (s *Store) UpdateCollection(ctx context.Context, id string, in domain.UpdateCollectionInput) (domain.Collection, error) {
	var sets []string
	var args []any
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if in.Name != nil {
		set("name", *in.Name)
	}
	if in.Description != nil {
		args = append(args, *in.Description)
		sets = append(sets, fmt.Sprintf("description = nullif($%d, '')", len(args)))
	}
	set("updated_at", in.UpdatedAt.UTC())

	args = append(args, id)
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf("update collections set %s where id = $%d", strings.Join(sets, ", "), len(args)),
		args...)
	if err != nil {
		return domain.Collection{}, s.mapWriteError("update collection", "", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.Collection{}, domain.ErrNotFound
	}
	return s.GetCollectionByID(ctx, id)
}

// DeleteCollection removes the collection; membership cascades.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "delete from collections where id = $1", id)
	if err != nil {
		return s.wrap("delete collection", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AddToCollection links a prompt into a collection, idempotently.
func (s *Store) AddToCollection(ctx context.Context, collectionID, promptID string) error {
	_, err := s.pool.Exec(ctx, `
		insert into collection_prompts (collection_id, prompt_id)
		values ($1, $2) on conflict do nothing`,
		collectionID, promptID)
	if err != nil {
		return s.wrap("add to collection", err)
	}
	return nil
}

// RemoveFromCollection unlinks a prompt from a collection.
func (s *Store) RemoveFromCollection(ctx context.Context, collectionID, promptID string) error {
	_, err := s.pool.Exec(ctx,
		"delete from collection_prompts where collection_id = $1 and prompt_id = $2",
		collectionID, promptID)
	if err != nil {
		return s.wrap("remove from collection", err)
	}
	return nil
}

// GetProfileByID fetches one author profile.
func (s *Store) GetProfileByID(ctx context.Context, id string) (domain.Profile, error) {
	return s.getProfile(ctx, "id = $1", id)
}

// GetProfileByUsername fetches one author profile by username.
func (s *Store) GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error) {
	return s.getProfile(ctx, "username = $1", username)
}

func (s *Store) getProfile(ctx context.Context, where string, arg any) (domain.Profile, error) {
	var p domain.Profile
	var displayName, avatarURL, bio *string
	err := s.pool.QueryRow(ctx,
		"select id, username, display_name, avatar_url, bio, created_at from profiles where "+where,
		arg).Scan(&p.ID, &p.Username, &displayName, &avatarURL, &bio, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Profile{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Profile{}, s.wrap("get profile", err)
	}
	if displayName != nil {
		p.DisplayName = *displayName
	}
	if avatarURL != nil {
		p.AvatarURL = *avatarURL
	}
	if bio != nil {
		p.Bio = *bio
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

// CreateProfile inserts an author profile.
func (s *Store) CreateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	_, err := s.pool.Exec(ctx, `
		insert into profiles (id, username, display_name, avatar_url, bio, created_at)
		values ($1, $2, nullif($3, ''), nullif($4, ''), nullif($5, ''), $6)`,
		p.ID, p.Username, p.DisplayName, p.AvatarURL, p.Bio, p.CreatedAt.UTC())
	if err != nil {
		return domain.Profile{}, s.mapWriteError("create profile", "", err)
	}
	return s.GetProfileByID(ctx, p.ID)
}
