package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"github.com/promptdeck/promptdeck/domain"
)

// ListCollections returns the owner's collections with prompt membership
// loaded.
func (s *Store) ListCollections(ctx context.Context, ownerID string) ([]domain.Collection, error) {
	var rows []collectionRow
	q := s.db.NewSelect().Model(&rows).OrderExpr("c.created_at DESC").OrderExpr("c.id ASC")
	if ownerID != "" {
		q = q.Where("c.owner_id = ?", ownerID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, &domain.BackendError{Backend: "sqlite", Op: "list collections", Err: err}
	}

	out := make([]domain.Collection, 0, len(rows))
	for i := range rows {
		c, err := s.collectionFromRow(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// GetCollectionByID fetches one collection with its prompt IDs.
func (s *Store) GetCollectionByID(ctx context.Context, id string) (domain.Collection, error) {
	var row collectionRow
	err := s.db.NewSelect().Model(&row).Where("c.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Collection{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Collection{}, &domain.BackendError{Backend: "sqlite", Op: "get collection", Err: err}
	}
	return s.collectionFromRow(ctx, &row)
}

func (s *Store) collectionFromRow(ctx context.Context, row *collectionRow) (domain.Collection, error) {
	var promptIDs []string
	err := s.db.NewSelect().Model((*collectionPromptRow)(nil)).
		Column("prompt_id").
		Where("collection_id = ?", row.ID).
		OrderExpr("created_at ASC").
		Scan(ctx, &promptIDs)
	if err != nil {
		return domain.Collection{}, &domain.BackendError{Backend: "sqlite", Op: "get collection prompts", Err: err}
	}
	if promptIDs == nil {
		promptIDs = []string{}
	}

	return domain.Collection{
		ID:          row.ID,
		Slug:        row.Slug,
		Name:        row.Name,
		Description: row.Description,
		OwnerID:     row.OwnerID,
		PromptIDs:   promptIDs,
		CreatedAt:   row.CreatedAt.UTC(),
		UpdatedAt:   row.UpdatedAt.UTC(),
	}, nil
}

// CreateCollection inserts a fully-populated canonical collection.
func (s *Store) CreateCollection(ctx context.Context, c domain.Collection) (domain.Collection, error) {
	row := &collectionRow{
		ID:          c.ID,
		Slug:        c.Slug,
		Name:        c.Name,
		Description: c.Description,
		OwnerID:     c.OwnerID,
		CreatedAt:   c.CreatedAt.UTC(),
		UpdatedAt:   c.UpdatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return domain.Collection{}, s.mapWriteError("create collection", "", err)
	}
	return s.GetCollectionByID(ctx, c.ID)
}

// UpdateCollection applies the non-nil fields and bumps updated_at.
func (s *Store) UpdateCollection(ctx context.Context, id string, in domain.UpdateCollectionInput) (domain.Collection, error) {
	q := s.db.NewUpdate().Model((*collectionRow)(nil)).Where("id = ?", id)

	if in.Name != nil {
		q = q.Set("name = ?", *in.Name)
	}
	if in.Description != nil {
		q = q.Set("description = ?", *in.Description)
	}
	q = q.Set("updated_at = ?", in.UpdatedAt.UTC())

	res, err := q.Exec(ctx)
	if err != nil {
		return domain.Collection{}, s.mapWriteError("update collection", "", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.Collection{}, domain.ErrNotFound
	}
	return s.GetCollectionByID(ctx, id)
}

// DeleteCollection removes the collection and its membership rows.
func (s *Store) DeleteCollection(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*collectionPromptRow)(nil)).Where("collection_id = ?", id).Exec(ctx); err != nil {
			return &domain.BackendError{Backend: "sqlite", Op: "delete collection", Err: err}
		}
		res, err := tx.NewDelete().Model((*collectionRow)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return &domain.BackendError{Backend: "sqlite", Op: "delete collection", Err: err}
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// AddToCollection links a prompt into a collection, idempotently.
func (s *Store) AddToCollection(ctx context.Context, collectionID, promptID string) error {
	row := &collectionPromptRow{
		CollectionID: collectionID,
		PromptID:     promptID,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.NewInsert().Model(row).Ignore().Exec(ctx)
	if err != nil {
		return &domain.BackendError{Backend: "sqlite", Op: "add to collection", Err: err}
	}
	return nil
}

// RemoveFromCollection unlinks a prompt from a collection.
func (s *Store) RemoveFromCollection(ctx context.Context, collectionID, promptID string) error {
	_, err := s.db.NewDelete().Model((*collectionPromptRow)(nil)).
		Where("collection_id = ? AND prompt_id = ?", collectionID, promptID).
		Exec(ctx)
	if err != nil {
		return &domain.BackendError{Backend: "sqlite", Op: "remove from collection", Err: err}
	}
	return nil
}

// GetProfileByID fetches one author profile.
func (s *Store) GetProfileByID(ctx context.Context, id string) (domain.Profile, error) {
	var row profileRow
	err := s.db.NewSelect().Model(&row).Where("pr.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Profile{}, &domain.BackendError{Backend: "sqlite", Op: "get profile", Err: err}
	}
	return profileFromRow(&row), nil
}

// GetProfileByUsername fetches one author profile by username.
func (s *Store) GetProfileByUsername(ctx context.Context, username string) (domain.Profile, error) {
	var row profileRow
	err := s.db.NewSelect().Model(&row).Where("pr.username = ?", username).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Profile{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Profile{}, &domain.BackendError{Backend: "sqlite", Op: "get profile", Err: err}
	}
	return profileFromRow(&row), nil
}

// CreateProfile inserts an author profile.
func (s *Store) CreateProfile(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	row := &profileRow{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
		Bio:         p.Bio,
		CreatedAt:   p.CreatedAt.UTC(),
	}
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return domain.Profile{}, s.mapWriteError("create profile", "", err)
	}
	return profileFromRow(row), nil
}
