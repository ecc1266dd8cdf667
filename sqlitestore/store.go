// Package sqlitestore implements the prompt store against the local
// relational backend (backend A) through the bun ORM.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/promptdeck/promptdeck/backend"
	"github.com/promptdeck/promptdeck/domain"
)

// Store executes prompt, collection, and profile operations against the
// SQLite database. All rows leave through the transformers in
// transform.go; callers only ever see canonical shapes.
type Store struct {
	db *bun.DB
}

// Open connects to the SQLite database at path and returns a Store.
func Open(path string) (*Store, error) {
	sqldb, err := sql.Open("sqlite3", path+"?_fk=1&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	return New(bun.NewDB(sqldb, sqlitedialect.New())), nil
}

// New wraps an existing bun handle. Used directly by tests.
func New(db *bun.DB) *Store {
	return &Store{db: db}
}

// ID reports which backend this store fronts.
func (s *Store) ID() backend.ID { return backend.SQLite }

// DB exposes the underlying handle for migrations and tests.
func (s *Store) DB() *bun.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// ResetModel creates the schema if missing. The production schema ships
// via migrations; this keeps tests and dev setups self-contained.
func (s *Store) ResetModel(ctx context.Context) error {
	models := []any{
		(*profileRow)(nil),
		(*promptRow)(nil),
		(*promptLikeRow)(nil),
		(*collectionRow)(nil),
		(*collectionPromptRow)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// List applies the filter, sort, and pagination semantics and returns a
// canonical page.
func (s *Store) List(ctx context.Context, f domain.PromptFilters) (domain.PromptPage, error) {
	f = f.Normalized()

	var rows []promptRow
	q := s.db.NewSelect().Model(&rows).Relation("Author")

	if f.Query != "" {
		pattern := "%" + f.Query + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("p.title LIKE ?", pattern).WhereOr("p.prompt_text LIKE ?", pattern)
		})
	}
	if len(f.Types) > 0 {
		q = q.Where("p.type IN (?)", bun.In(f.Types))
	}
	if f.AuthorID != "" {
		q = q.Where("p.author_id = ?", f.AuthorID)
	}
	// Tags live in a legacy JSON-encoded string column, so tag filters
	// match on the quoted tag name inside the serialized array.
	for _, tag := range f.Tags {
		q = q.Where("p.tags LIKE ?", `%"`+tag+`"%`)
	}

	for _, col := range sortColumns(f.SortBy) {
		q = q.OrderExpr(col)
	}

	total, err := q.Limit(f.PageSize).Offset(f.Offset()).ScanAndCount(ctx)
	if err != nil {
		return domain.PromptPage{}, &domain.BackendError{Backend: "sqlite", Op: "list", Err: err}
	}

	items := make([]domain.Prompt, 0, len(rows))
	for i := range rows {
		items = append(items, promptFromRow(&rows[i]))
	}
	return domain.PromptPage{Items: items, Total: total}, nil
}

// sortColumns maps a user-chosen sort to ORDER BY expressions. The ID
// column is always appended as the tie-breaker so rows with equal sort
// values paginate stably.
func sortColumns(sortBy domain.SortOrder) []string {
	var primary string
	switch sortBy {
	case domain.SortOldest:
		primary = "p.created_at ASC"
	case domain.SortMostLiked:
		primary = "p.likes DESC"
	case domain.SortMostCopied:
		primary = "p.copies DESC"
	case domain.SortMostViewed:
		primary = "p.views DESC"
	default:
		primary = "p.created_at DESC"
	}
	return []string{primary, "p.id ASC"}
}

// GetByID fetches one prompt with its author joined.
func (s *Store) GetByID(ctx context.Context, id string) (domain.Prompt, error) {
	return s.getWhere(ctx, "p.id = ?", id)
}

// GetBySlug fetches one prompt by its URL slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (domain.Prompt, error) {
	return s.getWhere(ctx, "p.slug = ?", slug)
}

func (s *Store) getWhere(ctx context.Context, where string, arg any) (domain.Prompt, error) {
	var row promptRow
	err := s.db.NewSelect().Model(&row).Relation("Author").Where(where, arg).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Prompt{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Prompt{}, &domain.BackendError{Backend: "sqlite", Op: "get", Err: err}
	}
	return promptFromRow(&row), nil
}

// Create inserts a fully-populated canonical prompt. Identity, slug,
// fingerprint, and timestamps are assigned by the repository so both
// backends store identical rows in dual-write mode.
func (s *Store) Create(ctx context.Context, p domain.Prompt) (domain.Prompt, error) {
	row := promptToRow(p)
	if _, err := s.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return domain.Prompt{}, s.mapWriteError("create", p.Fingerprint, err)
	}
	return s.GetByID(ctx, p.ID)
}

// Update applies the non-nil fields and bumps updated_at.
func (s *Store) Update(ctx context.Context, id string, in domain.UpdatePromptInput) (domain.Prompt, error) {
	q := s.db.NewUpdate().Model((*promptRow)(nil)).Where("id = ?", id)

	if in.Title != nil {
		q = q.Set("title = ?", *in.Title)
	}
	if in.PromptText != nil {
		q = q.Set("prompt_text = ?", *in.PromptText)
		q = q.Set("fingerprint = ?", domain.Fingerprint(*in.PromptText))
	}
	if in.Type != nil {
		q = q.Set("type = ?", string(*in.Type))
	}
	if in.Tags != nil {
		q = q.Set("tags = ?", encodeTags(*in.Tags))
	}
	q = q.Set("updated_at = ?", in.UpdatedAt.UTC())

	res, err := q.Exec(ctx)
	if err != nil {
		return domain.Prompt{}, s.mapWriteError("update", "", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.Prompt{}, domain.ErrNotFound
	}
	return s.GetByID(ctx, id)
}

// Delete removes the prompt and its like rows.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*promptLikeRow)(nil)).Where("prompt_id = ?", id).Exec(ctx); err != nil {
			return &domain.BackendError{Backend: "sqlite", Op: "delete", Err: err}
		}
		res, err := tx.NewDelete().Model((*promptRow)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return &domain.BackendError{Backend: "sqlite", Op: "delete", Err: err}
		}
		if affected, _ := res.RowsAffected(); affected == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// IncrementView bumps the view counter.
func (s *Store) IncrementView(ctx context.Context, id string) error {
	return s.incrementCounter(ctx, id, "views")
}

// IncrementCopy bumps the copy counter.
func (s *Store) IncrementCopy(ctx context.Context, id string) error {
	return s.incrementCounter(ctx, id, "copies")
}

func (s *Store) incrementCounter(ctx context.Context, id, column string) error {
	res, err := s.db.NewUpdate().Model((*promptRow)(nil)).
		Set(column+" = "+column+" + 1").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return &domain.BackendError{Backend: "sqlite", Op: "increment " + column, Err: err}
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ToggleLike flips the (prompt, user) like and keeps the denormalized
// counter in step, atomically.
func (s *Store) ToggleLike(ctx context.Context, promptID, userID string) (bool, int, error) {
	var liked bool
	var likes int

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().Model((*promptLikeRow)(nil)).
			Where("prompt_id = ? AND user_id = ?", promptID, userID).
			Exec(ctx)
		if err != nil {
			return err
		}

		delta := -1
		if affected, _ := res.RowsAffected(); affected == 0 {
			like := &promptLikeRow{PromptID: promptID, UserID: userID, CreatedAt: time.Now().UTC()}
			if _, err := tx.NewInsert().Model(like).Exec(ctx); err != nil {
				return err
			}
			liked = true
			delta = 1
		}

		upd, err := tx.NewUpdate().Model((*promptRow)(nil)).
			Set("likes = MAX(likes + ?, 0)", delta).
			Where("id = ?", promptID).
			Exec(ctx)
		if err != nil {
			return err
		}
		if affected, _ := upd.RowsAffected(); affected == 0 {
			return domain.ErrNotFound
		}

		return tx.NewSelect().Model((*promptRow)(nil)).
			Column("likes").
			Where("id = ?", promptID).
			Scan(ctx, &likes)
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, 0, err
		}
		return false, 0, &domain.BackendError{Backend: "sqlite", Op: "toggle like", Err: err}
	}
	return liked, likes, nil
}

// Trending returns the highest-scoring prompts created within the period.
func (s *Store) Trending(ctx context.Context, period domain.TrendingPeriod, limit int) ([]domain.Prompt, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []promptRow
	err := s.db.NewSelect().Model(&rows).Relation("Author").
		Where("p.created_at >= ?", trendingSince(period)).
		OrderExpr("(p.likes * 3 + p.copies * 2 + p.views) DESC").
		OrderExpr("p.id ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, &domain.BackendError{Backend: "sqlite", Op: "trending", Err: err}
	}

	items := make([]domain.Prompt, 0, len(rows))
	for i := range rows {
		items = append(items, promptFromRow(&rows[i]))
	}
	return items, nil
}

func trendingSince(period domain.TrendingPeriod) time.Time {
	now := time.Now().UTC()
	switch period {
	case domain.TrendingDay:
		return now.Add(-24 * time.Hour)
	case domain.TrendingMonth:
		return now.AddDate(0, -1, 0)
	default:
		return now.AddDate(0, 0, -7)
	}
}

// mapWriteError classifies insert/update failures: uniqueness violations
// on the fingerprint column become the typed duplicate error, everything
// else is a backend failure.
func (s *Store) mapWriteError(op, fingerprint string, err error) error {
	if isUniqueViolation(err) {
		return &domain.DuplicateError{Fingerprint: fingerprint}
	}
	return &domain.BackendError{Backend: "sqlite", Op: op, Err: err}
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique ||
			se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	lower := strings.ToLower(err.Error())
	return strings.Contains(lower, "unique constraint")
}
