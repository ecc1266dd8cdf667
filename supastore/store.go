// Package supastore implements the prompt store against the hosted
// Postgres service (backend B) through pgx. Counter mutations go through
// the service's stored procedures so they stay atomic server-side.
package supastore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptdeck/promptdeck/backend"
	"github.com/promptdeck/promptdeck/domain"
)

// uniqueViolation is the Postgres error code for unique constraint hits.
const uniqueViolation = "23505"

// promptColumns is the shared projection used by every prompt read. Tags
// aggregate from the join table into a JSON array of {name, slug}
// objects, matching the service's row shape.
const promptColumns = `
	p.id, p.slug, p.title, p.prompt_text, p.type,
	coalesce(jsonb_agg(jsonb_build_object('name', t.name, 'slug', t.slug))
		filter (where t.id is not null), '[]'::jsonb) as tags,
	p.author_id, pr.username as author_name,
	p.likes, p.views, p.copies, p.fingerprint, p.created_at, p.updated_at`

const promptJoins = `
	from prompts p
	left join profiles pr on pr.id = p.author_id
	left join prompt_tags pt on pt.prompt_id = p.id
	left join tags t on t.id = pt.tag_id`

const promptGroupBy = ` group by p.id, pr.username`

// Store executes operations against the hosted Postgres service.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects the pool and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("supastore: ping failed: %w", err)
	}
	return New(pool), nil
}

// New wraps an established pool. Used directly by tests.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ID reports which backend this store fronts.
func (s *Store) ID() backend.ID { return backend.Supabase }

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

// List applies the filter, sort, and pagination semantics and returns a
// canonical page.
func (s *Store) List(ctx context.Context, f domain.PromptFilters) (domain.PromptPage, error) {
	f = f.Normalized()

	where, args := buildPromptFilters(f)

	countSQL := "select count(distinct p.id)" + promptJoins + where
	var total int
	if err := s.pool.QueryRow(ctx, countSQL, args...).Scan(&total); err != nil {
		return domain.PromptPage{}, s.wrap("list", err)
	}

	listSQL := "select" + promptColumns + promptJoins + where + promptGroupBy +
		orderClause(f.SortBy) +
		fmt.Sprintf(" limit $%d offset $%d", len(args)+1, len(args)+2)
	args = append(args, f.PageSize, f.Offset())

	rows, err := s.pool.Query(ctx, listSQL, args...)
	if err != nil {
		return domain.PromptPage{}, s.wrap("list", err)
	}
	defer rows.Close()

	items, err := scanPrompts(rows)
	if err != nil {
		return domain.PromptPage{}, s.wrap("list", err)
	}
	return domain.PromptPage{Items: items, Total: total}, nil
}

// buildPromptFilters renders the WHERE clause for a listing. Tag filters
// use per-tag EXISTS subqueries so multiple tags mean "has all of them".
func buildPromptFilters(f domain.PromptFilters) (string, []any) {
	var clauses []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Query != "" {
		p := arg("%" + f.Query + "%")
		clauses = append(clauses, fmt.Sprintf("(p.title ilike %s or p.prompt_text ilike %s)", p, p))
	}
	if len(f.Types) > 0 {
		types := make([]string, 0, len(f.Types))
		for _, t := range f.Types {
			types = append(types, string(t))
		}
		clauses = append(clauses, fmt.Sprintf("p.type = any(%s)", arg(types)))
	}
	if f.AuthorID != "" {
		clauses = append(clauses, fmt.Sprintf("p.author_id = %s", arg(f.AuthorID)))
	}
	for _, tag := range f.Tags {
		clauses = append(clauses, fmt.Sprintf(
			"exists (select 1 from prompt_tags ptf join tags tf on tf.id = ptf.tag_id where ptf.prompt_id = p.id and tf.name = %s)",
			arg(tag)))
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " where " + strings.Join(clauses, " and "), args
}

// orderClause maps the user sort to ORDER BY, always appending the ID
// tie-breaker for stable pagination.
func orderClause(sortBy domain.SortOrder) string {
	var primary string
	switch sortBy {
	case domain.SortOldest:
		primary = "p.created_at asc"
	case domain.SortMostLiked:
		primary = "p.likes desc"
	case domain.SortMostCopied:
		primary = "p.copies desc"
	case domain.SortMostViewed:
		primary = "p.views desc"
	default:
		primary = "p.created_at desc"
	}
	return " order by " + primary + ", p.id asc"
}

func scanPrompts(rows pgx.Rows) ([]domain.Prompt, error) {
	items := []domain.Prompt{}
	for rows.Next() {
		var r promptRecord
		if err := rows.Scan(
			&r.ID, &r.Slug, &r.Title, &r.PromptText, &r.Type, &r.TagsJSON,
			&r.AuthorID, &r.AuthorName,
			&r.Likes, &r.Views, &r.Copies, &r.Fingerprint, &r.CreatedAt, &r.UpdatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, promptFromRecord(&r))
	}
	return items, rows.Err()
}

// GetByID fetches one prompt.
func (s *Store) GetByID(ctx context.Context, id string) (domain.Prompt, error) {
	sql := "select" + promptColumns + promptJoins + " where p.id = $1" + promptGroupBy
	return s.getOne(ctx, sql, id)
}

// GetBySlug fetches one prompt through the service's read-optimized
// lookup procedure.
func (s *Store) GetBySlug(ctx context.Context, slug string) (domain.Prompt, error) {
	return s.getOne(ctx, "select * from get_prompt_by_slug($1)", slug)
}

func (s *Store) getOne(ctx context.Context, sql string, arg any) (domain.Prompt, error) {
	rows, err := s.pool.Query(ctx, sql, arg)
	if err != nil {
		return domain.Prompt{}, s.wrap("get", err)
	}
	defer rows.Close()

	items, err := scanPrompts(rows)
	if err != nil {
		return domain.Prompt{}, s.wrap("get", err)
	}
	if len(items) == 0 {
		return domain.Prompt{}, domain.ErrNotFound
	}
	return items[0], nil
}

// Create inserts a fully-populated canonical prompt along with its tag
// links, in one transaction.
func (s *Store) Create(ctx context.Context, p domain.Prompt) (domain.Prompt, error) {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			insert into prompts (id, slug, title, prompt_text, type, author_id, likes, views, copies, fingerprint, created_at, updated_at)
			values ($1, $2, $3, $4, $5, nullif($6, ''), $7, $8, $9, $10, $11, $12)`,
			p.ID, p.Slug, p.Title, p.PromptText, string(p.Type), p.AuthorID,
			p.Likes, p.Views, p.Copies, p.Fingerprint, p.CreatedAt.UTC(), p.UpdatedAt.UTC())
		if err != nil {
			return err
		}
		return s.linkTags(ctx, tx, p.ID, p.Tags)
	})
	if err != nil {
		return domain.Prompt{}, s.mapWriteError("create", p.Fingerprint, err)
	}
	return s.GetByID(ctx, p.ID)
}

func (s *Store) linkTags(ctx context.Context, tx pgx.Tx, promptID string, tags []string) error {
	for _, tag := range tags {
		var tagID string
		err := tx.QueryRow(ctx, `
			insert into tags (name, slug) values ($1, $2)
			on conflict (name) do update set name = excluded.name
			returning id`,
			tag, domain.Slugify(tag)).Scan(&tagID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			insert into prompt_tags (prompt_id, tag_id) values ($1, $2)
			on conflict do nothing`,
			promptID, tagID); err != nil {
			return err
		}
	}
	return nil
}

// Update applies the non-nil fields, rewrites tag links when tags
// change, and bumps updated_at.
func (s *Store) Update(ctx context.Context, id string, in domain.UpdatePromptInput) (domain.Prompt, error) {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var sets []string
		var args []any
		set := func(column string, v any) {
			args = append(args, v)
			sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		}

		if in.Title != nil {
			set("title", *in.Title)
		}
		if in.PromptText != nil {
			set("prompt_text", *in.PromptText)
			set("fingerprint", domain.Fingerprint(*in.PromptText))
		}
		if in.Type != nil {
			set("type", string(*in.Type))
		}
		set("updated_at", in.UpdatedAt.UTC())

		args = append(args, id)
		tag, err := tx.Exec(ctx,
			fmt.Sprintf("update prompts set %s where id = $%d", strings.Join(sets, ", "), len(args)),
			args...)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrNotFound
		}

		if in.Tags != nil {
			if _, err := tx.Exec(ctx, "delete from prompt_tags where prompt_id = $1", id); err != nil {
				return err
			}
			return s.linkTags(ctx, tx, id, *in.Tags)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Prompt{}, err
		}
		return domain.Prompt{}, s.mapWriteError("update", "", err)
	}
	return s.GetByID(ctx, id)
}

// Delete removes the prompt; membership and like rows cascade via the
// service's foreign keys.
func (s *Store) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, "delete from prompts where id = $1", id)
	if err != nil {
		return s.wrap("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// IncrementView buffers a view through the service's stored procedure.
func (s *Store) IncrementView(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "select buffer_view($1)", id); err != nil {
		return s.wrap("increment views", err)
	}
	return nil
}

// IncrementCopy buffers a copy through the service's stored procedure.
func (s *Store) IncrementCopy(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, "select buffer_copy($1)", id); err != nil {
		return s.wrap("increment copies", err)
	}
	return nil
}

// ToggleLike flips the like through the atomic toggle_like procedure,
// which returns the new state and counter.
func (s *Store) ToggleLike(ctx context.Context, promptID, userID string) (bool, int, error) {
	var liked bool
	var likes int
	err := s.pool.QueryRow(ctx, "select liked, like_count from toggle_like($1, $2)", promptID, userID).
		Scan(&liked, &likes)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, domain.ErrNotFound
	}
	if err != nil {
		return false, 0, s.wrap("toggle like", err)
	}
	return liked, likes, nil
}

// Trending returns the highest-scoring prompts created within the period.
func (s *Store) Trending(ctx context.Context, period domain.TrendingPeriod, limit int) ([]domain.Prompt, error) {
	if limit <= 0 {
		limit = 20
	}

	sql := "select" + promptColumns + promptJoins +
		" where p.created_at >= $1" + promptGroupBy +
		" order by (p.likes * 3 + p.copies * 2 + p.views) desc, p.id asc limit $2"

	rows, err := s.pool.Query(ctx, sql, trendingSince(period), limit)
	if err != nil {
		return nil, s.wrap("trending", err)
	}
	defer rows.Close()

	items, err := scanPrompts(rows)
	if err != nil {
		return nil, s.wrap("trending", err)
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

func (s *Store) wrap(op string, err error) error {
	return &domain.BackendError{Backend: "supabase", Op: op, Err: err}
}

// mapWriteError classifies write failures: a 23505 on the fingerprint
// index becomes the typed duplicate error.
func (s *Store) mapWriteError(op, fingerprint string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return &domain.DuplicateError{Fingerprint: fingerprint}
	}
	return s.wrap(op, err)
}
