package blog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// Store is what the handlers need from persistence. Ownership scoping is
// part of the contract: every by-id operation takes the requester's id and
// matches it inside the query, never by post-fetch filtering.
type Store interface {
	Create(ctx context.Context, input CreateInput, ownerID string) (Blog, error)
	GetByID(ctx context.Context, id, ownerID string) (Blog, error)
	Update(ctx context.Context, id, ownerID string, input UpdateInput) (Blog, error)
	Delete(ctx context.Context, id, ownerID string) error
	ListByOwner(ctx context.Context, ownerID string, page, perPage int) ([]Blog, int, error)
	FilterByTerm(ctx context.Context, ownerID, term string) ([]Blog, error)
	FilterByDate(ctx context.Context, ownerID string, until time.Time) ([]Blog, error)
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const blogColumns = `id, title, content, COALESCE(category, ''), tags, owner_id, created_at, updated_at`

func scanBlog(row interface{ Scan(...any) error }) (Blog, error) {
	var b Blog
	var rawTags []byte
	if err := row.Scan(&b.ID, &b.Title, &b.Content, &b.Category, &rawTags, &b.OwnerID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return Blog{}, err
	}

	b.Tags = []string{}
	if len(rawTags) > 0 {
		if err := json.Unmarshal(rawTags, &b.Tags); err != nil {
			return Blog{}, fmt.Errorf("decode tags: %w", err)
		}
	}

	return b, nil
}

func (r *Repository) Create(ctx context.Context, input CreateInput, ownerID string) (Blog, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Blog{}, fmt.Errorf("generate blog id: %w", err)
	}

	tags := input.Tags
	if tags == nil {
		tags = []string{}
	}
	encodedTags, err := json.Marshal(tags)
	if err != nil {
		return Blog{}, fmt.Errorf("encode tags: %w", err)
	}

	now := time.Now().UTC()
	b := Blog{
		ID:        id.String(),
		Title:     input.Title,
		Content:   input.Content,
		Category:  input.Category,
		Tags:      tags,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO blogs (id, title, content, category, tags, owner_id, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
	`, b.ID, b.Title, b.Content, b.Category, encodedTags, b.OwnerID, b.CreatedAt, b.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Blog{}, ErrDuplicateTitle
		}
		return Blog{}, fmt.Errorf("insert blog: %w", err)
	}

	return b, nil
}

func (r *Repository) GetByID(ctx context.Context, id, ownerID string) (Blog, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+blogColumns+`
		FROM blogs
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)

	b, err := scanBlog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Blog{}, ErrNotFound
		}
		return Blog{}, fmt.Errorf("query blog by id: %w", err)
	}

	return b, nil
}

func (r *Repository) Update(ctx context.Context, id, ownerID string, input UpdateInput) (Blog, error) {
	assignments := make([]string, 0, 5)
	args := []any{id, ownerID}

	appendAssignment := func(expr string, value any) {
		args = append(args, value)
		assignments = append(assignments, fmt.Sprintf(expr, len(args)))
	}
	if input.Title != nil {
		appendAssignment("title = $%d", *input.Title)
	}
	if input.Content != nil {
		appendAssignment("content = $%d", *input.Content)
	}
	if input.Category != nil {
		appendAssignment("category = NULLIF($%d, '')", *input.Category)
	}
	if input.Tags != nil {
		encodedTags, err := json.Marshal(*input.Tags)
		if err != nil {
			return Blog{}, fmt.Errorf("encode tags: %w", err)
		}
		appendAssignment("tags = $%d", encodedTags)
	}

	if len(assignments) == 0 {
		return Blog{}, ErrNoFields
	}

	args = append(args, time.Now().UTC())
	assignments = append(assignments, fmt.Sprintf("updated_at = $%d", len(args)))

	row := r.db.QueryRowContext(ctx, `
		UPDATE blogs
		SET `+strings.Join(assignments, ", ")+`
		WHERE id = $1 AND owner_id = $2
		RETURNING `+blogColumns+`
	`, args...)

	b, err := scanBlog(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Blog{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return Blog{}, ErrDuplicateTitle
		}
		return Blog{}, fmt.Errorf("update blog: %w", err)
	}

	return b, nil
}

func (r *Repository) Delete(ctx context.Context, id, ownerID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM blogs
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete blog: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete blog rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (r *Repository) ListByOwner(ctx context.Context, ownerID string, page, perPage int) ([]Blog, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blogs WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count blogs: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+blogColumns+`
		FROM blogs
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, ownerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("query blogs: %w", err)
	}
	defer rows.Close()

	blogs, err := collectBlogs(rows)
	if err != nil {
		return nil, 0, err
	}

	return blogs, total, nil
}

// FilterByTerm matches the term case-insensitively against title, content
// and category; comma-separated parts of the term are matched against
// individual tags.
func (r *Repository) FilterByTerm(ctx context.Context, ownerID, term string) ([]Blog, error) {
	term = strings.TrimSpace(term)

	args := []any{ownerID, "%" + term + "%"}
	conditions := []string{"title ILIKE $2", "content ILIKE $2", "COALESCE(category, '') ILIKE $2"}
	for _, part := range strings.Split(term, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		args = append(args, "%"+part+"%")
		conditions = append(conditions, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM jsonb_array_elements_text(tags) AS tag WHERE tag ILIKE $%d)", len(args)))
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+blogColumns+`
		FROM blogs
		WHERE owner_id = $1 AND (`+strings.Join(conditions, " OR ")+`)
		ORDER BY created_at DESC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("filter blogs by term: %w", err)
	}
	defer rows.Close()

	return collectBlogs(rows)
}

func (r *Repository) FilterByDate(ctx context.Context, ownerID string, until time.Time) ([]Blog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+blogColumns+`
		FROM blogs
		WHERE owner_id = $1 AND created_at <= $2
		ORDER BY created_at DESC
	`, ownerID, until)
	if err != nil {
		return nil, fmt.Errorf("filter blogs by date: %w", err)
	}
	defer rows.Close()

	return collectBlogs(rows)
}

func collectBlogs(rows *sql.Rows) ([]Blog, error) {
	blogs := make([]Blog, 0)
	for rows.Next() {
		b, err := scanBlog(rows)
		if err != nil {
			return nil, fmt.Errorf("scan blog: %w", err)
		}
		blogs = append(blogs, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blogs: %w", err)
	}

	return blogs, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
