package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolationCode = "23505"

// Store is the credential store boundary the session manager talks to.
type Store interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	GetByIdentifier(ctx context.Context, identifier string) (User, error)
	GetByRefreshToken(ctx context.Context, refreshToken string) (User, error)
	SetRefreshToken(ctx context.Context, id, refreshToken string) error
	ClearRefreshToken(ctx context.Context, id string) error
	RotateRefreshToken(ctx context.Context, oldToken, newToken string) (string, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateProfile(ctx context.Context, id string, changes ProfileChanges) (User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, page, perPage int) ([]User, int, error)
	HasAdmin(ctx context.Context) (bool, error)
}

// Repository implements Store on Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const userColumns = `id, name, username, email, password_hash, role, current_refresh_token, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	var refreshToken sql.NullString
	if err := row.Scan(&u.ID, &u.Name, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &refreshToken, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return User{}, err
	}
	if refreshToken.Valid {
		u.RefreshToken = &refreshToken.String
	}

	return u, nil
}

func (r *Repository) Create(ctx context.Context, u User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, name, username, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, u.ID, u.Name, u.Username, u.Email, u.PasswordHash, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *Repository) GetByID(ctx context.Context, id string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user by id: %w", err)
	}

	return u, nil
}

func (r *Repository) GetByIdentifier(ctx context.Context, identifier string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE username = $1 OR email = $1
	`, identifier)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user by identifier: %w", err)
	}

	return u, nil
}

func (r *Repository) GetByRefreshToken(ctx context.Context, refreshToken string) (User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE current_refresh_token = $1
	`, refreshToken)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user by refresh token: %w", err)
	}

	return u, nil
}

func (r *Repository) SetRefreshToken(ctx context.Context, id, refreshToken string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET current_refresh_token = $2
		WHERE id = $1
	`, id, refreshToken)
	if err != nil {
		return fmt.Errorf("set refresh token: %w", err)
	}

	return requireAffected(res, "set refresh token")
}

func (r *Repository) ClearRefreshToken(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET current_refresh_token = NULL
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}

	return requireAffected(res, "clear refresh token")
}

// RotateRefreshToken swaps the stored refresh token in a single conditional
// update. Concurrent refreshes presenting the same token are serialized by
// the store: exactly one matches the WHERE clause and wins, the rest see
// ErrNotFound.
func (r *Repository) RotateRefreshToken(ctx context.Context, oldToken, newToken string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET current_refresh_token = $2
		WHERE current_refresh_token = $1
		RETURNING id
	`, oldToken, newToken).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("rotate refresh token: %w", err)
	}

	return id, nil
}

func (r *Repository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET password_hash = $2, updated_at = $3
		WHERE id = $1
	`, id, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return requireAffected(res, "update password")
}

func (r *Repository) UpdateProfile(ctx context.Context, id string, changes ProfileChanges) (User, error) {
	assignments := make([]string, 0, 4)
	args := []any{id}

	appendChange := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	appendChange("name", changes.Name)
	appendChange("username", changes.Username)
	appendChange("email", changes.Email)

	if len(assignments) == 0 {
		return User{}, ErrNoFields
	}

	args = append(args, time.Now().UTC())
	assignments = append(assignments, fmt.Sprintf("updated_at = $%d", len(args)))

	row := r.db.QueryRowContext(ctx, `
		UPDATE users
		SET `+strings.Join(assignments, ", ")+`
		WHERE id = $1
		RETURNING `+userColumns+`
	`, args...)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		if isUniqueViolation(err) {
			return User{}, ErrConflict
		}
		return User{}, fmt.Errorf("update profile: %w", err)
	}

	return u, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}

	return requireAffected(res, "delete user")
}

// List returns one page of non-admin users plus the total count.
func (r *Repository) List(ctx context.Context, page, perPage int) ([]User, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = 'user'`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE role = 'user'
		ORDER BY created_at ASC
		LIMIT $1 OFFSET $2
	`, perPage, (page-1)*perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0, perPage)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	return users, total, nil
}

func (r *Repository) HasAdmin(ctx context.Context) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE role = 'admin')`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check admin existence: %w", err)
	}

	return exists, nil
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
