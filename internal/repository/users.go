package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// ErrDuplicateUsername is returned when the username unique index rejects an insert.
var ErrDuplicateUsername = domain.ErrDuplicateUsername

// UsersRepository persists user accounts.
type UsersRepository struct {
	db Querier
}

// UserCreateParams bundles the fields required to create a user.
type UserCreateParams struct {
	Username     string
	PasswordHash string
	Email        string
	Role         domain.Role
}

const userColumns = `id, username, password_hash, COALESCE(email, ''), role, created_at`

// Create inserts a user and returns the stored row.
func (r *UsersRepository) Create(ctx context.Context, params UserCreateParams) (domain.User, error) {
	row := r.db.QueryRow(ctx, `
        INSERT INTO users (username, password_hash, email, role)
        VALUES ($1, $2, NULLIF($3, ''), $4)
        RETURNING `+userColumns,
		params.Username, params.PasswordHash, params.Email, string(params.Role))
	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err, "users_username_key") {
			return domain.User{}, ErrDuplicateUsername
		}
		return domain.User{}, err
	}
	return user, nil
}

// GetByID fetches a user by id.
func (r *UsersRepository) GetByID(ctx context.Context, id int64) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return notFound(scanUser(row))
}

// GetByUsername fetches a user by exact username.
func (r *UsersRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return notFound(scanUser(row))
}

// List returns every user, most recent first.
func (r *UsersRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	return collect(rows, scanUser)
}

// Count returns the number of users.
func (r *UsersRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	return n, err
}

// UpdateEmail replaces a user's email; an empty string clears it.
func (r *UsersRepository) UpdateEmail(ctx context.Context, id int64, email string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET email = NULLIF($2, '') WHERE id = $1`, id, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePasswordHash replaces a user's credential hash.
func (r *UsersRepository) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		user domain.User
		role string
	)
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.Email, &role, &user.CreatedAt)
	if err != nil {
		return domain.User{}, err
	}
	user.Role = domain.Role(role)
	return user, nil
}
