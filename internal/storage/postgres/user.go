package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/pharmacy-storefront/internal/domain/auth"
)

const (
	getUserSQL = `SELECT username, password_hash FROM users WHERE username = $1`

	upsertUserSQL = `INSERT INTO users (username, password_hash) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET password_hash = EXCLUDED.password_hash`
)

var _ auth.UserRepository = (*UserRepository)(nil)

// UserRepository implements auth.UserRepository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// FindByUsername returns the account or auth.ErrUserNotFound.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (*auth.User, error) {
	var u auth.User
	err := r.pool.QueryRow(ctx, getUserSQL, username).Scan(&u.Username, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("finding user %q: %w", username, err)
	}
	return &u, nil
}

// Upsert creates the account or replaces its password hash.
func (r *UserRepository) Upsert(ctx context.Context, u auth.User) error {
	if _, err := r.pool.Exec(ctx, upsertUserSQL, u.Username, u.PasswordHash); err != nil {
		return fmt.Errorf("upserting user %q: %w", u.Username, err)
	}
	return nil
}
