package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamcart/streamcart/internal/domain/user"
)

const (
	createUserSQL = `INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3) RETURNING id`

	getUserByEmailSQL = `SELECT id, name, email, password_hash, created_at
		FROM users WHERE email = $1`

	countUsersSQL = `SELECT count(*) FROM users`
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// Create persists a new user and returns its assigned ID.
// Returns user.ErrEmailTaken when the email is already registered.
func (r *UserRepository) Create(ctx context.Context, u *user.User) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, createUserSQL, u.Name, u.Email, u.PasswordHash).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return 0, user.ErrEmailTaken
		}
		return 0, fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return id, nil
}

// GetByEmail returns a user by email. Returns user.ErrNotFound when absent.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	rows, err := r.pool.Query(ctx, getUserByEmailSQL, email)
	if err != nil {
		return nil, fmt.Errorf("getting user %q: %w", email, err)
	}

	u, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", email, err)
	}
	return &u, nil
}

// Count returns the number of registered users.
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, countUsersSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return count, nil
}

func scanUser(row pgx.CollectableRow) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt)
	return u, err
}
