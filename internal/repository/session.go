package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamcart/streamcart/internal/session"
)

const (
	getSessionSQL = `SELECT token, user_email, coupon_code, created_at
		FROM cart_sessions WHERE token = $1`

	createSessionSQL = `INSERT INTO cart_sessions (token) VALUES ($1)
		RETURNING token, user_email, coupon_code, created_at`

	setSessionCouponSQL = `UPDATE cart_sessions
		SET coupon_code = $2, updated_at = now() WHERE token = $1`

	setSessionUserSQL = `UPDATE cart_sessions
		SET user_email = $2, updated_at = now() WHERE token = $1`

	deleteSessionSQL = `DELETE FROM cart_sessions WHERE token = $1`
)

var _ session.Store = (*SessionRepository)(nil)

// SessionRepository implements session.Store backed by PostgreSQL. Each
// mutation is a single UPDATE so concurrent requests for the same token
// serialize on the row.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository returns a SessionRepository that uses the given pool.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Get returns the session for a token. Returns session.ErrNotFound when the
// token is unknown (expired, deleted, or fabricated).
func (r *SessionRepository) Get(ctx context.Context, token string) (*session.State, error) {
	rows, err := r.pool.Query(ctx, getSessionSQL, token)
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &s, nil
}

// Create inserts a fresh session row for the token.
func (r *SessionRepository) Create(ctx context.Context, token string) (*session.State, error) {
	rows, err := r.pool.Query(ctx, createSessionSQL, token)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s, err := pgx.CollectExactlyOneRow(rows, scanSession)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}
	return &s, nil
}

// SetCoupon stores a coupon code on the session, replacing any previous one.
func (r *SessionRepository) SetCoupon(ctx context.Context, token, code string) error {
	if _, err := r.pool.Exec(ctx, setSessionCouponSQL, token, code); err != nil {
		return fmt.Errorf("setting session coupon: %w", err)
	}
	return nil
}

// ClearCoupon removes the coupon code from the session.
func (r *SessionRepository) ClearCoupon(ctx context.Context, token string) error {
	if _, err := r.pool.Exec(ctx, setSessionCouponSQL, token, ""); err != nil {
		return fmt.Errorf("clearing session coupon: %w", err)
	}
	return nil
}

// SetUser binds (or with an empty email, unbinds) a user to the session.
func (r *SessionRepository) SetUser(ctx context.Context, token, email string) error {
	if _, err := r.pool.Exec(ctx, setSessionUserSQL, token, email); err != nil {
		return fmt.Errorf("setting session user: %w", err)
	}
	return nil
}

// Delete removes the session row entirely.
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	if _, err := r.pool.Exec(ctx, deleteSessionSQL, token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

func scanSession(row pgx.CollectableRow) (session.State, error) {
	var s session.State
	err := row.Scan(&s.Token, &s.UserEmail, &s.CouponCode, &s.CreatedAt)
	return s, err
}
