package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamcart/streamcart/internal/domain/coupon"
)

const (
	getCouponByCodeSQL = `SELECT code, kind, amount, expires_at, created_at
		FROM coupons WHERE code = UPPER($1)`

	listCouponsSQL = `SELECT code, kind, amount, expires_at, created_at
		FROM coupons ORDER BY code`

	insertCouponSQL = `INSERT INTO coupons (code, kind, amount, expires_at)
		VALUES (UPPER($1), $2, $3, $4)`

	deleteCouponSQL = `DELETE FROM coupons WHERE code = UPPER($1)`

	upsertCouponSQL = `INSERT INTO coupons (code, kind, amount, expires_at)
		VALUES (UPPER($1), $2, $3, $4)
		ON CONFLICT (code) DO UPDATE SET kind = $2, amount = $3, expires_at = $4`
)

// uniqueViolation is the Postgres error code for duplicate primary keys.
const uniqueViolation = "23505"

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// Codes are stored uppercase; lookups uppercase the parameter so matching
// is case-insensitive end to end.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code.
// Returns coupon.ErrNotFound when no coupon matches.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// List returns all coupons ordered by code.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Create inserts a new coupon. Returns coupon.ErrExists when the code is
// already taken.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, insertCouponSQL, c.Code, string(c.Kind), c.Amount, c.ExpiresAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return coupon.ErrExists
		}
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts a coupon or replaces its rule when the code already exists.
// Used by the seeding and bulk ingest tools.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	if _, err := r.pool.Exec(ctx, upsertCouponSQL, c.Code, string(c.Kind), c.Amount, c.ExpiresAt); err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// Delete removes a coupon by code. Returns coupon.ErrNotFound when the code
// does not exist.
func (r *CouponRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, code)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c    coupon.Coupon
		kind string
	)
	err := row.Scan(&c.Code, &kind, &c.Amount, &c.ExpiresAt, &c.CreatedAt)
	c.Kind = coupon.Kind(kind)
	return c, err
}
