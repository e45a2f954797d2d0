package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamcart/streamcart/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (user_email, plan_id, plan_name, amount, coupon_code, created_at)
		VALUES (NULLIF($1, ''), $2, $3, $4, NULLIF($5, ''), $6)
		RETURNING id`

	getOrderByIDSQL = `SELECT id, COALESCE(user_email, ''), plan_id, plan_name, amount,
		COALESCE(coupon_code, ''), created_at
		FROM orders WHERE id = $1`

	orderTotalsSQL = `SELECT count(*), COALESCE(sum(amount), 0) FROM orders`

	ordersByPlanSQL = `SELECT plan_id, plan_name, count(*)
		FROM orders GROUP BY plan_id, plan_name ORDER BY plan_id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order and returns its assigned ID. Empty user email
// and coupon code are stored as NULL.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, createOrderSQL,
		o.UserEmail, o.PlanID, o.PlanName, o.Amount, o.CouponCode, o.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("creating order for plan %d: %w", o.PlanID, err)
	}
	return id, nil
}

// GetByID returns a single order by its identifier.
// Returns order.ErrNotFound when it does not exist.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	return &o, nil
}

// Stats aggregates order counts and revenue for the admin dashboard.
func (r *OrderRepository) Stats(ctx context.Context) (*order.Stats, error) {
	var s order.Stats
	if err := r.pool.QueryRow(ctx, orderTotalsSQL).Scan(&s.Orders, &s.Revenue); err != nil {
		return nil, fmt.Errorf("aggregating order totals: %w", err)
	}

	rows, err := r.pool.Query(ctx, ordersByPlanSQL)
	if err != nil {
		return nil, fmt.Errorf("aggregating orders by plan: %w", err)
	}
	byPlan, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.PlanCount, error) {
		var pc order.PlanCount
		err := row.Scan(&pc.PlanID, &pc.PlanName, &pc.Orders)
		return pc, err
	})
	if err != nil {
		return nil, fmt.Errorf("aggregating orders by plan: %w", err)
	}
	s.ByPlan = byPlan

	return &s, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.UserEmail, &o.PlanID, &o.PlanName, &o.Amount, &o.CouponCode, &o.CreatedAt)
	return o, err
}
