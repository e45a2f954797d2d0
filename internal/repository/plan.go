package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamcart/streamcart/internal/domain/plan"
)

const (
	listPlansSQL   = `SELECT id, name, price, logo FROM plans ORDER BY id`
	getPlanByIDSQL = `SELECT id, name, price, logo FROM plans WHERE id = $1`
	countPlansSQL  = `SELECT count(*) FROM plans`
	insertPlanSQL  = `INSERT INTO plans (id, name, price, logo) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`
	upsertPlanSQL = `INSERT INTO plans (id, name, price, logo) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, logo = $4`
)

var _ plan.Repository = (*PlanRepository)(nil)

// PlanRepository implements plan.Repository backed by PostgreSQL.
type PlanRepository struct {
	pool *pgxpool.Pool
}

// NewPlanRepository returns a PlanRepository that uses the given pool.
func NewPlanRepository(pool *pgxpool.Pool) *PlanRepository {
	return &PlanRepository{pool: pool}
}

// List returns every plan in the catalog ordered by ID.
func (r *PlanRepository) List(ctx context.Context) ([]plan.Plan, error) {
	rows, err := r.pool.Query(ctx, listPlansSQL)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	return pgx.CollectRows(rows, scanPlan)
}

// GetByID returns a single plan by its identifier.
func (r *PlanRepository) GetByID(ctx context.Context, id int64) (*plan.Plan, error) {
	rows, err := r.pool.Query(ctx, getPlanByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting plan %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanPlan)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, plan.ErrNotFound
		}
		return nil, fmt.Errorf("getting plan %d: %w", id, err)
	}
	return &p, nil
}

// SeedIfEmpty inserts the given plans when the catalog has no rows yet.
// Startup calls this so a fresh database always has something to sell.
func (r *PlanRepository) SeedIfEmpty(ctx context.Context, plans []plan.Plan) error {
	var count int64
	if err := r.pool.QueryRow(ctx, countPlansSQL).Scan(&count); err != nil {
		return fmt.Errorf("counting plans: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, p := range plans {
		if _, err := r.pool.Exec(ctx, insertPlanSQL, p.ID, p.Name, p.Price, p.Logo); err != nil {
			return fmt.Errorf("seeding plan %d: %w", p.ID, err)
		}
	}
	return nil
}

// Upsert inserts a plan or updates its name, price and logo in place.
// Used by the seeding tool so price changes reach an existing catalog.
func (r *PlanRepository) Upsert(ctx context.Context, p *plan.Plan) error {
	if _, err := r.pool.Exec(ctx, upsertPlanSQL, p.ID, p.Name, p.Price, p.Logo); err != nil {
		return fmt.Errorf("upserting plan %d: %w", p.ID, err)
	}
	return nil
}

func scanPlan(row pgx.CollectableRow) (plan.Plan, error) {
	var p plan.Plan
	err := row.Scan(&p.ID, &p.Name, &p.Price, &p.Logo)
	return p, err
}
