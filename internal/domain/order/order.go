package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// Order is an immutable record of a completed purchase. PlanName and Amount
// are snapshotted at purchase time so later catalog changes never alter
// history; Amount is the post-discount price the provider actually charged.
// UserEmail is empty for guest purchases.
type Order struct {
	ID         int64
	UserEmail  string
	PlanID     int64
	PlanName   string
	Amount     int64
	CouponCode string
	CreatedAt  time.Time
}

// PlanCount is the number of orders recorded against one plan.
type PlanCount struct {
	PlanID   int64
	PlanName string
	Orders   int64
}

// Stats aggregates order history for the admin dashboard.
type Stats struct {
	Orders  int64
	Revenue int64
	ByPlan  []PlanCount
}

// Repository defines persistence operations for orders. Orders are created
// exactly once and never mutated.
type Repository interface {
	Create(ctx context.Context, o *Order) (int64, error)
	GetByID(ctx context.Context, id int64) (*Order, error)
	Stats(ctx context.Context) (*Stats, error)
}
