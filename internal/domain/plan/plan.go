package plan

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested plan does not exist.
var ErrNotFound = errors.New("plan not found")

// Plan is a purchasable subscription offering with a fixed list price.
// Price is in whole currency units. Plans are seeded once and read-only
// afterwards.
type Plan struct {
	ID    int64
	Name  string
	Price int64
	Logo  string
}

// Repository defines read operations for the plan catalog.
type Repository interface {
	List(ctx context.Context) ([]Plan, error)
	GetByID(ctx context.Context, id int64) (*Plan, error)
}
