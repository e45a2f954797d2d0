package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Kind enumerates the supported discount strategies.
type Kind string

const (
	// KindFlat deducts a fixed amount from the base price.
	KindFlat Kind = "flat"
	// KindPercent deducts a percentage of the base price.
	KindPercent Kind = "percent"
)

var (
	// ErrNotFound is returned when no coupon exists for a code.
	ErrNotFound = errors.New("coupon not found")
	// ErrExists is returned when creating a coupon whose code is taken.
	ErrExists = errors.New("coupon already exists")
)

// Coupon is a discount rule identified by a code. Codes are stored
// uppercase and matched case-insensitively. Amount is whole currency
// units for KindFlat and a 0-100 percentage for KindPercent.
type Coupon struct {
	Code      string
	Kind      Kind
	Amount    int64
	ExpiresAt *time.Time
	CreatedAt time.Time
}

// Repository provides lookup and administrative mutation of coupons.
// Create and Delete are used only by the admin surface; the checkout
// path only reads.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	Create(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, code string) error
}
