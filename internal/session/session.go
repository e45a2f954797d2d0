// Package session models the transient per-visitor cart state that must
// survive the redirect out to the payment provider and back. Instead of
// ambient server-side session magic, each visitor gets an explicit record
// keyed by a server-issued token; the HTTP layer carries the token in a
// cookie.
package session

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// ErrNotFound is returned when no session exists for a token.
var ErrNotFound = errors.New("session not found")

// State is the persisted cart state for one visitor. A session holds at
// most one coupon code at a time; applying a new code overwrites the old
// one. UserEmail is empty for guests.
type State struct {
	Token      string
	UserEmail  string
	CouponCode string
	CreatedAt  time.Time
}

// NewToken issues a fresh opaque session token.
func NewToken() string {
	return uuid.New().String()
}

// Store persists cart sessions.
type Store interface {
	Get(ctx context.Context, token string) (*State, error)
	Create(ctx context.Context, token string) (*State, error)
	SetCoupon(ctx context.Context, token, code string) error
	ClearCoupon(ctx context.Context, token string) error
	SetUser(ctx context.Context, token, email string) error
	Delete(ctx context.Context, token string) error
}
