package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when no user exists for an email.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering an email that is in use.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned on a failed login attempt.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// User is a registered storefront customer. PasswordHash is a bcrypt hash;
// the plaintext never leaves the auth service.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Repository defines persistence operations for users.
type Repository interface {
	Create(ctx context.Context, u *User) (int64, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Count(ctx context.Context) (int64, error)
}
