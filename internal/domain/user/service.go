package user

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/bcrypt"
)

// Service handles registration and credential checks.
type Service struct {
	users Repository
	cost  int
}

// NewService creates a Service with the default bcrypt cost.
func NewService(users Repository) *Service {
	return &Service{users: users, cost: bcrypt.DefaultCost}
}

// Register creates a new user with a bcrypt-hashed password. Emails are
// lowercased before storage so lookups are case-insensitive.
func (s *Service) Register(ctx context.Context, name, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, errors.New("email and password required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	u := &User{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: string(hash),
	}
	id, err := s.users.Create(ctx, u)
	if err != nil {
		return nil, err
	}
	u.ID = id

	return u, nil
}

// Authenticate checks an email/password pair against the stored hash.
// Unknown emails and wrong passwords both return ErrInvalidCredentials so
// the caller cannot distinguish the two.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, errors.Wrap(err, "lookup user")
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}
