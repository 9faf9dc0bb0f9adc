// Package auth verifies credentials and binds users to sessions.
package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/users"
)

// Service authenticates users against the stored bcrypt hashes.
type Service struct {
	users *users.Service
}

// NewService builds the auth service.
func NewService(userService *users.Service) *Service {
	return &Service{users: userService}
}

// Authenticate returns the user matching the credentials. Unknown
// usernames and wrong passwords both yield ErrInvalidCredentials so the
// response does not leak which part failed.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*users.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash()), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}
