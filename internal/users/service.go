package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-crm/meridian-crm/internal/listing"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// RepositoryPort defines the data access methods the service needs.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByExternalID(ctx context.Context, externalID uuid.UUID) (*User, error)
	List(ctx context.Context, req listing.PageRequest) ([]User, int, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, before, user *User) error
	Delete(ctx context.Context, user *User) error
}

// CreateUserRequest carries the fields of a new account.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=200"`
	Name     string `json:"name" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8"`
	RoleID   *int64 `json:"role_id"`
}

// UpdateUserRequest carries a partial update; nil fields stay unchanged
// and an empty password leaves the stored credential alone.
type UpdateUserRequest struct {
	Email    *string `json:"email" validate:"omitempty,email,max=200"`
	Name     *string `json:"name" validate:"omitempty,max=200"`
	RoleID   *int64  `json:"role_id"`
	IsActive *bool   `json:"is_active"`
	Password string  `json:"password" validate:"omitempty,min=8"`
}

// Service handles user business logic. Bulk operations fan out to the
// same Create/Update/Delete methods, so validation rules hold for both
// paths.
type Service struct {
	repo     RepositoryPort
	executor *listing.Executor[User]
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, sliding, absolute time.Duration, logger *slog.Logger) *Service {
	s := &Service{repo: repo, now: time.Now}
	s.executor = listing.NewExecutor("users", repo.List, sliding, absolute, logger)
	return s
}

// List returns one cached page of users.
func (s *Service) List(ctx context.Context, req listing.PageRequest) (listing.Page[User], error) {
	return s.executor.Execute(ctx, req)
}

// Get fetches a single user.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.Get(ctx, id)
}

// GetByUsername fetches a user by the unique username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*User, error) {
	return s.repo.GetByUsername(ctx, strings.TrimSpace(username))
}

// Create inserts a new account. The advisory username check gives a
// friendly error; the unique constraints on username and email are the
// enforcement point under races.
func (s *Service) Create(ctx context.Context, req CreateUserRequest) (*User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}

	user := &User{
		Username:     req.Username,
		Email:        req.Email,
		Name:         strings.TrimSpace(req.Name),
		RoleID:       req.RoleID,
		IsActive:     true,
		passwordHash: string(hash),
	}
	user.StampInsert(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Update applies a partial update to an existing account.
func (s *Service) Update(ctx context.Context, id int64, req UpdateUserRequest) (*User, error) {
	if err := validateUpdate(req); err != nil {
		return nil, err
	}
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	user := *before
	user.passwordHash = ""
	if req.Email != nil {
		user.Email = strings.TrimSpace(*req.Email)
	}
	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.RoleID != nil {
		user.RoleID = req.RoleID
	}
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	if req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("users: hash password: %w", err)
		}
		user.passwordHash = string(hash)
	}

	user.StampUpdate(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Update(ctx, before, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Delete removes an account.
func (s *Service) Delete(ctx context.Context, id int64) error {
	user, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	user.StampUpdate(shared.ActorFromContext(ctx), s.now())
	return s.repo.Delete(ctx, user)
}

// lookup resolves a bulk item to an existing user: natural key first,
// external correlation ID as fallback.
func (s *Service) lookup(ctx context.Context, username string, externalID uuid.UUID) (*User, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if externalID == uuid.Nil {
		return nil, ErrNotFound
	}
	return s.repo.GetByExternalID(ctx, externalID)
}

func validateCreate(req CreateUserRequest) error {
	switch {
	case req.Username == "":
		return fmt.Errorf("%w: username is required", ErrValidation)
	case len(req.Username) > 100:
		return fmt.Errorf("%w: username must be at most 100 characters", ErrValidation)
	case req.Email == "" || !strings.Contains(req.Email, "@"):
		return fmt.Errorf("%w: a valid email is required", ErrValidation)
	case len(req.Password) < 8:
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	return nil
}

func validateUpdate(req UpdateUserRequest) error {
	if req.Email != nil && !strings.Contains(*req.Email, "@") {
		return fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if req.Password != "" && len(req.Password) < 8 {
		return fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	return nil
}
