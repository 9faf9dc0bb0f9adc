package roles

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/listing"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// Service handles role business logic.
type Service struct {
	repo     *Repository
	executor *listing.Executor[Role]
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo *Repository, sliding, absolute time.Duration, logger *slog.Logger) *Service {
	s := &Service{repo: repo, now: time.Now}
	s.executor = listing.NewExecutor("roles", repo.List, sliding, absolute, logger)
	return s
}

// List returns one cached page of roles.
func (s *Service) List(ctx context.Context, req listing.PageRequest) (listing.Page[Role], error) {
	return s.executor.Execute(ctx, req)
}

// Get fetches a single role.
func (s *Service) Get(ctx context.Context, id int64) (*Role, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a new role after an advisory uniqueness check; the
// unique constraint on roles.name is the enforcement point under races.
func (s *Service) Create(ctx context.Context, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByName(ctx, name)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}

	role := &Role{Name: name, Description: strings.TrimSpace(description)}
	role.StampInsert(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Create(ctx, role); err != nil {
		return nil, err
	}
	return role, nil
}

// Update renames or re-describes a role.
func (s *Service) Update(ctx context.Context, id int64, name, description string) (*Role, error) {
	name = strings.TrimSpace(name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing, err := s.repo.GetByName(ctx, name); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	} else if existing != nil && existing.ID != id {
		return nil, ErrAlreadyExists
	}

	role := *before
	role.Name = name
	role.Description = strings.TrimSpace(description)
	role.StampUpdate(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Update(ctx, before, &role); err != nil {
		return nil, err
	}
	return &role, nil
}

// Delete removes a role that no user currently holds.
func (s *Service) Delete(ctx context.Context, id int64) error {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	assigned, err := s.repo.UsersAssigned(ctx, id)
	if err != nil {
		return err
	}
	if assigned > 0 {
		return ErrInUse
	}
	role.StampUpdate(shared.ActorFromContext(ctx), s.now())
	return s.repo.Delete(ctx, role)
}

// Permissions returns the decoded permission matrix of a role covering
// every known resource.
func (s *Service) Permissions(ctx context.Context, id int64) ([]authz.ResourcePermission, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return nil, err
	}
	claims, err := s.repo.ClaimsForRole(ctx, id)
	if err != nil {
		return nil, err
	}
	return authz.DecodeAll(claims), nil
}

// SetPermissions encodes the matrix back into claims and replaces the
// role's stored claim set.
func (s *Service) SetPermissions(ctx context.Context, id int64, perms []authz.ResourcePermission) error {
	role, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	role.StampUpdate(shared.ActorFromContext(ctx), s.now())
	return s.repo.ReplaceClaims(ctx, role, authz.EncodeAll(perms))
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(name) > 100 {
		return fmt.Errorf("%w: name must be at most 100 characters", ErrValidation)
	}
	return nil
}
