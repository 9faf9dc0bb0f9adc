package projects

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/meridian-crm/meridian-crm/internal/listing"
	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/webhooks"
)

// ProjectInput carries the writable fields of a project.
type ProjectInput struct {
	CustomerID int64      `json:"customer_id" validate:"required,gt=0"`
	Number     string     `json:"number" validate:"required,max=20"`
	Name       string     `json:"name" validate:"required,max=200"`
	Status     string     `json:"status" validate:"required,oneof=planned active on_hold completed"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	Budget     *float64   `json:"budget" validate:"omitempty,gte=0"`
	Notes      *string    `json:"notes" validate:"omitempty,max=2000"`
}

// Service handles project business logic.
type Service struct {
	repo     *Repository
	executor *listing.Executor[Project]
	events   shared.EventPublisher
	now      func() time.Time
}

// NewService builds a Service instance. Only the unfiltered listing is
// cached; narrowed lists read straight through.
func NewService(repo *Repository, sliding, absolute time.Duration, logger *slog.Logger, events shared.EventPublisher) *Service {
	s := &Service{repo: repo, events: events, now: time.Now}
	source := func(ctx context.Context, req listing.PageRequest) ([]Project, int, error) {
		return repo.List(ctx, 0, "", req)
	}
	s.executor = listing.NewExecutor("projects", source, sliding, absolute, logger)
	return s
}

// List returns one page of projects. customerID and status narrow the
// result when set.
func (s *Service) List(ctx context.Context, customerID int64, status string, req listing.PageRequest) (listing.Page[Project], error) {
	if customerID > 0 || status != "" {
		req = req.Normalize()
		items, total, err := s.repo.List(ctx, customerID, status, req)
		if err != nil {
			return listing.Page[Project]{}, err
		}
		return listing.NewPage(items, req, total), nil
	}
	return s.executor.Execute(ctx, req)
}

// Get fetches a single project.
func (s *Service) Get(ctx context.Context, id int64) (*Project, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a new project after an advisory number check; the
// unique constraint on projects.number backs it under races.
func (s *Service) Create(ctx context.Context, input ProjectInput) (*Project, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	existing, err := s.repo.GetByNumber(ctx, input.Number)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyExists
	}

	project := &Project{}
	apply(project, input)
	project.StampInsert(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Create(ctx, project); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, webhooks.EventProjectChanged, map[string]any{"action": "created", "project": project})
	return project, nil
}

// Update replaces the writable fields of an existing project.
func (s *Service) Update(ctx context.Context, id int64, input ProjectInput) (*Project, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing, err := s.repo.GetByNumber(ctx, input.Number); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	} else if existing != nil && existing.ID != id {
		return nil, ErrAlreadyExists
	}

	project := *before
	apply(&project, input)
	project.StampUpdate(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Update(ctx, before, &project); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, webhooks.EventProjectChanged, map[string]any{"action": "updated", "project": &project})
	return &project, nil
}

// Delete removes a project.
func (s *Service) Delete(ctx context.Context, id int64) error {
	project, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	project.StampUpdate(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Delete(ctx, project); err != nil {
		return err
	}
	s.events.Publish(ctx, webhooks.EventProjectChanged, map[string]any{"action": "deleted", "project": project})
	return nil
}

// NextNumber suggests a project number for form pre-fill.
func (s *Service) NextNumber(ctx context.Context) (string, error) {
	return s.repo.NextNumber(ctx)
}

func apply(p *Project, input ProjectInput) {
	p.CustomerID = input.CustomerID
	p.Number = strings.TrimSpace(input.Number)
	p.Name = strings.TrimSpace(input.Name)
	p.Status = input.Status
	p.StartDate = input.StartDate
	p.EndDate = input.EndDate
	p.Budget = input.Budget
	p.Notes = input.Notes
}

func validate(input ProjectInput) error {
	if input.CustomerID <= 0 {
		return fmt.Errorf("%w: customer_id is required", ErrValidation)
	}
	if strings.TrimSpace(input.Number) == "" {
		return fmt.Errorf("%w: number is required", ErrValidation)
	}
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	switch input.Status {
	case StatusPlanned, StatusActive, StatusOnHold, StatusCompleted:
	default:
		return fmt.Errorf("%w: unknown status %q", ErrValidation, input.Status)
	}
	if input.StartDate != nil && input.EndDate != nil && input.EndDate.Before(*input.StartDate) {
		return fmt.Errorf("%w: end_date before start_date", ErrValidation)
	}
	return nil
}
