package contacts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/meridian-crm/meridian-crm/internal/listing"
	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/webhooks"
)

// ContactInput carries the writable fields of a contact.
type ContactInput struct {
	CustomerID int64   `json:"customer_id" validate:"required,gt=0"`
	FirstName  string  `json:"first_name" validate:"required,max=100"`
	LastName   string  `json:"last_name" validate:"required,max=100"`
	Email      *string `json:"email" validate:"omitempty,email,max=200"`
	Phone      *string `json:"phone" validate:"omitempty,max=50"`
	JobTitle   *string `json:"job_title" validate:"omitempty,max=100"`
	IsPrimary  bool    `json:"is_primary"`
}

// Service handles contact business logic.
type Service struct {
	repo     *Repository
	executor *listing.Executor[Contact]
	events   shared.EventPublisher
	now      func() time.Time
}

// NewService builds a Service instance. Only the unfiltered listing is
// cached; per-customer lists are small and read straight through.
func NewService(repo *Repository, sliding, absolute time.Duration, logger *slog.Logger, events shared.EventPublisher) *Service {
	s := &Service{repo: repo, events: events, now: time.Now}
	source := func(ctx context.Context, req listing.PageRequest) ([]Contact, int, error) {
		return repo.List(ctx, 0, req)
	}
	s.executor = listing.NewExecutor("contacts", source, sliding, absolute, logger)
	return s
}

// List returns one page of contacts. customerID narrows the result to a
// single customer; zero means all contacts.
func (s *Service) List(ctx context.Context, customerID int64, req listing.PageRequest) (listing.Page[Contact], error) {
	if customerID > 0 {
		req = req.Normalize()
		items, total, err := s.repo.List(ctx, customerID, req)
		if err != nil {
			return listing.Page[Contact]{}, err
		}
		return listing.NewPage(items, req, total), nil
	}
	return s.executor.Execute(ctx, req)
}

// Get fetches a single contact.
func (s *Service) Get(ctx context.Context, id int64) (*Contact, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a new contact under an existing customer.
func (s *Service) Create(ctx context.Context, input ContactInput) (*Contact, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	contact := &Contact{}
	apply(contact, input)
	contact.StampInsert(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Create(ctx, contact); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, webhooks.EventContactChanged, map[string]any{"action": "created", "contact": contact})
	return contact, nil
}

// Update replaces the writable fields of an existing contact.
func (s *Service) Update(ctx context.Context, id int64, input ContactInput) (*Contact, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	contact := *before
	apply(&contact, input)
	contact.StampUpdate(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Update(ctx, before, &contact); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, webhooks.EventContactChanged, map[string]any{"action": "updated", "contact": &contact})
	return &contact, nil
}

// Delete removes a contact.
func (s *Service) Delete(ctx context.Context, id int64) error {
	contact, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	contact.StampUpdate(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Delete(ctx, contact); err != nil {
		return err
	}
	s.events.Publish(ctx, webhooks.EventContactChanged, map[string]any{"action": "deleted", "contact": contact})
	return nil
}

func apply(c *Contact, input ContactInput) {
	c.CustomerID = input.CustomerID
	c.FirstName = strings.TrimSpace(input.FirstName)
	c.LastName = strings.TrimSpace(input.LastName)
	c.Email = input.Email
	c.Phone = input.Phone
	c.JobTitle = input.JobTitle
	c.IsPrimary = input.IsPrimary
}

func validate(input ContactInput) error {
	if input.CustomerID <= 0 {
		return fmt.Errorf("%w: customer_id is required", ErrValidation)
	}
	if strings.TrimSpace(input.FirstName) == "" {
		return fmt.Errorf("%w: first_name is required", ErrValidation)
	}
	if strings.TrimSpace(input.LastName) == "" {
		return fmt.Errorf("%w: last_name is required", ErrValidation)
	}
	return nil
}
