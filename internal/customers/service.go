package customers

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

// CustomerInput carries the writable fields of a customer.
type CustomerInput struct {
	Number  string  `json:"number" validate:"required,max=20"`
	Name    string  `json:"name" validate:"required,max=200"`
	Email   *string `json:"email" validate:"omitempty,email,max=200"`
	Phone   *string `json:"phone" validate:"omitempty,max=50"`
	Website *string `json:"website" validate:"omitempty,max=200"`
	City    *string `json:"city" validate:"omitempty,max=100"`
	Country string  `json:"country" validate:"required,max=100"`
	Notes   *string `json:"notes" validate:"omitempty,max=2000"`
}

// Service handles customer business logic.
type Service struct {
	repo     *Repository
	executor *listing.Executor[Customer]
	events   shared.EventPublisher
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo *Repository, sliding, absolute time.Duration, logger *slog.Logger, events shared.EventPublisher) *Service {
	s := &Service{repo: repo, events: events, now: time.Now}
	s.executor = listing.NewExecutor("customers", repo.List, sliding, absolute, logger)
	return s
}

// List returns one cached page of customers.
func (s *Service) List(ctx context.Context, req listing.PageRequest) (listing.Page[Customer], error) {
	return s.executor.Execute(ctx, req)
}

// Get fetches a single customer.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.Get(ctx, id)
}

// Create inserts a new customer after an advisory number check; the
// unique constraint on customers.number backs it under races.
func (s *Service) Create(ctx context.Context, input CustomerInput) (*Customer, error) {
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

	customer := &Customer{}
	apply(customer, input)
	customer.StampInsert(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Create(ctx, customer); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, webhooks.EventCustomerChanged, map[string]any{"action": "created", "customer": customer})
	return customer, nil
}

// Update replaces the writable fields of an existing customer.
func (s *Service) Update(ctx context.Context, id int64, input CustomerInput) (*Customer, error) {
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

	customer := *before
	apply(&customer, input)
	customer.StampUpdate(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Update(ctx, before, &customer); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, webhooks.EventCustomerChanged, map[string]any{"action": "updated", "customer": &customer})
	return &customer, nil
}

// Delete removes a customer.
func (s *Service) Delete(ctx context.Context, id int64) error {
	customer, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	customer.StampUpdate(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Delete(ctx, customer); err != nil {
		return err
	}
	s.events.Publish(ctx, webhooks.EventCustomerChanged, map[string]any{"action": "deleted", "customer": customer})
	return nil
}

// NextNumber suggests a customer number for form pre-fill.
func (s *Service) NextNumber(ctx context.Context) (string, error) {
	return s.repo.NextNumber(ctx)
}

func apply(c *Customer, input CustomerInput) {
	c.Number = strings.TrimSpace(input.Number)
	c.Name = strings.TrimSpace(input.Name)
	c.Email = input.Email
	c.Phone = input.Phone
	c.Website = input.Website
	c.City = input.City
	c.Country = strings.TrimSpace(input.Country)
	c.Notes = input.Notes
}

func validate(input CustomerInput) error {
	if strings.TrimSpace(input.Number) == "" {
		return fmt.Errorf("%w: number is required", ErrValidation)
	}
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	if strings.TrimSpace(input.Country) == "" {
		return fmt.Errorf("%w: country is required", ErrValidation)
	}
	return nil
}
