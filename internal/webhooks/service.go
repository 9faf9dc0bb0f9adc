package webhooks

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/meridian-crm/meridian-crm/internal/listing"
	"github.com/meridian-crm/meridian-crm/internal/shared"
)

// EndpointInput carries the writable fields of an endpoint. Secret is
// write-only; an empty secret on update keeps the stored one.
type EndpointInput struct {
	Name     string   `json:"name" validate:"required,max=100"`
	URL      string   `json:"url" validate:"required,url,max=500"`
	Events   []string `json:"events" validate:"required,min=1"`
	IsActive bool     `json:"is_active"`
	Secret   string   `json:"secret" validate:"omitempty,min=16,max=200"`
}

// Service handles endpoint registration business logic.
type Service struct {
	repo     *Repository
	executor *listing.Executor[Endpoint]
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo *Repository, sliding, absolute time.Duration, logger *slog.Logger) *Service {
	s := &Service{repo: repo, now: time.Now}
	s.executor = listing.NewExecutor("webhooks", repo.List, sliding, absolute, logger)
	return s
}

// List returns one cached page of endpoints.
func (s *Service) List(ctx context.Context, req listing.PageRequest) (listing.Page[Endpoint], error) {
	return s.executor.Execute(ctx, req)
}

// Get fetches a single endpoint.
func (s *Service) Get(ctx context.Context, id int64) (*Endpoint, error) {
	return s.repo.Get(ctx, id)
}

// Subscribers returns the active endpoints subscribed to an event.
func (s *Service) Subscribers(ctx context.Context, event string) ([]Endpoint, error) {
	return s.repo.Subscribers(ctx, event)
}

// Create registers a new endpoint. A secret is mandatory on create.
func (s *Service) Create(ctx context.Context, input EndpointInput) (*Endpoint, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	if input.Secret == "" {
		return nil, fmt.Errorf("%w: secret is required", ErrValidation)
	}
	endpoint := &Endpoint{}
	apply(endpoint, input)
	endpoint.StampInsert(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Create(ctx, endpoint); err != nil {
		return nil, err
	}
	return endpoint, nil
}

// Update replaces the writable fields of an existing endpoint.
func (s *Service) Update(ctx context.Context, id int64, input EndpointInput) (*Endpoint, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	endpoint := *before
	apply(&endpoint, input)
	endpoint.StampUpdate(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Update(ctx, before, &endpoint); err != nil {
		return nil, err
	}
	return &endpoint, nil
}

// Delete removes an endpoint.
func (s *Service) Delete(ctx context.Context, id int64) error {
	endpoint, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	endpoint.StampUpdate(shared.ActorFromContext(ctx), s.now())
	return s.repo.Delete(ctx, endpoint)
}

func apply(e *Endpoint, input EndpointInput) {
	e.Name = strings.TrimSpace(input.Name)
	e.URL = strings.TrimSpace(input.URL)
	events := slices.Clone(input.Events)
	slices.Sort(events)
	e.Events = slices.Compact(events)
	e.IsActive = input.IsActive
	e.secret = input.Secret
}

func validate(input EndpointInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrValidation)
	}
	parsed, err := url.Parse(strings.TrimSpace(input.URL))
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("%w: url must be absolute http(s)", ErrValidation)
	}
	if len(input.Events) == 0 {
		return fmt.Errorf("%w: at least one event is required", ErrValidation)
	}
	known := Events()
	for _, event := range input.Events {
		if !slices.Contains(known, event) {
			return fmt.Errorf("%w: unknown event %q", ErrValidation, event)
		}
	}
	return nil
}
