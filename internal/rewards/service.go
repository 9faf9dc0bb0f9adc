package rewards

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

// GrantInput carries one new ledger entry. Points may be negative for
// redemptions but never zero.
type GrantInput struct {
	CustomerID int64  `json:"customer_id" validate:"required,gt=0"`
	Points     int    `json:"points" validate:"required"`
	Reason     string `json:"reason" validate:"required,max=500"`
}

// RepositoryPort defines the data access methods the service needs.
type RepositoryPort interface {
	Get(ctx context.Context, id int64) (*Entry, error)
	List(ctx context.Context, customerID int64, req listing.PageRequest) ([]Entry, int, error)
	Append(ctx context.Context, entry *Entry) error
	Balance(ctx context.Context, customerID int64) (Balance, error)
}

// Service handles the point ledger.
type Service struct {
	repo     RepositoryPort
	executor *listing.Executor[Entry]
	events   shared.EventPublisher
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, sliding, absolute time.Duration, logger *slog.Logger, events shared.EventPublisher) *Service {
	s := &Service{repo: repo, events: events, now: time.Now}
	source := func(ctx context.Context, req listing.PageRequest) ([]Entry, int, error) {
		return repo.List(ctx, 0, req)
	}
	s.executor = listing.NewExecutor("rewards", source, sliding, absolute, logger)
	return s
}

// List returns one page of ledger entries, optionally for one customer.
func (s *Service) List(ctx context.Context, customerID int64, req listing.PageRequest) (listing.Page[Entry], error) {
	if customerID > 0 {
		req = req.Normalize()
		items, total, err := s.repo.List(ctx, customerID, req)
		if err != nil {
			return listing.Page[Entry]{}, err
		}
		return listing.NewPage(items, req, total), nil
	}
	return s.executor.Execute(ctx, req)
}

// Get fetches a single ledger entry.
func (s *Service) Get(ctx context.Context, id int64) (*Entry, error) {
	return s.repo.Get(ctx, id)
}

// Grant appends a ledger entry. A redemption that would take the
// balance below zero is rejected: the advisory read here produces the
// friendly message, and the repository rechecks under a row lock so
// concurrent redemptions cannot both pass.
func (s *Service) Grant(ctx context.Context, input GrantInput) (*Entry, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	if input.Points < 0 {
		balance, err := s.repo.Balance(ctx, input.CustomerID)
		if err != nil {
			return nil, err
		}
		if balance.Points+input.Points < 0 {
			return nil, fmt.Errorf("%w: insufficient balance (%d available)", ErrValidation, balance.Points)
		}
	}

	entry := &Entry{
		CustomerID: input.CustomerID,
		Points:     input.Points,
		Reason:     strings.TrimSpace(input.Reason),
	}
	entry.StampInsert(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Append(ctx, entry); err != nil {
		if errors.Is(err, ErrInsufficientBalance) {
			return nil, fmt.Errorf("%w: insufficient balance", ErrValidation)
		}
		return nil, err
	}
	s.events.Publish(ctx, webhooks.EventRewardGranted, map[string]any{"entry": entry})
	return entry, nil
}

// Balance returns a customer's current point total.
func (s *Service) Balance(ctx context.Context, customerID int64) (Balance, error) {
	return s.repo.Balance(ctx, customerID)
}

func validate(input GrantInput) error {
	if input.CustomerID <= 0 {
		return fmt.Errorf("%w: customer_id is required", ErrValidation)
	}
	if input.Points == 0 {
		return fmt.Errorf("%w: points must not be zero", ErrValidation)
	}
	if strings.TrimSpace(input.Reason) == "" {
		return fmt.Errorf("%w: reason is required", ErrValidation)
	}
	return nil
}
