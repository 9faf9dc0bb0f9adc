package documents

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

// DocumentInput carries the writable fields of a document record.
type DocumentInput struct {
	CustomerID  *int64  `json:"customer_id" validate:"omitempty,gt=0"`
	ProjectID   *int64  `json:"project_id" validate:"omitempty,gt=0"`
	Title       string  `json:"title" validate:"required,max=200"`
	FileName    string  `json:"file_name" validate:"required,max=255"`
	ContentType string  `json:"content_type" validate:"required,max=100"`
	SizeBytes   int64   `json:"size_bytes" validate:"gte=0"`
	StorageKey  string  `json:"storage_key" validate:"required,max=500"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// Service handles document metadata business logic.
type Service struct {
	repo     *Repository
	executor *listing.Executor[Document]
	events   shared.EventPublisher
	now      func() time.Time
}

// NewService builds a Service instance.
func NewService(repo *Repository, sliding, absolute time.Duration, logger *slog.Logger, events shared.EventPublisher) *Service {
	s := &Service{repo: repo, events: events, now: time.Now}
	source := func(ctx context.Context, req listing.PageRequest) ([]Document, int, error) {
		return repo.List(ctx, 0, 0, req)
	}
	s.executor = listing.NewExecutor("documents", source, sliding, absolute, logger)
	return s
}

// List returns one page of documents, optionally narrowed by owner.
func (s *Service) List(ctx context.Context, customerID, projectID int64, req listing.PageRequest) (listing.Page[Document], error) {
	if customerID > 0 || projectID > 0 {
		req = req.Normalize()
		items, total, err := s.repo.List(ctx, customerID, projectID, req)
		if err != nil {
			return listing.Page[Document]{}, err
		}
		return listing.NewPage(items, req, total), nil
	}
	return s.executor.Execute(ctx, req)
}

// Get fetches a single document record.
func (s *Service) Get(ctx context.Context, id int64) (*Document, error) {
	return s.repo.Get(ctx, id)
}

// Create registers new document metadata.
func (s *Service) Create(ctx context.Context, input DocumentInput) (*Document, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	document := &Document{}
	apply(document, input)
	document.StampInsert(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Create(ctx, document); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, webhooks.EventDocumentChanged, map[string]any{"action": "created", "document": document})
	return document, nil
}

// Update replaces the writable fields of an existing document record.
func (s *Service) Update(ctx context.Context, id int64, input DocumentInput) (*Document, error) {
	if err := validate(input); err != nil {
		return nil, err
	}
	before, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	document := *before
	apply(&document, input)
	document.StampUpdate(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Update(ctx, before, &document); err != nil {
		return nil, err
	}
	s.events.Publish(ctx, webhooks.EventDocumentChanged, map[string]any{"action": "updated", "document": &document})
	return &document, nil
}

// Delete removes a document record. The stored bytes are the storage
// layer's problem; only the metadata row goes away here.
func (s *Service) Delete(ctx context.Context, id int64) error {
	document, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	document.StampUpdate(shared.ActorFromContext(ctx), s.now())
	if err := s.repo.Delete(ctx, document); err != nil {
		return err
	}
	s.events.Publish(ctx, webhooks.EventDocumentChanged, map[string]any{"action": "deleted", "document": document})
	return nil
}

func apply(d *Document, input DocumentInput) {
	d.CustomerID = input.CustomerID
	d.ProjectID = input.ProjectID
	d.Title = strings.TrimSpace(input.Title)
	d.FileName = strings.TrimSpace(input.FileName)
	d.ContentType = input.ContentType
	d.SizeBytes = input.SizeBytes
	d.StorageKey = input.StorageKey
	d.Description = input.Description
}

func validate(input DocumentInput) error {
	if strings.TrimSpace(input.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if strings.TrimSpace(input.FileName) == "" {
		return fmt.Errorf("%w: file_name is required", ErrValidation)
	}
	if strings.TrimSpace(input.StorageKey) == "" {
		return fmt.Errorf("%w: storage_key is required", ErrValidation)
	}
	if input.SizeBytes < 0 {
		return fmt.Errorf("%w: size_bytes must not be negative", ErrValidation)
	}
	return nil
}
