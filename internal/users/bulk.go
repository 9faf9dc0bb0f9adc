package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/meridian-crm/meridian-crm/internal/authz"
)

// ErrBulkForbidden fails a whole batch before any item is processed.
var ErrBulkForbidden = errors.New("users: bulk permission required")

// BulkOp tags one item of a batch.
type BulkOp string

const (
	BulkUpsert BulkOp = "upsert"
	BulkDelete BulkOp = "delete"
)

// BulkItem is one unit of work within a batch request.
type BulkItem struct {
	ExternalID uuid.UUID `json:"external_id"`
	Op         BulkOp    `json:"op"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	// Password is forwarded on update only when non-empty; an absent
	// password means "leave unchanged".
	Password string `json:"password,omitempty"`
	RoleID   *int64 `json:"role_id,omitempty"`
	IsActive *bool  `json:"is_active,omitempty"`
}

// BulkMessage captures the serialized input and outcome of one item,
// recorded regardless of success for traceability.
type BulkMessage struct {
	Request   json.RawMessage `json:"request"`
	Operation string          `json:"operation"`
	Response  json.RawMessage `json:"response"`
}

// BulkResult aggregates a completed batch. Processed+Failed always
// equals the number of items handed to Handle.
type BulkResult struct {
	Messages  []BulkMessage `json:"messages"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
}

// PermissionChecker gates batches on the acting principal's rights.
type PermissionChecker interface {
	Allowed(ctx context.Context, userID int64, resource, token string) (bool, error)
}

// BulkHandler fans a batch out to the singular user operations. Bulk is
// a thin dispatch layer, not a separate code path, so single-item and
// bulk flows share identical validation and business rules.
type BulkHandler struct {
	service *Service
	perms   PermissionChecker
	logger  *slog.Logger
}

// NewBulkHandler constructs the orchestrator.
func NewBulkHandler(service *Service, perms PermissionChecker, logger *slog.Logger) *BulkHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BulkHandler{service: service, perms: perms, logger: logger}
}

// Handle processes the batch in input order. Item failures are isolated:
// each item yields exactly one message and increments exactly one
// counter, and a failing item never aborts the rest. Context
// cancellation stops new item processing; already-processed items are
// not rolled back.
func (h *BulkHandler) Handle(ctx context.Context, actorID int64, items []BulkItem) (BulkResult, error) {
	allowed, err := h.perms.Allowed(ctx, actorID, authz.ResourceUsers, authz.TokenBulk)
	if err != nil {
		return BulkResult{}, fmt.Errorf("users: bulk permission check: %w", err)
	}
	if !allowed {
		return BulkResult{}, ErrBulkForbidden
	}

	result := BulkResult{Messages: make([]BulkMessage, 0, len(items))}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		msg, ok := h.runItem(ctx, item)
		result.Messages = append(result.Messages, msg)
		if ok {
			result.Processed++
		} else {
			result.Failed++
		}
	}
	return result, nil
}

func (h *BulkHandler) runItem(ctx context.Context, item BulkItem) (msg BulkMessage, ok bool) {
	request, _ := json.Marshal(item)
	msg = BulkMessage{Request: request, Operation: string(item.Op)}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("bulk item panic", slog.Any("panic", r), slog.String("username", item.Username))
			msg.Response = errorResponse(fmt.Errorf("users: internal error"))
			ok = false
		}
	}()

	var (
		payload any
		err     error
	)
	switch item.Op {
	case BulkUpsert:
		payload, err = h.upsert(ctx, item)
	case BulkDelete:
		err = h.delete(ctx, item)
		payload = map[string]string{"status": "deleted"}
	default:
		err = fmt.Errorf("%w: unknown operation %q", ErrValidation, item.Op)
	}

	if err != nil {
		msg.Response = errorResponse(err)
		return msg, false
	}
	msg.Response, _ = json.Marshal(payload)
	return msg, true
}

func (h *BulkHandler) upsert(ctx context.Context, item BulkItem) (*User, error) {
	existing, err := h.service.lookup(ctx, item.Username, item.ExternalID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	if existing == nil {
		return h.service.Create(ctx, CreateUserRequest{
			Username: item.Username,
			Email:    item.Email,
			Name:     item.Name,
			Password: item.Password,
			RoleID:   item.RoleID,
		})
	}

	update := UpdateUserRequest{RoleID: item.RoleID, IsActive: item.IsActive}
	if item.Email != "" {
		update.Email = &item.Email
	}
	if item.Name != "" {
		update.Name = &item.Name
	}
	if item.Password != "" {
		update.Password = item.Password
	}
	_, err = h.service.Update(ctx, existing.ID, update)
	if err != nil {
		return nil, err
	}
	return h.service.Get(ctx, existing.ID)
}

func (h *BulkHandler) delete(ctx context.Context, item BulkItem) error {
	existing, err := h.service.lookup(ctx, item.Username, item.ExternalID)
	if err != nil {
		return err
	}
	return h.service.Delete(ctx, existing.ID)
}

func errorResponse(err error) json.RawMessage {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return data
}
