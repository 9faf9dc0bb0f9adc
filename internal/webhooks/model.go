package webhooks

import (
	"errors"
	"slices"

	"github.com/meridian-crm/meridian-crm/internal/audit"
)

var (
	ErrNotFound   = errors.New("webhooks: not found")
	ErrValidation = errors.New("webhooks: validation failed")
)

// Event names published by the feature services.
const (
	EventCustomerChanged = "customer.changed"
	EventContactChanged  = "contact.changed"
	EventProjectChanged  = "project.changed"
	EventDocumentChanged = "document.changed"
	EventRewardGranted   = "reward.granted"
	EventUserBulkDone    = "user.bulk_completed"
)

// Events returns all known event names.
func Events() []string {
	return []string{
		EventCustomerChanged,
		EventContactChanged,
		EventProjectChanged,
		EventDocumentChanged,
		EventRewardGranted,
		EventUserBulkDone,
	}
}

// Endpoint is a registered webhook receiver. Secret signs the delivery
// payload and is never serialized back to clients.
type Endpoint struct {
	ID       int64    `json:"id"`
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Events   []string `json:"events"`
	IsActive bool     `json:"is_active"`
	secret   string
	audit.Auditable
}

// Secret exposes the signing secret to the dispatcher.
func (e *Endpoint) Secret() string { return e.secret }

// Subscribed reports whether the endpoint wants the given event.
func (e *Endpoint) Subscribed(event string) bool {
	return e.IsActive && slices.Contains(e.Events, event)
}

func (e Endpoint) fields() map[string]any {
	return map[string]any{
		"name":      e.Name,
		"url":       e.URL,
		"events":    e.Events,
		"is_active": e.IsActive,
	}
}
