package shared

import "context"

// EventPublisher fans a domain event out to interested receivers.
// Publishing is fire-and-forget; implementations log their own
// failures and never block the calling write path on delivery.
type EventPublisher interface {
	Publish(ctx context.Context, event string, data any)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) {}
