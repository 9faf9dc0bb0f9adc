package webhooks

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Publisher fans domain events out to subscribed endpoints, one queued
// delivery per endpoint. It satisfies shared.EventPublisher.
type Publisher struct {
	service  *Service
	enqueuer Enqueuer
	logger   *slog.Logger
	now      func() time.Time
}

// NewPublisher constructs a publisher.
func NewPublisher(service *Service, enqueuer Enqueuer, logger *slog.Logger) *Publisher {
	return &Publisher{service: service, enqueuer: enqueuer, logger: logger, now: time.Now}
}

// Publish enqueues one delivery per subscribed endpoint. Failures are
// logged and swallowed; the triggering write has already committed.
func (p *Publisher) Publish(ctx context.Context, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		p.logger.Error("event payload marshal", slog.String("event", event), slog.Any("error", err))
		return
	}
	endpoints, err := p.service.Subscribers(ctx, event)
	if err != nil {
		p.logger.Error("event subscriber lookup", slog.String("event", event), slog.Any("error", err))
		return
	}
	occurred := p.now().UTC()
	for _, endpoint := range endpoints {
		delivery := Delivery{
			ID:         uuid.New(),
			EndpointID: endpoint.ID,
			Event:      event,
			OccurredAt: occurred,
			Data:       payload,
		}
		if err := p.enqueuer.EnqueueDelivery(ctx, delivery); err != nil {
			p.logger.Error("event delivery enqueue",
				slog.String("event", event),
				slog.Int64("endpoint", endpoint.ID),
				slog.Any("error", err))
		}
	}
}
