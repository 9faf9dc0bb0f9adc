package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian-crm/internal/webhooks"
)

// WebhookDeliveryJob posts queued event envelopes to their endpoints.
type WebhookDeliveryJob struct {
	Dispatcher *webhooks.Dispatcher
	Logger     *slog.Logger
}

// NewWebhookDeliveryJob initialises the delivery handler.
func NewWebhookDeliveryJob(dispatcher *webhooks.Dispatcher, logger *slog.Logger) *WebhookDeliveryJob {
	return &WebhookDeliveryJob{Dispatcher: dispatcher, Logger: logger}
}

// Handle delivers one envelope. A deregistered endpoint kills the task;
// anything else is retried by the queue with backoff.
func (j *WebhookDeliveryJob) Handle(ctx context.Context, t *asynq.Task) error {
	var delivery webhooks.Delivery
	if err := json.Unmarshal(t.Payload(), &delivery); err != nil {
		return asynq.SkipRetry
	}
	err := j.Dispatcher.Deliver(ctx, delivery)
	if errors.Is(err, webhooks.ErrNotFound) {
		j.Logger.Warn("webhook endpoint gone",
			slog.String("delivery", delivery.ID.String()),
			slog.Int64("endpoint", delivery.EndpointID))
		return asynq.SkipRetry
	}
	return err
}
