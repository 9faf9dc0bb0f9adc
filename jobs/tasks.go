package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian-crm/internal/webhooks"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskBulkUsers processes an enqueued bulk user batch.
	TaskBulkUsers = "users:bulk"
	// TaskWebhookDelivery posts one event envelope to one endpoint.
	TaskWebhookDelivery = "webhooks:deliver"
)

// BulkUsersPayload references a stored bulk job; the batch itself
// lives in the bulk_jobs row, not the queue message.
type BulkUsersPayload struct {
	JobID   int64 `json:"job_id"`
	ActorID int64 `json:"actor_id"`
}

// NewBulkUsersTask constructs an Asynq task.
func NewBulkUsersTask(payload BulkUsersPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBulkUsers, data), nil
}

// NewWebhookDeliveryTask constructs an Asynq task.
func NewWebhookDeliveryTask(delivery webhooks.Delivery) (*asynq.Task, error) {
	data, err := json.Marshal(delivery)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWebhookDelivery, data, asynq.MaxRetry(8)), nil
}

// Client submits jobs to the queue. It satisfies users.BulkEnqueuer
// and webhooks.Enqueuer.
type Client struct {
	client *asynq.Client
}

// NewClient constructs an Asynq client.
func NewClient(redisOpts asynq.RedisClientOpt) *Client {
	return &Client{client: asynq.NewClient(redisOpts)}
}

// EnqueueBulkUsers enqueues a stored bulk user batch.
func (c *Client) EnqueueBulkUsers(ctx context.Context, jobID, actorID int64) error {
	task, err := NewBulkUsersTask(BulkUsersPayload{JobID: jobID, ActorID: actorID})
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// EnqueueDelivery enqueues one webhook delivery.
func (c *Client) EnqueueDelivery(ctx context.Context, delivery webhooks.Delivery) error {
	task, err := NewWebhookDeliveryTask(delivery)
	if err != nil {
		return err
	}
	_, err = c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault))
	return err
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
