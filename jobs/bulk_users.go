package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"

	"github.com/hibiken/asynq"

	"github.com/meridian-crm/meridian-crm/internal/shared"
	"github.com/meridian-crm/meridian-crm/internal/users"
	"github.com/meridian-crm/meridian-crm/internal/webhooks"
)

// BulkUsersJob processes stored bulk user batches off the queue.
type BulkUsersJob struct {
	Store   *users.BulkJobStore
	Handler *users.BulkHandler
	Events  shared.EventPublisher
	Logger  *slog.Logger
}

// NewBulkUsersJob initialises the bulk user handler.
func NewBulkUsersJob(store *users.BulkJobStore, handler *users.BulkHandler, events shared.EventPublisher, logger *slog.Logger) *BulkUsersJob {
	return &BulkUsersJob{Store: store, Handler: handler, Events: events, Logger: logger}
}

// Handle runs one stored batch and records its terminal state. The
// permission gate inside the bulk handler still applies; a forbidden
// actor yields a completed job with zero processed items.
func (j *BulkUsersJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload BulkUsersPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	items, err := j.Store.Payload(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			j.Logger.Warn("bulk job vanished", slog.Int64("job", payload.JobID))
			return asynq.SkipRetry
		}
		return err
	}

	// Queue workers carry no session, so the submitter's identity is
	// placed in the context for audit stamping.
	runCtx := shared.ContextWithActor(ctx, strconv.FormatInt(payload.ActorID, 10))
	result, runErr := j.Handler.Handle(runCtx, payload.ActorID, items)
	if runErr != nil && ctx.Err() != nil {
		// Shutdown mid-batch: leave the job Pending so the queue retries.
		return runErr
	}

	if err := j.Store.Complete(ctx, payload.JobID, result, runErr); err != nil {
		return err
	}

	j.Events.Publish(ctx, webhooks.EventUserBulkDone, map[string]any{
		"job_id":    payload.JobID,
		"processed": result.Processed,
		"failed":    result.Failed,
	})
	j.Logger.Info("bulk users completed",
		slog.Int64("job", payload.JobID),
		slog.Int("processed", result.Processed),
		slog.Int("failed", result.Failed))
	return nil
}
