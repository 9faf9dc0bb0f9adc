package users

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Bulk job statuses.
const (
	BulkJobPending   = "Pending"
	BulkJobCompleted = "Completed"
)

// BulkJob tracks an asynchronously submitted batch. The worker writes
// the terminal fields when the batch finishes; scheduling itself is
// owned by the queue.
type BulkJob struct {
	ID          int64           `json:"id"`
	Status      string          `json:"status"`
	ActorID     int64           `json:"actor_id"`
	Messages    json.RawMessage `json:"messages,omitempty"`
	Processed   int             `json:"processed"`
	Failed      int             `json:"failed"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// BulkJobStore persists bulk job tracking rows.
type BulkJobStore struct {
	pool *pgxpool.Pool
}

// NewBulkJobStore constructs the store.
func NewBulkJobStore(pool *pgxpool.Pool) *BulkJobStore {
	return &BulkJobStore{pool: pool}
}

// Create inserts a Pending job carrying the serialized batch payload.
func (s *BulkJobStore) Create(ctx context.Context, actorID int64, items []BulkItem) (int64, error) {
	payload, err := json.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("users: marshal bulk payload: %w", err)
	}
	var id int64
	err = s.pool.QueryRow(ctx, `
		INSERT INTO bulk_jobs (status, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		BulkJobPending, actorID, payload, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("users: create bulk job: %w", err)
	}
	return id, nil
}

// Complete records the terminal fields of a finished batch.
func (s *BulkJobStore) Complete(ctx context.Context, id int64, result BulkResult, runErr error) error {
	messages, err := json.Marshal(result.Messages)
	if err != nil {
		return fmt.Errorf("users: marshal bulk messages: %w", err)
	}
	errText := ""
	if runErr != nil {
		errText = runErr.Error()
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE bulk_jobs
		SET status = $1, messages = $2, processed = $3, failed = $4, error = $5, completed_at = $6
		WHERE id = $7`,
		BulkJobCompleted, messages, result.Processed, result.Failed, errText, time.Now(), id)
	if err != nil {
		return fmt.Errorf("users: complete bulk job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches a job with its terminal fields.
func (s *BulkJobStore) Get(ctx context.Context, id int64) (*BulkJob, error) {
	var job BulkJob
	err := s.pool.QueryRow(ctx, `
		SELECT id, status, actor_id, COALESCE(messages, 'null'), processed, failed, COALESCE(error, ''), created_at, completed_at
		FROM bulk_jobs WHERE id = $1`, id).
		Scan(&job.ID, &job.Status, &job.ActorID, &job.Messages, &job.Processed, &job.Failed, &job.Error, &job.CreatedAt, &job.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: get bulk job: %w", err)
	}
	return &job, nil
}

// Payload re-reads the serialized batch of a job for the worker.
func (s *BulkJobStore) Payload(ctx context.Context, id int64) ([]BulkItem, error) {
	var payload []byte
	err := s.pool.QueryRow(ctx, `SELECT payload FROM bulk_jobs WHERE id = $1`, id).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: read bulk payload: %w", err)
	}
	var items []BulkItem
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, fmt.Errorf("users: decode bulk payload: %w", err)
	}
	return items, nil
}
