package audit

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/platform/db"
)

// Saver is the save-pipeline hook feature repositories write through.
// The entity mutation and its audit record commit in one transaction;
// if either fails, neither is persisted.
type Saver struct {
	pool     *pgxpool.Pool
	recorder *Recorder
}

// NewSaver constructs a Saver over the pool.
func NewSaver(pool *pgxpool.Pool) *Saver {
	return &Saver{pool: pool, recorder: NewRecorder()}
}

// Save runs fn inside a transaction and appends the audit record on the
// same transaction before commit.
func (s *Saver) Save(ctx context.Context, rec Record, fn func(pgx.Tx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return s.recorder.Write(ctx, tx, rec)
	})
}

// Pool exposes the underlying pool for read paths.
func (s *Saver) Pool() *pgxpool.Pool {
	return s.pool
}
