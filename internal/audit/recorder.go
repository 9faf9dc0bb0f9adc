package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
)

// Op identifies the kind of change a record captures.
type Op string

const (
	OpAdded    Op = "Added"
	OpModified Op = "Modified"
	OpDeleted  Op = "Deleted"
)

// Record is one immutable audit row describing a single entity change.
type Record struct {
	ID        int64          `json:"id"`
	Table     string         `json:"table"`
	Op        Op             `json:"op"`
	Key       string         `json:"key"`
	Actor     string         `json:"actor"`
	Changed   []string       `json:"changed"`
	OldValues map[string]any `json:"old_values"`
	NewValues map[string]any `json:"new_values"`
	At        time.Time      `json:"at"`
}

// NewRecord diffs the before/after field maps of an entity and builds
// the record to persist. For inserts before is nil; for deletes after
// is nil.
func NewRecord(table string, op Op, key, actor string, before, after map[string]any, now time.Time) Record {
	if actor == "" {
		actor = AnonymousActor
	}
	rec := Record{
		Table:     table,
		Op:        op,
		Key:       key,
		Actor:     actor,
		OldValues: map[string]any{},
		NewValues: map[string]any{},
		At:        now,
	}
	switch op {
	case OpAdded:
		rec.NewValues = after
	case OpDeleted:
		rec.OldValues = before
	case OpModified:
		for field, oldVal := range before {
			newVal, ok := after[field]
			if !ok || reflect.DeepEqual(oldVal, newVal) {
				continue
			}
			rec.Changed = append(rec.Changed, field)
			rec.OldValues[field] = oldVal
			rec.NewValues[field] = newVal
		}
		sort.Strings(rec.Changed)
	}
	return rec
}

// Recorder persists audit records. Writes always travel on the same
// transaction as the entity change so a failed save commits no partial
// audit rows.
type Recorder struct{}

// NewRecorder returns a Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Write inserts the record on the supplied transaction.
func (r *Recorder) Write(ctx context.Context, tx pgx.Tx, rec Record) error {
	if rec.Table == "" || rec.Key == "" {
		return fmt.Errorf("audit: record requires table and key")
	}
	oldJSON, err := json.Marshal(rec.OldValues)
	if err != nil {
		return fmt.Errorf("audit: marshal old values: %w", err)
	}
	newJSON, err := json.Marshal(rec.NewValues)
	if err != nil {
		return fmt.Errorf("audit: marshal new values: %w", err)
	}
	changedJSON, err := json.Marshal(rec.Changed)
	if err != nil {
		return fmt.Errorf("audit: marshal changed columns: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO audit_records (table_name, op, entity_key, actor, changed_columns, old_values, new_values, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.Table, string(rec.Op), rec.Key, rec.Actor, changedJSON, oldJSON, newJSON, rec.At)
	if err != nil {
		return fmt.Errorf("audit: insert record: %w", err)
	}
	return nil
}
