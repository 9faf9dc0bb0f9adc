package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/listing"
)

var sortMap = listing.SortMap{
	"at":    "occurred_at",
	"table": "table_name",
	"actor": "actor",
	"op":    "op",
}

// Service reads the audit trail back out, paginated and sortable.
type Service struct {
	pool     *pgxpool.Pool
	executor *listing.Executor[Record]
}

// NewService constructs the audit read service.
func NewService(pool *pgxpool.Pool, sliding, absolute time.Duration, logger *slog.Logger) *Service {
	s := &Service{pool: pool}
	s.executor = listing.NewExecutor("audit", s.query, sliding, absolute, logger)
	return s
}

// List returns one page of audit records, newest first by default.
func (s *Service) List(ctx context.Context, req listing.PageRequest) (listing.Page[Record], error) {
	return s.executor.Execute(ctx, req)
}

func (s *Service) query(ctx context.Context, req listing.PageRequest) ([]Record, int, error) {
	where := ""
	args := []any{}
	if req.Search != "" {
		where = "WHERE search_vector @@ plainto_tsquery('simple', $1)"
		args = append(args, req.Search)
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_records "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("audit: count: %w", err)
	}

	sort := listing.ParseSort(req.OrderBy, sortMap, "at")
	query := fmt.Sprintf(`
		SELECT id, table_name, op, entity_key, actor, changed_columns, old_values, new_values, occurred_at
		FROM audit_records
		%s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		where, sort.OrderBy(), len(args)+1, len(args)+2)
	args = append(args, req.Size, req.Offset())

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("audit: list: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var op string
		var changed, oldVals, newVals []byte
		if err := rows.Scan(&rec.ID, &rec.Table, &op, &rec.Key, &rec.Actor, &changed, &oldVals, &newVals, &rec.At); err != nil {
			return nil, 0, err
		}
		rec.Op = Op(op)
		_ = json.Unmarshal(changed, &rec.Changed)
		_ = json.Unmarshal(oldVals, &rec.OldValues)
		_ = json.Unmarshal(newVals, &rec.NewValues)
		records = append(records, rec)
	}
	return records, total, rows.Err()
}
