package rewards

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/audit"
	"github.com/meridian-crm/meridian-crm/internal/listing"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
)

var sortMap = listing.SortMap{
	"id":         "id",
	"points":     "points",
	"created_at": "created_at",
}

type Repository struct {
	pool  *pgxpool.Pool
	saver *audit.Saver
}

func NewRepository(pool *pgxpool.Pool, saver *audit.Saver) *Repository {
	return &Repository{pool: pool, saver: saver}
}

const entryColumns = `id, customer_id, points, reason, external_id, created_at, created_by, updated_at, updated_by`

func (r *Repository) Get(ctx context.Context, id int64) (*Entry, error) {
	entry, err := scanEntry(r.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM reward_entries WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return entry, nil
}

// List returns one page of ledger entries, newest first by default.
// customerID narrows to one customer when positive.
func (r *Repository) List(ctx context.Context, customerID int64, req listing.PageRequest) ([]Entry, int, error) {
	conditions := []string{}
	args := []any{}
	if customerID > 0 {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)+1))
		args = append(args, customerID)
	}
	if req.Search != "" {
		conditions = append(conditions, fmt.Sprintf("search_vector @@ plainto_tsquery('simple', $%d)", len(args)+1))
		args = append(args, req.Search)
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + conditions[0]
		for _, c := range conditions[1:] {
			where += " AND " + c
		}
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM reward_entries "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("rewards: count: %w", err)
	}

	sort := listing.ParseSort(req.OrderBy, sortMap, "id")
	query := fmt.Sprintf("SELECT %s FROM reward_entries %s ORDER BY %s LIMIT $%d OFFSET $%d",
		entryColumns, where, sort.OrderBy(), len(args)+1, len(args)+2)
	args = append(args, req.Size, req.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("rewards: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *entry)
	}
	return entries, total, rows.Err()
}

// Append inserts a ledger entry and its audit record in one
// transaction. Entries are never updated or deleted. Redemptions lock
// the customer row and recheck the balance on the transaction, so two
// concurrent redemptions cannot both drain the same points.
func (r *Repository) Append(ctx context.Context, entry *Entry) error {
	rec := audit.NewRecord("reward_entries", audit.OpAdded, entry.ExternalID.String(), entry.CreatedBy, nil, entry.fields(), entry.CreatedAt)
	err := r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		if entry.Points < 0 {
			var locked int64
			if err := tx.QueryRow(ctx, `SELECT id FROM customers WHERE id = $1 FOR UPDATE`, entry.CustomerID).Scan(&locked); err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					return ErrNoCustomer
				}
				return err
			}
			var balance int
			if err := tx.QueryRow(ctx, `SELECT COALESCE(SUM(points), 0) FROM reward_entries WHERE customer_id = $1`, entry.CustomerID).Scan(&balance); err != nil {
				return err
			}
			if balance+entry.Points < 0 {
				return ErrInsufficientBalance
			}
		}
		return tx.QueryRow(ctx, `
			INSERT INTO reward_entries (customer_id, points, reason, external_id, created_at, created_by, updated_at, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			entry.CustomerID, entry.Points, entry.Reason, entry.ExternalID,
			entry.CreatedAt, entry.CreatedBy, entry.UpdatedAt, entry.UpdatedBy,
		).Scan(&entry.ID)
	})
	if db.IsForeignKeyViolation(err) {
		return ErrNoCustomer
	}
	return err
}

// Balance sums the ledger for one customer.
func (r *Repository) Balance(ctx context.Context, customerID int64) (Balance, error) {
	balance := Balance{CustomerID: customerID}
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(points), 0), COUNT(*) FROM reward_entries WHERE customer_id = $1`,
		customerID).Scan(&balance.Points, &balance.Entries)
	if err != nil {
		return Balance{}, fmt.Errorf("rewards: balance: %w", err)
	}
	return balance, nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.CustomerID, &e.Points, &e.Reason,
		&e.ExternalID, &e.CreatedAt, &e.CreatedBy, &e.UpdatedAt, &e.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
