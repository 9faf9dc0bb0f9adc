package webhooks

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/audit"
	"github.com/meridian-crm/meridian-crm/internal/listing"
)

var sortMap = listing.SortMap{
	"id":         "id",
	"name":       "name",
	"url":        "url",
	"created_at": "created_at",
}

type Repository struct {
	pool  *pgxpool.Pool
	saver *audit.Saver
}

func NewRepository(pool *pgxpool.Pool, saver *audit.Saver) *Repository {
	return &Repository{pool: pool, saver: saver}
}

const endpointColumns = `id, name, url, events, is_active, secret, external_id, created_at, created_by, updated_at, updated_by`

func (r *Repository) Get(ctx context.Context, id int64) (*Endpoint, error) {
	endpoint, err := scanEndpoint(r.pool.QueryRow(ctx, `SELECT `+endpointColumns+` FROM webhook_endpoints WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return endpoint, nil
}

// List returns one page of endpoints.
func (r *Repository) List(ctx context.Context, req listing.PageRequest) ([]Endpoint, int, error) {
	where := ""
	args := []any{}
	if req.Search != "" {
		where = "WHERE search_vector @@ plainto_tsquery('simple', $1)"
		args = append(args, req.Search)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM webhook_endpoints "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("webhooks: count: %w", err)
	}

	sort := listing.ParseSort(req.OrderBy, sortMap, "id")
	query := fmt.Sprintf("SELECT %s FROM webhook_endpoints %s ORDER BY %s LIMIT $%d OFFSET $%d",
		endpointColumns, where, sort.OrderBy(), len(args)+1, len(args)+2)
	args = append(args, req.Size, req.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("webhooks: list: %w", err)
	}
	defer rows.Close()

	var endpoints []Endpoint
	for rows.Next() {
		endpoint, err := scanEndpoint(rows)
		if err != nil {
			return nil, 0, err
		}
		endpoints = append(endpoints, *endpoint)
	}
	return endpoints, total, rows.Err()
}

// Subscribers returns the active endpoints subscribed to an event.
func (r *Repository) Subscribers(ctx context.Context, event string) ([]Endpoint, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+endpointColumns+` FROM webhook_endpoints WHERE is_active AND $1 = ANY(events)`, event)
	if err != nil {
		return nil, fmt.Errorf("webhooks: subscribers: %w", err)
	}
	defer rows.Close()

	var endpoints []Endpoint
	for rows.Next() {
		endpoint, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, *endpoint)
	}
	return endpoints, rows.Err()
}

func (r *Repository) Create(ctx context.Context, endpoint *Endpoint) error {
	rec := audit.NewRecord("webhook_endpoints", audit.OpAdded, endpoint.ExternalID.String(), endpoint.CreatedBy, nil, endpoint.fields(), endpoint.CreatedAt)
	return r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO webhook_endpoints (name, url, events, is_active, secret, external_id, created_at, created_by, updated_at, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING id`,
			endpoint.Name, endpoint.URL, endpoint.Events, endpoint.IsActive, endpoint.secret,
			endpoint.ExternalID, endpoint.CreatedAt, endpoint.CreatedBy, endpoint.UpdatedAt, endpoint.UpdatedBy,
		).Scan(&endpoint.ID)
	})
}

// Update saves a modified endpoint. An empty secret keeps the stored one.
func (r *Repository) Update(ctx context.Context, before, endpoint *Endpoint) error {
	rec := audit.NewRecord("webhook_endpoints", audit.OpModified, endpoint.ExternalID.String(), endpoint.UpdatedBy, before.fields(), endpoint.fields(), endpoint.UpdatedAt)
	return r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE webhook_endpoints
			SET name = $1, url = $2, events = $3, is_active = $4,
			    secret = COALESCE(NULLIF($5, ''), secret),
			    updated_at = $6, updated_by = $7
			WHERE id = $8`,
			endpoint.Name, endpoint.URL, endpoint.Events, endpoint.IsActive, endpoint.secret,
			endpoint.UpdatedAt, endpoint.UpdatedBy, endpoint.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *Repository) Delete(ctx context.Context, endpoint *Endpoint) error {
	rec := audit.NewRecord("webhook_endpoints", audit.OpDeleted, endpoint.ExternalID.String(), endpoint.UpdatedBy, endpoint.fields(), nil, endpoint.UpdatedAt)
	return r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM webhook_endpoints WHERE id = $1`, endpoint.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func scanEndpoint(row pgx.Row) (*Endpoint, error) {
	var e Endpoint
	err := row.Scan(&e.ID, &e.Name, &e.URL, &e.Events, &e.IsActive, &e.secret,
		&e.ExternalID, &e.CreatedAt, &e.CreatedBy, &e.UpdatedAt, &e.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &e, nil
}
