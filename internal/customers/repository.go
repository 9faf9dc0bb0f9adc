package customers

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
	"number":     "number",
	"name":       "name",
	"city":       "city",
	"country":    "country",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// Repository provides PostgreSQL backed persistence for customers.
type Repository struct {
	pool  *pgxpool.Pool
	saver *audit.Saver
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, saver *audit.Saver) *Repository {
	return &Repository{pool: pool, saver: saver}
}

const customerColumns = `id, number, name, email, phone, website, city, country, notes, external_id, created_at, created_by, updated_at, updated_by`

// Get fetches a customer by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Customer, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
}

// GetByNumber fetches a customer by the unique customer number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (*Customer, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE number = $1`, number))
}

// List returns one page of customers plus the total over the filtered
// set. The search predicate applies before counting and ordering.
func (r *Repository) List(ctx context.Context, req listing.PageRequest) ([]Customer, int, error) {
	where := ""
	args := []any{}
	if req.Search != "" {
		where = "WHERE search_vector @@ plainto_tsquery('simple', $1)"
		args = append(args, req.Search)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM customers "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("customers: count: %w", err)
	}

	sort := listing.ParseSort(req.OrderBy, sortMap, "id")
	query := fmt.Sprintf("SELECT %s FROM customers %s ORDER BY %s LIMIT $%d OFFSET $%d",
		customerColumns, where, sort.OrderBy(), len(args)+1, len(args)+2)
	args = append(args, req.Size, req.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("customers: list: %w", err)
	}
	defer rows.Close()

	var customers []Customer
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		customers = append(customers, *customer)
	}
	return customers, total, rows.Err()
}

// Create inserts a customer and its audit record in one transaction.
func (r *Repository) Create(ctx context.Context, customer *Customer) error {
	rec := audit.NewRecord("customers", audit.OpAdded, customer.ExternalID.String(), customer.CreatedBy, nil, customer.fields(), customer.CreatedAt)
	err := r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO customers (number, name, email, phone, website, city, country, notes, external_id, created_at, created_by, updated_at, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id`,
			customer.Number, customer.Name, customer.Email, customer.Phone, customer.Website,
			customer.City, customer.Country, customer.Notes, customer.ExternalID,
			customer.CreatedAt, customer.CreatedBy, customer.UpdatedAt, customer.UpdatedBy,
		).Scan(&customer.ID)
	})
	if db.IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// Update saves a modified customer, auditing the changed columns.
func (r *Repository) Update(ctx context.Context, before, customer *Customer) error {
	rec := audit.NewRecord("customers", audit.OpModified, customer.ExternalID.String(), customer.UpdatedBy, before.fields(), customer.fields(), customer.UpdatedAt)
	err := r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE customers
			SET number = $1, name = $2, email = $3, phone = $4, website = $5, city = $6, country = $7, notes = $8,
			    updated_at = $9, updated_by = $10
			WHERE id = $11`,
			customer.Number, customer.Name, customer.Email, customer.Phone, customer.Website,
			customer.City, customer.Country, customer.Notes,
			customer.UpdatedAt, customer.UpdatedBy, customer.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if db.IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// Delete removes a customer.
func (r *Repository) Delete(ctx context.Context, customer *Customer) error {
	rec := audit.NewRecord("customers", audit.OpDeleted, customer.ExternalID.String(), customer.UpdatedBy, customer.fields(), nil, customer.UpdatedAt)
	return r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM customers WHERE id = $1`, customer.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// NextNumber suggests the next customer number for form pre-fill. Best
// effort only; Create still enforces uniqueness.
func (r *Repository) NextNumber(ctx context.Context) (string, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers`).Scan(&count); err != nil {
		return "", err
	}
	return fmt.Sprintf("CUST-%05d", count+1), nil
}

func (r *Repository) scanOne(row pgx.Row) (*Customer, error) {
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return customer, nil
}

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Number, &c.Name, &c.Email, &c.Phone, &c.Website, &c.City, &c.Country, &c.Notes,
		&c.ExternalID, &c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
