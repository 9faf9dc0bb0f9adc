package contacts

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
	"first_name": "first_name",
	"last_name":  "last_name",
	"email":      "email",
	"created_at": "created_at",
}

type Repository struct {
	pool  *pgxpool.Pool
	saver *audit.Saver
}

func NewRepository(pool *pgxpool.Pool, saver *audit.Saver) *Repository {
	return &Repository{pool: pool, saver: saver}
}

const contactColumns = `id, customer_id, first_name, last_name, email, phone, job_title, is_primary, external_id, created_at, created_by, updated_at, updated_by`

func (r *Repository) Get(ctx context.Context, id int64) (*Contact, error) {
	contact, err := scanContact(r.pool.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return contact, nil
}

// List returns one page of contacts, optionally restricted to one
// customer via req-independent customerID (0 means all).
func (r *Repository) List(ctx context.Context, customerID int64, req listing.PageRequest) ([]Contact, int, error) {
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM contacts "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("contacts: count: %w", err)
	}

	sort := listing.ParseSort(req.OrderBy, sortMap, "id")
	query := fmt.Sprintf("SELECT %s FROM contacts %s ORDER BY %s LIMIT $%d OFFSET $%d",
		contactColumns, where, sort.OrderBy(), len(args)+1, len(args)+2)
	args = append(args, req.Size, req.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("contacts: list: %w", err)
	}
	defer rows.Close()

	var contacts []Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, 0, err
		}
		contacts = append(contacts, *contact)
	}
	return contacts, total, rows.Err()
}

func (r *Repository) Create(ctx context.Context, contact *Contact) error {
	rec := audit.NewRecord("contacts", audit.OpAdded, contact.ExternalID.String(), contact.CreatedBy, nil, contact.fields(), contact.CreatedAt)
	err := r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO contacts (customer_id, first_name, last_name, email, phone, job_title, is_primary, external_id, created_at, created_by, updated_at, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id`,
			contact.CustomerID, contact.FirstName, contact.LastName, contact.Email, contact.Phone,
			contact.JobTitle, contact.IsPrimary, contact.ExternalID,
			contact.CreatedAt, contact.CreatedBy, contact.UpdatedAt, contact.UpdatedBy,
		).Scan(&contact.ID)
	})
	if db.IsForeignKeyViolation(err) {
		return ErrNoCustomer
	}
	return err
}

func (r *Repository) Update(ctx context.Context, before, contact *Contact) error {
	rec := audit.NewRecord("contacts", audit.OpModified, contact.ExternalID.String(), contact.UpdatedBy, before.fields(), contact.fields(), contact.UpdatedAt)
	return r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE contacts
			SET first_name = $1, last_name = $2, email = $3, phone = $4, job_title = $5, is_primary = $6,
			    updated_at = $7, updated_by = $8
			WHERE id = $9`,
			contact.FirstName, contact.LastName, contact.Email, contact.Phone, contact.JobTitle,
			contact.IsPrimary, contact.UpdatedAt, contact.UpdatedBy, contact.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (r *Repository) Delete(ctx context.Context, contact *Contact) error {
	rec := audit.NewRecord("contacts", audit.OpDeleted, contact.ExternalID.String(), contact.UpdatedBy, contact.fields(), nil, contact.UpdatedAt)
	return r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM contacts WHERE id = $1`, contact.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	err := row.Scan(&c.ID, &c.CustomerID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.JobTitle, &c.IsPrimary,
		&c.ExternalID, &c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
