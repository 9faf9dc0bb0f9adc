package documents

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
	"title":      "title",
	"file_name":  "file_name",
	"size_bytes": "size_bytes",
	"created_at": "created_at",
}

type Repository struct {
	pool  *pgxpool.Pool
	saver *audit.Saver
}

func NewRepository(pool *pgxpool.Pool, saver *audit.Saver) *Repository {
	return &Repository{pool: pool, saver: saver}
}

const documentColumns = `id, customer_id, project_id, title, file_name, content_type, size_bytes, storage_key, description, external_id, created_at, created_by, updated_at, updated_by`

func (r *Repository) Get(ctx context.Context, id int64) (*Document, error) {
	document, err := scanDocument(r.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return document, nil
}

// List returns one page of documents. customerID and projectID narrow
// the result when positive.
func (r *Repository) List(ctx context.Context, customerID, projectID int64, req listing.PageRequest) ([]Document, int, error) {
	conditions := []string{}
	args := []any{}
	if customerID > 0 {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)+1))
		args = append(args, customerID)
	}
	if projectID > 0 {
		conditions = append(conditions, fmt.Sprintf("project_id = $%d", len(args)+1))
		args = append(args, projectID)
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM documents "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("documents: count: %w", err)
	}

	sort := listing.ParseSort(req.OrderBy, sortMap, "id")
	query := fmt.Sprintf("SELECT %s FROM documents %s ORDER BY %s LIMIT $%d OFFSET $%d",
		documentColumns, where, sort.OrderBy(), len(args)+1, len(args)+2)
	args = append(args, req.Size, req.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("documents: list: %w", err)
	}
	defer rows.Close()

	var documents []Document
	for rows.Next() {
		document, err := scanDocument(rows)
		if err != nil {
			return nil, 0, err
		}
		documents = append(documents, *document)
	}
	return documents, total, rows.Err()
}

func (r *Repository) Create(ctx context.Context, document *Document) error {
	rec := audit.NewRecord("documents", audit.OpAdded, document.ExternalID.String(), document.CreatedBy, nil, document.fields(), document.CreatedAt)
	err := r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO documents (customer_id, project_id, title, file_name, content_type, size_bytes, storage_key, description, external_id, created_at, created_by, updated_at, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id`,
			document.CustomerID, document.ProjectID, document.Title, document.FileName,
			document.ContentType, document.SizeBytes, document.StorageKey, document.Description,
			document.ExternalID, document.CreatedAt, document.CreatedBy, document.UpdatedAt, document.UpdatedBy,
		).Scan(&document.ID)
	})
	if db.IsForeignKeyViolation(err) {
		return ErrNoOwner
	}
	return err
}

func (r *Repository) Update(ctx context.Context, before, document *Document) error {
	rec := audit.NewRecord("documents", audit.OpModified, document.ExternalID.String(), document.UpdatedBy, before.fields(), document.fields(), document.UpdatedAt)
	err := r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE documents
			SET customer_id = $1, project_id = $2, title = $3, file_name = $4, content_type = $5,
			    size_bytes = $6, storage_key = $7, description = $8, updated_at = $9, updated_by = $10
			WHERE id = $11`,
			document.CustomerID, document.ProjectID, document.Title, document.FileName,
			document.ContentType, document.SizeBytes, document.StorageKey, document.Description,
			document.UpdatedAt, document.UpdatedBy, document.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
	if db.IsForeignKeyViolation(err) {
		return ErrNoOwner
	}
	return err
}

func (r *Repository) Delete(ctx context.Context, document *Document) error {
	rec := audit.NewRecord("documents", audit.OpDeleted, document.ExternalID.String(), document.UpdatedBy, document.fields(), nil, document.UpdatedAt)
	return r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM documents WHERE id = $1`, document.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func scanDocument(row pgx.Row) (*Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.CustomerID, &d.ProjectID, &d.Title, &d.FileName, &d.ContentType, &d.SizeBytes,
		&d.StorageKey, &d.Description, &d.ExternalID, &d.CreatedAt, &d.CreatedBy, &d.UpdatedAt, &d.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
