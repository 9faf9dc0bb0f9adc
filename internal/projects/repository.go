package projects

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
	"status":     "status",
	"start_date": "start_date",
	"created_at": "created_at",
}

// Repository provides PostgreSQL backed persistence for projects.
type Repository struct {
	pool  *pgxpool.Pool
	saver *audit.Saver
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, saver *audit.Saver) *Repository {
	return &Repository{pool: pool, saver: saver}
}

const projectColumns = `id, customer_id, number, name, status, start_date, end_date, budget, notes, external_id, created_at, created_by, updated_at, updated_by`

// Get fetches a project by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Project, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
}

// GetByNumber fetches a project by the unique project number.
func (r *Repository) GetByNumber(ctx context.Context, number string) (*Project, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE number = $1`, number))
}

// List returns one page of projects plus the total over the filtered
// set. customerID narrows to a single customer when positive; status
// narrows to one status label when non-empty.
func (r *Repository) List(ctx context.Context, customerID int64, status string, req listing.PageRequest) ([]Project, int, error) {
	conditions := []string{}
	args := []any{}
	if customerID > 0 {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)+1))
		args = append(args, customerID)
	}
	if status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, status)
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM projects "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("projects: count: %w", err)
	}

	sort := listing.ParseSort(req.OrderBy, sortMap, "id")
	query := fmt.Sprintf("SELECT %s FROM projects %s ORDER BY %s LIMIT $%d OFFSET $%d",
		projectColumns, where, sort.OrderBy(), len(args)+1, len(args)+2)
	args = append(args, req.Size, req.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("projects: list: %w", err)
	}
	defer rows.Close()

	var projects []Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		projects = append(projects, *project)
	}
	return projects, total, rows.Err()
}

// Create inserts a project and its audit record in one transaction.
func (r *Repository) Create(ctx context.Context, project *Project) error {
	rec := audit.NewRecord("projects", audit.OpAdded, project.ExternalID.String(), project.CreatedBy, nil, project.fields(), project.CreatedAt)
	err := r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO projects (customer_id, number, name, status, start_date, end_date, budget, notes, external_id, created_at, created_by, updated_at, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			RETURNING id`,
			project.CustomerID, project.Number, project.Name, project.Status,
			project.StartDate, project.EndDate, project.Budget, project.Notes, project.ExternalID,
			project.CreatedAt, project.CreatedBy, project.UpdatedAt, project.UpdatedBy,
		).Scan(&project.ID)
	})
	switch {
	case db.IsUniqueViolation(err):
		return ErrAlreadyExists
	case db.IsForeignKeyViolation(err):
		return ErrNoCustomer
	}
	return err
}

// Update saves a modified project, auditing the changed columns.
func (r *Repository) Update(ctx context.Context, before, project *Project) error {
	rec := audit.NewRecord("projects", audit.OpModified, project.ExternalID.String(), project.UpdatedBy, before.fields(), project.fields(), project.UpdatedAt)
	err := r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE projects
			SET number = $1, name = $2, status = $3, start_date = $4, end_date = $5, budget = $6, notes = $7,
			    updated_at = $8, updated_by = $9
			WHERE id = $10`,
			project.Number, project.Name, project.Status, project.StartDate, project.EndDate,
			project.Budget, project.Notes,
			project.UpdatedAt, project.UpdatedBy, project.ID)
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

// Delete removes a project.
func (r *Repository) Delete(ctx context.Context, project *Project) error {
	rec := audit.NewRecord("projects", audit.OpDeleted, project.ExternalID.String(), project.UpdatedBy, project.fields(), nil, project.UpdatedAt)
	return r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, project.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// NextNumber suggests the next project number for form pre-fill.
func (r *Repository) NextNumber(ctx context.Context) (string, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM projects`).Scan(&count); err != nil {
		return "", err
	}
	return fmt.Sprintf("PRJ-%05d", count+1), nil
}

func (r *Repository) scanOne(row pgx.Row) (*Project, error) {
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return project, nil
}

func scanProject(row pgx.Row) (*Project, error) {
	var p Project
	err := row.Scan(&p.ID, &p.CustomerID, &p.Number, &p.Name, &p.Status, &p.StartDate, &p.EndDate, &p.Budget, &p.Notes,
		&p.ExternalID, &p.CreatedAt, &p.CreatedBy, &p.UpdatedAt, &p.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
