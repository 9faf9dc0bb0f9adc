package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/audit"
	"github.com/meridian-crm/meridian-crm/internal/authz"
	"github.com/meridian-crm/meridian-crm/internal/listing"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
)

var sortMap = listing.SortMap{
	"id":         "id",
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// Repository provides PostgreSQL backed persistence for roles and their
// claims.
type Repository struct {
	pool  *pgxpool.Pool
	saver *audit.Saver
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, saver *audit.Saver) *Repository {
	return &Repository{pool: pool, saver: saver}
}

const roleColumns = `id, name, description, external_id, created_at, created_by, updated_at, updated_by`

// Get fetches a role by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*Role, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
}

// GetByName fetches a role by its unique name.
func (r *Repository) GetByName(ctx context.Context, name string) (*Role, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE name = $1`, name))
}

// List returns one page of roles plus the total over the filtered set.
func (r *Repository) List(ctx context.Context, req listing.PageRequest) ([]Role, int, error) {
	where := ""
	args := []any{}
	if req.Search != "" {
		where = "WHERE search_vector @@ plainto_tsquery('simple', $1)"
		args = append(args, req.Search)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM roles "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("roles: count: %w", err)
	}

	sort := listing.ParseSort(req.OrderBy, sortMap, "id")
	query := fmt.Sprintf("SELECT %s FROM roles %s ORDER BY %s LIMIT $%d OFFSET $%d",
		roleColumns, where, sort.OrderBy(), len(args)+1, len(args)+2)
	args = append(args, req.Size, req.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("roles: list: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, 0, err
		}
		roles = append(roles, *role)
	}
	return roles, total, rows.Err()
}

// Create inserts a role and its audit record in one transaction.
func (r *Repository) Create(ctx context.Context, role *Role) error {
	rec := audit.NewRecord("roles", audit.OpAdded, role.ExternalID.String(), role.CreatedBy, nil, role.fields(), role.CreatedAt)
	err := r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO roles (name, description, external_id, created_at, created_by, updated_at, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id`,
			role.Name, role.Description, role.ExternalID,
			role.CreatedAt, role.CreatedBy, role.UpdatedAt, role.UpdatedBy,
		).Scan(&role.ID)
	})
	if db.IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// Update saves a modified role, auditing the changed columns.
func (r *Repository) Update(ctx context.Context, before, role *Role) error {
	rec := audit.NewRecord("roles", audit.OpModified, role.ExternalID.String(), role.UpdatedBy, before.fields(), role.fields(), role.UpdatedAt)
	err := r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE roles SET name = $1, description = $2, updated_at = $3, updated_by = $4
			WHERE id = $5`,
			role.Name, role.Description, role.UpdatedAt, role.UpdatedBy, role.ID)
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

// Delete removes a role and its claims.
func (r *Repository) Delete(ctx context.Context, role *Role) error {
	rec := audit.NewRecord("roles", audit.OpDeleted, role.ExternalID.String(), role.UpdatedBy, role.fields(), nil, role.UpdatedAt)
	return r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_claims WHERE role_id = $1`, role.ID); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, role.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ClaimsForRole loads the persisted claims of a role.
func (r *Repository) ClaimsForRole(ctx context.Context, roleID int64) ([]authz.Claim, error) {
	rows, err := r.pool.Query(ctx, `SELECT claim_type, claim_value FROM role_claims WHERE role_id = $1 ORDER BY claim_type`, roleID)
	if err != nil {
		return nil, fmt.Errorf("roles: claims: %w", err)
	}
	defer rows.Close()
	return scanClaims(rows)
}

// ClaimsForUser resolves the claims a user inherits from their role.
func (r *Repository) ClaimsForUser(ctx context.Context, userID int64) ([]authz.Claim, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rc.claim_type, rc.claim_value
		FROM role_claims rc
		JOIN users u ON u.role_id = rc.role_id
		WHERE u.id = $1
		ORDER BY rc.claim_type`, userID)
	if err != nil {
		return nil, fmt.Errorf("roles: user claims: %w", err)
	}
	defer rows.Close()
	return scanClaims(rows)
}

// ReplaceClaims swaps the full claim set of a role in one transaction.
func (r *Repository) ReplaceClaims(ctx context.Context, role *Role, claims []authz.Claim) error {
	rec := audit.NewRecord("role_claims", audit.OpModified, role.ExternalID.String(), role.UpdatedBy,
		map[string]any{"role_id": role.ID},
		map[string]any{"role_id": role.ID, "claims": claims},
		role.UpdatedAt)
	rec.Changed = []string{"claims"}
	return r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_claims WHERE role_id = $1`, role.ID); err != nil {
			return err
		}
		for _, claim := range claims {
			if _, err := tx.Exec(ctx,
				`INSERT INTO role_claims (role_id, claim_type, claim_value) VALUES ($1, $2, $3)`,
				role.ID, claim.Type, claim.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

// UsersAssigned counts users currently holding the role.
func (r *Repository) UsersAssigned(ctx context.Context, roleID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&count)
	return count, err
}

func (r *Repository) scanOne(row pgx.Row) (*Role, error) {
	role, err := scanRole(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return role, nil
}

func scanRole(row pgx.Row) (*Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.ExternalID,
		&role.CreatedAt, &role.CreatedBy, &role.UpdatedAt, &role.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &role, nil
}

func scanClaims(rows pgx.Rows) ([]authz.Claim, error) {
	var claims []authz.Claim
	for rows.Next() {
		var claim authz.Claim
		if err := rows.Scan(&claim.Type, &claim.Value); err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}
	return claims, rows.Err()
}
