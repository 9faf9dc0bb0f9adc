package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-crm/meridian-crm/internal/audit"
	"github.com/meridian-crm/meridian-crm/internal/listing"
	"github.com/meridian-crm/meridian-crm/internal/platform/db"
)

var sortMap = listing.SortMap{
	"id":         "id",
	"username":   "username",
	"email":      "email",
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

// Repository provides PostgreSQL backed persistence for users.
type Repository struct {
	pool  *pgxpool.Pool
	saver *audit.Saver
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool, saver *audit.Saver) *Repository {
	return &Repository{pool: pool, saver: saver}
}

const userColumns = `id, username, email, name, role_id, is_active, password_hash, external_id, created_at, created_by, updated_at, updated_by`

// Get fetches a user by ID.
func (r *Repository) Get(ctx context.Context, id int64) (*User, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetByUsername fetches a user by the unique username.
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username))
}

// GetByExternalID fetches a user by the external correlation ID.
func (r *Repository) GetByExternalID(ctx context.Context, externalID uuid.UUID) (*User, error) {
	return r.scanOne(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID))
}

// List returns one page of users plus the total over the filtered set.
func (r *Repository) List(ctx context.Context, req listing.PageRequest) ([]User, int, error) {
	where := ""
	args := []any{}
	if req.Search != "" {
		where = "WHERE search_vector @@ plainto_tsquery('simple', $1)"
		args = append(args, req.Search)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("users: count: %w", err)
	}

	sort := listing.ParseSort(req.OrderBy, sortMap, "id")
	query := fmt.Sprintf("SELECT %s FROM users %s ORDER BY %s LIMIT $%d OFFSET $%d",
		userColumns, where, sort.OrderBy(), len(args)+1, len(args)+2)
	args = append(args, req.Size, req.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("users: list: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, *user)
	}
	return users, total, rows.Err()
}

// Create inserts a user and its audit record in one transaction.
func (r *Repository) Create(ctx context.Context, user *User) error {
	rec := audit.NewRecord("users", audit.OpAdded, user.ExternalID.String(), user.CreatedBy, nil, user.fields(), user.CreatedAt)
	err := r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO users (username, email, name, role_id, is_active, password_hash, external_id, created_at, created_by, updated_at, updated_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			RETURNING id`,
			user.Username, user.Email, user.Name, user.RoleID, user.IsActive, user.passwordHash,
			user.ExternalID, user.CreatedAt, user.CreatedBy, user.UpdatedAt, user.UpdatedBy,
		).Scan(&user.ID)
	})
	if db.IsUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// Update saves a modified user, auditing the changed columns. The
// password hash is only rewritten when the service set a new one.
func (r *Repository) Update(ctx context.Context, before, user *User) error {
	rec := audit.NewRecord("users", audit.OpModified, user.ExternalID.String(), user.UpdatedBy, before.fields(), user.fields(), user.UpdatedAt)
	err := r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users
			SET username = $1, email = $2, name = $3, role_id = $4, is_active = $5,
			    password_hash = COALESCE(NULLIF($6, ''), password_hash),
			    updated_at = $7, updated_by = $8
			WHERE id = $9`,
			user.Username, user.Email, user.Name, user.RoleID, user.IsActive, user.passwordHash,
			user.UpdatedAt, user.UpdatedBy, user.ID)
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

// Delete removes a user.
func (r *Repository) Delete(ctx context.Context, user *User) error {
	rec := audit.NewRecord("users", audit.OpDeleted, user.ExternalID.String(), user.UpdatedBy, user.fields(), nil, user.UpdatedAt)
	return r.saver.Save(ctx, rec, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, user.ID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// PasswordHash exposes the stored hash for credential verification.
func (u *User) PasswordHash() string {
	return u.passwordHash
}

func (r *Repository) scanOne(row pgx.Row) (*User, error) {
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var user User
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Name, &user.RoleID, &user.IsActive,
		&user.passwordHash, &user.ExternalID, &user.CreatedAt, &user.CreatedBy, &user.UpdatedAt, &user.UpdatedBy)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
