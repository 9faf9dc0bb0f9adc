package users

import (
	"errors"

	"github.com/meridian-crm/meridian-crm/internal/audit"
)

var (
	ErrNotFound      = errors.New("users: not found")
	ErrAlreadyExists = errors.New("users: username or email already exists")
	ErrValidation    = errors.New("users: validation failed")
)

// User is a managed account. The password hash never leaves the
// repository layer.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	RoleID   *int64 `json:"role_id,omitempty"`
	IsActive bool   `json:"is_active"`
	audit.Auditable

	passwordHash string
}

func (u User) fields() map[string]any {
	return map[string]any{
		"username":  u.Username,
		"email":     u.Email,
		"name":      u.Name,
		"role_id":   u.RoleID,
		"is_active": u.IsActive,
	}
}
