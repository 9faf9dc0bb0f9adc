package roles

import (
	"errors"

	"github.com/meridian-crm/meridian-crm/internal/audit"
)

var (
	ErrNotFound      = errors.New("roles: not found")
	ErrAlreadyExists = errors.New("roles: name already exists")
	ErrInUse         = errors.New("roles: role is assigned to users")
	ErrValidation    = errors.New("roles: validation failed")
)

// Role groups permission claims for assignment to users. Claims are the
// persisted form of permissions; the decoded matrix is derived on read.
type Role struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	audit.Auditable
}

func (r Role) fields() map[string]any {
	return map[string]any{
		"name":        r.Name,
		"description": r.Description,
	}
}
