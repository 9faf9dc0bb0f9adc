package contacts

import (
	"errors"

	"github.com/meridian-crm/meridian-crm/internal/audit"
)

var (
	ErrNotFound   = errors.New("contacts: not found")
	ErrValidation = errors.New("contacts: validation failed")
	ErrNoCustomer = errors.New("contacts: customer does not exist")
)

// Contact is a person attached to a customer.
type Contact struct {
	ID         int64   `json:"id"`
	CustomerID int64   `json:"customer_id"`
	FirstName  string  `json:"first_name"`
	LastName   string  `json:"last_name"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	JobTitle   *string `json:"job_title,omitempty"`
	IsPrimary  bool    `json:"is_primary"`
	audit.Auditable
}

func (c Contact) fields() map[string]any {
	return map[string]any{
		"customer_id": c.CustomerID,
		"first_name":  c.FirstName,
		"last_name":   c.LastName,
		"email":       c.Email,
		"phone":       c.Phone,
		"job_title":   c.JobTitle,
		"is_primary":  c.IsPrimary,
	}
}
