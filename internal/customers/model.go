package customers

import (
	"errors"

	"github.com/meridian-crm/meridian-crm/internal/audit"
)

var (
	ErrNotFound      = errors.New("customers: not found")
	ErrAlreadyExists = errors.New("customers: number already exists")
	ErrValidation    = errors.New("customers: validation failed")
)

// Customer is a company or person the organisation does business with.
type Customer struct {
	ID      int64   `json:"id"`
	Number  string  `json:"number"`
	Name    string  `json:"name"`
	Email   *string `json:"email,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Website *string `json:"website,omitempty"`
	City    *string `json:"city,omitempty"`
	Country string  `json:"country"`
	Notes   *string `json:"notes,omitempty"`
	audit.Auditable
}

func (c Customer) fields() map[string]any {
	return map[string]any{
		"number":  c.Number,
		"name":    c.Name,
		"email":   c.Email,
		"phone":   c.Phone,
		"website": c.Website,
		"city":    c.City,
		"country": c.Country,
		"notes":   c.Notes,
	}
}
