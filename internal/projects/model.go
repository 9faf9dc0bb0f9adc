package projects

import (
	"errors"
	"time"

	"github.com/meridian-crm/meridian-crm/internal/audit"
)

var (
	ErrNotFound      = errors.New("projects: not found")
	ErrAlreadyExists = errors.New("projects: number already exists")
	ErrValidation    = errors.New("projects: validation failed")
	ErrNoCustomer    = errors.New("projects: customer does not exist")
)

// Project statuses. Transitions are not enforced; the status is a plain
// label set by the client.
const (
	StatusPlanned   = "planned"
	StatusActive    = "active"
	StatusOnHold    = "on_hold"
	StatusCompleted = "completed"
)

// Project is a unit of work carried out for a customer.
type Project struct {
	ID         int64      `json:"id"`
	CustomerID int64      `json:"customer_id"`
	Number     string     `json:"number"`
	Name       string     `json:"name"`
	Status     string     `json:"status"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	EndDate    *time.Time `json:"end_date,omitempty"`
	Budget     *float64   `json:"budget,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	audit.Auditable
}

func (p Project) fields() map[string]any {
	return map[string]any{
		"customer_id": p.CustomerID,
		"number":      p.Number,
		"name":        p.Name,
		"status":      p.Status,
		"start_date":  p.StartDate,
		"end_date":    p.EndDate,
		"budget":      p.Budget,
		"notes":       p.Notes,
	}
}
