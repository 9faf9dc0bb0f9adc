package rewards

import (
	"errors"

	"github.com/meridian-crm/meridian-crm/internal/audit"
)

var (
	ErrNotFound   = errors.New("rewards: not found")
	ErrValidation = errors.New("rewards: validation failed")
	ErrNoCustomer = errors.New("rewards: customer does not exist")
	// ErrInsufficientBalance is returned by the transactional balance
	// recheck when a redemption would take the ledger below zero.
	ErrInsufficientBalance = errors.New("rewards: insufficient balance")
)

// Entry is one ledger line. Positive points are grants, negative
// points are redemptions. Entries are append-only; corrections are new
// entries with opposite sign.
type Entry struct {
	ID         int64  `json:"id"`
	CustomerID int64  `json:"customer_id"`
	Points     int    `json:"points"`
	Reason     string `json:"reason"`
	audit.Auditable
}

func (e Entry) fields() map[string]any {
	return map[string]any{
		"customer_id": e.CustomerID,
		"points":      e.Points,
		"reason":      e.Reason,
	}
}

// Balance is a customer's current point total.
type Balance struct {
	CustomerID int64 `json:"customer_id"`
	Points     int   `json:"points"`
	Entries    int   `json:"entries"`
}
