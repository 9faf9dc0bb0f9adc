// Package audit stamps provenance onto persisted entities and captures
// append-only change records alongside every save.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// AnonymousActor is stamped when no session identity is available.
const AnonymousActor = "?"

// Auditable carries the provenance fields every persisted entity
// embeds: creation/update timestamps and actor identifiers, plus an
// external correlation ID.
type Auditable struct {
	ExternalID uuid.UUID `json:"external_id"`
	CreatedAt  time.Time `json:"created_at"`
	CreatedBy  string    `json:"created_by"`
	UpdatedAt  time.Time `json:"updated_at"`
	UpdatedBy  string    `json:"updated_by"`
}

// StampInsert sets both timestamp/actor pairs and assigns an external
// ID when none is present. The created pair is immutable afterwards.
func (a *Auditable) StampInsert(actor string, now time.Time) {
	if actor == "" {
		actor = AnonymousActor
	}
	if a.ExternalID == uuid.Nil {
		a.ExternalID = uuid.New()
	}
	a.CreatedAt = now
	a.CreatedBy = actor
	a.UpdatedAt = now
	a.UpdatedBy = actor
}

// StampUpdate touches only the updated pair.
func (a *Auditable) StampUpdate(actor string, now time.Time) {
	if actor == "" {
		actor = AnonymousActor
	}
	a.UpdatedAt = now
	a.UpdatedBy = actor
}
