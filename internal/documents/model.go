package documents

import (
	"errors"

	"github.com/meridian-crm/meridian-crm/internal/audit"
)

var (
	ErrNotFound   = errors.New("documents: not found")
	ErrValidation = errors.New("documents: validation failed")
	ErrNoOwner    = errors.New("documents: owning record does not exist")
)

// Document is file metadata. The bytes themselves live in external
// storage addressed by StorageKey; this service never touches them.
type Document struct {
	ID          int64   `json:"id"`
	CustomerID  *int64  `json:"customer_id,omitempty"`
	ProjectID   *int64  `json:"project_id,omitempty"`
	Title       string  `json:"title"`
	FileName    string  `json:"file_name"`
	ContentType string  `json:"content_type"`
	SizeBytes   int64   `json:"size_bytes"`
	StorageKey  string  `json:"storage_key"`
	Description *string `json:"description,omitempty"`
	audit.Auditable
}

func (d Document) fields() map[string]any {
	return map[string]any{
		"customer_id":  d.CustomerID,
		"project_id":   d.ProjectID,
		"title":        d.Title,
		"file_name":    d.FileName,
		"content_type": d.ContentType,
		"size_bytes":   d.SizeBytes,
		"storage_key":  d.StorageKey,
		"description":  d.Description,
	}
}
