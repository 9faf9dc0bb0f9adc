package listing

import "math"

// DefaultPageSize applies when a request carries no usable page size.
const DefaultPageSize = 15

// PageRequest carries the pagination, ordering, and filter fields of a
// list call as they arrive from the client.
type PageRequest struct {
	Page    int    `json:"page"`
	Size    int    `json:"size"`
	OrderBy string `json:"order_by"`
	Search  string `json:"search"`
}

// Normalize clamps page and size to their documented minimums and
// case-folds the search term.
func (r PageRequest) Normalize() PageRequest {
	if r.Page <= 0 {
		r.Page = 1
	}
	if r.Size <= 0 {
		r.Size = DefaultPageSize
	}
	r.Search = NormalizeSearch(r.Search)
	return r
}

// Offset returns the number of rows to skip.
func (r PageRequest) Offset() int {
	return (r.Page - 1) * r.Size
}

// Page is one page of a listing with derived pagination metadata.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	Size       int `json:"size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPage computes pagination metadata for a result set.
func NewPage[T any](items []T, req PageRequest, total int) Page[T] {
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items:      items,
		Page:       req.Page,
		Size:       req.Size,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(req.Size))),
	}
}

// HasNext reports whether a further page exists.
func (p Page[T]) HasNext() bool {
	return p.Page < p.TotalPages
}

// HasPrev reports whether an earlier page exists.
func (p Page[T]) HasPrev() bool {
	return p.Page > 1
}
