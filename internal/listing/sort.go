// Package listing implements the shared pagination, dynamic-sort, and
// cached query pipeline used by every list endpoint.
package listing

import "strings"

// SortMap is a closed mapping from client-visible sort keys to SQL
// columns. Each feature repository builds one at package init; nothing
// outside the map is ever interpolated into a query.
type SortMap map[string]string

// Sort is a resolved ordering instruction.
type Sort struct {
	Column string
	Desc   bool
}

// ParseSort resolves a free-text order-by expression such as
// "name desc" against the map. Unknown keys and unknown direction
// tokens fall back to the default key ascending; this fallback policy
// is deliberately uniform across all entities.
func ParseSort(expr string, m SortMap, fallback string) Sort {
	key := strings.TrimSpace(strings.ToLower(expr))
	desc := false
	if rest, ok := strings.CutSuffix(key, " desc"); ok {
		key = strings.TrimSpace(rest)
		desc = true
	} else if rest, ok := strings.CutSuffix(key, " asc"); ok {
		key = strings.TrimSpace(rest)
	}
	column, ok := m[key]
	if !ok {
		column = m[fallback]
		desc = false
	}
	return Sort{Column: column, Desc: desc}
}

// OrderBy renders the ORDER BY fragment for the sort.
func (s Sort) OrderBy() string {
	if s.Desc {
		return s.Column + " DESC"
	}
	return s.Column + " ASC"
}
