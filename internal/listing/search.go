package listing

import (
	"strings"

	"golang.org/x/text/cases"
)

var searchFolder = cases.Fold()

// NormalizeSearch trims and case-folds a free-text search term before it
// is handed to the database's full-text operator. Returns "" for blank
// input, which callers treat as "no filter".
func NormalizeSearch(term string) string {
	term = strings.TrimSpace(term)
	if term == "" {
		return ""
	}
	return searchFolder.String(term)
}
