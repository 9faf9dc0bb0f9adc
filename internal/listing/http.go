package listing

import (
	"net/http"
	"strconv"
)

// FromQuery reads the standard pagination parameters from a request:
// page (1-based), size, sort ("key" with optional "asc"/"desc" suffix),
// and q (search term). Values are normalized later by Execute.
func FromQuery(r *http.Request) PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))
	return PageRequest{
		Page:    page,
		Size:    size,
		OrderBy: q.Get("sort"),
		Search:  q.Get("q"),
	}
}
