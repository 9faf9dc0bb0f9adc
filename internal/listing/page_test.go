package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequestNormalize(t *testing.T) {
	req := PageRequest{Page: 0, Size: -3, Search: "  ACME  "}.Normalize()
	assert.Equal(t, 1, req.Page)
	assert.Equal(t, DefaultPageSize, req.Size)
	assert.Equal(t, "acme", req.Search)

	req = PageRequest{Page: 4, Size: 25}.Normalize()
	assert.Equal(t, 4, req.Page)
	assert.Equal(t, 25, req.Size)
}

func TestPageRequestOffset(t *testing.T) {
	assert.Equal(t, 0, PageRequest{Page: 1, Size: 15}.Offset())
	assert.Equal(t, 30, PageRequest{Page: 3, Size: 15}.Offset())
}

func TestNewPageMetadata(t *testing.T) {
	// 37 items at 15 per page yields 3 pages with 7 on the last.
	req := PageRequest{Page: 3, Size: 15}
	page := NewPage(make([]int, 7), req, 37)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 37, page.Total)
	assert.False(t, page.HasNext())
	assert.True(t, page.HasPrev())

	first := NewPage(make([]int, 15), PageRequest{Page: 1, Size: 15}, 37)
	assert.True(t, first.HasNext())
	assert.False(t, first.HasPrev())
}

func TestNewPageExactMultiple(t *testing.T) {
	page := NewPage(make([]int, 15), PageRequest{Page: 2, Size: 15}, 30)
	assert.Equal(t, 2, page.TotalPages)
	assert.False(t, page.HasNext())
}

func TestNewPageEmpty(t *testing.T) {
	page := NewPage[int](nil, PageRequest{Page: 1, Size: 15}, 0)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Equal(t, 0, page.TotalPages)
	assert.False(t, page.HasNext())
	assert.False(t, page.HasPrev())
}
