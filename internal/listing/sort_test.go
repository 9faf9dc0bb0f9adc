package listing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSort(t *testing.T) {
	m := SortMap{
		"name":       "name",
		"created_at": "created_at",
		"id":         "id",
	}

	cases := []struct {
		name string
		expr string
		want Sort
	}{
		{"plain key", "name", Sort{Column: "name", Desc: false}},
		{"desc suffix", "name desc", Sort{Column: "name", Desc: true}},
		{"asc suffix", "created_at asc", Sort{Column: "created_at", Desc: false}},
		{"uppercase folded", "NAME DESC", Sort{Column: "name", Desc: true}},
		{"surrounding whitespace", "  name   desc ", Sort{Column: "name", Desc: true}},
		{"unknown key falls back ascending", "salary desc", Sort{Column: "id", Desc: false}},
		{"empty falls back", "", Sort{Column: "id", Desc: false}},
		{"unknown direction treated as part of key", "name sideways", Sort{Column: "id", Desc: false}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseSort(tc.expr, m, "id"))
		})
	}
}

func TestSortOrderBy(t *testing.T) {
	assert.Equal(t, "name ASC", Sort{Column: "name"}.OrderBy())
	assert.Equal(t, "name DESC", Sort{Column: "name", Desc: true}.OrderBy())
}

func TestNormalizeSearch(t *testing.T) {
	assert.Equal(t, "", NormalizeSearch("   "))
	assert.Equal(t, "acme", NormalizeSearch(" ACME "))
	assert.Equal(t, "strasse", NormalizeSearch("STRASSE"))
}
