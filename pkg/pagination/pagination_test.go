package pagination

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

var sorting = Sorting{Allowed: []string{"id", "formula_name", "created_on"}, Default: "created_on"}

func parseQuery(query string) Params {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/?"+query, nil)
	return Parse(c, sorting)
}

func TestParseDefaults(t *testing.T) {
	p := parseQuery("")

	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Equal(t, 0, p.Offset)
	assert.Equal(t, "created_on", p.SortBy)
	assert.Equal(t, "DESC", p.SortOrder)
}

func TestParseClampsAndComputesOffset(t *testing.T) {
	p := parseQuery("page=3&limit=500")
	assert.Equal(t, MaxLimit, p.Limit)
	assert.Equal(t, 200, p.Offset)

	p = parseQuery("page=-1&limit=0")
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, DefaultLimit, p.Limit)
}

func TestParseRejectsUnknownSortColumn(t *testing.T) {
	p := parseQuery("sortBy=password_hash&sortOrder=asc")
	assert.Equal(t, "created_on", p.SortBy)
	assert.Equal(t, "ASC", p.SortOrder)

	p = parseQuery("sortBy=formula_name&sortOrder=sideways")
	assert.Equal(t, "formula_name", p.SortBy)
	assert.Equal(t, "DESC", p.SortOrder)
}

func TestOrderByAddsIDTieBreaker(t *testing.T) {
	cols := New(1, 10, "formula_name", "ASC", sorting).OrderBy().Columns
	assert.Len(t, cols, 2)
	assert.Equal(t, "formula_name", cols[0].Column.Name)
	assert.False(t, cols[0].Desc)
	assert.Equal(t, "id", cols[1].Column.Name)

	assert.Len(t, New(1, 10, "id", "DESC", sorting).OrderBy().Columns, 1)
}

func TestNewPageTotalPages(t *testing.T) {
	p := New(2, 10, "", "", sorting)
	page := NewPage([]int{1, 2}, 25, p)

	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.Equal(t, int64(25), page.Pagination.Total)
	assert.Equal(t, 2, page.Pagination.Page)

	empty := NewPage[int](nil, 0, p)
	assert.NotNil(t, empty.Data)
	assert.Equal(t, 0, empty.Pagination.TotalPages)
}
