package pagination

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm/clause"
)

const (
	DefaultPage  = 1
	DefaultLimit = 20
	MaxLimit     = 100
	MinLimit     = 1
)

// Sorting is the allow-list of columns a listing may be ordered by.
type Sorting struct {
	Allowed []string
	Default string
}

func (s Sorting) allows(column string) bool {
	for _, a := range s.Allowed {
		if a == column {
			return true
		}
	}
	return false
}

// Params holds validated pagination parameters
type Params struct {
	Page      int
	Limit     int
	Offset    int
	SortBy    string
	SortOrder string
}

// Parse extracts and validates page/limit/sortBy/sortOrder from query
// parameters. Unknown sort columns fall back to the default.
func Parse(c *gin.Context, sorting Sorting) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultLimit)))
	return New(page, limit, c.Query("sortBy"), c.Query("sortOrder"), sorting)
}

func New(page, limit int, sortBy, sortOrder string, sorting Sorting) Params {
	if page < 1 {
		page = DefaultPage
	}
	if limit < MinLimit {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if !sorting.allows(sortBy) {
		sortBy = sorting.Default
	}
	sortOrder = strings.ToUpper(sortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	return Params{
		Page:      page,
		Limit:     limit,
		Offset:    (page - 1) * limit,
		SortBy:    sortBy,
		SortOrder: sortOrder,
	}
}

// OrderBy is the ORDER BY clause for the validated sort column with id as a
// tie-breaker, so consecutive pages stay disjoint.
func (p Params) OrderBy() clause.OrderBy {
	var cols []clause.OrderByColumn
	if p.SortBy != "" {
		cols = append(cols, clause.OrderByColumn{
			Column: clause.Column{Name: p.SortBy},
			Desc:   p.SortOrder == "DESC",
		})
	}
	if p.SortBy != "id" {
		cols = append(cols, clause.OrderByColumn{Column: clause.Column{Name: "id"}})
	}
	return clause.OrderBy{Columns: cols}
}

type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// Page is the list payload: rows plus pagination metadata.
type Page[T any] struct {
	Data       []T  `json:"data"`
	Pagination Meta `json:"pagination"`
}

func NewPage[T any](data []T, total int64, p Params) Page[T] {
	if data == nil {
		data = []T{}
	}
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return Page[T]{
		Data: data,
		Pagination: Meta{
			Page:       p.Page,
			Limit:      p.Limit,
			Total:      total,
			TotalPages: pages,
		},
	}
}
