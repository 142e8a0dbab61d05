package pagination

import (
	"strconv"
	"strings"

	"github.com/contentflow/core/internal/pkg/response"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	DefaultPage = 1
	DefaultSize = 20
	MaxSize     = 100
)

// Query holds parsed pagination parameters.
type Query struct {
	Page int
	Size int
	// Order is a ready-to-use ORDER BY clause, empty when not requested.
	Order string
}

// FromContext extracts and validates pagination params from the request.
// sortable whitelists the columns accepted in ?sort=column or ?sort=-column.
func FromContext(c *gin.Context, sortable ...string) Query {
	page := parseIntOr(c.Query("page"), DefaultPage)
	size := parseIntOr(c.Query("size"), DefaultSize)

	if page < 1 {
		page = DefaultPage
	}
	if size < 1 {
		size = DefaultSize
	}
	if size > MaxSize {
		size = MaxSize
	}

	return Query{Page: page, Size: size, Order: orderClause(c.Query("sort"), sortable)}
}

func orderClause(raw string, sortable []string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	dir := "ASC"
	if strings.HasPrefix(raw, "-") {
		dir = "DESC"
		raw = raw[1:]
	}
	for _, col := range sortable {
		if col == raw {
			return col + " " + dir
		}
	}
	return ""
}

// Paginate applies limit/offset to a GORM query and returns the pagination metadata.
func Paginate[T any](db *gorm.DB, q Query, dest *[]T) (response.Pagination, error) {
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return response.Pagination{}, err
	}

	if q.Order != "" {
		db = db.Order(q.Order)
	}
	offset := (q.Page - 1) * q.Size
	if err := db.Offset(offset).Limit(q.Size).Find(dest).Error; err != nil {
		return response.Pagination{}, err
	}

	return Meta(total, q), nil
}

// Meta computes pagination metadata for total rows.
func Meta(total int64, q Query) response.Pagination {
	totalPage := int((total + int64(q.Size) - 1) / int64(q.Size))
	return response.Pagination{
		Total:       total,
		CurrentPage: q.Page,
		TotalPage:   totalPage,
		Size:        q.Size,
		HasNextPage: q.Page < totalPage,
	}
}

func parseIntOr(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
