package option

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/careops/valuemed/pkg/db/pagination"
)

// QueryOption mutates a gorm statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(stmt *gorm.DB) *gorm.DB { return f(stmt) }

type Operator string

const (
	EQ  Operator = "="
	GT  Operator = ">"
	GTE Operator = ">="
	LT  Operator = "<"
	LTE Operator = "<="
)

type Condition struct {
	Field    string
	Operator Operator
	Value    any
}

func ApplyOperator(cond Condition) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		if cond.Field == "" || cond.Operator == "" {
			return stmt
		}
		return stmt.Where(fmt.Sprintf("%s %s ?", cond.Field, cond.Operator), cond.Value)
	})
}

type QuerySortBy struct {
	SortBy  string
	OrderBy string
	Allow   map[string]bool
}

func WithQuerySortBy(sortBy, orderBy string, allow map[string]bool) QuerySortBy {
	return QuerySortBy{SortBy: sortBy, OrderBy: orderBy, Allow: allow}
}

// WithSortBy orders by the requested column when it is allow-listed,
// defaulting to created_at desc.
func WithSortBy(sort QuerySortBy) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		column := strings.TrimSpace(sort.SortBy)
		if column == "" || !sort.Allow[column] {
			column = "created_at"
		}
		direction := strings.ToLower(strings.TrimSpace(sort.OrderBy))
		if direction != "asc" && direction != "desc" {
			direction = "desc"
		}
		return stmt.Order(column + " " + direction)
	})
}

// ApplyPagination applies a cursor page to a query ordered by
// created_at desc, id desc. An unusable token falls back to the first
// page rather than failing the request.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		if page.PageToken != "" {
			cursor, err := pagination.DecodeCursor(page.PageToken)
			if err == nil && cursor != nil && cursor.CreatedAt != "" {
				if at, terr := time.Parse(time.RFC3339Nano, cursor.CreatedAt); terr == nil {
					stmt = stmt.Where(
						"created_at < ? OR (created_at = ? AND id < ?)",
						at, at, cursor.ID,
					)
				}
			}
		}
		// fetch one extra row so callers can detect another page
		return stmt.Limit(pagination.ClampSize(page.PageSize) + 1)
	})
}

func WithLimit(limit int) QueryOption {
	return queryOptionFunc(func(stmt *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return stmt
		}
		return stmt.Limit(limit)
	})
}
