package utils

import "strconv"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Pagination is the metadata returned next to a page of results.
type Pagination struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"total_pages"`
}

// ParsePagination reads page and limit query values, falling back to defaults
// for missing or out-of-range input.
func ParsePagination(pageStr, limitStr string) (page, limit int) {
	page, limit = 1, DefaultPageSize
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= MaxPageSize {
		limit = l
	}
	return page, limit
}

// Skip is the number of rows before the given page.
func Skip(page, limit int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * limit
}

// TotalPages is ceil(total/limit); zero when there is nothing to show.
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

// NewPagination assembles pagination metadata.
func NewPagination(total int64, page, limit int) Pagination {
	return Pagination{Total: total, Page: page, Limit: limit, TotalPages: TotalPages(total, limit)}
}
