package utils

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PaginationParams represents pagination parameters
type PaginationParams struct {
	Page     int
	PageSize int
	Offset   int
}

// GetPaginationParams reads page and pageSize, accepting limit as an alias for pageSize.
func GetPaginationParams(c echo.Context) PaginationParams {
	page, _ := strconv.Atoi(c.QueryParam("page"))

	rawSize := c.QueryParam("pageSize")
	if rawSize == "" {
		rawSize = c.QueryParam("limit")
	}
	pageSize, _ := strconv.Atoi(rawSize)

	return NewPagination(page, pageSize)
}

func NewPagination(page, pageSize int) PaginationParams {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	return PaginationParams{
		Page:     page,
		PageSize: pageSize,
		Offset:   (page - 1) * pageSize,
	}
}
