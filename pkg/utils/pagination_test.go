package utils

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestGetPaginationParams(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/?page=3&pageSize=10", nil)
	p := GetPaginationParams(e.NewContext(req, httptest.NewRecorder()))
	assert.Equal(t, PaginationParams{Page: 3, PageSize: 10, Offset: 20}, p)

	req = httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	p = GetPaginationParams(e.NewContext(req, httptest.NewRecorder()))
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, MaxPageSize, p.PageSize)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	p = GetPaginationParams(e.NewContext(req, httptest.NewRecorder()))
	assert.Equal(t, DefaultPageSize, p.PageSize)
	assert.Equal(t, 0, p.Offset)
}
