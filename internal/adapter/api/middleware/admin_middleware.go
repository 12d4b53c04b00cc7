package middleware

import (
	"github.com/labstack/echo/v4"

	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/logger"
	"pasarmarket/pkg/response"
)

// AdminMiddleware admits only callers on the configured operator allow-list.
type AdminMiddleware struct {
	operators map[string]struct{}
}

func NewAdminMiddleware(operatorIDs []string) *AdminMiddleware {
	operators := make(map[string]struct{}, len(operatorIDs))
	for _, id := range operatorIDs {
		operators[id] = struct{}{}
	}
	return &AdminMiddleware{
		operators: operators,
	}
}

func (m *AdminMiddleware) AdminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		uid, ok := c.Get("uid").(string)
		if !ok || uid == "" {
			return response.Error(c, errors.Unauthorized("Authentication required", nil))
		}

		if _, ok := m.operators[uid]; !ok {
			logger.Warn("Operator route %s denied for %s", c.Path(), uid)
			return response.Error(c, errors.PermissionDenied("Operator privileges required"))
		}

		return next(c)
	}
}
