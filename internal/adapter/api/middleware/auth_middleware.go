package middleware

import (
	"context"
	"strings"

	"github.com/labstack/echo/v4"

	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/response"
)

// TokenVerifier resolves a bearer token to the caller's uid.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return m.authenticate(next, false)
}

// AuthenticateWebSocket also accepts ?token= since browsers cannot set
// headers on a websocket handshake.
func (m *AuthMiddleware) AuthenticateWebSocket(next echo.HandlerFunc) echo.HandlerFunc {
	return m.authenticate(next, true)
}

func (m *AuthMiddleware) authenticate(next echo.HandlerFunc, allowQuery bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		idToken := ""
		authHeader := c.Request().Header.Get("Authorization")
		switch {
		case authHeader != "":
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				return response.Error(c, errors.Unauthorized("Invalid authorization format", nil))
			}
			idToken = parts[1]
		case allowQuery:
			idToken = c.QueryParam("token")
		}
		if idToken == "" {
			return response.Error(c, errors.Unauthorized("Authorization header is required", nil))
		}

		uid, err := m.verifier.VerifyToken(c.Request().Context(), idToken)
		if err != nil || uid == "" {
			return response.Error(c, errors.Unauthorized("Invalid or expired token", err))
		}

		c.Set("uid", uid)
		return next(c)
	}
}
