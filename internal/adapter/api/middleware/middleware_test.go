package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"

	"pasarmarket/internal/infrastructure/ratelimit"
)

type staticVerifier map[string]string

func (v staticVerifier) VerifyToken(_ context.Context, token string) (string, error) {
	uid, ok := v[token]
	if !ok {
		return "", errors.New("unknown token")
	}
	return uid, nil
}

func echoUID(c echo.Context) error {
	uid, _ := c.Get("uid").(string)
	return c.String(http.StatusOK, uid)
}

func serve(e *echo.Echo, target, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate(t *testing.T) {
	auth := NewAuthMiddleware(staticVerifier{"good": "user-1"})
	e := echo.New()
	e.GET("/me", echoUID, auth.Authenticate)
	e.GET("/ws", echoUID, auth.AuthenticateWebSocket)

	rec := serve(e, "/me", "Bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(e, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "/me", "Token good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "/me", "Bearer bad").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "/me?token=good", "").Code)

	rec = serve(e, "/ws?token=good", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestAdminOnly(t *testing.T) {
	auth := NewAuthMiddleware(staticVerifier{"ops": "operator-1", "user": "user-1"})
	admin := NewAdminMiddleware([]string{"operator-1"})
	e := echo.New()
	e.GET("/admin", echoUID, auth.Authenticate, admin.AdminOnly)

	assert.Equal(t, http.StatusOK, serve(e, "/admin", "Bearer ops").Code)
	assert.Equal(t, http.StatusForbidden, serve(e, "/admin", "Bearer user").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(e, "/admin", "").Code)
}

func TestRateLimitSetsRetryAfter(t *testing.T) {
	auth := NewAuthMiddleware(staticVerifier{"a": "user-a"})
	e := echo.New()
	e.GET("/buy", echoUID, auth.Authenticate, RateLimit(ratelimit.NewRateLimiter(6, 1)))

	assert.Equal(t, http.StatusOK, serve(e, "/buy", "Bearer a").Code)

	rec := serve(e, "/buy", "Bearer a")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
