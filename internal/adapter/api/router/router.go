package router

import (
	"github.com/labstack/echo/v4"

	"pasarmarket/internal/adapter/api/handler"
	"pasarmarket/internal/adapter/api/middleware"
	"pasarmarket/internal/infrastructure/ratelimit"
)

func Setup(
	e *echo.Echo,
	h handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	adminMiddleware *middleware.AdminMiddleware,
	purchaseLimiter *ratelimit.RateLimiter,
) {
	SetupHealthRouter(e, h.Health)
	SetupMarketRouter(e, h, authMiddleware, purchaseLimiter)
	SetupWalletRouter(e, h.Wallet, authMiddleware)
	SetupAdminRouter(e, h.Admin, authMiddleware, adminMiddleware)
	SetupWebSocketRouter(e, h.WebSocket, authMiddleware)
}
