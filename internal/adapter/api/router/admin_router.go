package router

import (
	"github.com/labstack/echo/v4"

	"pasarmarket/internal/adapter/api/handler"
	"pasarmarket/internal/adapter/api/middleware"
)

func SetupAdminRouter(e *echo.Echo, adminHandler *handler.AdminHandler, authMiddleware *middleware.AuthMiddleware, adminMiddleware *middleware.AdminMiddleware) {
	admin := e.Group("/market/admin")
	admin.Use(authMiddleware.Authenticate)
	admin.Use(adminMiddleware.AdminOnly)

	admin.POST("/wallets/:accountId/reconcile", adminHandler.ReconcileWallet)
	admin.POST("/wallets/:accountId/freeze", adminHandler.FreezeFunds)
	admin.POST("/wallets/:accountId/unfreeze", adminHandler.UnfreezeFunds)
	admin.POST("/withdrawals/:id/complete", adminHandler.CompleteWithdrawal)
	admin.POST("/withdrawals/:id/reject", adminHandler.RejectWithdrawal)
	admin.POST("/escrow/sweep", adminHandler.SweepEscrow)
}
