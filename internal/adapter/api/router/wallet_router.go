package router

import (
	"github.com/labstack/echo/v4"

	"pasarmarket/internal/adapter/api/handler"
	"pasarmarket/internal/adapter/api/middleware"
)

func SetupWalletRouter(e *echo.Echo, walletHandler *handler.WalletHandler, authMiddleware *middleware.AuthMiddleware) {
	wallet := e.Group("/market/wallet")
	wallet.Use(authMiddleware.Authenticate)
	wallet.GET("", walletHandler.GetWallet)
	wallet.GET("/entries", walletHandler.ListEntries)
	wallet.POST("/withdrawals", walletHandler.RequestWithdrawal)
	wallet.GET("/withdrawals", walletHandler.ListWithdrawals)
	wallet.GET("/withdrawals/:id", walletHandler.GetWithdrawal)
}
