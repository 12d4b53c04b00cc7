package router

import (
	"github.com/labstack/echo/v4"

	"pasarmarket/internal/adapter/api/handler"
	"pasarmarket/internal/adapter/api/middleware"
	"pasarmarket/internal/infrastructure/ratelimit"
)

func SetupMarketRouter(e *echo.Echo, h handler.Handlers, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	throttle := middleware.RateLimit(limiter)

	products := e.Group("/market/products")
	products.GET("", h.Listing.ListProducts)
	products.GET("/:id", h.Listing.GetProduct)
	products.POST("", h.Listing.CreateProduct, authMiddleware.Authenticate)
	products.PUT("/:id", h.Listing.UpdateProduct, authMiddleware.Authenticate)
	products.DELETE("/:id", h.Listing.DeleteProduct, authMiddleware.Authenticate)
	products.POST("/:id/relist", h.Listing.RelistProduct, authMiddleware.Authenticate)
	products.POST("/:id/purchase", h.Order.Purchase, authMiddleware.Authenticate, throttle)

	market := e.Group("/market")
	market.Use(authMiddleware.Authenticate)
	market.GET("/my-products", h.Listing.ListMyProducts)
	market.GET("/transactions", h.Order.ListTransactions)

	orders := market.Group("/orders")
	orders.GET("/:id", h.Order.GetOrder)
	orders.POST("/:id/cancel", h.Order.CancelOrder)
	orders.POST("/:id/seller-confirm", h.Escrow.SellerConfirm, throttle)
	orders.POST("/:id/buyer-confirm", h.Escrow.BuyerConfirm, throttle)
	orders.POST("/:id/dispute", h.Escrow.OpenDispute)
	orders.GET("/:id/events", h.Escrow.ListEvents)
	orders.POST("/:id/review", h.Review.SubmitReview)
	orders.GET("/:id/review", h.Review.GetReview)
}
