package handler

import (
	"github.com/labstack/echo/v4"

	"pasarmarket/pkg/errors"
)

// Handlers groups every HTTP handler the router mounts.
type Handlers struct {
	Listing   *ListingHandler
	Order     *OrderHandler
	Escrow    *EscrowHandler
	Review    *ReviewHandler
	Wallet    *WalletHandler
	Admin     *AdminHandler
	Health    *HealthHandler
	WebSocket *WebSocketHandler
}

func currentUser(c echo.Context) (string, error) {
	uid, ok := c.Get("uid").(string)
	if !ok || uid == "" {
		return "", errors.Unauthorized("User not authenticated", nil)
	}
	return uid, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.InvalidArgument("Invalid request body", err)
	}
	return c.Validate(req)
}
