package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"pasarmarket/pkg/clock"
)

type HealthHandler struct {
	clock         clock.Clock
	storageDriver string
}

func NewHealthHandler(clk clock.Clock, storageDriver string) *HealthHandler {
	return &HealthHandler{
		clock:         clk,
		storageDriver: storageDriver,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"storage": h.storageDriver,
		"time":    h.clock.Now().Format(time.RFC3339),
	})
}
