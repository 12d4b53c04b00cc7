package handler

import (
	"net/http"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	ws "pasarmarket/internal/infrastructure/websocket"
	"pasarmarket/pkg/errors"
	"pasarmarket/pkg/logger"
	"pasarmarket/pkg/response"
)

type WebSocketHandler struct {
	wsManager *ws.Manager
	upgrader  gorillaws.Upgrader
}

// NewWebSocketHandler accepts any origin when allowedOrigins is empty.
func NewWebSocketHandler(wsManager *ws.Manager, allowedOrigins []string) *WebSocketHandler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = struct{}{}
	}

	return &WebSocketHandler{
		wsManager: wsManager,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				_, ok := origins[r.Header.Get("Origin")]
				return ok
			},
		},
	}
}

// HandleWebSocket upgrades the connection and streams order and escrow
// events for the authenticated user.
func (h *WebSocketHandler) HandleWebSocket(c echo.Context) error {
	userID, err := currentUser(c)
	if err != nil {
		return response.Error(c, err)
	}

	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Warn("websocket upgrade failed for %s: %v", userID, err)
		return errors.Internal("Failed to upgrade connection", err)
	}

	client := ws.NewClient(userID, conn)
	if !h.wsManager.Add(client) {
		conn.Close()
		return nil
	}

	go client.WritePump()
	go client.ReadPump(h.wsManager)

	return nil
}
