package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pasarmarket/internal/domain/service"
	"pasarmarket/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	sendBufferSize = 32
)

// Client represents a WebSocket connection client
type Client struct {
	UserID string
	Conn   *websocket.Conn
	Send   chan []byte
}

func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBufferSize),
	}
}

// Manager tracks one live connection per user and pushes order and escrow
// events to them. It implements service.Notifier.
type Manager struct {
	clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	mutex      sync.RWMutex
	done       chan struct{}
	stopOnce   sync.Once
}

func NewManager() *Manager {
	return &Manager{
		clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run handles registrations until ctx is done, then closes every client.
// Add and Remove stop blocking once Run has returned.
func (m *Manager) Run(ctx context.Context) error {
	defer m.stopOnce.Do(func() { close(m.done) })
	for {
		select {
		case client := <-m.Register:
			m.mutex.Lock()
			if old, ok := m.clients[client.UserID]; ok && old != client {
				close(old.Send)
			}
			m.clients[client.UserID] = client
			m.mutex.Unlock()
			logger.Debug("websocket client registered: %s", client.UserID)

		case client := <-m.Unregister:
			m.mutex.Lock()
			if current, ok := m.clients[client.UserID]; ok && current == client {
				delete(m.clients, client.UserID)
				close(client.Send)
			}
			m.mutex.Unlock()
			logger.Debug("websocket client unregistered: %s", client.UserID)

		case <-ctx.Done():
			m.mutex.Lock()
			for id, client := range m.clients {
				close(client.Send)
				delete(m.clients, id)
			}
			m.mutex.Unlock()
			return nil
		}
	}
}

// Add registers client. It reports false when the manager has stopped.
func (m *Manager) Add(client *Client) bool {
	select {
	case m.Register <- client:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) Remove(client *Client) {
	select {
	case m.Unregister <- client:
	case <-m.done:
	}
}

// SendToUser queues message for userID. It reports false when the user is not
// connected or their buffer is full; a slow reader never blocks the caller.
func (m *Manager) SendToUser(userID string, message []byte) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	client, ok := m.clients[userID]
	if !ok {
		return false
	}
	select {
	case client.Send <- message:
		return true
	default:
		logger.Warn("websocket buffer full, dropping message for %s", userID)
		return false
	}
}

func (m *Manager) Connected(userID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, ok := m.clients[userID]
	return ok
}

// Notify delivers the event to every connected recipient. Offline recipients
// are skipped; delivery is best effort.
func (m *Manager) Notify(ctx context.Context, event service.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	for _, userID := range event.Recipients {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.SendToUser(userID, payload)
	}
	return nil
}

// ReadPump drains the connection so pings and close frames are processed.
// Clients never send commands; anything they send is ignored.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.Remove(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(512)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("websocket read error for %s: %v", c.UserID, err)
			}
			return
		}
	}
}

// WritePump sends queued messages and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("websocket write error for %s: %v", c.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
