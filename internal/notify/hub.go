// Package notify pushes messages to buyers connected over WebSocket.
package notify

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 16
)

// Message is the frame written to a client.
type Message struct {
	Method    string `json:"method"`
	Timestamp string `json:"timestamp"`
	Payload   any    `json:"payload"`
}

// Client is one live connection.
type Client struct {
	email string
	conn  *websocket.Conn
	send  chan []byte
	once  sync.Once
}

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub keeps at most one connection per buyer email. A newer connection for
// the same email replaces the older one.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewHub(allowedOrigins []string, logger *slog.Logger) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || len(allowedOrigins) == 0 {
				return true
			}
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			logger.Warn("rejected websocket from disallowed origin", "origin", origin)
			return false
		},
	}
	return h
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	old := h.clients[c.email]
	h.clients[c.email] = c
	h.mu.Unlock()

	if old != nil && old != c {
		old.close()
	}
}

// Unregister removes c only if it is still the registered connection for its
// email, so a stale disconnect cannot evict a newer connection.
func (h *Hub) Unregister(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.email] != c {
		return false
	}
	delete(h.clients, c.email)
	c.close()
	return true
}

func (h *Hub) Lookup(email string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[email]
	return c, ok
}

// Notify queues a message for email without blocking. It is a no-op when the
// buyer is not connected or the connection is not keeping up.
func (h *Hub) Notify(email, method string, payload any) {
	data, err := json.Marshal(Message{
		Method:    method,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal notification", "method", method, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[email]
	if !ok {
		h.logger.Debug("notification dropped, user not connected", "email", email, "method", method)
		return
	}
	select {
	case c.send <- data:
	default:
		h.logger.Warn("notification dropped, client too slow", "email", email, "method", method)
	}
}

// ServeWS upgrades the request and registers the connection under email.
// The caller authenticates the request.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, email string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &Client{
		email: email,
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
	}
	h.Register(c)
	h.logger.Debug("client connected", "email", email)

	go h.writePump(c)
	go h.readPump(c)
}

// Close drops every connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for email, c := range h.clients {
		c.close()
		delete(h.clients, email)
	}
}

// readPump only watches for the peer going away.
func (h *Hub) readPump(c *Client) {
	defer func() {
		h.Unregister(c)
		c.conn.Close()
		h.logger.Debug("client disconnected", "email", c.email)
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
