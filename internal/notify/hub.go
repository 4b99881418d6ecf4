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
	writeTimeout        = 5 * time.Second
	defaultPingInterval = 30 * time.Second
)

// Hub pushes order-change notifications to connected websocket clients.
// Clients that cannot keep up, or stop answering pings, are dropped rather
// than allowed to block the broadcast path.
type Hub struct {
	logger       *slog.Logger
	upgrader     websocket.Upgrader
	pingInterval time.Duration

	mu      sync.Mutex
	clients map[*client]struct{}
}

// client serializes writes: pings and broadcasts target the same connection
// from different goroutines.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(messageType int, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, payload)
}

type Option func(*Hub)

// WithPingInterval overrides the keepalive cadence, mainly for tests.
func WithPingInterval(interval time.Duration) Option {
	return func(h *Hub) { h.pingInterval = interval }
}

func NewHub(logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard is served from a different origin in development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		pingInterval: defaultPingInterval,
		clients:      make(map[*client]struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle upgrades the request and registers the client until it disconnects
// or stops answering pings.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	h.logger.DebugContext(r.Context(), "websocket client connected", "clients", count)

	go h.readLoop(c)
	go h.pingLoop(c)
}

// readLoop discards inbound messages, the socket exists for server push only.
// Reading also services pong frames; a client that answers no ping within two
// intervals trips the read deadline and is deregistered.
func (h *Hub) readLoop(c *client) {
	defer h.remove(c)

	pongWait := 2 * h.pingInterval
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

func (h *Hub) pingLoop(c *client) {
	ticker := time.NewTicker(h.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		if err := c.write(websocket.PingMessage, nil); err != nil {
			h.remove(c)
			return
		}
	}
}

// Broadcast sends an orders-changed notification with the current total to
// every connected client.
func (h *Hub) Broadcast(total int) {
	payload, err := json.Marshal(map[string]any{
		"event": "orders",
		"count": total,
	})
	if err != nil {
		h.logger.Warn("marshal notification", "error", err)
		return
	}

	for _, c := range h.snapshot() {
		if err := c.write(websocket.TextMessage, payload); err != nil {
			h.remove(c)
		}
	}
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	conns := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.conn.Close()
	}
}

func (h *Hub) snapshot() []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	return conns
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if ok {
		_ = c.conn.Close()
	}
}
