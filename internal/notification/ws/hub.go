// Package ws pushes live events to connected staff dashboards over
// WebSocket.
package ws

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"raccordement_backend/platform/httpkit"
	"raccordement_backend/platform/logger"
	"raccordement_backend/platform/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 32
)

// Message is the envelope every pushed event uses.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Authenticator turns the token given on the upgrade request into an
// identity.
type Authenticator func(token string) (httpkit.Identity, error)

type client struct {
	userID uuid.UUID
	roles  []string
	conn   *websocket.Conn
	send   chan []byte
	once   sync.Once

	// mu guards send against a concurrent close.
	mu     sync.Mutex
	closed bool
}

func (c *client) hasRole(role string) bool {
	for _, r := range c.roles {
		if r == role {
			return true
		}
	}
	return false
}

type Hub struct {
	mu       sync.RWMutex
	clients  map[uuid.UUID]map[*client]struct{}
	upgrader websocket.Upgrader
	auth     Authenticator
	log      *logger.Logger
}

// NewHub accepts upgrades from the given origins. An empty list accepts any
// origin.
func NewHub(auth Authenticator, allowedOrigins []string, log *logger.Logger) *Hub {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimRight(o, "/")] = true
	}
	return &Hub{
		clients: make(map[uuid.UUID]map[*client]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[strings.TrimRight(origin, "/")]
			},
		},
		auth: auth,
		log:  log,
	}
}

// Handler upgrades GET /api/v1/ws. The access token comes from the token
// query parameter since browsers cannot set headers on a WebSocket.
func (h *Hub) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("token")
		if raw == "" {
			raw = strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
		}
		if raw == "" {
			httpkit.Error(c, http.StatusUnauthorized, "missing token", nil)
			return
		}
		identity, err := h.auth(raw)
		if err != nil {
			httpkit.Error(c, http.StatusUnauthorized, "invalid token", nil)
			return
		}

		conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			h.log.Warn("websocket upgrade failed", "error", err)
			return
		}

		cl := &client{
			userID: identity.UserID(),
			roles:  identity.Roles(),
			conn:   conn,
			send:   make(chan []byte, sendBuffer),
		}
		h.register(cl)
		go h.writePump(cl)

		h.deliver(cl, encode("connected", gin.H{"userId": cl.userID}))
		h.readPump(cl)
	}
}

// SendToUser pushes to every socket the user has open.
func (h *Hub) SendToUser(userID uuid.UUID, msgType string, data any) {
	payload := encode(msgType, data)
	if payload == nil {
		return
	}
	for _, c := range h.snapshot(func(c *client) bool { return c.userID == userID }) {
		h.deliver(c, payload)
	}
}

// Broadcast pushes to every connected staff member.
func (h *Hub) Broadcast(msgType string, data any) {
	payload := encode(msgType, data)
	if payload == nil {
		return
	}
	for _, c := range h.snapshot(func(*client) bool { return true }) {
		h.deliver(c, payload)
	}
}

// BroadcastToRole pushes to connected users holding role.
func (h *Hub) BroadcastToRole(role, msgType string, data any) {
	payload := encode(msgType, data)
	if payload == nil {
		return
	}
	for _, c := range h.snapshot(func(c *client) bool { return c.hasRole(role) }) {
		h.deliver(c, payload)
	}
}

// Connections returns the number of open sockets.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Close disconnects everyone.
func (h *Hub) Close() {
	for _, c := range h.snapshot(func(*client) bool { return true }) {
		h.unregister(c)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	set, ok := h.clients[c.userID]
	if !ok {
		set = make(map[*client]struct{})
		h.clients[c.userID] = set
	}
	set[c] = struct{}{}
	h.mu.Unlock()
	metrics.WSConnected()
	h.log.Info("websocket connected", "userId", c.userID)
}

func (h *Hub) unregister(c *client) {
	c.once.Do(func() {
		h.mu.Lock()
		if set, ok := h.clients[c.userID]; ok {
			delete(set, c)
			if len(set) == 0 {
				delete(h.clients, c.userID)
			}
		}
		h.mu.Unlock()
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()
		metrics.WSDisconnected()
		h.log.Info("websocket disconnected", "userId", c.userID)
	})
}

func (h *Hub) snapshot(match func(*client) bool) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*client
	for _, set := range h.clients {
		for c := range set {
			if match(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

// deliver drops clients whose buffer is full.
func (h *Hub) deliver(c *client, payload []byte) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	full := false
	select {
	case c.send <- payload:
	default:
		full = true
	}
	c.mu.Unlock()

	if full {
		h.log.Warn("websocket client too slow, dropping", "userId", c.userID)
		h.unregister(c)
	}
}

func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
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

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

func encode(msgType string, data any) []byte {
	payload, err := json.Marshal(Message{Type: msgType, Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		return nil
	}
	return payload
}
