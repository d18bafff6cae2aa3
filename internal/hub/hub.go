// Package hub pushes test-run events to connected dashboards and tracks
// which browser agents are online.
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	RoleDashboard = "dashboard"
	RoleAgent     = "agent"
)

// Event is the frame pushed to dashboard clients.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Client is one connected websocket peer.
type Client struct {
	Role   string
	Name   string
	Conn   *websocket.Conn
	Send   chan []byte
	joined time.Time
}

// AgentInfo is the status view of a connected agent.
type AgentInfo struct {
	Name      string    `json:"name"`
	Connected time.Time `json:"connected_at"`
}

// Hub maintains the set of connected clients and broadcasts events to the
// dashboard role. Send channels are buffered; a client that cannot keep up
// is dropped rather than blocking the broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	logger  zerolog.Logger
}

func New(logger zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		logger:  logger,
	}
}

// Register adds a connection under the given role and returns its client.
// The caller owns the read loop; the hub owns writes via WritePump.
func (h *Hub) Register(role, name string, conn *websocket.Conn) *Client {
	c := &Client{
		Role:   role,
		Name:   name,
		Conn:   conn,
		Send:   make(chan []byte, 32),
		joined: time.Now().UTC(),
	}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()

	h.logger.Debug().Str("role", role).Str("name", name).Msg("websocket client registered")
	return c
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if h.clients[c] {
		delete(h.clients, c)
		close(c.Send)
	}
	h.mu.Unlock()
}

// Broadcast sends an event to every dashboard client. Slow clients are
// disconnected.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := json.Marshal(Event{Type: eventType, Payload: payload})
	if err != nil {
		h.logger.Error().Err(err).Str("event", eventType).Msg("marshaling broadcast event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if c.Role != RoleDashboard {
			continue
		}
		select {
		case c.Send <- data:
		default:
			h.logger.Warn().Str("name", c.Name).Msg("dropping slow dashboard client")
			delete(h.clients, c)
			close(c.Send)
		}
	}
}

// AgentCount reports how many agents are connected.
func (h *Hub) AgentCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.Role == RoleAgent {
			n++
		}
	}
	return n
}

// Agents lists connected agents, for the status endpoint.
func (h *Hub) Agents() []AgentInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := []AgentInfo{}
	for c := range h.clients {
		if c.Role == RoleAgent {
			out = append(out, AgentInfo{Name: c.Name, Connected: c.joined})
		}
	}
	return out
}

// WritePump drains the client's send channel onto the connection. Run as a
// goroutine per client; returns when the hub closes the channel or the
// write fails.
func (c *Client) WritePump() {
	defer c.Conn.Close()
	for msg := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
}
