package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/qapilot/backend/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSDashboard upgrades a dashboard connection. Dashboards only receive
// broadcasts; inbound frames are drained and dropped.
func (h *Handler) WSDashboard(c *gin.Context) {
	h.serveWS(c, hub.RoleDashboard)
}

// WSAgent upgrades an agent connection, registering it for the status
// endpoint. Agents report results over the HTTP callbacks, not this socket.
func (h *Handler) WSAgent(c *gin.Context) {
	h.serveWS(c, hub.RoleAgent)
}

func (h *Handler) serveWS(c *gin.Context, role string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn().Err(err).Str("role", role).Msg("websocket upgrade failed")
		return
	}

	name := c.Query("name")
	if name == "" {
		name = c.ClientIP()
	}

	client := h.Hub.Register(role, name, conn)
	go client.WritePump()

	// Read loop: detect disconnects and discard inbound frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.Hub.Unregister(client)
}
