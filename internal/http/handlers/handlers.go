package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/qapilot/backend/internal/automation"
	"github.com/qapilot/backend/internal/conversation"
	"github.com/qapilot/backend/internal/db"
	"github.com/qapilot/backend/internal/events"
	"github.com/qapilot/backend/internal/hub"
	"github.com/qapilot/backend/internal/jira"
	"github.com/qapilot/backend/internal/testgen"
)

const sessionHeader = "X-Session-Id"

type Handler struct {
	Conversations *conversation.Registry
	Jira          jira.Fetcher
	TestGen       *testgen.Service
	Store         *db.Store
	Pool          *automation.Pool
	Hub           *hub.Hub
	Events        events.EventProducer
	Validator     *validator.Validate
	Logger        zerolog.Logger
	ScreenshotDir string
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary List available generation models
// @Tags models
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/models [get]
func (h *Handler) ModelsList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models":  testgen.Models(),
		"default": testgen.DefaultModel,
	})
}

// sessionID reads the caller's session header, minting one when absent. The
// id is echoed back so the client can persist it.
func sessionID(c *gin.Context) string {
	sid := c.GetHeader(sessionHeader)
	if sid == "" {
		sid = uuid.NewString()
	}
	c.Writer.Header().Set(sessionHeader, sid)
	return sid
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
