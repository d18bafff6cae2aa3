package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/qapilot/backend/internal/ai"
	"github.com/qapilot/backend/internal/conversation"
	"github.com/qapilot/backend/internal/events"
	"github.com/qapilot/backend/internal/export"
	"github.com/qapilot/backend/internal/jira"
	"github.com/qapilot/backend/internal/models"
)

// @Summary Create a conversation
// @Tags conversations
// @Produce json
// @Success 200 {object} models.Conversation
// @Router /api/conversations [post]
func (h *Handler) ConversationCreate(c *gin.Context) {
	conv := h.Conversations.Create(sessionID(c))
	c.JSON(http.StatusOK, conv)
}

// @Summary List the session's conversations
// @Tags conversations
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/conversations [get]
func (h *Handler) ConversationsList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"conversations": h.Conversations.ListBySession(sessionID(c))})
}

func (h *Handler) ConversationGet(c *gin.Context) {
	conv, err := h.Conversations.Get(c.Param("id"))
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
		return
	}
	c.JSON(http.StatusOK, conv)
}

type MessageRequest struct {
	ServerURL    string `json:"server_url" validate:"required,url"`
	Username     string `json:"username" validate:"required"`
	APIToken     string `json:"api_token" validate:"required"`
	TicketID     string `json:"ticket_id" validate:"required"`
	CustomPrompt string `json:"custom_prompt"`
	Model        string `json:"model"`
}

// @Summary Post a message: fetch the ticket and generate test cases
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "conversation id"
// @Param request body MessageRequest true "message"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/conversations/{id}/messages [post]
func (h *Handler) MessageCreate(c *gin.Context) {
	conversationID := c.Param("id")
	if _, err := h.Conversations.Get(conversationID); err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
		return
	}

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	creds := jira.Credentials{ServerURL: req.ServerURL, Username: req.Username, APIToken: req.APIToken}
	ticket, err := h.Jira.FetchTicket(c.Request.Context(), creds, req.TicketID)
	if err != nil {
		h.writeJiraError(c, err)
		return
	}

	conv, err := h.Conversations.Append(conversationID, models.ConversationMessage{
		Role:    models.RoleUser,
		Content: fmt.Sprintf("Generate test cases for %s", ticket.Key),
		Ticket:  &ticket,
		Focus:   req.CustomPrompt,
	})
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
		return
	}

	text, err := h.TestGen.Generate(c.Request.Context(), ticket, req.CustomPrompt, req.Model)
	if err != nil {
		h.appendErrorMessage(conversationID, err)
		h.writeGenerationError(c, err)
		return
	}

	conv, err = h.Conversations.Append(conversationID, models.ConversationMessage{
		Role:    models.RoleAssistant,
		Content: text,
	})
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
		return
	}

	h.Events.Produce(c.Request.Context(), events.GenerationCompleted, map[string]any{
		"conversation_id": conversationID,
		"ticket":          ticket.Key,
	})

	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
		"message":      conv.Messages[len(conv.Messages)-1],
		"jira_story":   ticket,
	})
}

type RefineRequest struct {
	Feedback string `json:"feedback" validate:"required"`
	Model    string `json:"model"`
}

// @Summary Refine previously generated test cases
// @Tags conversations
// @Accept json
// @Produce json
// @Param id path string true "conversation id"
// @Param request body RefineRequest true "feedback"
// @Success 200 {object} map[string]any
// @Router /api/conversations/{id}/refine [post]
func (h *Handler) Refine(c *gin.Context) {
	conversationID := c.Param("id")

	var req RefineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	conv, err := h.Conversations.Get(conversationID)
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
		return
	}

	text, err := h.TestGen.Refine(c.Request.Context(), conv.Messages, req.Feedback, req.Model)
	if err != nil {
		h.appendErrorMessage(conversationID, err)
		h.writeGenerationError(c, err)
		return
	}

	if _, err := h.Conversations.Append(conversationID, models.ConversationMessage{
		Role:    models.RoleUser,
		Content: req.Feedback,
	}); err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
		return
	}
	conv, err = h.Conversations.Append(conversationID, models.ConversationMessage{
		Role:    models.RoleAssistant,
		Content: text,
	})
	if err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Conversation not found", nil)
		return
	}

	h.Events.Produce(c.Request.Context(), events.RefinementCompleted, map[string]any{
		"conversation_id": conversationID,
	})

	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
		"message":      conv.Messages[len(conv.Messages)-1],
	})
}

type ExportRequest struct {
	TestCases []models.TestCase `json:"test_cases" validate:"required,min=1"`
}

// @Summary Export test cases as CSV or JSON
// @Tags export
// @Accept json
// @Produce json
// @Param format path string true "csv or json"
// @Param request body ExportRequest true "test cases"
// @Success 200 {string} string
// @Failure 400 {object} map[string]any
// @Router /api/export/{format} [post]
func (h *Handler) Export(c *gin.Context) {
	var req ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "No test cases to export", err.Error())
		return
	}

	payload, contentType, filename, err := export.Render(c.Param("format"), req.TestCases)
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Unsupported format", err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, contentType, payload)
}

// appendErrorMessage records a failed generation in the history so the
// transcript shows what happened.
func (h *Handler) appendErrorMessage(conversationID string, genErr error) {
	if _, err := h.Conversations.Append(conversationID, models.ConversationMessage{
		Role:    models.RoleError,
		Content: genErr.Error(),
	}); err != nil && !errors.Is(err, conversation.ErrNotFound) {
		h.Logger.Error().Err(err).Str("conversation_id", conversationID).Msg("recording error message")
	}
}

func (h *Handler) writeJiraError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, jira.ErrUnauthorized):
		writeError(c, http.StatusUnauthorized, "UNAUTHORIZED_JIRA", "Jira authentication failed", nil)
	case errors.Is(err, jira.ErrNotFound):
		writeError(c, http.StatusNotFound, "TICKET_NOT_FOUND", "Ticket not found", nil)
	case errors.Is(err, jira.ErrTimeout):
		writeError(c, http.StatusGatewayTimeout, "JIRA_TIMEOUT", "Jira request timed out", nil)
	case errors.Is(err, jira.ErrMalformed):
		writeError(c, http.StatusBadGateway, "JIRA_UNREACHABLE", "Malformed Jira response", err.Error())
	default:
		writeError(c, http.StatusBadGateway, "JIRA_UNREACHABLE", "Jira is unreachable", err.Error())
	}
}

func (h *Handler) writeGenerationError(c *gin.Context, err error) {
	var rateLimit ai.RateLimitError
	if errors.As(err, &rateLimit) {
		c.Header("Retry-After", fmt.Sprintf("%d", int(rateLimit.RetryAfter/time.Second)))
		writeError(c, http.StatusTooManyRequests, "GENERATION_ERROR", "Generation service rate limited", err.Error())
		return
	}
	writeError(c, http.StatusBadGateway, "GENERATION_ERROR", "Test case generation failed", err.Error())
}
