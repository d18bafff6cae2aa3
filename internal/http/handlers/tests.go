package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/qapilot/backend/internal/automation"
	"github.com/qapilot/backend/internal/db"
	"github.com/qapilot/backend/internal/events"
	"github.com/qapilot/backend/internal/models"
)

// requireStore gates the automation endpoints when no database is
// configured.
func (h *Handler) requireStore(c *gin.Context) bool {
	if h.Store == nil {
		writeError(c, http.StatusServiceUnavailable, "SERVICE_DISABLED", "Browser automation is not configured", nil)
		return false
	}
	return true
}

func runID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid test run id", nil)
		return 0, false
	}
	return id, true
}

type TestCreateRequest struct {
	Command string `json:"command" validate:"required"`
	Browser string `json:"browser"`
}

// @Summary Create a browser test run
// @Description Generates Playwright code from a natural-language command and persists the run
// @Tags tests
// @Accept json
// @Produce json
// @Param request body TestCreateRequest true "command"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/tests [post]
func (h *Handler) TestCreate(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}

	var req TestCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	browser := req.Browser
	if browser == "" {
		browser = automation.DetectBrowser(c.GetHeader("User-Agent"))
	}

	code, err := h.Pool.Submit(c.Request.Context(), req.Command, browser)
	if err != nil {
		h.writeGenerationError(c, err)
		return
	}

	id, err := h.Store.CreateTestRun(c.Request.Context(), req.Command, code, browser)
	if err != nil {
		h.Logger.Error().Err(err).Msg("persisting test run")
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to save test run", err.Error())
		return
	}

	payload := map[string]any{"id": id, "nl_command": req.Command, "browser": browser, "status": models.RunPending}
	h.Hub.Broadcast(events.TestRunCreated, payload)
	h.Events.Produce(c.Request.Context(), events.TestRunCreated, payload)

	c.JSON(http.StatusOK, gin.H{
		"test_id":        id,
		"generated_code": code,
		"browser":        browser,
		"status":         models.RunPending,
	})
}

// @Summary List test runs
// @Tags tests
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/tests [get]
func (h *Handler) TestsList(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	runs, err := h.Store.ListTestRuns(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list test runs", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"tests": runs})
}

func (h *Handler) TestGet(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	id, ok := runID(c)
	if !ok {
		return
	}
	run, err := h.Store.GetTestRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Test run not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load test run", err.Error())
		return
	}
	c.JSON(http.StatusOK, run)
}

// @Summary Connected agent status
// @Tags agents
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/agents/status [get]
func (h *Handler) AgentsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"count":  h.Hub.AgentCount(),
		"agents": h.Hub.Agents(),
	})
}

type LogsRequest struct {
	Logs   string `json:"logs" validate:"required"`
	Status string `json:"status"`
}

// TestLogs records execution output reported by an agent mid-run.
func (h *Handler) TestLogs(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	id, ok := runID(c)
	if !ok {
		return
	}

	var req LogsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	upd := db.TestRunUpdate{ExecutionLogs: &req.Logs}
	if req.Status != "" {
		upd.Status = &req.Status
	}
	if h.updateRun(c, id, upd) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type CompleteRequest struct {
	Status           string `json:"status" validate:"required"`
	Logs             string `json:"logs"`
	ScreenshotBase64 string `json:"screenshot_base64"`
}

// TestComplete is the agent's terminal callback. An inline base64 screenshot
// is written to the screenshot directory and its path recorded.
func (h *Handler) TestComplete(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	id, ok := runID(c)
	if !ok {
		return
	}

	var req CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	upd := db.TestRunUpdate{Status: &req.Status}
	if req.Logs != "" {
		upd.ExecutionLogs = &req.Logs
	}
	if req.ScreenshotBase64 != "" {
		path, err := h.saveScreenshotBytes(id, req.ScreenshotBase64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid screenshot data", err.Error())
			return
		}
		upd.ScreenshotPath = &path
	}
	if h.updateRun(c, id, upd) {
		return
	}

	payload := map[string]any{"id": id, "status": req.Status}
	h.Hub.Broadcast(events.TestRunFinished, payload)
	h.Events.Produce(c.Request.Context(), events.TestRunFinished, payload)

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// TestScreenshot accepts a multipart screenshot upload from an agent.
func (h *Handler) TestScreenshot(c *gin.Context) {
	if !h.requireStore(c) {
		return
	}
	id, ok := runID(c)
	if !ok {
		return
	}

	file, err := c.FormFile("screenshot")
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "screenshot file required", nil)
		return
	}

	if err := os.MkdirAll(h.ScreenshotDir, 0o755); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to store screenshot", err.Error())
		return
	}
	name := fmt.Sprintf("test_%d.png", id)
	path := filepath.Join(h.ScreenshotDir, name)
	if err := c.SaveUploadedFile(file, path); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to store screenshot", err.Error())
		return
	}

	if h.updateRun(c, id, db.TestRunUpdate{ScreenshotPath: &path}) {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "screenshot_path": path})
}

// ScreenshotServe serves a stored screenshot. The name is reduced to its
// basename so the handler cannot be walked out of the directory.
func (h *Handler) ScreenshotServe(c *gin.Context) {
	name := filepath.Base(c.Param("name"))
	path := filepath.Join(h.ScreenshotDir, name)
	if _, err := os.Stat(path); err != nil {
		writeError(c, http.StatusNotFound, "NOT_FOUND", "Screenshot not found", nil)
		return
	}
	c.File(path)
}

func (h *Handler) saveScreenshotBytes(id int64, encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(h.ScreenshotDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(h.ScreenshotDir, fmt.Sprintf("test_%d.png", id))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// updateRun applies the update and writes the error response on failure;
// returns true when a response was written.
func (h *Handler) updateRun(c *gin.Context, id int64, upd db.TestRunUpdate) bool {
	if err := h.Store.UpdateTestRun(c.Request.Context(), id, upd); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Test run not found", nil)
			return true
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to update test run", err.Error())
		return true
	}
	return false
}
