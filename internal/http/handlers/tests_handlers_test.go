package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/qapilot/backend/internal/ai"
	"github.com/qapilot/backend/internal/http/middleware"
)

func automationRouter(h *Handler, agentKey string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/tests", h.TestCreate)
	r.GET("/api/tests", h.TestsList)
	r.GET("/api/tests/:id", h.TestGet)
	r.GET("/api/agents/status", h.AgentsStatus)
	r.GET("/screenshots/:name", h.ScreenshotServe)

	agent := r.Group("/api")
	agent.Use(middleware.AgentKey(agentKey))
	{
		agent.POST("/tests/:id/logs", h.TestLogs)
		agent.POST("/tests/:id/complete", h.TestComplete)
		agent.POST("/tests/:id/screenshot", h.TestScreenshot)
	}
	return r
}

func TestAutomationDisabledWithoutStore(t *testing.T) {
	h := newTestHandler(stubFetcher{}, &ai.MockGenerator{})
	r := automationRouter(h, "")

	paths := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/tests", map[string]any{"command": "open page"}},
		{http.MethodGet, "/api/tests", nil},
		{http.MethodGet, "/api/tests/1", nil},
		{http.MethodPost, "/api/tests/1/logs", map[string]any{"logs": "x"}},
		{http.MethodPost, "/api/tests/1/complete", map[string]any{"status": "completed"}},
	}
	for _, tt := range paths {
		w := doJSON(t, r, tt.method, tt.path, tt.body, nil)
		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s %s: status = %d, want 503", tt.method, tt.path, w.Code)
		}
		if code := errorCode(t, w); code != "SERVICE_DISABLED" {
			t.Fatalf("%s %s: code = %q", tt.method, tt.path, code)
		}
	}
}

func TestAgentKeyRequired(t *testing.T) {
	h := newTestHandler(stubFetcher{}, &ai.MockGenerator{})
	r := automationRouter(h, "secret")

	w := doJSON(t, r, http.MethodPost, "/api/tests/1/logs", map[string]any{"logs": "x"}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: status = %d, want 401", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/tests/1/logs", map[string]any{"logs": "x"},
		map[string]string{"X-Agent-Key": "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d, want 401", w.Code)
	}

	// The correct key clears the middleware; the disabled store answers.
	w = doJSON(t, r, http.MethodPost, "/api/tests/1/logs", map[string]any{"logs": "x"},
		map[string]string{"X-Agent-Key": "secret"})
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("correct key: status = %d, want 503", w.Code)
	}
}

func TestAgentsStatusEmpty(t *testing.T) {
	h := newTestHandler(stubFetcher{}, &ai.MockGenerator{})
	r := automationRouter(h, "")

	w := doJSON(t, r, http.MethodGet, "/api/agents/status", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Count  int   `json:"count"`
		Agents []any `json:"agents"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Count != 0 || len(body.Agents) != 0 {
		t.Fatalf("expected empty status, got %+v", body)
	}
}

func TestScreenshotServe(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "test_1.png"), []byte("png"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	h := newTestHandler(stubFetcher{}, &ai.MockGenerator{})
	h.ScreenshotDir = dir
	r := automationRouter(h, "")

	w := doJSON(t, r, http.MethodGet, "/screenshots/test_1.png", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/screenshots/missing.png", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing file: status = %d, want 404", w.Code)
	}
}
