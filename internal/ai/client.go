package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	cacheMu    sync.Mutex
	cacheStore = map[string]cacheEntry{}
	cacheTTL   = 60 * time.Second
)

type cacheEntry struct {
	value string
	exp   time.Time
}

// GenerationError carries the opaque downstream failure text.
type GenerationError struct {
	Message string
}

func (e GenerationError) Error() string {
	return "generation failed: " + e.Message
}

type RateLimitError struct {
	RetryAfter time.Duration
}

func (r RateLimitError) Error() string {
	if r.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s", r.RetryAfter)
	}
	return "rate limited"
}

// Client talks to an OpenAI-compatible chat-completions endpoint.
type Client struct {
	BaseURL string
	APIKey  string
}

func (c Client) Complete(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(c.BaseURL) == "" {
		return "", fmt.Errorf("OPENAI_BASE_URL is not set")
	}
	if strings.TrimSpace(req.Model) == "" {
		return "", fmt.Errorf("model is required")
	}

	key := cacheKey(req)
	if v, ok := cacheGet(key); ok {
		return v, nil
	}

	payload := struct {
		Model               string          `json:"model"`
		Messages            []Message       `json:"messages"`
		MaxCompletionTokens int             `json:"max_completion_tokens,omitempty"`
		Temperature         float64         `json:"temperature,omitempty"`
		ResponseFormat      *responseFormat `json:"response_format,omitempty"`
	}{
		Model:               req.Model,
		Messages:            req.Messages,
		MaxCompletionTokens: req.MaxCompletionTokens,
		Temperature:         req.Temperature,
	}
	if req.JSONResponse {
		payload.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	b, _ := json.Marshal(payload)
	url := strings.TrimRight(c.BaseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if strings.TrimSpace(c.APIKey) != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	timeout := 45 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining > 0 && remaining < timeout {
			timeout = remaining
		}
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", GenerationError{Message: "request timed out"}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", GenerationError{Message: "request timed out"}
		}
		return "", GenerationError{Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if resp.StatusCode == http.StatusTooManyRequests {
			if d := extractRetryAfter(errBody); d > 0 {
				return "", RateLimitError{RetryAfter: d}
			}
			return "", RateLimitError{}
		}
		return "", GenerationError{Message: fmt.Sprintf("%s: %v", resp.Status, errBody)}
	}

	var res struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return "", GenerationError{Message: err.Error()}
	}
	if len(res.Choices) == 0 {
		return "", GenerationError{Message: "empty response"}
	}
	answer := res.Choices[0].Message.Content
	cacheSet(key, answer)
	return answer, nil
}

type responseFormat struct {
	Type string `json:"type"`
}

func cacheKey(req Request) string {
	var b strings.Builder
	b.WriteString(req.Model)
	for _, m := range req.Messages {
		b.WriteString("|")
		b.WriteString(m.Role)
		b.WriteString(":")
		b.WriteString(m.Content)
	}
	return b.String()
}

func cacheGet(key string) (string, bool) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if e, ok := cacheStore[key]; ok {
		if time.Now().Before(e.exp) {
			return e.value, true
		}
		delete(cacheStore, key)
	}
	return "", false
}

func cacheSet(key, value string) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	cacheStore[key] = cacheEntry{
		value: value,
		exp:   time.Now().Add(cacheTTL),
	}
}

func extractRetryAfter(errBody map[string]any) time.Duration {
	errObj, ok := errBody["error"].(map[string]any)
	if !ok {
		return 0
	}
	details, ok := errObj["details"].([]any)
	if !ok {
		return 0
	}
	for _, d := range details {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if t, ok := m["@type"].(string); ok && strings.Contains(t, "RetryInfo") {
			if s, ok := m["retryDelay"].(string); ok {
				if dur, err := time.ParseDuration(s); err == nil {
					return dur
				}
			}
		}
	}
	return 0
}
