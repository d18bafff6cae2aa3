package testgen

import (
	"strings"
	"testing"

	"github.com/qapilot/backend/internal/ai"
)

// fallbackEstimator has no tokenizer, so every estimate goes through the
// chars/3.5 path, which makes prompt token counts exact in tests.
func fallbackEstimator() *Estimator {
	return &Estimator{}
}

// messagesWithTokens builds a single message whose fallback estimate is
// exactly n tokens (n * 3.5 characters).
func messagesWithTokens(n int) []ai.Message {
	return []ai.Message{{Role: "user", Content: strings.Repeat("a", int(float64(n)*fallbackCharsPerToken))}}
}

func TestFallbackEstimateMonotonic(t *testing.T) {
	e := fallbackEstimator()
	prev := -1
	for _, size := range []int{0, 1, 10, 100, 1000, 10000} {
		got := e.EstimateTokens([]ai.Message{{Role: "user", Content: strings.Repeat("x", size)}})
		if got < prev {
			t.Fatalf("estimate decreased: %d chars -> %d tokens (prev %d)", size, got, prev)
		}
		prev = got
	}
}

func TestEstimateTokensFallbackFormula(t *testing.T) {
	e := fallbackEstimator()
	got := e.EstimateTokens([]ai.Message{
		{Role: "system", Content: strings.Repeat("a", 35)},
		{Role: "user", Content: strings.Repeat("b", 36)},
	})
	// (35+36)/3.5 = 20.28..., rounded down.
	if got != 20 {
		t.Fatalf("expected 20, got %d", got)
	}
}

func TestMaxCompletionTokensSmallPrompt(t *testing.T) {
	e := fallbackEstimator()
	// prompt 300 tokens, context 128000: available 127200, tier <500 -> 3000.
	got := e.MaxCompletionTokens(messagesWithTokens(300), "gpt-5")
	if got != 3000 {
		t.Fatalf("expected 3000, got %d", got)
	}
}

func TestMaxCompletionTokensLargePromptSmallWindow(t *testing.T) {
	e := fallbackEstimator()
	// prompt 1600 tokens, context 8192: available 6092, tier >=1500 -> 1500.
	got := e.MaxCompletionTokens(messagesWithTokens(1600), "gpt-4")
	if got != 1500 {
		t.Fatalf("expected 1500, got %d", got)
	}
}

func TestMaxCompletionTokensFloorWinsOverNegativeAvailability(t *testing.T) {
	e := fallbackEstimator()
	// prompt 9000 tokens against an 8192 window: available is -1308, yet the
	// 500 floor still applies. Known best-effort behavior: the request may
	// exceed the window and the downstream service rejects it.
	got := e.MaxCompletionTokens(messagesWithTokens(9000), "gpt-4")
	if got != 500 {
		t.Fatalf("expected 500, got %d", got)
	}
}

func TestMaxCompletionTokensMediumTier(t *testing.T) {
	e := fallbackEstimator()
	// prompt 1000 tokens, context 128000 -> tier [500,1500) caps at 2500.
	got := e.MaxCompletionTokens(messagesWithTokens(1000), "gpt-5")
	if got != 2500 {
		t.Fatalf("expected 2500, got %d", got)
	}
}

func TestMaxCompletionTokensAlwaysInBounds(t *testing.T) {
	e := fallbackEstimator()
	for _, n := range []int{0, 1, 499, 500, 1499, 1500, 5000, 9000, 50000, 200000} {
		got := e.MaxCompletionTokens(messagesWithTokens(n), "gpt-4")
		if got < 500 || got > 4000 {
			t.Fatalf("budget out of [500,4000] for %d prompt tokens: %d", n, got)
		}
	}
}

func TestMaxCompletionTokensUnknownModelDefaults(t *testing.T) {
	e := fallbackEstimator()
	// Unknown models assume a 128000 window.
	got := e.MaxCompletionTokens(messagesWithTokens(300), "mystery-model")
	if got != 3000 {
		t.Fatalf("expected 3000 with default window, got %d", got)
	}
}

func TestMaxCompletionTokensNilEstimatorFallback(t *testing.T) {
	var e *Estimator
	if got := e.MaxCompletionTokens(messagesWithTokens(300), "gpt-5"); got != 1500 {
		t.Fatalf("expected fixed 1500 fallback, got %d", got)
	}
}

func TestModelsTableCopy(t *testing.T) {
	m := Models()
	if _, ok := m["gpt-4"]; !ok {
		t.Fatalf("gpt-4 missing from model table")
	}
	if m["gpt-4"].ContextLimit != 8192 {
		t.Fatalf("unexpected gpt-4 context limit: %d", m["gpt-4"].ContextLimit)
	}
	delete(m, "gpt-4")
	if _, ok := Models()["gpt-4"]; !ok {
		t.Fatalf("Models must return a copy")
	}
}
