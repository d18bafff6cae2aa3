// Package automation turns natural-language test commands into Playwright
// page scripts and runs generation through a bounded worker pool.
package automation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/qapilot/backend/internal/ai"
)

const (
	codegenModel       = "gpt-4o-mini"
	codegenTemperature = 0.3
	codegenMaxTokens   = 2000

	codegenSystemPrompt = "You are a Playwright test automation expert. Generate clean, executable Python code."

	screenshotLine = `    await page.screenshot(path="screenshot.png")`
)

var ErrEmptyGeneration = errors.New("no code generated")

// Generator produces Playwright page scripts from natural-language commands.
type Generator struct {
	ai ai.Generator
}

func NewGenerator(g ai.Generator) *Generator {
	return &Generator{ai: g}
}

// Generate asks the model for the core test logic, then normalizes the
// output: code fences stripped, exactly one screenshot call guaranteed.
func (g *Generator) Generate(ctx context.Context, nlCommand, browser string) (string, error) {
	resp, err := g.ai.Complete(ctx, ai.Request{
		Model: codegenModel,
		Messages: []ai.Message{
			{Role: "system", Content: codegenSystemPrompt},
			{Role: "user", Content: buildCodegenPrompt(nlCommand, browser)},
		},
		Temperature:         codegenTemperature,
		MaxCompletionTokens: codegenMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generating playwright code: %w", err)
	}
	if strings.TrimSpace(resp) == "" {
		return "", ErrEmptyGeneration
	}

	code := StripCodeFences(resp)
	code = EnsureScreenshot(code)
	return strings.TrimSpace(code), nil
}

func buildCodegenPrompt(nlCommand, browser string) string {
	var b strings.Builder
	b.WriteString("Convert this natural language test command into executable Playwright Python code.\n")
	fmt.Fprintf(&b, "Use the browser type: %s\n\n", browser)
	fmt.Fprintf(&b, "Natural language command: %s\n\n", nlCommand)
	b.WriteString(`Generate the core test logic that:
1. Uses the provided page object
2. Performs the requested actions
3. Includes proper error handling
4. Uses async/await pattern

DO NOT include:
- asyncio.run() calls
- Playwright setup/teardown (browser launch, context creation, etc.)
- Import statements

Example of what to generate:
    await page.goto('https://example.com')
    await page.click('button#submit')
    # ... more actions ...

Return ONLY the core test logic without any setup/teardown code.`)
	return b.String()
}

// StripCodeFences removes a leading ``` line (with or without a language
// tag) and a trailing ``` marker. Input without fences passes through.
func StripCodeFences(code string) string {
	if code == "" {
		return code
	}
	code = strings.TrimSpace(code)
	if strings.HasPrefix(code, "```") {
		if idx := strings.IndexByte(code, '\n'); idx >= 0 {
			code = code[idx+1:]
		}
	}
	if strings.HasSuffix(code, "```") {
		code = strings.TrimRight(code[:len(code)-3], " \t\n")
	}
	return code
}

// EnsureScreenshot guarantees the script captures screenshot.png exactly
// once. Existing screenshot calls with a different path are removed and a
// canonical call is inserted before the last return statement, or failing
// that before the browser/context close, or appended at the end.
func EnsureScreenshot(code string) string {
	if strings.Contains(code, "screenshot.png") && strings.Contains(code, `path="screenshot.png"`) {
		return code
	}

	lines := strings.Split(strings.TrimRight(code, " \t\n"), "\n")

	kept := lines[:0]
	for _, line := range lines {
		if strings.Contains(line, "screenshot") &&
			(strings.Contains(line, "path=") || strings.Contains(line, "full_page=True")) {
			continue
		}
		kept = append(kept, line)
	}
	lines = kept

	for i := len(lines) - 1; i >= 0; i-- {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "return") {
			return strings.Join(insertAt(lines, i, screenshotLine), "\n")
		}
	}
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.Contains(lines[i], "await context.close()") ||
			strings.Contains(lines[i], "await browser.close()") ||
			strings.Contains(lines[i], "browser.close()") {
			return strings.Join(insertAt(lines, i, screenshotLine), "\n")
		}
	}
	return strings.Join(append(lines, screenshotLine), "\n")
}

func insertAt(lines []string, i int, line string) []string {
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:i]...)
	out = append(out, line)
	out = append(out, lines[i:]...)
	return out
}

// DetectBrowser maps a client User-Agent to a Playwright engine tag.
// Chrome user agents also advertise Safari, so the chromium family is
// checked first.
func DetectBrowser(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "firefox"):
		return "firefox"
	case strings.Contains(ua, "edg"), strings.Contains(ua, "chrome"), strings.Contains(ua, "chromium"):
		return "chromium"
	case strings.Contains(ua, "safari"):
		return "webkit"
	default:
		return "chromium"
	}
}
