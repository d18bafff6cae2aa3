package testgen

import (
	"strings"
	"testing"
	"time"

	"github.com/qapilot/backend/internal/models"
)

func sampleTicket() models.TicketRecord {
	return models.TicketRecord{
		ID:          "PROJ-1",
		Key:         "PROJ-1",
		Title:       "Login page",
		Description: "As a user I can log in",
		IssueType:   "Story",
		Status:      "In Progress",
		Priority:    "High",
	}
}

func TestGenerationPromptNoCommentsMarker(t *testing.T) {
	prompt := BuildGenerationPrompt(sampleTicket(), "")
	if n := strings.Count(prompt, "No comments available."); n != 1 {
		t.Fatalf("expected marker exactly once, got %d", n)
	}

	ticket := sampleTicket()
	ticket.Comments = []models.Comment{{Author: "Rex", Body: "see mockups"}}
	prompt = BuildGenerationPrompt(ticket, "")
	if strings.Contains(prompt, "No comments available.") {
		t.Fatalf("marker rendered despite comments")
	}
	if !strings.Contains(prompt, "1. Rex: see mockups") {
		t.Fatalf("comment not enumerated:\n%s", prompt)
	}
}

func TestGenerationPromptFocusBlock(t *testing.T) {
	prompt := BuildGenerationPrompt(sampleTicket(), "focus on accessibility")
	if !strings.Contains(prompt, "Additional Requirements/Focus Areas") {
		t.Fatalf("focus block missing")
	}
	if !strings.Contains(prompt, "focus on accessibility") {
		t.Fatalf("focus text missing")
	}

	prompt = BuildGenerationPrompt(sampleTicket(), "")
	if strings.Contains(prompt, "Additional Requirements") {
		t.Fatalf("focus block rendered for empty focus")
	}
}

func TestGenerationPromptFixedOrder(t *testing.T) {
	prompt := BuildGenerationPrompt(sampleTicket(), "")
	sections := []string{
		"- ID: PROJ-1",
		"**Description:**",
		"**Comments:**",
		"1. **Positive Test Cases**",
		"5. **User Experience Test Cases**",
		"- **Priority** (High/Medium/Low)",
	}
	last := -1
	for _, section := range sections {
		idx := strings.Index(prompt, section)
		if idx < 0 {
			t.Fatalf("section %q missing", section)
		}
		if idx < last {
			t.Fatalf("section %q out of order", section)
		}
		last = idx
	}
}

func TestGenerationPromptEpicContext(t *testing.T) {
	ticket := sampleTicket()
	ticket.Epic = &models.Epic{
		Title:       "Payments",
		Description: "Payments epic",
		UserStories: []models.EpicStory{{Title: "Refunds", Description: "Refund flow"}},
	}
	prompt := BuildGenerationPrompt(ticket, "")
	if !strings.Contains(prompt, "Epic: Payments") {
		t.Fatalf("epic block missing")
	}
	if !strings.Contains(prompt, "- Refunds: Refund flow") {
		t.Fatalf("epic user stories missing")
	}
}

func TestRefinementPromptEmptyHistory(t *testing.T) {
	prompt := BuildRefinementPrompt(nil, "add boundary cases")
	if !strings.Contains(prompt, "- Title: N/A") || !strings.Contains(prompt, "- Description: N/A") {
		t.Fatalf("expected N/A placeholders:\n%s", prompt)
	}
	if !strings.Contains(prompt, "add boundary cases") {
		t.Fatalf("feedback missing")
	}
}

func TestRefinementPromptSelection(t *testing.T) {
	ticket := sampleTicket()
	now := time.Now()
	history := []models.ConversationMessage{
		{Role: models.RoleUser, Content: "Generate test cases for Jira Story: PROJ-1", Ticket: &ticket, Timestamp: now},
		{Role: models.RoleAssistant, Content: "TC001: verify login succeeds", Timestamp: now},
		{Role: models.RoleUser, Content: "Refine test cases: add negatives", Timestamp: now},
		{Role: models.RoleAssistant, Content: "Here are the updated test cases for PROJ-1", Timestamp: now},
	}

	prompt := BuildRefinementPrompt(history, "more edge cases")
	// The newest assistant message mentions "test cases" and must be skipped.
	if strings.Contains(prompt, "Here are the updated test cases") {
		t.Fatalf("assistant message containing \"test cases\" was not skipped")
	}
	if !strings.Contains(prompt, "TC001: verify login succeeds") {
		t.Fatalf("qualifying assistant message not selected")
	}
	if !strings.Contains(prompt, "- Title: Login page") {
		t.Fatalf("ticket context not selected")
	}
}

func TestRefinementPromptCaseInsensitiveExclusion(t *testing.T) {
	history := []models.ConversationMessage{
		{Role: models.RoleAssistant, Content: "Updated TEST CASES below"},
	}
	prompt := BuildRefinementPrompt(history, "feedback")
	if strings.Contains(prompt, "Updated TEST CASES below") {
		t.Fatalf("exclusion must be case-insensitive")
	}
}
