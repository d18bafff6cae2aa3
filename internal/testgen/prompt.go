package testgen

import (
	"fmt"
	"strings"

	"github.com/qapilot/backend/internal/models"
)

// BuildGenerationPrompt renders a ticket snapshot into the test-case
// generation prompt. Pure string construction, fixed section order.
func BuildGenerationPrompt(ticket models.TicketRecord, focus string) string {
	var b strings.Builder

	b.WriteString("Please generate comprehensive test cases for the following Jira story:\n\n")
	b.WriteString("**Story Details:**\n")
	fmt.Fprintf(&b, "- ID: %s\n", ticket.Key)
	fmt.Fprintf(&b, "- Title: %s\n", ticket.Title)
	fmt.Fprintf(&b, "- Type: %s\n", ticket.IssueType)
	fmt.Fprintf(&b, "- Status: %s\n", ticket.Status)
	fmt.Fprintf(&b, "- Priority: %s\n", ticket.Priority)
	b.WriteString("\n**Description:**\n")
	b.WriteString(ticket.Description)
	b.WriteString("\n\n**Comments:**\n")

	if len(ticket.Comments) > 0 {
		for i, comment := range ticket.Comments {
			fmt.Fprintf(&b, "%d. %s: %s\n", i+1, comment.Author, comment.Body)
		}
	} else {
		b.WriteString("No comments available.\n")
	}

	if ticket.Epic != nil {
		b.WriteString("\n**Epic Information:**\n")
		fmt.Fprintf(&b, "Epic: %s\n", ticket.Epic.Title)
		fmt.Fprintf(&b, "Epic Description: %s\n", ticket.Epic.Description)
		if len(ticket.Epic.UserStories) > 0 {
			b.WriteString("\nRelated User Stories:\n")
			for _, story := range ticket.Epic.UserStories {
				fmt.Fprintf(&b, "- %s: %s\n", story.Title, story.Description)
			}
		}
	}

	if focus != "" {
		b.WriteString("\n**Additional Requirements/Focus Areas:**\n")
		b.WriteString(focus)
		b.WriteString("\n")
	}

	b.WriteString(`
Please generate test cases that include:
1. **Positive Test Cases** - Happy path scenarios
2. **Negative Test Cases** - Error conditions and edge cases
3. **Boundary Test Cases** - Testing limits and constraints
4. **Integration Test Cases** - If the story involves integrations
5. **User Experience Test Cases** - Usability and accessibility aspects

For each test case, please provide:
- **Test Case ID** (e.g., TC001)
- **Test Case Title**
- **Preconditions**
- **Test Steps** (numbered)
- **Expected Results**
- **Test Data** (if applicable)
- **Priority** (High/Medium/Low)

Format the response in a clear, structured manner that can be easily understood and executed by QA testers.
`)

	return b.String()
}

// BuildRefinementPrompt renders the refinement template from conversation
// history and new feedback. The history is walked newest to oldest: the first
// assistant message whose text does not contain "test cases"
// (case-insensitive) supplies the existing-test-cases block, and the most
// recent user message carrying a ticket supplies the story context. Either
// may be absent.
func BuildRefinementPrompt(history []models.ConversationMessage, feedback string) string {
	var lastTestCases string
	var story *models.TicketRecord
	foundCases := false

	for i := len(history) - 1; i >= 0; i-- {
		msg := history[i]
		switch {
		case msg.Role == models.RoleAssistant && !foundCases:
			if !strings.Contains(strings.ToLower(msg.Content), "test cases") {
				lastTestCases = msg.Content
				foundCases = true
			}
		case msg.Role == models.RoleUser && msg.Ticket != nil && story == nil:
			story = msg.Ticket
		}
		if foundCases && story != nil {
			break
		}
	}

	title, description := "N/A", "N/A"
	if story != nil {
		title = story.Title
		description = story.Description
	}

	var b strings.Builder
	b.WriteString("Based on the following existing test cases and the original Jira story context, please refine and improve the test cases according to the user's feedback.\n\n")
	b.WriteString("Original Story Context:\n")
	fmt.Fprintf(&b, "- Title: %s\n", title)
	fmt.Fprintf(&b, "- Description: %s\n", description)
	b.WriteString("\nExisting Test Cases:\n")
	b.WriteString(lastTestCases)
	b.WriteString("\n\nUser Feedback/Refinement Request:\n")
	b.WriteString(feedback)
	b.WriteString("\n\nPlease provide the updated and improved test cases, maintaining the same structure and format while incorporating the requested changes.\n")
	return b.String()
}
