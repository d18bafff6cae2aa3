package models

import "time"

// TicketRecord is an immutable snapshot of a Jira issue, fetched once per
// generation request and carried on the user message that triggered it.
type TicketRecord struct {
	ID          string    `json:"id"`
	Key         string    `json:"key"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IssueType   string    `json:"issue_type"`
	Status      string    `json:"status"`
	Priority    string    `json:"priority"`
	Assignee    string    `json:"assignee"`
	Reporter    string    `json:"reporter"`
	Comments    []Comment `json:"comments"`
	Epic        *Epic     `json:"epic,omitempty"`
}

type Comment struct {
	Author  string `json:"author"`
	Body    string `json:"body"`
	Created string `json:"created"`
}

type Epic struct {
	Key         string      `json:"key"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	UserStories []EpicStory `json:"user_stories"`
}

type EpicStory struct {
	Key         string `json:"key"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// Message roles. Error messages record a failed generation attempt so the
// conversation history stays complete.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleError     = "error"
)

type ConversationMessage struct {
	ID        string        `json:"id"`
	Role      string        `json:"type"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Ticket    *TicketRecord `json:"jira_story,omitempty"`
	Focus     string        `json:"custom_prompt,omitempty"`
}

type Conversation struct {
	ID        string                `json:"id"`
	SessionID string                `json:"session_id"`
	Title     string                `json:"title"`
	CreatedAt time.Time             `json:"created_at"`
	Messages  []ConversationMessage `json:"messages"`
}

// TestCase is one generated QA test case in the structured output format.
type TestCase struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Preconditions  string   `json:"preconditions"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
	Priority       string   `json:"priority"`
	Type           string   `json:"type"`
}

// Test run statuses. Plain strings, any value may overwrite any other.
const (
	RunPending   = "pending"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// TestRun is the persisted record for one browser-automation run. Completion
// callbacks mutate it in place; last writer wins.
type TestRun struct {
	ID             int64      `json:"id"`
	NLCommand      string     `json:"nl_command"`
	GeneratedCode  string     `json:"generated_code"`
	Browser        string     `json:"browser"`
	Status         string     `json:"status"`
	ExecutionLogs  *string    `json:"execution_logs"`
	ScreenshotPath *string    `json:"screenshot_path"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// ModelDescriptor describes one selectable generation model.
type ModelDescriptor struct {
	ContextLimit int    `json:"context_limit"`
	Name         string `json:"name"`
	Cost         string `json:"cost"`
}
