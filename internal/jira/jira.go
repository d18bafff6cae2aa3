package jira

import (
	"context"
	"errors"

	"github.com/qapilot/backend/internal/models"
)

// Classified fetch failures. Handlers map these onto HTTP statuses.
var (
	ErrUnauthorized = errors.New("invalid jira credentials")
	ErrNotFound     = errors.New("jira issue not found")
	ErrTimeout      = errors.New("jira request timed out")
	ErrUnreachable  = errors.New("failed to connect to jira")
	ErrMalformed    = errors.New("malformed jira response")
)

// Credentials identify one Jira instance for a single fetch. They are never
// persisted.
type Credentials struct {
	ServerURL string
	Username  string
	APIToken  string
}

// Fetcher returns a normalized snapshot of a Jira issue.
type Fetcher interface {
	FetchTicket(ctx context.Context, creds Credentials, ticketID string) (models.TicketRecord, error)
}
