package jira

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/qapilot/backend/internal/models"
)

// epicFieldNames are the raw field keys probed for an epic link, in
// precedence order. The first one carrying a non-empty string wins.
var epicFieldNames = []string{"customfield_10014", "epic"}

const maxEpicStories = 50

// Client fetches issues over the Jira REST v2 API with basic auth.
type Client struct {
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(timeout time.Duration, logger zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		logger: logger,
	}
}

type issuePayload struct {
	Key    string          `json:"key"`
	Fields json.RawMessage `json:"fields"`
}

type issueFields struct {
	Summary     string       `json:"summary"`
	Description string       `json:"description"`
	IssueType   *namedField  `json:"issuetype"`
	Status      *namedField  `json:"status"`
	Priority    *namedField  `json:"priority"`
	Assignee    *personField `json:"assignee"`
	Reporter    *personField `json:"reporter"`
	Comment     struct {
		Comments []commentPayload `json:"comments"`
	} `json:"comment"`
}

type namedField struct {
	Name string `json:"name"`
}

type personField struct {
	DisplayName string `json:"displayName"`
}

type commentPayload struct {
	Author  personField `json:"author"`
	Body    string      `json:"body"`
	Created string      `json:"created"`
}

func (c *Client) FetchTicket(ctx context.Context, creds Credentials, ticketID string) (models.TicketRecord, error) {
	raw, key, err := c.getIssue(ctx, creds, ticketID)
	if err != nil {
		return models.TicketRecord{}, err
	}

	var fields issueFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.TicketRecord{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	record := models.TicketRecord{
		ID:          ticketID,
		Key:         key,
		Title:       defaultIfEmpty(fields.Summary, "No title"),
		Description: defaultIfEmpty(fields.Description, "No description provided"),
		IssueType:   fieldName(fields.IssueType),
		Status:      fieldName(fields.Status),
		Priority:    fieldName(fields.Priority),
		Assignee:    displayName(fields.Assignee, "Unassigned"),
		Reporter:    displayName(fields.Reporter, "Unknown"),
		Comments:    []models.Comment{},
	}
	for _, cm := range fields.Comment.Comments {
		record.Comments = append(record.Comments, models.Comment{
			Author:  defaultIfEmpty(cm.Author.DisplayName, "Unknown"),
			Body:    cm.Body,
			Created: cm.Created,
		})
	}

	// Epic context is best effort: a broken epic never fails the ticket.
	if epicKey := probeEpicKey(raw); epicKey != "" {
		epic, err := c.fetchEpic(ctx, creds, epicKey)
		if err != nil {
			c.logger.Warn().Err(err).Str("epic", epicKey).Msg("epic fetch skipped")
		} else {
			record.Epic = epic
		}
	}

	return record, nil
}

func (c *Client) getIssue(ctx context.Context, creds Credentials, issueKey string) (json.RawMessage, string, error) {
	base := strings.TrimRight(creds.ServerURL, "/")
	endpoint := fmt.Sprintf("%s/rest/api/2/issue/%s", base, url.PathEscape(issueKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	req.SetBasicAuth(creds.Username, creds.APIToken)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, "", ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, issueKey)
	case resp.StatusCode != http.StatusOK:
		return nil, "", fmt.Errorf("jira fetch failed: status %d", resp.StatusCode)
	}

	var payload issuePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	key := payload.Key
	if key == "" {
		key = issueKey
	}
	return payload.Fields, key, nil
}

func (c *Client) fetchEpic(ctx context.Context, creds Credentials, epicKey string) (*models.Epic, error) {
	raw, key, err := c.getIssue(ctx, creds, epicKey)
	if err != nil {
		return nil, err
	}
	var fields issueFields
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	epic := &models.Epic{
		Key:         key,
		Title:       fields.Summary,
		Description: fields.Description,
		UserStories: []models.EpicStory{},
	}

	stories, err := c.searchEpicStories(ctx, creds, epicKey)
	if err != nil {
		c.logger.Warn().Err(err).Str("epic", epicKey).Msg("epic story search skipped")
		return epic, nil
	}
	epic.UserStories = stories
	return epic, nil
}

func (c *Client) searchEpicStories(ctx context.Context, creds Credentials, epicKey string) ([]models.EpicStory, error) {
	base := strings.TrimRight(creds.ServerURL, "/")
	jql := fmt.Sprintf(`"Epic Link" = %s`, epicKey)
	endpoint := fmt.Sprintf("%s/rest/api/2/search?jql=%s&maxResults=%d", base, url.QueryEscape(jql), maxEpicStories)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(creds.Username, creds.APIToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("epic search failed: status %d", resp.StatusCode)
	}

	var result struct {
		Issues []struct {
			Key    string `json:"key"`
			Fields struct {
				Summary     string      `json:"summary"`
				Description string      `json:"description"`
				Status      *namedField `json:"status"`
			} `json:"fields"`
		} `json:"issues"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	stories := make([]models.EpicStory, 0, len(result.Issues))
	for _, issue := range result.Issues {
		stories = append(stories, models.EpicStory{
			Key:         issue.Key,
			Title:       issue.Fields.Summary,
			Description: issue.Fields.Description,
			Status:      fieldName(issue.Fields.Status),
		})
	}
	return stories, nil
}

// probeEpicKey scans the raw fields object for an epic link under the known
// alternate names.
func probeEpicKey(raw json.RawMessage) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return ""
	}
	for _, name := range epicFieldNames {
		v, ok := fields[name]
		if !ok {
			continue
		}
		var key string
		if err := json.Unmarshal(v, &key); err == nil && key != "" {
			return key
		}
	}
	return ""
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	return fmt.Errorf("%w: %v", ErrUnreachable, err)
}

func fieldName(f *namedField) string {
	if f == nil || f.Name == "" {
		return "Unknown"
	}
	return f.Name
}

func displayName(f *personField, fallback string) string {
	if f == nil || f.DisplayName == "" {
		return fallback
	}
	return f.DisplayName
}

func defaultIfEmpty(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
