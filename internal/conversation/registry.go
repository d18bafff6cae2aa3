package conversation

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qapilot/backend/internal/models"
)

var ErrNotFound = errors.New("conversation not found")

const titleMaxRunes = 50

// Registry is the process-wide conversation store. All access goes through
// the mutex; conversations returned to callers are copies.
type Registry struct {
	mu            sync.RWMutex
	conversations map[string]*models.Conversation
}

func NewRegistry() *Registry {
	return &Registry{conversations: map[string]*models.Conversation{}}
}

func (r *Registry) Create(sessionID string) models.Conversation {
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Title:     "New Conversation",
		CreatedAt: time.Now().UTC(),
		Messages:  []models.ConversationMessage{},
	}

	r.mu.Lock()
	r.conversations[conv.ID] = conv
	r.mu.Unlock()

	return snapshot(conv)
}

func (r *Registry) Get(id string) (models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conv, ok := r.conversations[id]
	if !ok {
		return models.Conversation{}, ErrNotFound
	}
	return snapshot(conv), nil
}

// ListBySession returns the session's conversations, newest first.
func (r *Registry) ListBySession(sessionID string) []models.Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []models.Conversation{}
	for _, conv := range r.conversations {
		if conv.SessionID == sessionID {
			out = append(out, snapshot(conv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Append adds a message to the conversation. The first message carrying a
// ticket sets the title once, to "KEY: truncated title..."; the title is
// never changed afterwards. Messages are append-only.
func (r *Registry) Append(conversationID string, msg models.ConversationMessage) (models.Conversation, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.conversations[conversationID]
	if !ok {
		return models.Conversation{}, ErrNotFound
	}

	if len(conv.Messages) == 0 && msg.Ticket != nil {
		conv.Title = msg.Ticket.Key + ": " + truncate(msg.Ticket.Title, titleMaxRunes) + "..."
	}
	conv.Messages = append(conv.Messages, msg)
	return snapshot(conv), nil
}

// Clear drops every conversation. Administrative use only; there is no
// automatic eviction.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.conversations = map[string]*models.Conversation{}
	r.mu.Unlock()
}

func snapshot(conv *models.Conversation) models.Conversation {
	out := *conv
	out.Messages = make([]models.ConversationMessage, len(conv.Messages))
	copy(out.Messages, conv.Messages)
	return out
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
