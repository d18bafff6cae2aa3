package ai

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is one chat-completions call. JSONResponse asks the service for a
// structured JSON object instead of free text.
type Request struct {
	Model               string
	Messages            []Message
	MaxCompletionTokens int
	Temperature         float64
	JSONResponse        bool
}

// Generator is the opaque generation service boundary.
type Generator interface {
	Complete(ctx context.Context, req Request) (string, error)
}
