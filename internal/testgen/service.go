package testgen

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/qapilot/backend/internal/ai"
	"github.com/qapilot/backend/internal/models"
)

const generationSystemPrompt = "You are an expert QA engineer who specializes in creating comprehensive, well-structured test cases. Generate test cases that are clear, actionable, and cover both positive and negative scenarios. Format your response as structured test cases with clear steps, expected results, and test data where applicable."

const refinementSystemPrompt = "You are an expert QA engineer. The user wants you to refine existing test cases based on their feedback. Keep the good parts and improve based on their specific requests. Maintain professional test case formatting."

const structuredSystemPrompt = "You are an expert QA engineer specializing in test case design. Generate thorough, practical test cases based on software requirements. Respond with a JSON object of the form {\"test_cases\": [...]} where each test case has id, title, description, preconditions, steps, expected_result, priority, and type fields."

// Service drives the generation pipeline: prompt construction, token budget,
// generation call.
type Service struct {
	Generator ai.Generator
	Estimator *Estimator
	Logger    zerolog.Logger
}

// ResolveModel returns the requested model, or the default when none given.
func ResolveModel(requested string) string {
	if strings.TrimSpace(requested) == "" {
		return DefaultModel
	}
	return requested
}

// Generate produces free-text test cases for a ticket.
func (s *Service) Generate(ctx context.Context, ticket models.TicketRecord, focus, modelID string) (string, error) {
	modelID = ResolveModel(modelID)
	messages := []ai.Message{
		{Role: "system", Content: generationSystemPrompt},
		{Role: "user", Content: BuildGenerationPrompt(ticket, focus)},
	}
	return s.complete(ctx, modelID, messages, false)
}

// GenerateStructured produces parsed test cases via the JSON response format.
func (s *Service) GenerateStructured(ctx context.Context, ticket models.TicketRecord, focus, modelID string) ([]models.TestCase, error) {
	modelID = ResolveModel(modelID)
	messages := []ai.Message{
		{Role: "system", Content: structuredSystemPrompt},
		{Role: "user", Content: BuildGenerationPrompt(ticket, focus)},
	}
	text, err := s.complete(ctx, modelID, messages, true)
	if err != nil {
		return nil, err
	}
	return ParseTestCases(text)
}

// Refine re-invokes the pipeline with the refinement template over prior
// conversation history. Generation failures pass through untouched; there is
// no retry.
func (s *Service) Refine(ctx context.Context, history []models.ConversationMessage, feedback, modelID string) (string, error) {
	modelID = ResolveModel(modelID)
	messages := []ai.Message{
		{Role: "system", Content: refinementSystemPrompt},
		{Role: "user", Content: BuildRefinementPrompt(history, feedback)},
	}
	return s.complete(ctx, modelID, messages, false)
}

func (s *Service) complete(ctx context.Context, modelID string, messages []ai.Message, jsonResponse bool) (string, error) {
	budget := s.Estimator.MaxCompletionTokens(messages, modelID)
	s.Logger.Debug().
		Str("model", modelID).
		Int("max_completion_tokens", budget).
		Msg("generation call")

	return s.Generator.Complete(ctx, ai.Request{
		Model:               modelID,
		Messages:            messages,
		MaxCompletionTokens: budget,
		JSONResponse:        jsonResponse,
	})
}

// ParseTestCases decodes the structured {"test_cases": [...]} payload.
func ParseTestCases(text string) ([]models.TestCase, error) {
	var payload struct {
		TestCases []models.TestCase `json:"test_cases"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("parse test cases: %w", err)
	}
	return payload.TestCases, nil
}
