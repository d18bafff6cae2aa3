package testgen

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/qapilot/backend/internal/ai"
	"github.com/qapilot/backend/internal/models"
)

const (
	safetyBuffer          = 500
	minCompletionTokens   = 500
	maxCompletionTokens   = 4000
	fallbackCompletion    = 1500
	perMessageOverhead    = 4
	messageArrayOverhead  = 3
	fallbackCharsPerToken = 3.5
	defaultContextLimit   = 128000
)

// DefaultModel is used when the caller does not pick one.
const DefaultModel = "gpt-5"

// modelTable maps each selectable model to its context window and display
// metadata. Read-only for the process lifetime.
var modelTable = map[string]models.ModelDescriptor{
	"gpt-5":         {ContextLimit: 128000, Name: "GPT-5 (Latest)", Cost: "High"},
	"gpt-4o":        {ContextLimit: 128000, Name: "GPT-4o (Multimodal)", Cost: "High"},
	"gpt-4":         {ContextLimit: 8192, Name: "GPT-4 (Reliable)", Cost: "Medium"},
	"gpt-4-turbo":   {ContextLimit: 128000, Name: "GPT-4 Turbo (Fast)", Cost: "Medium"},
	"gpt-3.5-turbo": {ContextLimit: 16384, Name: "GPT-3.5 Turbo (Economic)", Cost: "Low"},
}

// Models returns the selectable-model table.
func Models() map[string]models.ModelDescriptor {
	out := make(map[string]models.ModelDescriptor, len(modelTable))
	for k, v := range modelTable {
		out[k] = v
	}
	return out
}

// Estimator approximates prompt token counts. The primary strategy is a
// cl100k_base subword tokenizer; when the tokenizer cannot be built or a
// count fails, the estimator falls back to character count / 3.5. The
// fallback path never fails.
type Estimator struct {
	enc *tiktoken.Tiktoken
}

func NewEstimator() *Estimator {
	enc, err := tiktoken.EncodingForModel("gpt-4")
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil
		}
	}
	return &Estimator{enc: enc}
}

// EstimateTokens returns the estimated token cost of a message list: per
// message, the tokenized content plus a fixed formatting overhead of 4, plus
// a fixed array overhead of 3.
func (e *Estimator) EstimateTokens(messages []ai.Message) int {
	if n, err := e.countWithTokenizer(messages); err == nil {
		return n
	}
	return fallbackEstimate(messages)
}

func (e *Estimator) countWithTokenizer(messages []ai.Message) (n int, err error) {
	if e == nil || e.enc == nil {
		return 0, fmt.Errorf("tokenizer unavailable")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tokenizer panic: %v", r)
		}
	}()
	total := 0
	for _, m := range messages {
		total += len(e.enc.Encode(m.Content, nil, nil))
		total += perMessageOverhead
	}
	total += messageArrayOverhead
	return total, nil
}

func fallbackEstimate(messages []ai.Message) int {
	totalChars := 0
	for _, m := range messages {
		totalChars += len(m.Content)
	}
	return int(float64(totalChars) / fallbackCharsPerToken)
}

// MaxCompletionTokens computes the completion budget for one generation call.
// The arithmetic is fixed policy:
//
//	available = contextLimit - promptTokens - 500
//	promptTokens < 500  -> target = min(available, 3000)
//	promptTokens < 1500 -> target = min(available, 2500)
//	otherwise           -> target = min(available, 1500)
//	final = max(min(target, 4000), 500)
//
// The 500 floor is applied even when available went negative, so the final
// budget can exceed what the context window has left; the request is sent
// anyway and the downstream service decides. Callers never see a failure:
// a nil estimator yields the fixed 1500 fallback.
func (e *Estimator) MaxCompletionTokens(messages []ai.Message, modelID string) int {
	if e == nil {
		return fallbackCompletion
	}

	contextLimit := defaultContextLimit
	if desc, ok := modelTable[modelID]; ok {
		contextLimit = desc.ContextLimit
	}

	promptTokens := e.EstimateTokens(messages)
	availableTokens := contextLimit - promptTokens - safetyBuffer

	var target int
	switch {
	case promptTokens < 500:
		target = min(availableTokens, 3000)
	case promptTokens < 1500:
		target = min(availableTokens, 2500)
	default:
		target = min(availableTokens, 1500)
	}

	return max(min(target, maxCompletionTokens), minCompletionTokens)
}
