// Package llmcall records language model calls for traceability.
// Every prediction request is kept with its prompt key, response and token
// usage so cost and failure rates can be inspected per user.
package llmcall

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/typenhq/typen/internal/providers"
)

// Call represents a recorded LLM API call.
type Call struct {
	// Unique identifier
	ID string `json:"id"`

	// Timing
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	// Who asked. Empty when authentication is disabled.
	UserID string `json:"user_id,omitempty"`

	PromptKey string `json:"prompt_key"`
	Attempt   int    `json:"attempt"`

	// Model info
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Token usage
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`

	Response string `json:"response"`

	// Status
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RecordOptions provides context for recording an LLM call.
type RecordOptions struct {
	UserID    string
	PromptKey string
	// Attempt is 1 for the first request and counts up through repairs.
	Attempt int
}

// QueryFilter specifies filters for listing LLM calls.
type QueryFilter struct {
	UserID    string
	PromptKey string
	Provider  string
	After     *time.Time
	Success   *bool
	Limit     int
	Offset    int
}

// Store persists calls.
type Store interface {
	InsertLLMCall(ctx context.Context, call *Call) error
	// ListLLMCalls returns matching calls, newest first.
	ListLLMCalls(ctx context.Context, f QueryFilter) ([]Call, error)
}

// DefaultLimit caps listings that set no limit.
const DefaultLimit = 50

// FromChatResult creates a Call from a ChatResult.
// Returns nil if result is nil.
func FromChatResult(result *providers.ChatResult, opts RecordOptions) *Call {
	if result == nil {
		return nil
	}

	call := &Call{
		ID:           uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		LatencyMs:    int(result.ExecutionTime.Milliseconds()),
		UserID:       opts.UserID,
		PromptKey:    opts.PromptKey,
		Attempt:      opts.Attempt,
		Provider:     result.Provider,
		Model:        result.ModelUsed,
		InputTokens:  result.PromptTokens,
		OutputTokens: result.CompletionTokens,
		Response:     result.Content,
		Success:      result.Success,
	}
	if call.Attempt == 0 {
		call.Attempt = 1
	}
	if !result.Success {
		call.Error = result.ErrorMessage
	}
	return call
}
