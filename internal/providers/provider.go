package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// LLMClient sends chat completion requests to a language model.
type LLMClient interface {
	// Chat sends a chat completion request.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error)

	// Name returns the client identifier (e.g., "cohere").
	Name() string
}

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ResponseFormat requests JSON output matching Schema.
type ResponseFormat struct {
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict,omitempty"`
}

// ChatRequest is a request to an LLM.
type ChatRequest struct {
	Messages []Message `json:"messages"`

	// Model selection (uses client default if empty)
	Model string `json:"model,omitempty"`

	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`

	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`

	RequestID string `json:"-"`
}

// ChatResult is the complete response from an LLM call.
type ChatResult struct {
	Content string `json:"content"`
	// ParsedJSON is set when ResponseFormat was requested and the content
	// parsed and validated.
	ParsedJSON json.RawMessage `json:"parsed_json,omitempty"`

	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`

	ExecutionTime time.Duration `json:"execution_time"`

	Provider  string `json:"provider"`
	ModelUsed string `json:"model_used"`
	RequestID string `json:"request_id"`

	Success      bool   `json:"success"`
	ErrorType    string `json:"error_type,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// RateLimitError is returned when the upstream API answered 429.
type RateLimitError struct {
	Message    string
	RetryAfter time.Duration
	StatusCode int
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s (retry after %s)", e.Message, e.RetryAfter)
	}
	return e.Message
}
