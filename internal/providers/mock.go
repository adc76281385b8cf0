package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage
	// Responses, when set, are returned in order; the last one repeats.
	Responses []string

	requestCount atomic.Int64

	mu   sync.Mutex
	last *ChatRequest
}

// NewMockClient creates a new mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		ResponseText: "mock response",
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	count := c.requestCount.Add(1)
	c.mu.Lock()
	c.last = req
	c.mu.Unlock()

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
	}

	if c.ShouldFail {
		result.ErrorType = "mock_failure"
		result.ErrorMessage = "mock client configured to fail"
		return result, fmt.Errorf("mock client configured to fail")
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		result.ErrorType = "mock_failure"
		result.ErrorMessage = fmt.Sprintf("mock client failed after %d requests", c.FailAfter)
		return result, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	if err := ctx.Err(); err != nil {
		result.ErrorType = "context_cancelled"
		result.ErrorMessage = err.Error()
		return result, err
	}
	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			result.ErrorType = "context_cancelled"
			result.ErrorMessage = ctx.Err().Error()
			return result, ctx.Err()
		}
	}

	result.Success = true
	result.Content = c.ResponseText
	if n := len(c.Responses); n > 0 {
		i := int(count) - 1
		if i >= n {
			i = n - 1
		}
		result.Content = c.Responses[i]
	}

	if req.ResponseFormat != nil {
		raw := c.ResponseJSON
		if len(raw) == 0 {
			raw = json.RawMessage(result.Content)
		}
		parsed, err := parseStructuredJSON(string(raw))
		if err == nil {
			err = validateStructuredJSON(req.ResponseFormat.Schema, parsed)
		}
		if err != nil {
			result.Success = false
			result.ErrorType = "structured_output"
			result.ErrorMessage = err.Error()
		} else {
			result.ParsedJSON = parsed
			result.Content = string(parsed)
		}
	}

	for _, m := range req.Messages {
		result.PromptTokens += len(m.Content) / 4
	}
	result.CompletionTokens = len(result.Content) / 4
	result.TotalTokens = result.PromptTokens + result.CompletionTokens
	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// LastRequest returns the most recent request, or nil.
func (c *MockClient) LastRequest() *ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Reset resets the request counter.
func (c *MockClient) Reset() {
	c.requestCount.Store(0)
}

var _ LLMClient = (*MockClient)(nil)
