package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName  = "openai"
	CohereName  = "cohere"
	CohereModel = "command-a-03-2025"

	// CohereBaseURL is Cohere's OpenAI-compatible chat endpoint.
	CohereBaseURL = "https://api.cohere.ai/compatibility/v1"
)

// OpenAIConfig holds configuration for an OpenAI-compatible chat client.
type OpenAIConfig struct {
	Name         string // identifier returned by Name(); defaults to "openai"
	APIKey       string
	BaseURL      string // empty uses the SDK default
	DefaultModel string
	RPM          int           // requests per minute
	MaxRetries   int           // SDK transport retries; negative disables
	Timeout      time.Duration // HTTP timeout
	HTTPClient   *http.Client  // Optional (tests)
}

// OpenAIClient implements LLMClient over the chat completions API.
// Any OpenAI-compatible endpoint works, Cohere's included.
type OpenAIClient struct {
	name         string
	apiKey       string
	baseURL      string
	defaultModel string
	rpm          int
	limiter      *RateLimiter
	client       openai.Client
}

// NewOpenAIClient creates a chat client.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.Name == "" {
		cfg.Name = OpenAIName
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "gpt-4o-mini"
	}
	if cfg.RPM <= 0 {
		cfg.RPM = 60
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIClient{
		name:         cfg.Name,
		apiKey:       cfg.APIKey,
		baseURL:      cfg.BaseURL,
		defaultModel: cfg.DefaultModel,
		rpm:          cfg.RPM,
		limiter:      NewRateLimiter(cfg.RPM),
		client:       openai.NewClient(opts...),
	}
}

// NewCohereClient creates a chat client for Cohere's compatibility endpoint.
func NewCohereClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = CohereModel
	}
	return NewOpenAIClient(OpenAIConfig{
		Name:         CohereName,
		APIKey:       apiKey,
		BaseURL:      CohereBaseURL,
		DefaultModel: model,
	})
}

// Name returns the client identifier.
func (c *OpenAIClient) Name() string {
	return c.name
}

// Model returns the configured default model.
func (c *OpenAIClient) Model() string {
	return c.defaultModel
}

// Chat sends a chat completion request.
func (c *OpenAIClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.New().String()
	}
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	result := &ChatResult{
		RequestID: requestID,
		Provider:  c.name,
		ModelUsed: model,
	}
	fail := func(kind string, err error) (*ChatResult, error) {
		result.Success = false
		result.ErrorType = kind
		result.ErrorMessage = err.Error()
		result.ExecutionTime = time.Since(start)
		return result, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return fail("rate_limit_wait", err)
	}

	params, err := buildParams(model, req)
	if err != nil {
		return fail("invalid_request", err)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = c.mapError(err)
		var rle *RateLimitError
		if errors.As(err, &rle) {
			c.limiter.Record429(rle.RetryAfter)
		}
		return fail("http_error", err)
	}
	if len(resp.Choices) == 0 {
		return fail("empty_response", fmt.Errorf("no choices in response"))
	}

	content := resp.Choices[0].Message.Content
	result.Success = true
	result.Content = content
	if resp.Model != "" {
		result.ModelUsed = resp.Model
	}
	result.PromptTokens = int(resp.Usage.PromptTokens)
	result.CompletionTokens = int(resp.Usage.CompletionTokens)
	result.TotalTokens = int(resp.Usage.TotalTokens)
	result.ExecutionTime = time.Since(start)

	if req.ResponseFormat != nil {
		parsed, err := parseStructuredJSON(content)
		if err == nil {
			err = validateStructuredJSON(req.ResponseFormat.Schema, parsed)
		}
		if err != nil {
			result.Success = false
			result.ErrorType = "structured_output"
			result.ErrorMessage = err.Error()
		} else {
			result.ParsedJSON = parsed
		}
	}
	return result, nil
}

func buildParams(model string, req *ChatRequest) (openai.ChatCompletionNewParams, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case "assistant":
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		case "user", "":
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		default:
			return params, fmt.Errorf("unsupported message role %q", m.Role)
		}
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if rf := req.ResponseFormat; rf != nil && len(rf.Schema) > 0 {
		var schema map[string]any
		if err := json.Unmarshal(rf.Schema, &schema); err != nil {
			return params, fmt.Errorf("failed to parse response schema: %w", err)
		}
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   rf.Name,
					Schema: schema,
					Strict: openai.Bool(rf.Strict),
				},
			},
		}
	}
	return params, nil
}

func (c *OpenAIClient) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("%s rate limited: %s", c.name, apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		if apiErr.Message != "" {
			return fmt.Errorf("%s chat error (status %d): %s", c.name, apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("%s chat error (status %d)", c.name, apiErr.StatusCode)
	}
	return err
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

var _ LLMClient = (*OpenAIClient)(nil)
