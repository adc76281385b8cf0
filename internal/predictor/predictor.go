// Package predictor produces next-word suggestions from a language model.
package predictor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/avast/retry-go/v4"

	"github.com/typenhq/typen/internal/auth"
	"github.com/typenhq/typen/internal/llmcall"
	"github.com/typenhq/typen/internal/providers"
	"github.com/typenhq/typen/internal/types"
)

const (
	// ContextWords is how many trailing words of the text reach the model.
	ContextWords = 30
	// DefaultGenre is used when a request carries none.
	DefaultGenre = "fiction"

	ProbableCount = 5
	CreativeCount = 3

	// PromptKey identifies prediction calls in the call log.
	PromptKey = "predict.next_words"

	defaultRepairAttempts = 2
	defaultTimeout        = 20 * time.Second
)

var (
	// ErrNotConfigured means no language model client is available.
	ErrNotConfigured = errors.New("predictor is not configured")

	errStructured = errors.New("structured output rejected")
)

var (
	startProbable = []string{"the", "once", "in", "it", "there"}
	padProbable   = []string{"and", "the", "to", "of", "a"}
	padCreative   = []string{"beneath", "whispered", "shadows"}
)

// responseSchema is the JSON shape requested from the model.
var responseSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "probable": {"type": "array", "items": {"type": "string"}, "maxItems": 10},
    "creative": {"type": "array", "items": {"type": "string"}, "maxItems": 10}
  },
  "required": ["probable", "creative"],
  "additionalProperties": false
}`)

type modelWords struct {
	Probable []string `json:"probable"`
	Creative []string `json:"creative"`
}

// Recorder receives every model response.
type Recorder interface {
	Record(result *providers.ChatResult, opts llmcall.RecordOptions)
}

// Config configures a Service.
type Config struct {
	Client providers.LLMClient
	Model  string
	// RepairAttempts bounds follow-up requests when the model's JSON is
	// rejected. Zero uses the default.
	RepairAttempts uint
	Timeout        time.Duration
	// Recorder, when set, logs each model call.
	Recorder Recorder
	Logger   *slog.Logger
}

// Service turns text into ranked next-word predictions.
type Service struct {
	client         providers.LLMClient
	model          string
	repairAttempts uint
	timeout        time.Duration
	recorder       Recorder
	logger         *slog.Logger
}

// New creates a predictor. A nil client yields a service whose Predict
// returns ErrNotConfigured for non-empty text.
func New(cfg Config) *Service {
	if cfg.RepairAttempts == 0 {
		cfg.RepairAttempts = defaultRepairAttempts
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Service{
		client:         cfg.Client,
		model:          cfg.Model,
		repairAttempts: cfg.RepairAttempts,
		timeout:        cfg.Timeout,
		recorder:       cfg.Recorder,
		logger:         cfg.Logger,
	}
}

// Configured reports whether a model client is attached.
func (s *Service) Configured() bool {
	return s != nil && s.client != nil
}

// Predict returns five probable and three creative predictions. Empty text
// gets a fixed opening set without calling the model.
func (s *Service) Predict(ctx context.Context, req types.PredictRequest) ([]types.Prediction, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return build(startProbable, padCreative), nil
	}
	if !s.Configured() {
		return nil, ErrNotConfigured
	}
	genre := strings.TrimSpace(req.Genre)
	if genre == "" {
		genre = DefaultGenre
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages := []providers.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: userPrompt(genre, LastWords(text, ContextWords))},
	}

	var userID string
	if u, ok := auth.UserFrom(ctx); ok {
		userID = u.ID
	}

	var (
		words   *modelWords
		lastRaw string
		attempt int
	)
	err := retry.Do(
		func() error {
			attempt++
			res, err := s.client.Chat(ctx, &providers.ChatRequest{
				Model:       s.model,
				Messages:    messages,
				Temperature: 0.7,
				MaxTokens:   120,
				ResponseFormat: &providers.ResponseFormat{
					Name:   "next_words",
					Schema: responseSchema,
					Strict: true,
				},
			})
			if s.recorder != nil && res != nil {
				s.recorder.Record(res, llmcall.RecordOptions{UserID: userID, PromptKey: PromptKey, Attempt: attempt})
			}
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if res.ParsedJSON != nil {
				var mw modelWords
				if err := json.Unmarshal(res.ParsedJSON, &mw); err != nil {
					return retry.Unrecoverable(fmt.Errorf("failed to decode predictions: %w", err))
				}
				words = &mw
				return nil
			}
			lastRaw = res.Content
			issue := errors.New(res.ErrorMessage)
			messages = append(messages,
				providers.Message{Role: "assistant", Content: res.Content},
				providers.Message{Role: "user", Content: providers.RepairPrompt(responseSchema, res.Content, issue)},
			)
			return fmt.Errorf("%w: %s", errStructured, res.ErrorMessage)
		},
		retry.Context(ctx),
		retry.Attempts(s.repairAttempts+1),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)

	switch {
	case err == nil:
		return build(clean(words.Probable, ProbableCount), clean(words.Creative, CreativeCount)), nil
	case errors.Is(err, errStructured):
		s.logger.Debug("structured predictions rejected, parsing plain text",
			"provider", s.client.Name(), "error", err)
		return FromText(lastRaw), nil
	default:
		return nil, fmt.Errorf("failed to predict next words: %w", err)
	}
}

// FromText parses a comma- or space-separated word list into predictions,
// probable words first.
func FromText(raw string) []types.Prediction {
	var parts []string
	if strings.Contains(raw, ",") {
		parts = strings.Split(raw, ",")
	} else {
		parts = strings.Fields(raw)
	}
	words := clean(parts, ProbableCount+CreativeCount)

	probable := words
	var creative []string
	if len(words) > ProbableCount {
		probable, creative = words[:ProbableCount], words[ProbableCount:]
	}
	return build(probable, creative)
}

// LastWords returns the final n whitespace-separated words of text.
func LastWords(text string, n int) string {
	fields := strings.Fields(text)
	if len(fields) > n {
		fields = fields[len(fields)-n:]
	}
	return strings.Join(fields, " ")
}

// clean lowercases words, strips non-letters, drops empties and keeps at
// most limit.
func clean(words []string, limit int) []string {
	out := make([]string, 0, limit)
	for _, w := range words {
		w = strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, w)
		if w == "" {
			continue
		}
		out = append(out, w)
		if len(out) == limit {
			break
		}
	}
	return out
}

// build pads both lists with defaults and assigns ids and ranks.
func build(probable, creative []string) []types.Prediction {
	probable = pad(probable, padProbable)
	creative = pad(creative, padCreative)

	out := make([]types.Prediction, 0, ProbableCount+CreativeCount)
	for i, w := range probable {
		out = append(out, types.Prediction{
			ID:   i + 1,
			Rank: fmt.Sprint(i + 1),
			Word: w,
			Type: types.PredictionProbable,
		})
	}
	for i, w := range creative {
		out = append(out, types.Prediction{
			ID:   ProbableCount + i + 1,
			Rank: fmt.Sprintf("C%d", i+1),
			Word: w,
			Type: types.PredictionCreative,
		})
	}
	return out
}

// pad fills words up to len(defaults), taking the default at each missing
// position.
func pad(words, defaults []string) []string {
	out := make([]string, len(defaults))
	n := copy(out, words)
	copy(out[n:], defaults[n:])
	return out
}
