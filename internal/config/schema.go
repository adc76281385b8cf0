package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/typenhq/typen/internal/layout"
)

// Config holds typen configuration.
// Stored at: ./config.yaml or ~/.typen/config.yaml
type Config struct {
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
	Storage      StorageCfg                `mapstructure:"storage" yaml:"storage"`
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	Predictor    PredictorCfg              `mapstructure:"predictor" yaml:"predictor"`
	Auth         AuthCfg                   `mapstructure:"auth" yaml:"auth"`
	Editor       EditorCfg                 `mapstructure:"editor" yaml:"editor"`
	Log          LogCfg                    `mapstructure:"log" yaml:"log"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// StorageCfg configures the book store.
type StorageCfg struct {
	// Path is the SQLite file. Empty uses {home}/data/typen.db.
	Path string `mapstructure:"path" yaml:"path"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type      string `mapstructure:"type" yaml:"type"`         // "cohere", "openai"
	Model     string `mapstructure:"model" yaml:"model"`       // Model name
	BaseURL   string `mapstructure:"base_url" yaml:"base_url"` // Optional endpoint override
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`   // API key (supports ${ENV_VAR} syntax)
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
}

// PredictorCfg configures next-word prediction.
type PredictorCfg struct {
	Provider       string `mapstructure:"provider" yaml:"provider"` // key into llm_providers
	RepairAttempts int    `mapstructure:"repair_attempts" yaml:"repair_attempts"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// AuthCfg configures session tokens.
type AuthCfg struct {
	Secret   string `mapstructure:"secret" yaml:"secret"` // HMAC secret (supports ${ENV_VAR} syntax)
	Issuer   string `mapstructure:"issuer" yaml:"issuer"`
	TTLHours int    `mapstructure:"ttl_hours" yaml:"ttl_hours"`
}

// EditorCfg holds editor timings and page geometry.
type EditorCfg struct {
	DebounceMS     int     `mapstructure:"debounce_ms" yaml:"debounce_ms"`
	AutosaveMS     int     `mapstructure:"autosave_ms" yaml:"autosave_ms"`
	LeaveTimeoutMS int     `mapstructure:"leave_timeout_ms" yaml:"leave_timeout_ms"`
	PageWidth      float64 `mapstructure:"page_width" yaml:"page_width"`
	PageHeight     float64 `mapstructure:"page_height" yaml:"page_height"`
	FontSize       float64 `mapstructure:"font_size" yaml:"font_size"`
	LineHeight     float64 `mapstructure:"line_height" yaml:"line_height"`
}

// LogCfg configures structured logging.
type LogCfg struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	metrics := layout.DefaultMetrics()
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: 8080,
		},
		LLMProviders: map[string]LLMProviderCfg{
			"cohere": {
				Type:      "cohere",
				Model:     "command-a-03-2025",
				APIKey:    "${COHERE_API_KEY}",
				RateLimit: 100,
				Enabled:   true,
			},
		},
		Predictor: PredictorCfg{
			Provider:       "cohere",
			RepairAttempts: 2,
			TimeoutSeconds: 20,
		},
		Auth: AuthCfg{
			Secret:   "${TYPEN_AUTH_SECRET}",
			Issuer:   "typen",
			TTLHours: 24,
		},
		Editor: EditorCfg{
			DebounceMS:     500,
			AutosaveMS:     2000,
			LeaveTimeoutMS: 3000,
			PageWidth:      layout.A4.Width,
			PageHeight:     layout.A4.Height,
			FontSize:       metrics.FontSize,
			LineHeight:     metrics.LineHeight,
		},
		Log: LogCfg{
			Level:  "info",
			Format: "text",
		},
	}
}

// Addr returns the host:port the server listens on.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	p, ok := c.LLMProviders[name]
	return p, ok
}

// AuthSecret returns the resolved signing secret.
func (c *Config) AuthSecret() string {
	return ResolveEnvVars(c.Auth.Secret)
}

// AuthTTL returns the session token lifetime.
func (c *Config) AuthTTL() time.Duration {
	return time.Duration(c.Auth.TTLHours) * time.Hour
}

// PredictorTimeout returns the per-request prediction timeout.
func (c *Config) PredictorTimeout() time.Duration {
	return time.Duration(c.Predictor.TimeoutSeconds) * time.Second
}

// Debounce returns the prediction debounce interval.
func (e EditorCfg) Debounce() time.Duration {
	return time.Duration(e.DebounceMS) * time.Millisecond
}

// AutosaveDelay returns the quiet period before an autosave.
func (e EditorCfg) AutosaveDelay() time.Duration {
	return time.Duration(e.AutosaveMS) * time.Millisecond
}

// LeaveTimeout bounds the final save when an editor session closes.
func (e EditorCfg) LeaveTimeout() time.Duration {
	return time.Duration(e.LeaveTimeoutMS) * time.Millisecond
}

// PageSize returns the page content box, falling back to A4.
func (e EditorCfg) PageSize() layout.PageSize {
	if e.PageWidth <= 0 || e.PageHeight <= 0 {
		return layout.A4
	}
	return layout.PageSize{Width: e.PageWidth, Height: e.PageHeight}
}

// Metrics returns shaper metrics with the configured font settings.
func (e EditorCfg) Metrics() layout.Metrics {
	m := layout.DefaultMetrics()
	if e.FontSize > 0 {
		m.FontSize = e.FontSize
	}
	if e.LineHeight > 0 {
		m.LineHeight = e.LineHeight
	}
	return m
}

// SlogLevel parses the configured log level. Unknown values mean info.
func (l LogCfg) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(l.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger writing to w in the configured format.
func (l LogCfg) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: l.SlogLevel()}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
