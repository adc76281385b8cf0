package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"github.com/typenhq/typen/internal/providers"
)

// EnvPrefix prefixes environment overrides, e.g. TYPEN_SERVER_PORT.
const EnvPrefix = "TYPEN"

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	mu        sync.RWMutex
	v         *viper.Viper
	config    *Config
	callbacks []func(*Config)
	logger    *slog.Logger
}

// NewManager creates a new config manager and loads initial config.
// An empty cfgFile searches ./config.yaml then $HOME/.typen/config.yaml.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{
		v:      viper.New(),
		logger: slog.Default(),
	}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

// initViper sets up viper with defaults and config file.
func (cm *Manager) initViper(cfgFile string) error {
	setDefaults(cm.v, DefaultConfig())

	cm.v.SetEnvPrefix(EnvPrefix)
	cm.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.typen")
	}

	// The config file is optional.
	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// setDefaults registers every leaf key so env overrides reach Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("storage.path", d.Storage.Path)

	providersDefault := make(map[string]any, len(d.LLMProviders))
	for name, p := range d.LLMProviders {
		providersDefault[name] = map[string]any{
			"type":       p.Type,
			"model":      p.Model,
			"base_url":   p.BaseURL,
			"api_key":    p.APIKey,
			"rate_limit": p.RateLimit,
			"enabled":    p.Enabled,
		}
	}
	v.SetDefault("llm_providers", providersDefault)

	v.SetDefault("predictor.provider", d.Predictor.Provider)
	v.SetDefault("predictor.repair_attempts", d.Predictor.RepairAttempts)
	v.SetDefault("predictor.timeout_seconds", d.Predictor.TimeoutSeconds)

	v.SetDefault("auth.secret", d.Auth.Secret)
	v.SetDefault("auth.issuer", d.Auth.Issuer)
	v.SetDefault("auth.ttl_hours", d.Auth.TTLHours)

	v.SetDefault("editor.debounce_ms", d.Editor.DebounceMS)
	v.SetDefault("editor.autosave_ms", d.Editor.AutosaveMS)
	v.SetDefault("editor.leave_timeout_ms", d.Editor.LeaveTimeoutMS)
	v.SetDefault("editor.page_width", d.Editor.PageWidth)
	v.SetDefault("editor.page_height", d.Editor.PageHeight)
	v.SetDefault("editor.font_size", d.Editor.FontSize)
	v.SetDefault("editor.line_height", d.Editor.LineHeight)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// load parses the current viper state into a Config struct.
func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// SetLogger sets the logger used for reload diagnostics.
func (cm *Manager) SetLogger(logger *slog.Logger) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.logger = logger
}

// ConfigFile returns the file in use, or "" when running on defaults.
func (cm *Manager) ConfigFile() string {
	return cm.v.ConfigFileUsed()
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading of configuration.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			cm.mu.RLock()
			logger := cm.logger
			cm.mu.RUnlock()
			logger.Warn("config reload failed", "file", e.Name, "error", err)
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envRef.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// ToProviderRegistryConfig converts the config for providers.Registry,
// resolving ${ENV_VAR} references in API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		LLMProviders: make(map[string]providers.LLMProviderConfig, len(c.LLMProviders)),
	}
	for name, llm := range c.LLMProviders {
		cfg.LLMProviders[name] = providers.LLMProviderConfig{
			Type:      llm.Type,
			Model:     llm.Model,
			BaseURL:   llm.BaseURL,
			APIKey:    ResolveEnvVars(llm.APIKey),
			RateLimit: llm.RateLimit,
			Enabled:   llm.Enabled,
		}
	}
	return cfg
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Typen configuration
# Secrets use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export COHERE_API_KEY=xxx TYPEN_AUTH_SECRET=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
