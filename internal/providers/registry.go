package providers

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry holds LLM clients by name. It is built from config and reloaded
// in place when the config file changes.
type Registry struct {
	mu         sync.RWMutex
	llmClients map[string]LLMClient
	logger     *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		llmClients: make(map[string]LLMClient),
		logger:     slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterLLM registers an LLM client by name.
func (r *Registry) RegisterLLM(name string, client LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.llmClients[name] = client
	if r.logger != nil {
		r.logger.Info("registered LLM client", "name", name)
	}
}

// UnregisterLLM removes an LLM client by name.
func (r *Registry) UnregisterLLM(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.llmClients, name)
	if r.logger != nil {
		r.logger.Info("unregistered LLM client", "name", name)
	}
}

// GetLLM returns an LLM client by name.
func (r *Registry) GetLLM(name string) (LLMClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.llmClients[name]
	if !ok {
		return nil, fmt.Errorf("LLM client not found: %s", name)
	}
	return client, nil
}

// ListLLM returns all registered LLM client names, sorted.
func (r *Registry) ListLLM() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llmClients))
	for name := range r.llmClients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasLLM checks if an LLM client is registered.
func (r *Registry) HasLLM(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.llmClients[name]
	return ok
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	LLMProviders map[string]LLMProviderConfig
}

// LLMProviderConfig matches config.LLMProviderCfg with a resolved API key.
type LLMProviderConfig struct {
	Type      string // "cohere", "openai"
	Model     string
	BaseURL   string
	APIKey    string // Resolved API key
	RateLimit int    // Requests per minute
	Enabled   bool
}

// NewRegistryFromConfig creates a registry with the enabled providers that
// have an API key.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.Reload(cfg)
	return r
}

// Reload updates the registry based on new configuration. Providers no longer
// configured are dropped and providers with changed settings are rebuilt.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool)
	for name, provCfg := range cfg.LLMProviders {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		want[name] = true

		existing, hasExisting := r.llmClients[name]
		if hasExisting && !needsLLMUpdate(existing, provCfg) {
			continue
		}
		client := createLLMClient(name, provCfg)
		if client == nil {
			if r.logger != nil {
				r.logger.Warn("unknown LLM provider type", "name", name, "type", provCfg.Type)
			}
			continue
		}
		r.llmClients[name] = client
		if r.logger != nil {
			if hasExisting {
				r.logger.Info("updated LLM client", "name", name, "type", provCfg.Type)
			} else {
				r.logger.Info("registered LLM client", "name", name, "type", provCfg.Type)
			}
		}
	}

	for name, client := range r.llmClients {
		if _, ok := client.(*OpenAIClient); !ok {
			// Clients registered by hand (mocks) are not config-managed.
			continue
		}
		if !want[name] {
			delete(r.llmClients, name)
			if r.logger != nil {
				r.logger.Info("unregistered LLM client", "name", name)
			}
		}
	}
}

func createLLMClient(name string, cfg LLMProviderConfig) LLMClient {
	oc := OpenAIConfig{
		Name:         name,
		APIKey:       cfg.APIKey,
		BaseURL:      cfg.BaseURL,
		DefaultModel: cfg.Model,
		RPM:          cfg.RateLimit,
	}
	switch cfg.Type {
	case CohereName:
		if oc.BaseURL == "" {
			oc.BaseURL = CohereBaseURL
		}
		if oc.DefaultModel == "" {
			oc.DefaultModel = CohereModel
		}
		return NewOpenAIClient(oc)
	case OpenAIName:
		return NewOpenAIClient(oc)
	default:
		return nil
	}
}

func needsLLMUpdate(client LLMClient, cfg LLMProviderConfig) bool {
	c, ok := client.(*OpenAIClient)
	if !ok {
		return true
	}
	want, _ := createLLMClient(c.name, cfg).(*OpenAIClient)
	if want == nil {
		return true
	}
	return c.apiKey != want.apiKey ||
		c.baseURL != want.baseURL ||
		c.defaultModel != want.defaultModel ||
		c.rpm != want.rpm
}
