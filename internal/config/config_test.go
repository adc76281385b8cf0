package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	p, ok := cfg.GetLLMProvider(cfg.Predictor.Provider)
	if !ok {
		t.Fatalf("default predictor provider %q is not configured", cfg.Predictor.Provider)
	}
	if p.APIKey != "${COHERE_API_KEY}" {
		t.Errorf("expected cohere API key placeholder, got %q", p.APIKey)
	}
	if cfg.Addr() != "127.0.0.1:8080" {
		t.Errorf("Addr() = %s", cfg.Addr())
	}
	if cfg.Editor.Debounce() != 500*time.Millisecond {
		t.Errorf("Debounce() = %v", cfg.Editor.Debounce())
	}
	if cfg.Editor.AutosaveDelay() != 2*time.Second {
		t.Errorf("AutosaveDelay() = %v", cfg.Editor.AutosaveDelay())
	}
	if cfg.Editor.LeaveTimeout() != 3*time.Second {
		t.Errorf("LeaveTimeout() = %v", cfg.Editor.LeaveTimeout())
	}
	if cfg.AuthTTL() != 24*time.Hour {
		t.Errorf("AuthTTL() = %v", cfg.AuthTTL())
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})

	t.Run("expands embedded references", func(t *testing.T) {
		t.Setenv("TEST_HOST", "example.com")

		result := ResolveEnvVars("https://${TEST_HOST}/v1")
		if result != "https://example.com/v1" {
			t.Errorf("expected https://example.com/v1, got %s", result)
		}
	})
}

func TestConfig_ToProviderRegistryConfig(t *testing.T) {
	t.Setenv("TEST_COHERE_KEY", "co-key-123")

	cfg := &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"cohere": {Type: "cohere", APIKey: "${TEST_COHERE_KEY}", RateLimit: 100, Enabled: true},
			"local":  {Type: "openai", BaseURL: "http://localhost:11434/v1", APIKey: "direct-key"},
		},
	}

	reg := cfg.ToProviderRegistryConfig()
	if got := reg.LLMProviders["cohere"].APIKey; got != "co-key-123" {
		t.Errorf("cohere key = %q, want co-key-123", got)
	}
	if got := reg.LLMProviders["local"]; got.APIKey != "direct-key" || got.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("local = %+v", got)
	}
	if reg.LLMProviders["local"].Enabled {
		t.Error("local provider should stay disabled")
	}
}

func TestConfig_AuthSecret(t *testing.T) {
	t.Setenv("TEST_AUTH_SECRET", "s3cret")
	cfg := &Config{Auth: AuthCfg{Secret: "${TEST_AUTH_SECRET}"}}
	if got := cfg.AuthSecret(); got != "s3cret" {
		t.Errorf("AuthSecret() = %q", got)
	}
}

func TestEditorCfg_Fallbacks(t *testing.T) {
	var e EditorCfg
	if e.PageSize() != DefaultConfig().Editor.PageSize() {
		t.Errorf("zero page size should fall back to A4, got %+v", e.PageSize())
	}
	m := EditorCfg{FontSize: 20}.Metrics()
	if m.FontSize != 20 {
		t.Errorf("FontSize = %v, want 20", m.FontSize)
	}
}

func TestLogCfg(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			if got := (LogCfg{Level: tt.level}).SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}

	var buf bytes.Buffer
	LogCfg{Level: "info", Format: "json"}.NewLogger(&buf).Info("hello", "book_id", "b1")
	if !strings.Contains(buf.String(), `"book_id":"b1"`) {
		t.Errorf("json logger output = %s", buf.String())
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
server:
  port: 9191
predictor:
  provider: local
llm_providers:
  local:
    type: openai
    model: llama3
    base_url: http://localhost:11434/v1
    enabled: true
`)

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Server.Port != 9191 {
			t.Errorf("expected port 9191, got %d", cfg.Server.Port)
		}
		if cfg.Server.Host != "127.0.0.1" {
			t.Errorf("unset keys should keep defaults, got host %q", cfg.Server.Host)
		}
		local, ok := cfg.GetLLMProvider("local")
		if !ok || local.Model != "llama3" || !local.Enabled {
			t.Errorf("local provider = %+v, ok=%v", local, ok)
		}
		if mgr.ConfigFile() != configFile {
			t.Errorf("ConfigFile() = %s", mgr.ConfigFile())
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		configFile := writeConfig(t, "server:\n  port: 9191\n")
		t.Setenv("TYPEN_SERVER_PORT", "7070")
		t.Setenv("TYPEN_LOG_LEVEL", "debug")

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		cfg := mgr.Get()
		if cfg.Server.Port != 7070 {
			t.Errorf("expected port 7070, got %d", cfg.Server.Port)
		}
		if cfg.Log.Level != "debug" {
			t.Errorf("expected debug level, got %s", cfg.Log.Level)
		}
	})

	t.Run("rejects malformed file", func(t *testing.T) {
		configFile := writeConfig(t, "server: [unclosed\n")
		if _, err := NewManager(configFile); err == nil {
			t.Error("expected error for malformed config")
		}
	})
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Typen configuration") {
		t.Errorf("missing header:\n%s", data)
	}

	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("written default should load: %v", err)
	}
	cfg := mgr.Get()
	def := DefaultConfig()
	if cfg.Server != def.Server || cfg.Predictor != def.Predictor || cfg.Editor != def.Editor {
		t.Errorf("loaded config differs from defaults: %+v", cfg)
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "log:\n  level: info\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "log:\n  level: info\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Log.Level
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, "log:\n  level: info\n")

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if lvl := mgr.Get().Log.Level; lvl != "info" {
		t.Errorf("initial value mismatch: expected info, got %s", lvl)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Log.Level)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("log:\n  level: debug\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := lastValue.Load().(string); v == "debug" {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if lvl := mgr.Get().Log.Level; lvl != "debug" {
		t.Errorf("config not updated: expected debug, got %s", lvl)
	}
	if v := lastValue.Load(); v != "debug" {
		t.Errorf("callback received wrong value: expected debug, got %v", v)
	}
}
