package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/auth"
	"github.com/typenhq/typen/internal/config"
	"github.com/typenhq/typen/internal/home"
	"github.com/typenhq/typen/internal/llmcall"
	"github.com/typenhq/typen/internal/predictor"
	"github.com/typenhq/typen/internal/providers"
	"github.com/typenhq/typen/internal/server/endpoints"
	"github.com/typenhq/typen/internal/storage"
	"github.com/typenhq/typen/internal/storage/sqlite"
	"github.com/typenhq/typen/internal/svcctx"
)

// Server is the main Typen HTTP server.
// It opens the book store on start and closes it on shutdown.
type Server struct {
	httpServer  *http.Server
	store       storage.BookStore
	storagePath string
	ownsStore   bool
	calls       llmcall.Store
	recorder    *llmcall.Recorder
	registry    *providers.Registry
	configMgr   *config.Manager
	issuer      *auth.Issuer
	home        *home.Dir
	logger      *slog.Logger

	// services holds all core services for context enrichment. It is
	// swapped whole when the config reloads.
	services atomic.Pointer[svcctx.Services]

	// endpoints registry for HTTP routes
	endpointRegistry *api.Registry

	mu      sync.RWMutex
	running bool
	addr    string
	ready   chan struct{}
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1)
	Host string
	// Port is the port to listen on (default: 8080). "0" picks a free port.
	Port string
	// Store is used as-is when set. Otherwise a SQLite store is opened at
	// StoragePath on start.
	Store       storage.BookStore
	StoragePath string
	// ConfigManager provides configuration with hot-reload support
	ConfigManager *config.Manager
	// Registry overrides the provider registry built from config.
	Registry *providers.Registry
	// Issuer verifies bearer tokens. Nil disables authentication.
	Issuer *auth.Issuer
	Home   *home.Dir
	// Logger is the structured logger to use
	Logger *slog.Logger
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Store == nil && cfg.StoragePath == "" {
		return nil, errors.New("either a store or a storage path is required")
	}

	// Create provider registry
	registry := cfg.Registry
	if registry == nil {
		registry = providers.NewRegistry()
		registry.SetLogger(cfg.Logger)
		if cfg.ConfigManager != nil {
			registry.Reload(cfg.ConfigManager.Get().ToProviderRegistryConfig())
		}
	}

	s := &Server{
		store:       cfg.Store,
		storagePath: cfg.StoragePath,
		ownsStore:   cfg.Store == nil,
		registry:    registry,
		configMgr:   cfg.ConfigManager,
		issuer:      cfg.Issuer,
		home:        cfg.Home,
		logger:      cfg.Logger,
	}
	if s.issuer == nil {
		s.logger.Warn("authentication disabled: no auth secret configured")
	}

	// Create endpoint registry and register all endpoints
	s.endpointRegistry = api.NewRegistry()
	for _, ep := range endpoints.All() {
		s.endpointRegistry.Register(ep)
	}

	// Set up HTTP server
	mux := http.NewServeMux()
	s.endpointRegistry.RegisterRoutes(mux, s.requireInit, s.requireAuth)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withServices(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start opens the book store and serves HTTP.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.ready = make(chan struct{})
	s.mu.Unlock()

	if s.store == nil {
		s.logger.Info("opening book store", "path", s.storagePath)
		store, err := sqlite.Open(ctx, s.storagePath)
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("failed to open book store: %w", err)
		}
		s.store = store
	}
	if calls, ok := s.store.(llmcall.Store); ok {
		s.calls = calls
		s.recorder = llmcall.NewRecorder(calls, s.logger)
	}

	s.publish()
	if s.configMgr != nil {
		s.configMgr.OnChange(func(c *config.Config) {
			if !s.IsRunning() {
				return
			}
			s.registry.Reload(c.ToProviderRegistryConfig())
			s.publish()
			s.logger.Info("provider registry reloaded from config")
		})
	}

	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		_ = s.shutdown()
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr().String()
	close(s.ready)
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			s.logger.Info("shutdown signal received")
		}
		return s.shutdown()
	})
	return g.Wait()
}

// publish builds the services snapshot handlers see. It runs on start and
// after every config reload so the predictor follows the registry.
func (s *Server) publish() {
	svc := &svcctx.Services{
		Store:     s.store,
		Calls:     s.calls,
		Predictor: s.newPredictor(),
		Registry:  s.registry,
		Issuer:    s.issuer,
		Config:    s.configMgr,
		Logger:    s.logger,
		Home:      s.home,
	}
	s.services.Store(svc)
}

// newPredictor wires the configured LLM provider into a predictor. A
// missing provider yields a predictor that still answers empty text.
func (s *Server) newPredictor() *predictor.Service {
	cfg := predictor.Config{Logger: s.logger}
	if s.recorder != nil {
		cfg.Recorder = s.recorder
	}
	name := providers.CohereName
	if s.configMgr != nil {
		c := s.configMgr.Get()
		name = c.Predictor.Provider
		if c.Predictor.RepairAttempts > 0 {
			cfg.RepairAttempts = uint(c.Predictor.RepairAttempts)
		}
		cfg.Timeout = c.PredictorTimeout()
	}
	client, err := s.registry.GetLLM(name)
	if err != nil {
		s.logger.Warn("predictions disabled", "provider", name, "error", err)
		return predictor.New(cfg)
	}
	cfg.Client = client
	return predictor.New(cfg)
}

// shutdown performs graceful shutdown of the HTTP server and the store.
func (s *Server) shutdown() error {
	s.logger.Info("shutting down server")

	// Shutdown HTTP server with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
	}

	// Flush recorded calls before the store goes away.
	s.recorder.Close()
	s.recorder = nil
	s.calls = nil

	if s.ownsStore && s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Error("book store close error", "error", err)
		}
		s.store = nil
	}
	s.services.Store(nil)

	s.setNotRunning()
	s.logger.Info("server stopped")
	return nil
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// IsRunning returns whether the server is currently running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Ready returns a channel closed once the server is listening.
// It returns nil before Start is called.
func (s *Server) Ready() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Addr returns the server's listen address. After Start it reports the
// bound address, which matters when the port was "0".
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.addr != "" {
		return s.addr
	}
	return s.httpServer.Addr
}

// Registry returns the provider registry.
func (s *Server) Registry() *providers.Registry {
	return s.registry
}

// Handler returns the server's root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc := s.services.Load(); svc != nil {
			ctx = svcctx.WithServices(ctx, svc)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireInit is middleware that ensures the server is fully initialized.
// Returns 503 Service Unavailable if the book store isn't open yet.
func (s *Server) requireInit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svcctx.StoreFrom(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"error","message":"server not fully initialized"}`))
			return
		}
		next(w, r)
	}
}

// requireAuth adapts auth.Middleware to the endpoint registry.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return auth.Middleware(s.issuer, s.logger)(next).ServeHTTP
}
