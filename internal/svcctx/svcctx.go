// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"

	"github.com/typenhq/typen/internal/auth"
	"github.com/typenhq/typen/internal/config"
	"github.com/typenhq/typen/internal/home"
	"github.com/typenhq/typen/internal/llmcall"
	"github.com/typenhq/typen/internal/predictor"
	"github.com/typenhq/typen/internal/providers"
	"github.com/typenhq/typen/internal/storage"
)

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Store     storage.BookStore
	Calls     llmcall.Store
	Predictor *predictor.Service
	Registry  *providers.Registry
	Issuer    *auth.Issuer
	Config    *config.Manager
	Logger    *slog.Logger
	Home      *home.Dir
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// StoreFrom extracts the book store from context.
func StoreFrom(ctx context.Context) storage.BookStore {
	if s := ServicesFrom(ctx); s != nil {
		return s.Store
	}
	return nil
}

// CallsFrom extracts the LLM call log from context.
func CallsFrom(ctx context.Context) llmcall.Store {
	if s := ServicesFrom(ctx); s != nil {
		return s.Calls
	}
	return nil
}

// PredictorFrom extracts the predictor from context.
func PredictorFrom(ctx context.Context) *predictor.Service {
	if s := ServicesFrom(ctx); s != nil {
		return s.Predictor
	}
	return nil
}

// RegistryFrom extracts the provider registry from context.
func RegistryFrom(ctx context.Context) *providers.Registry {
	if s := ServicesFrom(ctx); s != nil {
		return s.Registry
	}
	return nil
}

// IssuerFrom extracts the session token issuer from context.
func IssuerFrom(ctx context.Context) *auth.Issuer {
	if s := ServicesFrom(ctx); s != nil {
		return s.Issuer
	}
	return nil
}

// ConfigFrom extracts the config manager from context.
func ConfigFrom(ctx context.Context) *config.Manager {
	if s := ServicesFrom(ctx); s != nil {
		return s.Config
	}
	return nil
}

// LoggerFrom extracts the logger from context.
// Falls back to slog.Default so handlers can log unconditionally.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// HomeFrom extracts the home directory from context.
func HomeFrom(ctx context.Context) *home.Dir {
	if s := ServicesFrom(ctx); s != nil {
		return s.Home
	}
	return nil
}
