package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/client"
	"github.com/typenhq/typen/internal/svcctx"
)

// TokenEnv holds the bearer token CLI commands send.
const TokenEnv = "TYPEN_TOKEN"

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status    string `json:"status"`
	Store     string `json:"store,omitempty"`
	Predictor string `json:"predictor,omitempty"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) Public() bool { return true }

// handler godoc
//
//	@Summary	Health check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Router		/health [get]
func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp HealthResponse
			if err := newClient(getServerURL).Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Status: %s\n", resp.Status)
			return nil
		},
	}
}

// ReadyEndpoint handles GET /ready.
type ReadyEndpoint struct{}

func (e *ReadyEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/ready", e.handler
}

func (e *ReadyEndpoint) RequiresInit() bool { return false }

func (e *ReadyEndpoint) Public() bool { return true }

// handler godoc
//
//	@Summary		Readiness check
//	@Description	Reports whether the book store answers and a language model is configured
//	@Tags			health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse
//	@Router			/ready [get]
func (e *ReadyEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{Status: "ok", Store: "ok", Predictor: "ok"}

	store := svcctx.StoreFrom(r.Context())
	switch {
	case store == nil:
		resp.Status = "degraded"
		resp.Store = "not_initialized"
	case store.Ping(r.Context()) != nil:
		resp.Status = "degraded"
		resp.Store = "unhealthy"
	}

	// A missing model only degrades predictions; books still work.
	if !svcctx.PredictorFrom(r.Context()).Configured() {
		resp.Predictor = "not_configured"
	}

	if resp.Status != "ok" {
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ReadyEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "ready",
		Short: "Check server readiness (includes the book store)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp HealthResponse
			err := newClient(getServerURL).Get(cmd.Context(), "/ready", &resp)
			if resp.Status != "" {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Status:    %s\n", resp.Status)
				fmt.Fprintf(out, "Store:     %s\n", resp.Store)
				fmt.Fprintf(out, "Predictor: %s\n", resp.Predictor)
			}
			return err
		},
	}
}

// newClient builds an API client that sends the token from TYPEN_TOKEN.
func newClient(getServerURL func() string) *api.Client {
	return api.NewClient(getServerURL(), api.WithToken(func() string {
		return os.Getenv(TokenEnv)
	}))
}

// newBooksClient wraps newClient with the typed book API.
func newBooksClient(getServerURL func() string) *client.Client {
	return client.New(newClient(getServerURL))
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is a standard error response.
type ErrorResponse = api.ErrorResponse

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Status: "error", Message: msg})
}
