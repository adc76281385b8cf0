package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/auth"
)

// SessionResponse describes the caller's session.
type SessionResponse struct {
	Status string     `json:"status"`
	User   *auth.User `json:"user,omitempty"`
}

// SessionEndpoint handles GET /api/session.
type SessionEndpoint struct{}

func (e *SessionEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/session", e.handler
}

func (e *SessionEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Current session
//	@Description	Returns the user the bearer token belongs to
//	@Tags			auth
//	@Produce		json
//	@Success		200	{object}	SessionResponse
//	@Failure		401	{object}	ErrorResponse
//	@Router			/api/session [get]
func (e *SessionEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := SessionResponse{Status: "success"}
	if u, ok := auth.UserFrom(r.Context()); ok {
		resp.User = &u
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *SessionEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the user the current token belongs to",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp SessionResponse
			if err := newClient(getServerURL).Get(cmd.Context(), "/api/session", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
