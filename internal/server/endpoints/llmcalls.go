package endpoints

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/auth"
	"github.com/typenhq/typen/internal/llmcall"
	"github.com/typenhq/typen/internal/svcctx"
	"github.com/typenhq/typen/internal/types"
)

// LLMCallsResponse is the response for listing LLM calls.
type LLMCallsResponse struct {
	Status string         `json:"status"`
	Calls  []llmcall.Call `json:"calls"`
	Count  int            `json:"count"`
}

// ListLLMCallsEndpoint handles GET /api/llmcalls.
type ListLLMCallsEndpoint struct{}

func (e *ListLLMCallsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/llmcalls", e.handler
}

func (e *ListLLMCallsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List LLM calls
//	@Description	Recorded prediction calls of the caller, newest first
//	@Tags			llmcalls
//	@Produce		json
//	@Param			provider	query		string	false	"Filter by provider"
//	@Param			success		query		string	false	"true or false"
//	@Param			since		query		string	false	"Only calls after this duration ago (e.g. 1h)"
//	@Param			limit		query		int		false	"Maximum results (default 50)"
//	@Param			offset		query		int		false	"Results to skip"
//	@Success		200			{object}	LLMCallsResponse
//	@Failure		400			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/api/llmcalls [get]
func (e *ListLLMCallsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	calls := svcctx.CallsFrom(r.Context())
	if calls == nil {
		writeError(w, http.StatusServiceUnavailable, "llm call log not available")
		return
	}

	q := r.URL.Query()
	f := llmcall.QueryFilter{Provider: q.Get("provider")}
	if u, ok := auth.UserFrom(r.Context()); ok {
		f.UserID = u.ID
	}
	switch q.Get("success") {
	case "":
	case "true":
		f.Success = types.Bool(true)
	case "false":
		f.Success = types.Bool(false)
	default:
		writeError(w, http.StatusBadRequest, "success must be true or false")
		return
	}
	if v := q.Get("since"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "since must be a positive duration")
			return
		}
		after := time.Now().Add(-d)
		f.After = &after
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, name+" must be a non-negative integer")
			return
		}
		*dst = n
	}

	list, err := calls.ListLLMCalls(r.Context(), f)
	if err != nil {
		svcctx.LoggerFrom(r.Context()).Error("failed to list llm calls", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	writeJSON(w, http.StatusOK, LLMCallsResponse{Status: "success", Calls: list, Count: len(list)})
}

func (e *ListLLMCallsEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		provider, success, since string
		limit                    int
	)
	cmd := &cobra.Command{
		Use:   "llmcalls",
		Short: "List recorded prediction calls",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if provider != "" {
				q.Set("provider", provider)
			}
			if success != "" {
				q.Set("success", success)
			}
			if since != "" {
				q.Set("since", since)
			}
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			path := "/api/llmcalls"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			var resp LLMCallsResponse
			if err := newClient(getServerURL).Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider")
	cmd.Flags().StringVar(&success, "success", "", "Filter by outcome (true or false)")
	cmd.Flags().StringVar(&since, "since", "", "Only calls newer than this duration (e.g. 24h)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum results")
	return cmd
}
