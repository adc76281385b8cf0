package endpoints

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/client"
	"github.com/typenhq/typen/internal/predictor"
	"github.com/typenhq/typen/internal/svcctx"
	"github.com/typenhq/typen/internal/types"
)

// PredictEndpoint handles POST /api/predict.
type PredictEndpoint struct{}

func (e *PredictEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/predict", e.handler
}

// RequiresInit is false: empty text is answered without a model, and a
// missing model is reported by the handler itself.
func (e *PredictEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		Predict next words
//	@Description	Five probable and three creative next-word suggestions for the text so far
//	@Tags			predict
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.PredictRequest	true	"Text and genre"
//	@Success		200		{object}	client.PredictResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/api/predict [post]
func (e *PredictEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req types.PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	preds, err := svcctx.PredictorFrom(r.Context()).Predict(r.Context(), req)
	if err != nil {
		if errors.Is(err, predictor.ErrNotConfigured) {
			writeError(w, http.StatusInternalServerError, "language model not configured")
			return
		}
		svcctx.LoggerFrom(r.Context()).Error("prediction failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, client.PredictResponse{Status: "success", Predictions: preds})
}

func (e *PredictEndpoint) Command(getServerURL func() string) *cobra.Command {
	var genre string
	cmd := &cobra.Command{
		Use:   "predict <text>",
		Short: "Predict the next words for some text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			preds, err := newBooksClient(getServerURL).Predict(cmd.Context(), types.PredictRequest{Text: args[0], Genre: genre})
			if err != nil {
				return err
			}
			return api.Output(preds)
		},
	}
	cmd.Flags().StringVar(&genre, "genre", "", "Genre (default fiction)")
	return cmd
}
