package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/client"
)

// DeleteBookEndpoint handles DELETE /api/books/{id}.
type DeleteBookEndpoint struct{}

func (e *DeleteBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "DELETE", "/api/books/{id}", e.handler
}

func (e *DeleteBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Delete a book
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book ID"
//	@Success		200	{object}	client.StatusResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/books/{id} [delete]
func (e *DeleteBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "book id is required")
		return
	}

	store, ok := bookStore(w, r)
	if !ok {
		return
	}
	if _, ok := ownedBook(w, r, store, id); !ok {
		return
	}
	if err := store.DeleteBook(r.Context(), id); err != nil {
		writeStoreError(w, r, err, "Book not found")
		return
	}

	writeJSON(w, http.StatusOK, client.StatusResponse{Status: "success", Message: "Book deleted successfully"})
}

func (e *DeleteBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := newBooksClient(getServerURL).DeleteBook(cmd.Context(), args[0]); err != nil {
				return err
			}
			return api.Output(client.StatusResponse{Status: "success", Message: "Book deleted successfully"})
		},
	}
}
