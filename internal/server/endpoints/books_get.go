package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/client"
)

// GetBookEndpoint handles GET /api/books/{id}.
type GetBookEndpoint struct{}

func (e *GetBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{id}", e.handler
}

func (e *GetBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get book by ID
//	@Description	Get a book including its full content
//	@Tags			books
//	@Produce		json
//	@Param			id	path		string	true	"Book ID"
//	@Success		200	{object}	client.BookResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/books/{id} [get]
func (e *GetBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "book id is required")
		return
	}

	store, ok := bookStore(w, r)
	if !ok {
		return
	}
	book, ok := ownedBook(w, r, store, id)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, client.BookResponse{Status: "success", Book: book})
}

func (e *GetBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			book, err := newBooksClient(getServerURL).GetBook(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return api.Output(book)
		},
	}
}
