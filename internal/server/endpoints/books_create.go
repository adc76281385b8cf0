package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/client"
	"github.com/typenhq/typen/internal/types"
)

// CreateBookEndpoint handles POST /api/books.
type CreateBookEndpoint struct{}

func (e *CreateBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/books", e.handler
}

func (e *CreateBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Create a book
//	@Description	Create a draft book for a user
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			request	body		types.NewBook	true	"Book to create"
//	@Success		201		{object}	client.BookResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Failure		403		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books [post]
func (e *CreateBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req types.NewBook
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "User ID and title are required")
		return
	}
	if !sameUser(r, req.UserID) {
		writeError(w, http.StatusForbidden, "cannot create books for another user")
		return
	}

	store, ok := bookStore(w, r)
	if !ok {
		return
	}
	book, err := store.CreateBook(r.Context(), req)
	if err != nil {
		writeStoreError(w, r, err, "Book not found")
		return
	}

	writeJSON(w, http.StatusCreated, client.BookResponse{Status: "success", Book: book})
}

func (e *CreateBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var req types.NewBook
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new book",
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.UserID == "" || req.Title == "" {
				return fmt.Errorf("--user and --title are required")
			}
			book, err := newBooksClient(getServerURL).CreateBook(cmd.Context(), req)
			if err != nil {
				return err
			}
			return api.Output(book)
		},
	}
	cmd.Flags().StringVar(&req.UserID, "user", "", "Owner user id (required)")
	cmd.Flags().StringVar(&req.Title, "title", "", "Book title (required)")
	cmd.Flags().StringVar(&req.Description, "description", "", "Short description")
	cmd.Flags().StringVar(&req.Genre, "genre", "", "Genre used for predictions")
	cmd.Flags().StringVar(&req.CoverImage, "cover", "", "Cover image URL or data URI")
	return cmd
}
