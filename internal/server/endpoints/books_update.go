package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/client"
	"github.com/typenhq/typen/internal/document"
	"github.com/typenhq/typen/internal/types"
)

// UpdateBookEndpoint handles PUT /api/books/{id}.
type UpdateBookEndpoint struct{}

func (e *UpdateBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "PUT", "/api/books/{id}", e.handler
}

func (e *UpdateBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Update a book
//	@Description	Apply a partial update to a book's content or metadata
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Book ID"
//	@Param			request	body		types.BookUpdate	true	"Fields to change"
//	@Success		200		{object}	client.StatusResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Router			/api/books/{id} [put]
func (e *UpdateBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "book id is required")
		return
	}

	var req types.BookUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}

	store, ok := bookStore(w, r)
	if !ok {
		return
	}
	if _, ok := ownedBook(w, r, store, id); !ok {
		return
	}
	if _, err := store.UpdateBook(r.Context(), id, req); err != nil {
		writeStoreError(w, r, err, "Book not found or no changes made")
		return
	}

	writeJSON(w, http.StatusOK, client.StatusResponse{Status: "success", Message: "Book updated successfully"})
}

func (e *UpdateBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		title, description, genre, cover string
		status, contentFile              string
		favorite, archived               bool
	)
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a book's metadata or content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var u types.BookUpdate
			flags := cmd.Flags()
			if flags.Changed("title") {
				u.Title = &title
			}
			if flags.Changed("description") {
				u.Description = &description
			}
			if flags.Changed("genre") {
				u.Genre = &genre
			}
			if flags.Changed("cover") {
				u.CoverImage = &cover
			}
			if flags.Changed("status") {
				s := types.BookStatus(status)
				u.Status = &s
			}
			if flags.Changed("favorite") {
				u.IsFavorite = &favorite
			}
			if flags.Changed("archived") {
				u.IsArchived = &archived
			}
			if contentFile != "" {
				data, err := os.ReadFile(contentFile)
				if err != nil {
					return fmt.Errorf("failed to read content: %w", err)
				}
				content := string(data)
				words := document.Load(args[0], content).Counts().Words
				u.Content = &content
				u.WordCount = &words
			}
			if u.Empty() {
				return fmt.Errorf("at least one field flag must be specified")
			}

			if err := newBooksClient(getServerURL).UpdateBook(cmd.Context(), args[0], u); err != nil {
				return err
			}
			return api.Output(client.StatusResponse{Status: "success", Message: "Book updated successfully"})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVar(&genre, "genre", "", "New genre")
	cmd.Flags().StringVar(&cover, "cover", "", "New cover image")
	cmd.Flags().StringVar(&status, "status", "", "New status (draft, published)")
	cmd.Flags().BoolVar(&favorite, "favorite", false, "Mark as favorite")
	cmd.Flags().BoolVar(&archived, "archived", false, "Archive the book")
	cmd.Flags().StringVar(&contentFile, "content-file", "", "Replace content with this file; the word count is recomputed")
	return cmd
}
