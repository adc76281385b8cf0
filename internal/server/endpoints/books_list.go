package endpoints

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/client"
	"github.com/typenhq/typen/internal/types"
)

// ListBooksEndpoint handles GET /api/books/user/{userId}.
type ListBooksEndpoint struct{}

func (e *ListBooksEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/user/{userId}", e.handler
}

func (e *ListBooksEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List a user's books
//	@Description	List books most recently updated first, with content shortened to a preview
//	@Tags			books
//	@Produce		json
//	@Param			userId		path		string	true	"User ID"
//	@Param			archived	query		string	false	"true or false"
//	@Param			favorite	query		string	false	"true to list favorites only"
//	@Param			status		query		string	false	"draft or published"
//	@Success		200			{object}	client.BooksResponse
//	@Failure		403			{object}	ErrorResponse
//	@Failure		500			{object}	ErrorResponse
//	@Failure		503			{object}	ErrorResponse
//	@Router			/api/books/user/{userId} [get]
func (e *ListBooksEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user id is required")
		return
	}
	if !sameUser(r, userID) {
		writeError(w, http.StatusForbidden, "cannot list another user's books")
		return
	}

	store, ok := bookStore(w, r)
	if !ok {
		return
	}
	books, err := store.ListBooks(r.Context(), userID, ParseFilter(r))
	if err != nil {
		writeStoreError(w, r, err, "Book not found")
		return
	}
	for i := range books {
		books[i].Content = Preview(books[i].Content)
	}

	writeJSON(w, http.StatusOK, client.BooksResponse{Status: "success", Books: books, Count: len(books)})
}

// ParseFilter reads the archived, favorite and status query parameters.
// Only favorite=true narrows by favorite; archived accepts true or false.
func ParseFilter(r *http.Request) types.BookFilter {
	q := r.URL.Query()
	var f types.BookFilter
	switch strings.ToLower(q.Get("archived")) {
	case "true":
		f.Archived = types.Bool(true)
	case "false":
		f.Archived = types.Bool(false)
	}
	if strings.EqualFold(q.Get("favorite"), "true") {
		f.Favorite = types.Bool(true)
	}
	if s := q.Get("status"); s != "" {
		status := types.BookStatus(s)
		f.Status = &status
	}
	return f
}

func (e *ListBooksEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		archived, status string
		favorite         bool
	)
	cmd := &cobra.Command{
		Use:   "list <user-id>",
		Short: "List a user's books",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var f types.BookFilter
			switch archived {
			case "":
			case "true":
				f.Archived = types.Bool(true)
			case "false":
				f.Archived = types.Bool(false)
			default:
				return fmt.Errorf("--archived must be true or false")
			}
			if favorite {
				f.Favorite = types.Bool(true)
			}
			if status != "" {
				s := types.BookStatus(status)
				f.Status = &s
			}
			books, err := newBooksClient(getServerURL).ListBooks(cmd.Context(), args[0], f)
			if err != nil {
				return err
			}
			return api.Output(client.BooksResponse{Status: "success", Books: books, Count: len(books)})
		},
	}
	cmd.Flags().StringVar(&archived, "archived", "", "Filter by archived state (true or false)")
	cmd.Flags().BoolVar(&favorite, "favorite", false, "Only favorites")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}
