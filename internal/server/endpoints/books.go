package endpoints

import (
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/typenhq/typen/internal/auth"
	"github.com/typenhq/typen/internal/storage"
	"github.com/typenhq/typen/internal/svcctx"
	"github.com/typenhq/typen/internal/types"
)

// PreviewLength is how many runes of content a listing carries.
const PreviewLength = 100

// bookStore returns the book store, writing 503 when it is missing.
func bookStore(w http.ResponseWriter, r *http.Request) (storage.BookStore, bool) {
	store := svcctx.StoreFrom(r.Context())
	if store == nil {
		writeError(w, http.StatusServiceUnavailable, "book store not initialized")
		return nil, false
	}
	return store, true
}

// sameUser reports whether the authenticated caller is userID. Requests
// without an authenticated user pass, which happens when auth is disabled.
func sameUser(r *http.Request, userID string) bool {
	u, ok := auth.UserFrom(r.Context())
	return !ok || u.ID == userID
}

// ownedBook loads a book for the caller. Books owned by someone else are
// reported as missing.
func ownedBook(w http.ResponseWriter, r *http.Request, store storage.BookStore, id string) (types.Book, bool) {
	book, err := store.GetBook(r.Context(), id)
	if err == nil && !sameUser(r, book.UserID) {
		err = storage.ErrNotFound
	}
	if err != nil {
		writeStoreError(w, r, err, "Book not found")
		return types.Book{}, false
	}
	return book, true
}

// writeStoreError maps storage errors onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, storage.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		svcctx.LoggerFrom(r.Context()).Error("book store failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// Preview shortens content for listings: content longer than
// PreviewLength runes is cut and suffixed with "...".
func Preview(content string) string {
	if utf8.RuneCountInString(content) <= PreviewLength {
		return content
	}
	runes := []rune(content)
	return string(runes[:PreviewLength]) + "..."
}
