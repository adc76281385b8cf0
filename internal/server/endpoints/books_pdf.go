package endpoints

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/export"
	"github.com/typenhq/typen/internal/svcctx"
)

// ExportPDFEndpoint handles GET /api/books/{id}/pdf.
type ExportPDFEndpoint struct{}

func (e *ExportPDFEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/books/{id}/pdf", e.handler
}

func (e *ExportPDFEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Export a book as PDF
//	@Description	Paginate the book onto A4 sheets and render them as a PDF
//	@Tags			books
//	@Produce		application/pdf
//	@Param			id	path		string	true	"Book ID"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	ErrorResponse
//	@Failure		500	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/books/{id}/pdf [get]
func (e *ExportPDFEndpoint) handler(w http.ResponseWriter, r *http.Request) {
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

	logger := svcctx.LoggerFrom(r.Context())
	opts := export.Options{PageNumbers: true, Logger: logger}
	if cm := svcctx.ConfigFrom(r.Context()); cm != nil {
		ed := cm.Get().Editor
		opts.Size = ed.PageSize()
		opts.Metrics = ed.Metrics()
	}

	var buf bytes.Buffer
	pages, err := export.WritePDF(&buf, book, opts)
	if err != nil {
		logger.Error("pdf export failed", "book_id", book.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to export book")
		return
	}

	// Keep the latest export of each book in the home directory.
	if h := svcctx.HomeFrom(r.Context()); h != nil {
		if err := os.WriteFile(h.ExportPath(book.ID), buf.Bytes(), 0o644); err != nil {
			logger.Warn("failed to keep pdf export", "book_id", book.ID, "error", err)
		}
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", book.ID+".pdf"))
	w.Header().Set("X-Page-Count", strconv.Itoa(pages))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (e *ExportPDFEndpoint) Command(getServerURL func() string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "pdf <id>",
		Short: "Export a book as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := newBooksClient(getServerURL).ExportPDF(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if file == "" {
				file = args[0] + ".pdf"
			}
			if err := os.WriteFile(file, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", file, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", file, len(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Output path (default <id>.pdf)")
	return cmd
}
