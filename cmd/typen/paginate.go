package main

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/typenhq/typen/internal/api"
	"github.com/typenhq/typen/internal/document"
	"github.com/typenhq/typen/internal/export"
	"github.com/typenhq/typen/internal/layout"
	"github.com/typenhq/typen/internal/pagination"
	"github.com/typenhq/typen/internal/types"
)

const paginatePasses = 100

var (
	paginatePDF   string
	paginatePlain bool
)

// PageReport describes one laid-out page.
type PageReport struct {
	Page   int     `json:"page" yaml:"page"`
	Height float64 `json:"height" yaml:"height"`
	Blocks int     `json:"blocks" yaml:"blocks"`
	Words  int     `json:"words" yaml:"words"`
}

// PaginateReport is the output of typen paginate.
type PaginateReport struct {
	File      string            `json:"file" yaml:"file"`
	Pages     int               `json:"pages" yaml:"pages"`
	Words     int               `json:"words" yaml:"words"`
	Chars     int               `json:"chars" yaml:"chars"`
	Passes    int               `json:"passes" yaml:"passes"`
	Reflow    pagination.Report `json:"reflow" yaml:"reflow"`
	PageSizes []PageReport      `json:"page_sizes" yaml:"page_sizes"`
}

var paginateCmd = &cobra.Command{
	Use:   "paginate <file>",
	Short: "Lay out a document offline and report its pages",
	Long: `Paginate a stored book document (or a plain text file with --plain)
using the editor's page geometry, without a server.

Examples:
  typen paginate chapter.html
  typen paginate notes.txt --plain
  typen paginate chapter.html --pdf chapter.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cm, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := cm.Get()
		logger := cfg.Log.NewLogger(cmd.ErrOrStderr())

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		content := string(raw)
		if paginatePlain {
			content = plainToMarkup(content)
		}

		doc := document.Load(args[0], content)
		frags, err := pagination.ParsePages(doc.Pages())
		if err != nil {
			return err
		}
		measurer := layout.NewTextMeasurer(cfg.Editor.Metrics())
		engine := pagination.New(pagination.Config{
			Measurer: measurer,
			Size:     cfg.Editor.PageSize(),
			Logger:   logger,
		})
		engine.Load(frags)
		rep, passes := engine.Settle(paginatePasses)
		counts := doc.SetPages(engine.Render())

		report := PaginateReport{
			File:   args[0],
			Pages:  engine.PageCount(),
			Words:  counts.Words,
			Chars:  counts.Chars,
			Passes: passes,
			Reflow: rep,
		}
		pages := engine.Pages()
		for i, markup := range doc.Pages() {
			report.PageSizes = append(report.PageSizes, PageReport{
				Page:   i + 1,
				Height: engine.Height(i),
				Blocks: len(pages[i].Blocks),
				Words:  document.Count(document.StripMarkup(markup)).Words,
			})
		}

		if paginatePDF != "" {
			var buf bytes.Buffer
			book := types.Book{ID: filepath.Base(args[0]), Content: content}
			if _, err := export.WritePDF(&buf, book, export.Options{
				Size:        cfg.Editor.PageSize(),
				Metrics:     cfg.Editor.Metrics(),
				PageNumbers: true,
				Logger:      logger,
			}); err != nil {
				return err
			}
			if err := os.WriteFile(paginatePDF, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", paginatePDF, err)
			}
			logger.Info("wrote pdf", "file", paginatePDF, "bytes", buf.Len())
		}

		return api.Output(report)
	},
}

// plainToMarkup turns each non-blank line of plain text into a paragraph.
// A form feed starts a new page.
func plainToMarkup(text string) string {
	var pages []string
	for _, page := range strings.Split(text, "\f") {
		var sb strings.Builder
		for _, line := range strings.Split(page, "\n") {
			line = strings.TrimRight(line, "\r")
			if strings.TrimSpace(line) == "" {
				continue
			}
			sb.WriteString("<p>")
			sb.WriteString(html.EscapeString(line))
			sb.WriteString("</p>")
		}
		pages = append(pages, sb.String())
	}
	return strings.Join(pages, document.PageBreakMarker)
}

func init() {
	paginateCmd.Flags().StringVar(&paginatePDF, "pdf", "", "Also write a PDF to this path")
	paginateCmd.Flags().BoolVar(&paginatePlain, "plain", false, "Treat the file as plain text")

	rootCmd.AddCommand(paginateCmd)
}
