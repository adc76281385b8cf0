// Package export renders a paginated book as an A4 PDF.
//
// Pages come from the same pagination engine the editor uses, so a PDF
// page holds exactly what the editor shows on that sheet. The layout is
// handed to pdfcpu as a create descriptor.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/typenhq/typen/internal/document"
	"github.com/typenhq/typen/internal/layout"
	"github.com/typenhq/typen/internal/pagination"
	"github.com/typenhq/typen/internal/richtext"
	"github.com/typenhq/typen/internal/types"
)

const (
	// PointsPerPixel converts 96 dpi CSS pixels to PDF points.
	PointsPerPixel = 0.75

	// A4 in points.
	pageWidthPt  = 595.28
	pageHeightPt = 841.89
	marginPt     = 72

	settlePasses = 100
)

// Descriptor is the pdfcpu create document.
type Descriptor struct {
	Paper string           `json:"paper"`
	Pages map[string]*Page `json:"pages"`
}

// Page is one sheet of the descriptor.
type Page struct {
	Content Content `json:"content"`
}

// Content lists the positioned text of a sheet.
type Content struct {
	Text []TextBox `json:"text"`
}

// TextBox is one line of text. Pos is its lower-left corner in points.
type TextBox struct {
	Value string     `json:"value"`
	Pos   [2]float64 `json:"pos"`
	Font  Font       `json:"font"`
}

// Font names a PDF core font.
type Font struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Options configures the page geometry and typography.
type Options struct {
	Size        layout.PageSize
	Metrics     layout.Metrics
	PageNumbers bool
	Logger      *slog.Logger
}

// Build paginates content and lays out every line. It returns the
// descriptor and the number of pages.
func Build(content string, opts Options) (*Descriptor, int, error) {
	if opts.Size.Width <= 0 || opts.Size.Height <= 0 {
		opts.Size = layout.A4
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	measurer := layout.NewTextMeasurer(opts.Metrics)
	m := measurer.Metrics()

	doc := document.Load("", content)
	frags, err := pagination.ParsePages(doc.Pages())
	if err != nil {
		return nil, 0, err
	}
	engine := pagination.New(pagination.Config{
		Measurer: measurer,
		Size:     opts.Size,
		Logger:   opts.Logger,
	})
	engine.Load(frags)
	if rep, _ := engine.Settle(settlePasses); len(rep.Oversized) > 0 {
		opts.Logger.Warn("exporting pages with oversized content", "pages", rep.Oversized)
	}

	pages := engine.Pages()
	desc := &Descriptor{Paper: "A4", Pages: make(map[string]*Page, len(pages))}
	for i, p := range pages {
		sheet := &Page{}
		top := pageHeightPt - marginPt
		y := 0.0
		for j, b := range p.Blocks {
			if j > 0 {
				y += m.BlockSpacing
			}
			lineHeight := measurer.LineHeightPx(b.Kind)
			size := m.FontSize * layout.Scale(b.Kind)
			indent := 0.0
			if b.Kind == richtext.Quote {
				indent = m.QuoteIndent
			}
			font := Font{Name: FontFor(b), Size: int(math.Round(size * PointsPerPixel))}
			for _, line := range measurer.Lines(b, opts.Size.Width) {
				// Baseline sits one font size below the top of the line box.
				baseline := y + (lineHeight-size)/2 + size
				y += lineHeight
				if line == "" {
					continue
				}
				sheet.Content.Text = append(sheet.Content.Text, TextBox{
					Value: line,
					Pos:   [2]float64{round2(marginPt + indent*PointsPerPixel), round2(top - baseline*PointsPerPixel)},
					Font:  font,
				})
			}
		}
		if opts.PageNumbers {
			n := strconv.Itoa(i + 1)
			sheet.Content.Text = append(sheet.Content.Text, TextBox{
				Value: n,
				Pos:   [2]float64{round2(pageWidthPt / 2), marginPt / 2},
				Font:  Font{Name: "Helvetica", Size: 9},
			})
		}
		desc.Pages[strconv.Itoa(i+1)] = sheet
	}
	return desc, len(pages), nil
}

// FontFor picks the core font for a block: headings are bold, quotes are
// oblique, and a block styled bold or italic throughout uses that face.
func FontFor(b richtext.Block) string {
	n := b.Len()
	bold := b.Kind == richtext.Heading1 || b.Kind == richtext.Heading2 || b.Kind == richtext.Heading3 ||
		(n > 0 && b.HasStyle(0, n, richtext.Bold))
	italic := b.Kind == richtext.Quote || (n > 0 && b.HasStyle(0, n, richtext.Italic))
	switch {
	case bold && italic:
		return "Helvetica-BoldOblique"
	case bold:
		return "Helvetica-Bold"
	case italic:
		return "Helvetica-Oblique"
	}
	return "Helvetica"
}

// WritePDF renders a book to w and returns the page count.
func WritePDF(w io.Writer, book types.Book, opts Options) (int, error) {
	desc, _, err := Build(book.Content, opts)
	if err != nil {
		return 0, fmt.Errorf("failed to lay out book %s: %w", book.ID, err)
	}
	data, err := json.Marshal(desc)
	if err != nil {
		return 0, fmt.Errorf("failed to encode layout: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var buf bytes.Buffer
	if err := api.Create(nil, bytes.NewReader(data), &buf, conf); err != nil {
		return 0, fmt.Errorf("failed to create pdf: %w", err)
	}
	pageCount, err := api.PageCount(bytes.NewReader(buf.Bytes()), conf)
	if err != nil {
		return 0, fmt.Errorf("failed to read back pdf: %w", err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return 0, fmt.Errorf("failed to write pdf: %w", err)
	}
	return pageCount, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
