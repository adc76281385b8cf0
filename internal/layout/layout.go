// Package layout measures rendered fragment heights for pagination.
//
// The production measurer is a headless text shaper: it wraps block text into
// lines using grapheme clusters and terminal cell widths scaled to pixels.
package layout

import (
	"math"
	"strings"
	"unicode"

	"github.com/mattn/go-runewidth"
	"github.com/rivo/uniseg"

	"github.com/typenhq/typen/internal/richtext"
)

// OverflowTolerance is the slack in pixels before a page counts as overflowing.
const OverflowTolerance = 2.0

// Measurer reports the rendered height of a fragment laid out at a width.
type Measurer interface {
	MeasureHeight(frag richtext.Fragment, width float64) float64
}

// PageSize is a page's content box in CSS pixels.
type PageSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// A4 is an A4 sheet at 96 dpi with one-inch margins.
var A4 = PageSize{Width: 602, Height: 931}

// Metrics are the typographic parameters of the text shaper.
type Metrics struct {
	// FontSize is the body font size in pixels.
	FontSize float64
	// LineHeight is a multiple of the font size.
	LineHeight float64
	// AdvanceRatio is the width of one cell as a fraction of the font size.
	AdvanceRatio float64
	// BlockSpacing is the vertical gap between blocks in pixels.
	BlockSpacing float64
	// QuoteIndent is the horizontal inset of quote blocks in pixels.
	QuoteIndent float64
}

// DefaultMetrics approximates a 16px serif body with 1.5 line spacing.
func DefaultMetrics() Metrics {
	return Metrics{
		FontSize:     16,
		LineHeight:   1.5,
		AdvanceRatio: 0.5,
		BlockSpacing: 16,
		QuoteIndent:  32,
	}
}

// TextMeasurer implements Measurer without a rendering surface.
type TextMeasurer struct {
	m Metrics
}

// NewTextMeasurer creates a measurer. Zero fields fall back to DefaultMetrics.
func NewTextMeasurer(m Metrics) *TextMeasurer {
	d := DefaultMetrics()
	if m.FontSize <= 0 {
		m.FontSize = d.FontSize
	}
	if m.LineHeight <= 0 {
		m.LineHeight = d.LineHeight
	}
	if m.AdvanceRatio <= 0 {
		m.AdvanceRatio = d.AdvanceRatio
	}
	if m.BlockSpacing < 0 {
		m.BlockSpacing = 0
	}
	if m.QuoteIndent < 0 {
		m.QuoteIndent = 0
	}
	return &TextMeasurer{m: m}
}

// Metrics returns the measurer's effective metrics.
func (t *TextMeasurer) Metrics() Metrics {
	return t.m
}

// MeasureHeight returns the height of frag laid out at width.
func (t *TextMeasurer) MeasureHeight(frag richtext.Fragment, width float64) float64 {
	h := 0.0
	for i, b := range frag {
		if i > 0 {
			h += t.m.BlockSpacing
		}
		h += float64(len(t.Lines(b, width))) * t.LineHeightPx(b.Kind)
	}
	return h
}

// Scale returns the font scale for a block kind.
func Scale(k richtext.Kind) float64 {
	switch k {
	case richtext.Heading1:
		return 2
	case richtext.Heading2:
		return 1.5
	case richtext.Heading3:
		return 1.25
	}
	return 1
}

// LineHeightPx is the height of one line of a block kind.
func (t *TextMeasurer) LineHeightPx(k richtext.Kind) float64 {
	return t.m.FontSize * Scale(k) * t.m.LineHeight
}

func (t *TextMeasurer) columns(k richtext.Kind, width float64) int {
	if k == richtext.Quote {
		width -= t.m.QuoteIndent
	}
	cell := t.m.FontSize * Scale(k) * t.m.AdvanceRatio
	cols := int(math.Floor(width/cell + 1e-9))
	if cols < 1 {
		cols = 1
	}
	return cols
}

// Lines wraps a block's text greedily at word boundaries. Trailing spaces
// hang past the line end; words wider than a line break between graphemes.
// An empty block occupies one line.
func (t *TextMeasurer) Lines(b richtext.Block, width float64) []string {
	text := b.Text()
	if text == "" {
		return []string{""}
	}
	cols := t.columns(b.Kind, width)

	var lines []string
	var line strings.Builder
	used := 0
	emit := func() {
		lines = append(lines, line.String())
		line.Reset()
		used = 0
	}

	for _, seg := range segments(text) {
		ww := CellWidth(seg.word)
		if used+ww > cols && line.Len() > 0 {
			emit()
		}
		if ww > cols {
			g := uniseg.NewGraphemes(seg.word)
			for g.Next() {
				c := g.Str()
				cw := CellWidth(c)
				if used+cw > cols && line.Len() > 0 {
					emit()
				}
				line.WriteString(c)
				used += cw
			}
		} else {
			line.WriteString(seg.word)
			used += ww
		}
		line.WriteString(seg.space)
		used += CellWidth(seg.space)
	}
	if line.Len() > 0 || len(lines) == 0 {
		emit()
	}
	return lines
}

type segment struct {
	word  string
	space string
}

// segments splits text into words, each followed by its trailing whitespace.
func segments(text string) []segment {
	var out []segment
	start := 0
	inSpace := false
	wordEnd := 0
	for i, r := range text {
		space := unicode.IsSpace(r)
		switch {
		case space && !inSpace:
			wordEnd = i
			inSpace = true
		case !space && inSpace:
			out = append(out, segment{word: text[start:wordEnd], space: text[wordEnd:i]})
			start = i
			inSpace = false
		}
	}
	if inSpace {
		out = append(out, segment{word: text[start:wordEnd], space: text[wordEnd:]})
	} else {
		out = append(out, segment{word: text[start:]})
	}
	return out
}

// CellWidth returns the display width of s in cells.
func CellWidth(s string) int {
	w := 0
	g := uniseg.NewGraphemes(s)
	for g.Next() {
		c := g.Str()
		cw := runewidth.StringWidth(c)
		if cw == 0 {
			cw = uniseg.StringWidth(c)
		}
		w += cw
	}
	return w
}
