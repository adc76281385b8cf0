// Package pagination maps one logical document onto fixed-height pages.
//
// The Engine owns the pages and the caret. After every edit Reflow moves
// blocks between neighbouring pages until each page fits its content box,
// splitting a paragraph at a word boundary when its first block alone is
// too tall. A paragraph split across pages is stored as a head block
// followed by continuation blocks marked Continued. Page breaks loaded with
// the document stay where they are; only content the engine moved, and the
// pieces of split paragraphs, flow back across them.
package pagination

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/typenhq/typen/internal/layout"
	"github.com/typenhq/typen/internal/richtext"
)

// Page is one visual sheet. IDs are regenerated whenever pages are rebuilt.
type Page struct {
	ID     string            `json:"id"`
	Blocks richtext.Fragment `json:"-"`

	// saved marks a page that starts at a loaded page break.
	saved bool
	// fresh marks a page created by the running reflow pass.
	fresh bool
}

// Config configures an Engine.
type Config struct {
	Measurer  layout.Measurer
	Size      layout.PageSize
	Tolerance float64
	Logger    *slog.Logger
}

// Report summarizes what a reflow pass changed.
type Report struct {
	Skipped   bool  `json:"skipped,omitempty"`
	Moved     int   `json:"moved"`
	Pulled    int   `json:"pulled"`
	Split     int   `json:"split"`
	Created   int   `json:"created"`
	Removed   int   `json:"removed"`
	Oversized []int `json:"oversized,omitempty"`
}

// Changed reports whether the pass altered the page structure.
func (r Report) Changed() bool {
	return r.Moved+r.Pulled+r.Split+r.Created+r.Removed > 0
}

func (r *Report) add(o Report) {
	r.Moved += o.Moved
	r.Pulled += o.Pulled
	r.Split += o.Split
	r.Created += o.Created
	r.Removed += o.Removed
	r.Oversized = o.Oversized
}

// Engine paginates a document. It is not safe for concurrent use.
type Engine struct {
	measurer  layout.Measurer
	size      layout.PageSize
	tolerance float64
	logger    *slog.Logger

	pages  []Page
	anchor Point
	focus  Point

	// pending holds the style toggled on a collapsed caret, applied to the
	// next inserted text.
	pending *richtext.Style

	busy bool
}

// New creates an engine holding one empty page.
func New(cfg Config) *Engine {
	if cfg.Measurer == nil {
		cfg.Measurer = layout.NewTextMeasurer(layout.DefaultMetrics())
	}
	if cfg.Size.Width <= 0 || cfg.Size.Height <= 0 {
		cfg.Size = layout.A4
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = layout.OverflowTolerance
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	e := &Engine{
		measurer:  cfg.Measurer,
		size:      cfg.Size,
		tolerance: cfg.Tolerance,
		logger:    cfg.Logger,
	}
	e.Load(nil)
	return e
}

// Load replaces the pages with the given fragments without reflowing.
// Empty fragments get one empty paragraph. The caret moves to the end.
func (e *Engine) Load(frags []richtext.Fragment) {
	if len(frags) == 0 {
		frags = []richtext.Fragment{nil}
	}
	e.pages = make([]Page, len(frags))
	for i, f := range frags {
		f = f.Clone()
		if len(f) == 0 {
			f = richtext.Fragment{{Kind: richtext.Paragraph}}
		}
		e.pages[i] = Page{ID: uuid.NewString(), Blocks: f, saved: i > 0}
	}
	e.pages[0].Blocks[0].Continued = false
	end := e.end()
	e.anchor, e.focus = end, end
	e.pending = nil
}

// Pages returns a copy of the pages.
func (e *Engine) Pages() []Page {
	out := make([]Page, len(e.pages))
	for i, p := range e.pages {
		out[i] = Page{ID: p.ID, Blocks: p.Blocks.Clone(), saved: p.saved}
	}
	return out
}

// PageCount returns the number of pages.
func (e *Engine) PageCount() int {
	return len(e.pages)
}

// Render returns each page's markup.
func (e *Engine) Render() []string {
	out := make([]string, len(e.pages))
	for i, p := range e.pages {
		out[i] = p.Blocks.Render()
	}
	return out
}

// Size returns the page content box.
func (e *Engine) Size() layout.PageSize {
	return e.size
}

// Busy reports whether a reflow is in progress.
func (e *Engine) Busy() bool {
	return e.busy
}

// Height measures a page's rendered height.
func (e *Engine) Height(page int) float64 {
	if page < 0 || page >= len(e.pages) {
		return 0
	}
	return e.height(e.pages[page].Blocks)
}

func (e *Engine) height(f richtext.Fragment) float64 {
	return e.measurer.MeasureHeight(f, e.size.Width)
}

func (e *Engine) fits(f richtext.Fragment) bool {
	return e.height(f) <= e.size.Height+e.tolerance
}

// Reflow runs one forward pass over the pages that exist when it starts.
// Each page first pulls content back from its successor while it fits, then
// pushes overflowing blocks to its successor. Overflow lands on a new page
// when there is no successor or the successor starts at a saved page break.
// Pages created during the pass are left for the next pass. Trailing blank
// pages are removed last, except the first page and any page holding the
// caret. The caret is preserved across the pass.
func (e *Engine) Reflow() Report {
	if e.busy {
		return Report{Skipped: true}
	}
	e.busy = true
	defer func() { e.busy = false }()

	var rep Report
	m := e.capture()
	for i := range e.pages {
		e.pages[i].fresh = false
	}
	for i := 0; i < len(e.pages); i++ {
		if e.pages[i].fresh {
			continue
		}
		e.pullBack(i, &rep)
		e.pushOverflow(i, &rep)
	}
	e.trimTrailing(m, &rep)
	e.restore(m)

	if rep.Changed() {
		e.logger.Debug("reflowed pages",
			"pages", len(e.pages),
			"moved", rep.Moved,
			"pulled", rep.Pulled,
			"split", rep.Split,
			"created", rep.Created,
			"removed", rep.Removed)
	}
	return rep
}

// Settle reflows until a pass changes nothing or maxPasses is reached.
func (e *Engine) Settle(maxPasses int) (Report, int) {
	var total Report
	passes := 0
	for passes < maxPasses {
		rep := e.Reflow()
		passes++
		total.add(rep)
		if rep.Skipped || !rep.Changed() {
			break
		}
	}
	return total, passes
}

// pullBack moves content from page i+1 onto page i while it fits. Whole
// blocks only cross page breaks the engine made; the rest of a split
// paragraph is always pulled, as far as it fits.
func (e *Engine) pullBack(i int, rep *Report) {
	for i+1 < len(e.pages) {
		next := &e.pages[i+1]
		if len(next.Blocks) == 0 {
			if i+2 < len(e.pages) {
				e.pages = append(e.pages[:i+1], e.pages[i+2:]...)
				rep.Removed++
				continue
			}
			return
		}

		cur := &e.pages[i]
		first := next.Blocks[0]
		if first.Continued && len(cur.Blocks) > 0 {
			last := len(cur.Blocks) - 1
			merged := cur.Blocks[last].Join(first)
			if e.fits(replaceLast(cur.Blocks, merged)) {
				cur.Blocks = replaceLast(cur.Blocks, merged)
				next.Blocks = next.Blocks[1:]
				rep.Pulled++
				continue
			}
			e.resplit(i, merged, rep)
			return
		}
		if next.saved {
			return
		}

		candidate := append(cur.Blocks.Clone(), first)
		if !e.fits(candidate) {
			return
		}
		cur.Blocks = candidate
		next.Blocks = next.Blocks[1:]
		rep.Pulled++
	}
}

// resplit moves the seam of a paragraph split between pages i and i+1 to the
// last word boundary that fits on page i. merged is the joined paragraph.
// When no boundary fits, a paragraph that does not start page i moves to
// page i+1 whole.
func (e *Engine) resplit(i int, merged richtext.Block, rep *Report) {
	cur, next := &e.pages[i], &e.pages[i+1]
	last := len(cur.Blocks) - 1
	seam := cur.Blocks[last].Len()

	breaks := merged.WordBreaks()
	n := sort.Search(len(breaks), func(j int) bool {
		head, _ := merged.SplitAt(breaks[j])
		return !e.fits(replaceLast(cur.Blocks, head))
	})
	if n == 0 {
		if last == 0 || merged.Continued {
			return
		}
		cur.Blocks = cur.Blocks[:last]
		next.Blocks = append(richtext.Fragment{merged}, next.Blocks[1:]...)
		next.saved = false
		rep.Moved++
		return
	}

	at := breaks[n-1]
	if at == seam {
		return
	}
	head, tail := merged.SplitAt(at)
	tail.Continued = true
	cur.Blocks = replaceLast(cur.Blocks, head)
	next.Blocks = append(richtext.Fragment{tail}, next.Blocks[1:]...)
	if at > seam {
		rep.Pulled++
	} else {
		next.saved = false
		rep.Moved++
	}
}

// pushOverflow moves blocks that do not fit on page i to the front of page
// i+1. A page that still overflows afterwards is reported as oversized.
func (e *Engine) pushOverflow(i int, rep *Report) {
	blocks := e.pages[i].Blocks
	if e.fits(blocks) {
		return
	}

	k := e.overflowIndex(blocks)
	if k == 0 {
		head, tail, ok := e.split(blocks[0])
		if ok {
			blocks = append(richtext.Fragment{head, tail}, blocks[1:]...)
			rep.Split++
		} else if len(blocks) == 1 {
			e.oversized(i, rep)
			return
		}
		k = 1
	}

	moved := append(richtext.Fragment(nil), blocks[k:]...)
	e.pages[i].Blocks = append(richtext.Fragment(nil), blocks[:k]...)
	rep.Moved += len(moved)
	if !e.fits(e.pages[i].Blocks) {
		e.oversized(i, rep)
	}

	if i+1 < len(e.pages) {
		next := &e.pages[i+1]
		if !next.saved || len(next.Blocks) == 0 || next.Blocks[0].Continued {
			next.Blocks = prepend(moved, next.Blocks)
			next.saved = false
			return
		}
	}
	page := Page{ID: uuid.NewString(), Blocks: moved, fresh: true}
	e.pages = append(e.pages[:i+1], append([]Page{page}, e.pages[i+1:]...)...)
	rep.Created++
}

func (e *Engine) oversized(i int, rep *Report) {
	rep.Oversized = append(rep.Oversized, i)
	e.logger.Warn("page content cannot be split, accepting overflow",
		"page", i,
		"height", e.height(e.pages[i].Blocks),
		"limit", e.size.Height)
}

// overflowIndex returns the index of the first block that does not fit.
func (e *Engine) overflowIndex(blocks richtext.Fragment) int {
	for k := range blocks {
		if !e.fits(blocks[:k+1]) {
			return k
		}
	}
	return len(blocks)
}

// split cuts b at the last word boundary whose head fits on an empty page,
// or at the first boundary when none fits. The tail is a continuation.
func (e *Engine) split(b richtext.Block) (richtext.Block, richtext.Block, bool) {
	breaks := b.WordBreaks()
	if len(breaks) == 0 {
		return b, richtext.Block{}, false
	}
	n := sort.Search(len(breaks), func(j int) bool {
		head, _ := b.SplitAt(breaks[j])
		return !e.fits(richtext.Fragment{head})
	})
	at := breaks[0]
	if n > 0 {
		at = breaks[n-1]
	}
	head, tail := b.SplitAt(at)
	tail.Continued = true
	return head, tail, true
}

// trimTrailing drops blank pages from the end.
func (e *Engine) trimTrailing(m caretMark, rep *Report) {
	for len(e.pages) > 1 {
		last := len(e.pages) - 1
		if !e.pages[last].Blocks.IsBlank() {
			return
		}
		first := e.firstParagraph(last)
		if m.focus.para >= first || m.anchor.para >= first {
			return
		}
		e.pages = e.pages[:last]
		rep.Removed++
	}
}

// prepend places moved before blocks, re-joining a paragraph whose tail
// already starts blocks.
func prepend(moved, blocks richtext.Fragment) richtext.Fragment {
	out := make(richtext.Fragment, 0, len(moved)+len(blocks))
	out = append(out, moved...)
	if len(blocks) > 0 && blocks[0].Continued && len(out) > 0 {
		out[len(out)-1] = out[len(out)-1].Join(blocks[0])
		return append(out, blocks[1:]...)
	}
	return append(out, blocks...)
}

func replaceLast(f richtext.Fragment, b richtext.Block) richtext.Fragment {
	out := make(richtext.Fragment, len(f))
	copy(out, f)
	out[len(out)-1] = b
	return out
}

// ParsePages parses persisted page markup into fragments for Load.
func ParsePages(markups []string) ([]richtext.Fragment, error) {
	frags := make([]richtext.Fragment, len(markups))
	for i, markup := range markups {
		f, err := richtext.Parse(markup)
		if err != nil {
			return nil, fmt.Errorf("failed to parse page %d: %w", i, err)
		}
		frags[i] = f
	}
	return frags, nil
}
