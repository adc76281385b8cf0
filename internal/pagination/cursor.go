package pagination

// Point addresses a caret position: a block on a page and a rune offset
// into that block's text.
type Point struct {
	Page   int `json:"page"`
	Block  int `json:"block"`
	Offset int `json:"offset"`
}

// Less orders points in document order.
func (p Point) Less(o Point) bool {
	if p.Page != o.Page {
		return p.Page < o.Page
	}
	if p.Block != o.Block {
		return p.Block < o.Block
	}
	return p.Offset < o.Offset
}

// CursorPosition is the caret expressed against a page's plain text, where
// the page's text runs are concatenated without separators.
type CursorPosition struct {
	PageIndex int  `json:"pageIndex"`
	Offset    int  `json:"offset"`
	Collapsed bool `json:"collapsed"`
}

// Caret returns the selection anchor and focus.
func (e *Engine) Caret() (anchor, focus Point) {
	return e.anchor, e.focus
}

// Collapsed reports whether the selection is empty.
func (e *Engine) Collapsed() bool {
	return e.anchor == e.focus
}

// SetCaret collapses the selection at p, clamped into the document.
func (e *Engine) SetCaret(p Point) {
	p = e.clamp(p)
	e.anchor, e.focus = p, p
	e.pending = nil
}

// Select sets a selection from anchor to focus.
func (e *Engine) Select(anchor, focus Point) {
	e.anchor, e.focus = e.clamp(anchor), e.clamp(focus)
	e.pending = nil
}

// CursorPosition returns the focus as a page-relative offset.
func (e *Engine) CursorPosition() CursorPosition {
	off := 0
	for b := 0; b < e.focus.Block; b++ {
		off += e.pages[e.focus.Page].Blocks[b].Len()
	}
	return CursorPosition{
		PageIndex: e.focus.Page,
		Offset:    off + e.focus.Offset,
		Collapsed: e.Collapsed(),
	}
}

// RestoreCursor places a collapsed caret at pos by walking the text runs of
// the target page. An offset past the page's text lands at the end of the
// page; a page that no longer exists lands at the end of the document.
func (e *Engine) RestoreCursor(pos CursorPosition) {
	if pos.PageIndex < 0 || pos.PageIndex >= len(e.pages) {
		e.SetCaret(e.end())
		return
	}
	blocks := e.pages[pos.PageIndex].Blocks
	off := max(pos.Offset, 0)
	for i, b := range blocks {
		n := b.Len()
		if off <= n {
			e.SetCaret(Point{Page: pos.PageIndex, Block: i, Offset: off})
			return
		}
		off -= n
	}
	e.SetCaret(e.pageEnd(pos.PageIndex))
}

func (e *Engine) clamp(p Point) Point {
	if len(e.pages) == 0 {
		return Point{}
	}
	p.Page = min(max(p.Page, 0), len(e.pages)-1)
	blocks := e.pages[p.Page].Blocks
	if len(blocks) == 0 {
		return Point{Page: p.Page}
	}
	p.Block = min(max(p.Block, 0), len(blocks)-1)
	p.Offset = min(max(p.Offset, 0), blocks[p.Block].Len())
	return p
}

func (e *Engine) end() Point {
	return e.pageEnd(len(e.pages) - 1)
}

func (e *Engine) pageEnd(page int) Point {
	blocks := e.pages[page].Blocks
	if len(blocks) == 0 {
		return Point{Page: page}
	}
	last := len(blocks) - 1
	return Point{Page: page, Block: last, Offset: blocks[last].Len()}
}

// mark locates a caret by logical paragraph, which reflow never changes.
type mark struct {
	para   int
	offset int
}

type caretMark struct {
	anchor mark
	focus  mark
}

func (e *Engine) capture() caretMark {
	return caretMark{anchor: e.locate(e.anchor), focus: e.locate(e.focus)}
}

func (e *Engine) restore(m caretMark) {
	e.anchor = e.resolve(m.anchor)
	e.focus = e.resolve(m.focus)
}

func startsParagraph(para int, continued bool) bool {
	return para < 0 || !continued
}

func (e *Engine) locate(p Point) mark {
	para, base := -1, 0
	for pi, pg := range e.pages {
		for bi, b := range pg.Blocks {
			if startsParagraph(para, b.Continued) {
				para++
				base = 0
			}
			if pi == p.Page && bi == p.Block {
				return mark{para: para, offset: base + p.Offset}
			}
			base += b.Len()
		}
	}
	return mark{para: -1}
}

// resolve maps a mark back to a point. An offset at the seam between two
// pieces of a split paragraph resolves to the start of the later piece. A
// mark that no longer exists resolves to the end of the document.
func (e *Engine) resolve(m mark) Point {
	if m.para < 0 {
		return e.end()
	}
	para, base := -1, 0
	var last Point
	found := false
	for pi, pg := range e.pages {
		for bi, b := range pg.Blocks {
			if startsParagraph(para, b.Continued) {
				if found {
					return last
				}
				para++
				base = 0
			}
			if para == m.para {
				found = true
				local := m.offset - base
				n := b.Len()
				if local >= 0 && (local < n || (local == n && !e.continues(pi, bi))) {
					return Point{Page: pi, Block: bi, Offset: local}
				}
				last = Point{Page: pi, Block: bi, Offset: n}
			}
			base += b.Len()
		}
	}
	if found {
		return last
	}
	return e.end()
}

// continues reports whether the block after (page, block) is a continuation.
func (e *Engine) continues(page, block int) bool {
	if block+1 < len(e.pages[page].Blocks) {
		return e.pages[page].Blocks[block+1].Continued
	}
	for p := page + 1; p < len(e.pages); p++ {
		if len(e.pages[p].Blocks) > 0 {
			return e.pages[p].Blocks[0].Continued
		}
	}
	return false
}

// firstParagraph returns the logical paragraph index of a page's first block.
func (e *Engine) firstParagraph(page int) int {
	para := -1
	for pi := 0; pi < page; pi++ {
		for _, b := range e.pages[pi].Blocks {
			if startsParagraph(para, b.Continued) {
				para++
			}
		}
	}
	blocks := e.pages[page].Blocks
	if len(blocks) == 0 || startsParagraph(para, blocks[0].Continued) {
		return para + 1
	}
	return para
}
