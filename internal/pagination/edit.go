package pagination

import (
	"strings"

	"github.com/typenhq/typen/internal/richtext"
)

// slot is a block tagged with the page it lives on. Edits that span blocks
// work on the flattened document and rebuild the pages afterwards.
type slot struct {
	page  int
	block richtext.Block
}

func (e *Engine) flatten() []slot {
	var out []slot
	for pi, p := range e.pages {
		for _, b := range p.Blocks {
			out = append(out, slot{page: pi, block: b})
		}
	}
	return out
}

func (e *Engine) rebuild(slots []slot) {
	for i := range e.pages {
		e.pages[i].Blocks = nil
	}
	for _, s := range slots {
		e.pages[s.page].Blocks = append(e.pages[s.page].Blocks, s.block)
	}
}

func (e *Engine) index(p Point) int {
	i := 0
	for pi := 0; pi < p.Page; pi++ {
		i += len(e.pages[pi].Blocks)
	}
	return i + p.Block
}

func pointOf(slots []slot, idx, offset int) Point {
	page := slots[idx].page
	b := 0
	for j := 0; j < idx; j++ {
		if slots[j].page == page {
			b++
		}
	}
	return Point{Page: page, Block: b, Offset: offset}
}

func (e *Engine) ordered() (Point, Point) {
	if e.focus.Less(e.anchor) {
		return e.focus, e.anchor
	}
	return e.anchor, e.focus
}

func (e *Engine) collapseTo(p Point) {
	e.anchor, e.focus = p, p
}

// ensureBlock guarantees the focus page has a block to edit.
func (e *Engine) ensureBlock() {
	p := e.focus.Page
	if len(e.pages[p].Blocks) == 0 {
		e.pages[p].Blocks = richtext.Fragment{{Kind: richtext.Paragraph}}
		e.collapseTo(Point{Page: p})
	}
}

// Text returns the document's paragraphs separated by newlines. Pieces of a
// split paragraph are joined.
func (e *Engine) Text() string {
	var sb strings.Builder
	first := true
	for _, p := range e.pages {
		for _, b := range p.Blocks {
			if !b.Continued && !first {
				sb.WriteByte('\n')
			}
			first = false
			sb.WriteString(b.Text())
		}
	}
	return sb.String()
}

// InsertText replaces the selection with text. Newlines split blocks. The
// caret ends collapsed after the inserted text.
func (e *Engine) InsertText(text string) {
	e.deleteSelection()
	for i, part := range strings.Split(text, "\n") {
		if i > 0 {
			e.SplitBlock()
		}
		if part != "" {
			e.insert(part)
		}
	}
}

func (e *Engine) insert(text string) {
	e.ensureBlock()
	p := e.focus
	blocks := e.pages[p.Page].Blocks
	b := blocks[p.Block]
	style := b.StyleAt(p.Offset)
	if e.pending != nil {
		style = *e.pending
	}
	nb := b.Insert(p.Offset, text, style)
	blocks[p.Block] = nb
	p.Offset += nb.Len() - b.Len()
	e.collapseTo(p)
	e.pending = nil
}

// SplitBlock replaces the selection and breaks the block at the caret. An
// empty block following a heading becomes a paragraph.
func (e *Engine) SplitBlock() {
	e.deleteSelection()
	e.ensureBlock()
	slots := e.flatten()
	idx := e.index(e.focus)
	head, tail := slots[idx].block.SplitAt(e.focus.Offset)
	if tail.Len() == 0 && head.Kind != richtext.Quote {
		tail.Kind = richtext.Paragraph
	}
	slots[idx].block = head
	slots = append(slots[:idx+1], append([]slot{{page: slots[idx].page, block: tail}}, slots[idx+1:]...)...)
	e.rebuild(slots)
	e.collapseTo(pointOf(slots, idx+1, 0))
}

// DeleteBackward deletes the selection, or the grapheme before a collapsed
// caret. At the start of a block the block merges into the previous one. At
// the start of a page the deletion lands at the end of the previous page:
// a split paragraph loses the last grapheme of its earlier piece, a new
// paragraph merges into the previous page's last paragraph.
func (e *Engine) DeleteBackward() {
	if e.deleteSelection() {
		return
	}
	e.ensureBlock()
	slots := e.flatten()
	idx := e.index(e.focus)
	b := slots[idx].block
	off := e.focus.Offset

	switch {
	case off > 0:
		n := b.PrevGrapheme(off)
		slots[idx].block = b.Delete(off-n, off)
		e.rebuild(slots)
		e.collapseTo(pointOf(slots, idx, off-n))
	case idx == 0:
		return
	case b.Continued && slots[idx-1].block.Len() > 0:
		prev := slots[idx-1].block
		end := prev.Len()
		n := prev.PrevGrapheme(end)
		slots[idx-1].block = prev.Delete(end-n, end)
		e.rebuild(slots)
		e.collapseTo(pointOf(slots, idx-1, end-n))
	default:
		prev := slots[idx-1].block
		at := prev.Len()
		slots[idx-1].block = prev.Join(b)
		slots = append(slots[:idx], slots[idx+1:]...)
		e.rebuild(slots)
		e.collapseTo(pointOf(slots, idx-1, at))
	}
}

// deleteSelection removes the selected text, merging the blocks at its ends.
func (e *Engine) deleteSelection() bool {
	if e.Collapsed() {
		return false
	}
	start, end := e.ordered()
	slots := e.flatten()
	si, ei := e.index(start), e.index(end)
	head, _ := slots[si].block.SplitAt(start.Offset)
	_, tail := slots[ei].block.SplitAt(end.Offset)
	slots[si].block = head.Join(tail)
	slots = append(slots[:si+1], slots[ei+1:]...)
	e.rebuild(slots)
	e.collapseTo(pointOf(slots, si, start.Offset))
	return true
}

// ToggleStyle flips an inline style. On a selection the style is removed when
// every selected rune has it and added otherwise. On a collapsed caret it
// applies to the next inserted text.
func (e *Engine) ToggleStyle(s richtext.Style) {
	if e.Collapsed() {
		e.ensureBlock()
		b := e.pages[e.focus.Page].Blocks[e.focus.Block]
		cur := b.StyleAt(e.focus.Offset)
		if e.pending != nil {
			cur = *e.pending
		}
		next := cur ^ s
		e.pending = &next
		return
	}

	start, end := e.ordered()
	slots := e.flatten()
	si, ei := e.index(start), e.index(end)
	span := func(j int) (int, int) {
		from, to := 0, slots[j].block.Len()
		if j == si {
			from = start.Offset
		}
		if j == ei {
			to = end.Offset
		}
		return from, to
	}

	all, touched := true, false
	for j := si; j <= ei; j++ {
		if from, to := span(j); from < to {
			touched = true
			if !slots[j].block.HasStyle(from, to, s) {
				all = false
			}
		}
	}
	if !touched {
		return
	}
	for j := si; j <= ei; j++ {
		if from, to := span(j); from < to {
			slots[j].block = slots[j].block.ApplyStyle(from, to, s, !all)
		}
	}
	e.rebuild(slots)
}

// SetBlockKind changes the kind of every paragraph touched by the selection,
// including all pieces of split paragraphs.
func (e *Engine) SetBlockKind(k richtext.Kind) {
	e.ensureBlock()
	start, end := e.ordered()
	slots := e.flatten()
	lo, hi := e.index(start), e.index(end)
	for lo > 0 && slots[lo].block.Continued {
		lo--
	}
	for hi+1 < len(slots) && slots[hi+1].block.Continued {
		hi++
	}
	for j := lo; j <= hi; j++ {
		slots[j].block.Kind = k
	}
	e.rebuild(slots)
}
