// Package richtext models editor content as a tree of blocks holding styled
// text runs, and converts it to and from markup.
//
// Offsets are rune offsets into a block's text. A block's text is the
// concatenation of its runs.
package richtext

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rivo/uniseg"
	"golang.org/x/text/unicode/norm"
)

// Style is a bit set of inline formatting.
type Style uint8

const (
	Bold Style = 1 << iota
	Italic
	Underline
	Strike
)

// Has reports whether every bit of o is set in s.
func (s Style) Has(o Style) bool { return o != 0 && s&o == o }

// ParseStyle maps a formatting command name to a Style.
func ParseStyle(name string) (Style, bool) {
	switch strings.ToLower(name) {
	case "bold", "b", "strong":
		return Bold, true
	case "italic", "i", "em":
		return Italic, true
	case "underline", "u":
		return Underline, true
	case "strike", "s", "strikethrough":
		return Strike, true
	}
	return 0, false
}

// Kind is the block-level element type.
type Kind int

const (
	Paragraph Kind = iota
	Heading1
	Heading2
	Heading3
	Quote
)

// ParseKind maps a block command name to a Kind.
func ParseKind(name string) (Kind, bool) {
	switch strings.ToLower(name) {
	case "p", "paragraph":
		return Paragraph, true
	case "h1":
		return Heading1, true
	case "h2":
		return Heading2, true
	case "h3":
		return Heading3, true
	case "quote", "blockquote":
		return Quote, true
	}
	return Paragraph, false
}

// Run is a span of text sharing one style.
type Run struct {
	Text  string
	Style Style
}

// Block is a paragraph-level element.
type Block struct {
	Kind Kind
	Runs []Run
	// Continued marks the tail of a paragraph that was split across a page
	// boundary. It belongs to the same logical paragraph as the block before it.
	Continued bool
}

// Fragment is an ordered list of blocks, typically one page.
type Fragment []Block

// Text returns the block's plain text.
func (b Block) Text() string {
	if len(b.Runs) == 1 {
		return b.Runs[0].Text
	}
	var sb strings.Builder
	for _, r := range b.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Len returns the number of runes in the block.
func (b Block) Len() int {
	n := 0
	for _, r := range b.Runs {
		n += utf8.RuneCountInString(r.Text)
	}
	return n
}

// IsBlank reports whether the block has no visible text.
func (b Block) IsBlank() bool {
	return strings.TrimSpace(b.Text()) == ""
}

// Clone returns a deep copy.
func (b Block) Clone() Block {
	c := b
	c.Runs = append([]Run(nil), b.Runs...)
	return c
}

// SplitAt splits the block at a rune offset. The tail keeps the block kind
// and is not marked continued.
func (b Block) SplitAt(offset int) (Block, Block) {
	offset = clamp(offset, 0, b.Len())
	head := Block{Kind: b.Kind, Continued: b.Continued}
	tail := Block{Kind: b.Kind}
	pos := 0
	for _, r := range b.Runs {
		n := utf8.RuneCountInString(r.Text)
		switch {
		case pos+n <= offset:
			head.Runs = append(head.Runs, r)
		case pos >= offset:
			tail.Runs = append(tail.Runs, r)
		default:
			cut := byteIndex(r.Text, offset-pos)
			head.Runs = append(head.Runs, Run{Text: r.Text[:cut], Style: r.Style})
			tail.Runs = append(tail.Runs, Run{Text: r.Text[cut:], Style: r.Style})
		}
		pos += n
	}
	head.Runs = normalizeRuns(head.Runs)
	tail.Runs = normalizeRuns(tail.Runs)
	return head, tail
}

// Join appends other's runs to b. b's kind and continuation flag win.
func (b Block) Join(other Block) Block {
	out := Block{Kind: b.Kind, Continued: b.Continued}
	out.Runs = make([]Run, 0, len(b.Runs)+len(other.Runs))
	out.Runs = append(out.Runs, b.Runs...)
	out.Runs = append(out.Runs, other.Runs...)
	out.Runs = normalizeRuns(out.Runs)
	return out
}

// Insert inserts text at offset with the given style. Text is normalized to NFC.
func (b Block) Insert(offset int, text string, style Style) Block {
	text = norm.NFC.String(text)
	if text == "" {
		return b.Clone()
	}
	head, tail := b.SplitAt(offset)
	head.Runs = append(head.Runs, Run{Text: text, Style: style})
	out := head.Join(tail)
	out.Kind = b.Kind
	return out
}

// Delete removes runes in [from, to).
func (b Block) Delete(from, to int) Block {
	if from > to {
		from, to = to, from
	}
	head, rest := b.SplitAt(from)
	_, tail := rest.SplitAt(to - from)
	return head.Join(tail)
}

// StyleAt returns the style text typed at offset should inherit: the style of
// the rune before offset, or of the first rune when offset is zero.
func (b Block) StyleAt(offset int) Style {
	pos := 0
	for _, r := range b.Runs {
		n := utf8.RuneCountInString(r.Text)
		if offset <= pos+n && (offset > pos || pos == 0) {
			return r.Style
		}
		pos += n
	}
	return 0
}

// HasStyle reports whether every rune in [from, to) carries style s.
func (b Block) HasStyle(from, to int, s Style) bool {
	if from >= to {
		return false
	}
	pos := 0
	for _, r := range b.Runs {
		n := utf8.RuneCountInString(r.Text)
		if pos < to && pos+n > from && !r.Style.Has(s) {
			return false
		}
		pos += n
	}
	return true
}

// ApplyStyle sets or clears style s on runes in [from, to).
func (b Block) ApplyStyle(from, to int, s Style, on bool) Block {
	if from > to {
		from, to = to, from
	}
	head, rest := b.SplitAt(from)
	mid, tail := rest.SplitAt(to - from)
	for i := range mid.Runs {
		if on {
			mid.Runs[i].Style |= s
		} else {
			mid.Runs[i].Style &^= s
		}
	}
	return head.Join(mid).Join(tail)
}

// WordBreaks returns the offsets at which the block may be split between
// words: positions inside the block that follow whitespace and precede a
// non-space rune.
func (b Block) WordBreaks() []int {
	var out []int
	prevSpace := false
	i := 0
	for _, r := range b.Text() {
		space := unicode.IsSpace(r)
		if i > 0 && prevSpace && !space {
			out = append(out, i)
		}
		prevSpace = space
		i++
	}
	return out
}

// PrevGrapheme returns the rune length of the grapheme cluster ending at offset.
func (b Block) PrevGrapheme(offset int) int {
	text := b.Text()
	prefix := text[:byteIndex(text, clamp(offset, 0, utf8.RuneCountInString(text)))]
	last := 0
	g := uniseg.NewGraphemes(prefix)
	for g.Next() {
		last = len(g.Runes())
	}
	return last
}

// Text returns the fragment's plain text with no separators between blocks.
func (f Fragment) Text() string {
	var sb strings.Builder
	for _, b := range f {
		sb.WriteString(b.Text())
	}
	return sb.String()
}

// Len returns the total rune count across blocks.
func (f Fragment) Len() int {
	n := 0
	for _, b := range f {
		n += b.Len()
	}
	return n
}

// IsBlank reports whether no block has visible text.
func (f Fragment) IsBlank() bool {
	for _, b := range f {
		if !b.IsBlank() {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (f Fragment) Clone() Fragment {
	if f == nil {
		return nil
	}
	out := make(Fragment, len(f))
	for i, b := range f {
		out[i] = b.Clone()
	}
	return out
}

func normalizeRuns(runs []Run) []Run {
	out := runs[:0:0]
	for _, r := range runs {
		if r.Text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Style == r.Style {
			out[n-1].Text += r.Text
			continue
		}
		out = append(out, r)
	}
	return out
}

// byteIndex converts a rune offset into a byte index within s.
func byteIndex(s string, runeOffset int) int {
	if runeOffset <= 0 {
		return 0
	}
	i := 0
	for b := range s {
		if i == runeOffset {
			return b
		}
		i++
	}
	return len(s)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
