package richtext

import (
	"fmt"
	"html"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ContinuedAttr marks a rendered block as the continuation of a split paragraph.
const ContinuedAttr = "data-continued"

var inlineWhitespace = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")

// Parse converts an HTML fragment into blocks. Loose inline content is
// wrapped in paragraphs; whitespace between blocks is dropped.
func Parse(markup string) (Fragment, error) {
	if strings.TrimSpace(markup) == "" {
		return Fragment{}, nil
	}
	body := &xhtml.Node{Type: xhtml.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := xhtml.ParseFragment(strings.NewReader(markup), body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse markup: %w", err)
	}

	p := &parser{out: Fragment{}}
	for _, n := range nodes {
		p.walk(n, 0)
	}
	p.flush()
	return p.out, nil
}

// MustParse is Parse for trusted literals. It panics on error.
func MustParse(markup string) Fragment {
	f, err := Parse(markup)
	if err != nil {
		panic(err)
	}
	return f
}

type parser struct {
	out      Fragment
	cur      *Block
	explicit bool
	quote    int
}

func (p *parser) open(kind Kind, continued, explicit bool) {
	p.flush()
	p.cur = &Block{Kind: kind, Continued: continued}
	p.explicit = explicit
}

func (p *parser) flush() {
	if p.cur == nil {
		return
	}
	if p.explicit || len(p.cur.Runs) > 0 {
		p.cur.Runs = normalizeRuns(p.cur.Runs)
		p.out = append(p.out, *p.cur)
	}
	p.cur = nil
}

func (p *parser) text(s string, style Style) {
	s = inlineWhitespace.Replace(s)
	if p.cur == nil {
		if strings.TrimSpace(s) == "" {
			return
		}
		kind := Paragraph
		if p.quote > 0 {
			kind = Quote
		}
		p.open(kind, false, false)
	}
	p.cur.Runs = append(p.cur.Runs, Run{Text: s, Style: style})
}

func (p *parser) children(n *xhtml.Node, style Style) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c, style)
	}
}

func (p *parser) walk(n *xhtml.Node, style Style) {
	switch n.Type {
	case xhtml.TextNode:
		p.text(n.Data, style)
		return
	case xhtml.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.P, atom.Div, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		kind := kindOf(n.DataAtom)
		if p.quote > 0 && kind == Paragraph {
			kind = Quote
		}
		p.open(kind, continued(n), true)
		p.children(n, style)
		p.flush()
	case atom.Blockquote:
		p.quote++
		p.open(Quote, continued(n), !hasBlockChild(n))
		p.children(n, style)
		p.flush()
		p.quote--
	case atom.Ul, atom.Ol:
		p.flush()
		p.children(n, style)
	case atom.Strong, atom.B:
		p.children(n, style|Bold)
	case atom.Em, atom.I:
		p.children(n, style|Italic)
	case atom.U:
		p.children(n, style|Underline)
	case atom.S, atom.Strike, atom.Del:
		p.children(n, style|Strike)
	case atom.Br:
		p.text(" ", style)
	case atom.Script, atom.Style:
	default:
		p.children(n, style)
	}
}

func kindOf(a atom.Atom) Kind {
	switch a {
	case atom.H1:
		return Heading1
	case atom.H2:
		return Heading2
	case atom.H3, atom.H4, atom.H5, atom.H6:
		return Heading3
	}
	return Paragraph
}

func continued(n *xhtml.Node) bool {
	for _, a := range n.Attr {
		if a.Key == ContinuedAttr {
			return a.Val == "true"
		}
	}
	return false
}

func hasBlockChild(n *xhtml.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xhtml.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.P, atom.Div, atom.Li, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6, atom.Ul, atom.Ol:
			return true
		}
	}
	return false
}

func (k Kind) tag() string {
	switch k {
	case Heading1:
		return "h1"
	case Heading2:
		return "h2"
	case Heading3:
		return "h3"
	case Quote:
		return "blockquote"
	}
	return "p"
}

// String returns the block's element name.
func (k Kind) String() string { return k.tag() }

var styleTags = []struct {
	style Style
	tag   string
}{
	{Bold, "strong"},
	{Italic, "em"},
	{Underline, "u"},
	{Strike, "s"},
}

// Render produces deterministic markup for the fragment.
func (f Fragment) Render() string {
	var sb strings.Builder
	for _, b := range f {
		b.render(&sb)
	}
	return sb.String()
}

// Render produces markup for a single block.
func (b Block) Render() string {
	var sb strings.Builder
	b.render(&sb)
	return sb.String()
}

func (b Block) render(sb *strings.Builder) {
	tag := b.Kind.tag()
	sb.WriteString("<" + tag)
	if b.Continued {
		sb.WriteString(" " + ContinuedAttr + `="true"`)
	}
	sb.WriteString(">")
	for _, r := range b.Runs {
		for _, st := range styleTags {
			if r.Style.Has(st.style) {
				sb.WriteString("<" + st.tag + ">")
			}
		}
		sb.WriteString(html.EscapeString(r.Text))
		for i := len(styleTags) - 1; i >= 0; i-- {
			if r.Style.Has(styleTags[i].style) {
				sb.WriteString("</" + styleTags[i].tag + ">")
			}
		}
	}
	sb.WriteString("</" + tag + ">")
}
