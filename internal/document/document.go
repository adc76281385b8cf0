// Package document holds the persisted form of a book's content: an ordered
// list of page fragments joined by a page-break marker, plus counts derived
// from its plain text.
package document

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/typenhq/typen/internal/richtext"
)

// PageBreakMarker separates page fragments in persisted content.
const PageBreakMarker = "<!-- page-break -->"

// Counts are derived from a document's plain text.
type Counts struct {
	Words int `json:"wordCount"`
	Chars int `json:"charCount"`
}

// Document is a book's content split into page fragments.
// Fragments are kept as markup strings so Load and Serialize are exact inverses.
type Document struct {
	ID     string
	pages  []string
	counts Counts
}

// Load splits raw content on the page-break marker. Content without a marker
// is one page; empty content is one empty page.
func Load(id, raw string) *Document {
	d := &Document{ID: id, pages: strings.Split(raw, PageBreakMarker)}
	d.UpdateCounts()
	return d
}

// Serialize joins the page fragments with the page-break marker.
func (d *Document) Serialize() string {
	return strings.Join(d.pages, PageBreakMarker)
}

// Pages returns a copy of the page fragments.
func (d *Document) Pages() []string {
	return append([]string(nil), d.pages...)
}

// PageCount returns the number of page fragments.
func (d *Document) PageCount() int {
	return len(d.pages)
}

// SetPages replaces the page fragments and recomputes counts.
func (d *Document) SetPages(pages []string) Counts {
	if len(pages) == 0 {
		pages = []string{""}
	}
	d.pages = append([]string(nil), pages...)
	return d.UpdateCounts()
}

// PlainText returns the document's text with markup removed. Block elements
// and page boundaries act as whitespace, except before a continuation block,
// which joins the piece before it. Runs of whitespace collapse to one space
// and the result is trimmed.
func (d *Document) PlainText() string {
	return collapse(StripMarkup(strings.Join(d.pages, PageBreakMarker)))
}

// UpdateCounts recomputes word and character counts from the plain text.
func (d *Document) UpdateCounts() Counts {
	d.counts = Count(d.PlainText())
	return d.counts
}

// Counts returns the counts computed by the last update.
func (d *Document) Counts() Counts {
	return d.counts
}

// Count computes counts for already-extracted plain text.
func Count(text string) Counts {
	text = collapse(text)
	return Counts{
		Words: len(strings.Fields(text)),
		Chars: utf8.RuneCountInString(text),
	}
}

// blockTags separate words when stripped; inline tags do not.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "pre": true, "hr": true, "tr": true, "td": true,
}

// StripMarkup removes tags and comments from a fragment, decoding entities.
// Block boundaries and comments become a single space unless the next block
// continues a split paragraph.
func StripMarkup(markup string) string {
	if !strings.ContainsAny(markup, "<&") {
		return markup
	}
	z := html.NewTokenizer(strings.NewReader(markup))
	var sb strings.Builder
	sep := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			return sb.String()
		case html.TextToken:
			text := z.Text()
			if sep {
				if len(bytes.TrimSpace(text)) == 0 {
					continue
				}
				sb.WriteByte(' ')
				sep = false
			}
			sb.Write(text)
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !blockTags[string(name)] {
				continue
			}
			sep = !hasAttr || !continuedTag(z)
		case html.EndTagToken:
			name, _ := z.TagName()
			if blockTags[string(name)] {
				sep = true
			}
		case html.CommentToken:
			sep = true
		}
	}
}

func continuedTag(z *html.Tokenizer) bool {
	for {
		key, val, more := z.TagAttr()
		if string(key) == richtext.ContinuedAttr {
			return string(val) == "true"
		}
		if !more {
			return false
		}
	}
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
