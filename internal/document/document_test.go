package document

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestLoad_TwoPages(t *testing.T) {
	d := Load("b1", "Hello"+PageBreakMarker+"World")

	if d.PageCount() != 2 {
		t.Fatalf("PageCount() = %d, want 2", d.PageCount())
	}
	if got := d.Pages(); got[0] != "Hello" || got[1] != "World" {
		t.Errorf("Pages() = %q", got)
	}
	if got := d.Counts().Words; got != 2 {
		t.Errorf("Words = %d, want 2", got)
	}
	if got := d.PlainText(); got != "Hello World" {
		t.Errorf("PlainText() = %q, want %q", got, "Hello World")
	}
}

func TestLoad_Empty(t *testing.T) {
	d := Load("b1", "")
	if d.PageCount() != 1 {
		t.Fatalf("PageCount() = %d, want 1", d.PageCount())
	}
	if c := d.Counts(); c.Words != 0 || c.Chars != 0 {
		t.Errorf("Counts() = %+v, want zero", c)
	}
}

func TestSerialize_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"<p>one</p>" + PageBreakMarker + "<p>two</p>",
		PageBreakMarker,
		"<p>a</p>" + PageBreakMarker + PageBreakMarker + "<p>c</p>",
		"<h1>Title</h1><p>x &amp; <strong>y</strong></p>" + PageBreakMarker,
	}
	for _, in := range inputs {
		if got := Load("id", in).Serialize(); got != in {
			t.Errorf("Serialize(Load(%q)) = %q", in, got)
		}
	}
}

func TestPlainText_Separators(t *testing.T) {
	tests := []struct {
		name  string
		pages []string
		want  string
	}{
		{"block boundary", []string{"<p>one</p><p>two</p>"}, "one two"},
		{"inline tags join", []string{"<p>wo<strong>rd</strong></p>"}, "word"},
		{"page boundary", []string{"<p>end</p>", "<p>start</p>"}, "end start"},
		{"entities", []string{"<p>fish &amp; chips</p>"}, "fish & chips"},
		{"whitespace collapses", []string{"<p>  a \n\t b  </p>"}, "a b"},
		{"empty pages", []string{"", "<p></p>"}, ""},
		{"continuation joins its paragraph", []string{"<p>w008 w009</p>", `<p data-continued="true">w010 w011</p>`}, "w008 w009w010 w011"},
		{"continuation on the same page", []string{`<p>hal</p><p data-continued="true">f</p><p>next</p>`}, "half next"},
		{"inter-block whitespace", []string{"<p>one</p>\n  <p>two</p>"}, "one two"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Load("id", "")
			d.SetPages(tt.pages)
			if got := d.PlainText(); got != tt.want {
				t.Errorf("PlainText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUpdateCounts_MatchesPlainText(t *testing.T) {
	d := Load("id", "")
	pages := []string{
		"<p>The quick brown fox</p><p>jumps over </p>",
		`<p data-continued="true">the lazy dog.</p>`,
		"<blockquote>Über café</blockquote>",
	}
	c := d.SetPages(pages)

	text := d.PlainText()
	if c.Words != len(strings.Fields(text)) {
		t.Errorf("Words = %d, want %d", c.Words, len(strings.Fields(text)))
	}
	if c.Chars != utf8.RuneCountInString(text) {
		t.Errorf("Chars = %d, want %d", c.Chars, utf8.RuneCountInString(text))
	}
	if c.Words != 11 {
		t.Errorf("Words = %d, want 11", c.Words)
	}
}
