package pagination

import (
	"reflect"
	"strings"
	"testing"

	"github.com/typenhq/typen/internal/document"
	"github.com/typenhq/typen/internal/richtext"
)

func TestTyping_OverflowsToSecondPage(t *testing.T) {
	e := newTestEngine(t)
	typed := ""
	for i := 0; i < 15; i++ {
		w := words(i, 1)
		e.InsertText(w)
		typed += w
		e.Reflow()
	}

	if e.PageCount() != 2 {
		t.Fatalf("PageCount() = %d, want 2", e.PageCount())
	}
	if got := e.Text(); got != typed {
		t.Errorf("Text() = %q, want %q", got, typed)
	}
	pos := e.CursorPosition()
	if pos.PageIndex != 1 || !pos.Collapsed {
		t.Errorf("cursor = %+v, want collapsed on page 1", pos)
	}
	if pos.Offset != len(e.Pages()[1].Blocks.Text()) {
		t.Errorf("cursor offset = %d, want end of page 1", pos.Offset)
	}
}

func TestDeleteBackward_MergesAcrossPages(t *testing.T) {
	e := newTestEngine(t, "<p>Hello</p>", "<p>World</p>")
	e.SetCaret(Point{Page: 1})

	e.DeleteBackward()
	e.Reflow()

	if e.PageCount() != 1 {
		t.Fatalf("PageCount() = %d, want 1", e.PageCount())
	}
	if got := e.Text(); got != "HelloWorld" {
		t.Errorf("Text() = %q, want %q", got, "HelloWorld")
	}
	_, focus := e.Caret()
	if focus != (Point{Page: 0, Block: 0, Offset: 5}) {
		t.Errorf("caret = %+v, want end of Hello", focus)
	}
}

func TestDeleteBackward_ContinuationDeletesPreviousGrapheme(t *testing.T) {
	e := newTestEngine(t, "<p>one two </p>", `<p data-continued="true">three</p>`)
	e.SetCaret(Point{Page: 1})

	e.DeleteBackward()

	if got := e.Pages()[0].Blocks.Text(); got != "one two" {
		t.Errorf("page 0 = %q, want %q", got, "one two")
	}
	_, focus := e.Caret()
	if focus != (Point{Page: 0, Block: 0, Offset: 7}) {
		t.Errorf("caret = %+v, want end of page 0", focus)
	}
}

func TestDeleteBackward_ContinuationMergeMovesJoinedWord(t *testing.T) {
	e := newTestEngine(t, "<p>"+words(0, 10)+"</p>", `<p data-continued="true">w010</p>`)
	e.SetCaret(Point{Page: 1})

	e.DeleteBackward()
	rep := e.Reflow()

	if got := pageTexts(e); !reflect.DeepEqual(got, []string{words(0, 9), "w009w010"}) {
		t.Fatalf("pages = %q, want the joined word on page 1", got)
	}
	if !e.Pages()[1].Blocks[0].Continued {
		t.Error("page 1 should still continue the paragraph")
	}
	text := e.Text()
	if text != words(0, 9)+"w009w010" {
		t.Errorf("Text() = %q", text)
	}
	_, focus := e.Caret()
	if focus != (Point{Page: 1, Block: 0, Offset: 4}) {
		t.Errorf("caret = %+v, want inside the joined word", focus)
	}
	assertFits(t, e, rep)

	doc := document.Load("b1", strings.Join(e.Render(), document.PageBreakMarker))
	if got, want := doc.Counts().Words, len(strings.Fields(text)); got != want {
		t.Errorf("Words = %d, want %d", got, want)
	}
	if got := doc.PlainText(); got != text {
		t.Errorf("PlainText() = %q, want %q", got, text)
	}

	if again := e.Reflow(); again.Changed() {
		t.Errorf("second reflow changed layout: %+v", again)
	}
}

func TestDeleteBackward_Grapheme(t *testing.T) {
	e := newTestEngine(t, "<p>hi👍🏽</p>")

	e.DeleteBackward()

	if got := e.Text(); got != "hi" {
		t.Errorf("Text() = %q, want %q", got, "hi")
	}
}

func TestDeleteBackward_AtDocumentStart(t *testing.T) {
	e := newTestEngine(t, "<p>text</p>")
	e.SetCaret(Point{})

	e.DeleteBackward()

	if got := e.Text(); got != "text" {
		t.Errorf("Text() = %q, want unchanged", got)
	}
}

func TestInsertText_ReplacesSelection(t *testing.T) {
	e := newTestEngine(t, "<p>The cat sat</p><p>on the mat</p>")
	e.Select(Point{Block: 0, Offset: 4}, Point{Block: 1, Offset: 3})

	e.InsertText("dog ")

	if got := e.Text(); got != "The dog the mat" {
		t.Errorf("Text() = %q", got)
	}
	_, focus := e.Caret()
	if focus != (Point{Block: 0, Offset: 8}) || !e.Collapsed() {
		t.Errorf("caret = %+v, want collapsed after inserted text", focus)
	}
}

func TestInsertText_Newlines(t *testing.T) {
	e := newTestEngine(t, "<h2>Title</h2>")

	e.InsertText("\nfirst\nsecond")

	pages := e.Pages()
	if n := len(pages[0].Blocks); n != 3 {
		t.Fatalf("blocks = %d, want 3", n)
	}
	if pages[0].Blocks[1].Kind != richtext.Paragraph {
		t.Errorf("block after heading kind = %v, want paragraph", pages[0].Blocks[1].Kind)
	}
	if got := e.Text(); got != "Title\nfirst\nsecond" {
		t.Errorf("Text() = %q", got)
	}
}

func TestToggleStyle(t *testing.T) {
	e := newTestEngine(t, "<p>make this bold</p>")
	e.Select(Point{Offset: 10}, Point{Offset: 14})

	e.ToggleStyle(richtext.Bold)
	if got := e.Render()[0]; got != "<p>make this <strong>bold</strong></p>" {
		t.Errorf("after bold = %s", got)
	}

	e.ToggleStyle(richtext.Bold)
	if got := e.Render()[0]; got != "<p>make this bold</p>" {
		t.Errorf("after unbold = %s", got)
	}
}

func TestToggleStyle_CollapsedAppliesToNextText(t *testing.T) {
	e := newTestEngine(t, "<p>plain </p>")

	e.ToggleStyle(richtext.Italic)
	e.InsertText("slanted")

	if got := e.Render()[0]; got != "<p>plain <em>slanted</em></p>" {
		t.Errorf("Render() = %s", got)
	}
}

func TestSetBlockKind_CoversSplitParagraph(t *testing.T) {
	e := newTestEngine(t, "<p>"+words(0, 4)+"</p>", `<p data-continued="true">tail</p><p>other</p>`)
	e.SetCaret(Point{Page: 1, Block: 0, Offset: 2})

	e.SetBlockKind(richtext.Quote)

	pages := e.Pages()
	if pages[0].Blocks[0].Kind != richtext.Quote || pages[1].Blocks[0].Kind != richtext.Quote {
		t.Error("both pieces of the paragraph should become quotes")
	}
	if pages[1].Blocks[1].Kind != richtext.Paragraph {
		t.Error("following paragraph should be untouched")
	}
}

func TestCursor_PreservedAcrossSplit(t *testing.T) {
	text := words(0, 16)
	e := newTestEngine(t, "<p>"+text+"</p>")
	target := strings.Index(text, "w012")
	e.SetCaret(Point{Offset: target})

	e.Reflow()

	_, focus := e.Caret()
	if focus.Page != 1 {
		t.Fatalf("caret page = %d, want 1", focus.Page)
	}
	b := e.Pages()[1].Blocks[focus.Block]
	if got := b.Text()[focus.Offset : focus.Offset+4]; got != "w012" {
		t.Errorf("caret before %q, want w012", got)
	}
}

func TestCursor_SeamPrefersLaterPiece(t *testing.T) {
	e := newTestEngine(t, "<p>"+words(0, 16)+"</p>")
	e.SetCaret(Point{Offset: len(words(0, 10))})

	e.Reflow()

	_, focus := e.Caret()
	if focus != (Point{Page: 1, Block: 0, Offset: 0}) {
		t.Errorf("caret = %+v, want start of page 1", focus)
	}
}

func TestRestoreCursor(t *testing.T) {
	e := newTestEngine(t, "<p>ab</p><p>cd</p>", "<p>ef</p>")

	tests := []struct {
		name string
		pos  CursorPosition
		want Point
	}{
		{"inside second block", CursorPosition{PageIndex: 0, Offset: 3}, Point{Page: 0, Block: 1, Offset: 1}},
		{"block seam stays left", CursorPosition{PageIndex: 0, Offset: 2}, Point{Page: 0, Block: 0, Offset: 2}},
		{"past page end", CursorPosition{PageIndex: 0, Offset: 99}, Point{Page: 0, Block: 1, Offset: 2}},
		{"missing page", CursorPosition{PageIndex: 7}, Point{Page: 1, Block: 0, Offset: 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e.RestoreCursor(tt.pos)
			if _, focus := e.Caret(); focus != tt.want {
				t.Errorf("caret = %+v, want %+v", focus, tt.want)
			}
			if got := e.CursorPosition(); tt.pos.Offset <= 4 && tt.pos.PageIndex == 0 && got.Offset != tt.pos.Offset {
				t.Errorf("CursorPosition().Offset = %d, want %d", got.Offset, tt.pos.Offset)
			}
		})
	}
}
