package pagination

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/typenhq/typen/internal/layout"
	"github.com/typenhq/typen/internal/richtext"
)

// Pages are 10 cells wide and 5 lines tall. Every word from words() is four
// cells plus a space, so a line holds two words and a page holds ten.
func newTestEngine(t *testing.T, pages ...string) *Engine {
	t.Helper()
	e := New(Config{
		Measurer: layout.NewTextMeasurer(layout.Metrics{FontSize: 10, LineHeight: 2, AdvanceRatio: 1}),
		Size:     layout.PageSize{Width: 100, Height: 100},
	})
	if len(pages) > 0 {
		frags := make([]richtext.Fragment, len(pages))
		for i, p := range pages {
			frags[i] = richtext.MustParse(p)
		}
		e.Load(frags)
	}
	return e
}

func words(from, n int) string {
	var sb strings.Builder
	for i := from; i < from+n; i++ {
		fmt.Fprintf(&sb, "w%03d ", i)
	}
	return sb.String()
}

func pageTexts(e *Engine) []string {
	out := make([]string, e.PageCount())
	for i, p := range e.Pages() {
		out[i] = p.Blocks.Text()
	}
	return out
}

func assertFits(t *testing.T, e *Engine, rep Report) {
	t.Helper()
	for i := 0; i < e.PageCount(); i++ {
		if e.Height(i) <= 102 {
			continue
		}
		if len(e.Pages()[i].Blocks) == 1 && containsInt(rep.Oversized, i) {
			continue
		}
		t.Errorf("page %d height %v exceeds limit", i, e.Height(i))
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func TestReflow_SplitsOverflowingParagraph(t *testing.T) {
	text := words(0, 16)
	e := newTestEngine(t, "<p>"+text+"</p>")

	rep := e.Reflow()

	if e.PageCount() != 2 {
		t.Fatalf("PageCount() = %d, want 2", e.PageCount())
	}
	if rep.Split != 1 || rep.Created != 1 {
		t.Errorf("report = %+v, want one split and one created page", rep)
	}
	pages := e.Pages()
	if got := pages[0].Blocks.Text(); got != words(0, 10) {
		t.Errorf("page 0 = %q, want %q", got, words(0, 10))
	}
	if !pages[1].Blocks[0].Continued {
		t.Error("page 1 should start with a continuation")
	}
	if got := e.Text(); got != text {
		t.Errorf("Text() = %q, want %q", got, text)
	}
	assertFits(t, e, rep)
}

func TestReflow_MovesWholeBlocksAfterFirst(t *testing.T) {
	e := newTestEngine(t, "<p>a</p><p>b</p><p>c</p><p>d</p><p>"+words(0, 8)+"</p>")

	e.Reflow()

	pages := e.Pages()
	if len(pages) != 2 {
		t.Fatalf("PageCount() = %d, want 2", len(pages))
	}
	if len(pages[0].Blocks) != 4 {
		t.Errorf("page 0 blocks = %d, want 4", len(pages[0].Blocks))
	}
	if pages[1].Blocks[0].Continued {
		t.Error("moved block should not be a continuation")
	}
}

func TestReflow_KeepsSavedPageBreaks(t *testing.T) {
	e := newTestEngine(t, "<p>alpha</p>", "<p>beta</p>")

	rep := e.Reflow()

	if got := pageTexts(e); !reflect.DeepEqual(got, []string{"alpha", "beta"}) {
		t.Fatalf("pages = %q, want alpha and beta on their own pages", got)
	}
	if rep.Changed() {
		t.Errorf("report = %+v, want no changes", rep)
	}
}

func TestReflow_PullsBackMovedBlocks(t *testing.T) {
	e := newTestEngine(t, "<p>a</p><p>b</p><p>c</p><p>d</p><p>e</p><p>f</p>")
	e.Reflow()
	if got := pageTexts(e); !reflect.DeepEqual(got, []string{"abcde", "f"}) {
		t.Fatalf("pages = %q, want f moved to a new page", got)
	}

	e.SetCaret(Point{Page: 0, Block: 4, Offset: 1})
	e.DeleteBackward()
	e.DeleteBackward()
	rep := e.Reflow()

	if e.PageCount() != 1 {
		t.Fatalf("PageCount() = %d, want 1", e.PageCount())
	}
	if rep.Pulled != 1 || rep.Removed != 1 {
		t.Errorf("report = %+v", rep)
	}
	if got := e.Text(); got != "a\nb\nc\nd\nf" {
		t.Errorf("Text() = %q", got)
	}
	_, focus := e.Caret()
	if focus != (Point{Page: 0, Block: 3, Offset: 1}) {
		t.Errorf("caret = %+v, want end of d", focus)
	}
}

func TestReflow_OverflowInsertsPageBeforeSavedBreak(t *testing.T) {
	e := newTestEngine(t, "<p>a</p><p>b</p><p>c</p><p>d</p><p>e</p><p>f</p>", "<p>next</p>")

	rep := e.Reflow()

	if got := pageTexts(e); !reflect.DeepEqual(got, []string{"abcde", "f", "next"}) {
		t.Fatalf("pages = %q", got)
	}
	if rep.Created != 1 {
		t.Errorf("Created = %d, want 1", rep.Created)
	}
	if again := e.Reflow(); again.Changed() {
		t.Errorf("second reflow changed layout: %+v", again)
	}
}

func TestReflow_RejoinsContinuation(t *testing.T) {
	e := newTestEngine(t, "<p>one </p>", `<p data-continued="true">two</p>`)

	e.Reflow()

	pages := e.Pages()
	if len(pages) != 1 || len(pages[0].Blocks) != 1 {
		t.Fatalf("pages = %v, want one block on one page", pageTexts(e))
	}
	if got := pages[0].Blocks[0].Text(); got != "one two" {
		t.Errorf("text = %q, want %q", got, "one two")
	}
}

func TestReflow_PullsPartOfContinuation(t *testing.T) {
	e := newTestEngine(t,
		"<p>"+words(0, 6)+"</p>",
		`<p data-continued="true">`+strings.TrimSpace(words(6, 6))+"</p>")

	e.Reflow()

	texts := pageTexts(e)
	if len(texts) != 2 {
		t.Fatalf("pages = %q, want 2", texts)
	}
	if texts[0] != words(0, 10) {
		t.Errorf("page 0 = %q, want %q", texts[0], words(0, 10))
	}
	if texts[1] != "w010 w011" {
		t.Errorf("page 1 = %q, want %q", texts[1], "w010 w011")
	}
	if !e.Pages()[1].Blocks[0].Continued {
		t.Error("remaining piece should stay a continuation")
	}
}

func TestReflow_AcceptsUnsplittableBlock(t *testing.T) {
	e := newTestEngine(t, "<p>"+strings.Repeat("x", 150)+"</p>")

	rep := e.Reflow()

	if e.PageCount() != 1 {
		t.Errorf("PageCount() = %d, want 1", e.PageCount())
	}
	if !reflect.DeepEqual(rep.Oversized, []int{0}) {
		t.Errorf("Oversized = %v, want [0]", rep.Oversized)
	}
}

func TestReflow_ReportsUnresolvedOverflow(t *testing.T) {
	long := strings.Repeat("x", 150)
	tests := []struct {
		name   string
		markup string
	}{
		{"unsplittable block followed by others", "<p>" + long + "</p><p>tail</p>"},
		{"first word taller than the page", "<p>" + long + " tail</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, tt.markup)

			rep := e.Reflow()

			if e.PageCount() != 2 {
				t.Fatalf("PageCount() = %d, want 2", e.PageCount())
			}
			if got := pageTexts(e)[1]; got != "tail" {
				t.Errorf("page 1 = %q, want tail", got)
			}
			if !reflect.DeepEqual(rep.Oversized, []int{0}) {
				t.Errorf("Oversized = %v, want [0]", rep.Oversized)
			}
		})
	}
}

func TestReflow_RemovesTrailingBlankPages(t *testing.T) {
	e := newTestEngine(t, "<p>"+words(0, 10)+"</p>", "<p></p>", "<p> </p>")
	e.SetCaret(Point{})

	e.Reflow()

	if e.PageCount() != 1 {
		t.Errorf("PageCount() = %d, want 1", e.PageCount())
	}
}

func TestReflow_KeepsFirstPageAndCaretPage(t *testing.T) {
	e := newTestEngine(t, "<p></p>")
	e.Reflow()
	if e.PageCount() != 1 {
		t.Fatalf("PageCount() = %d, want 1", e.PageCount())
	}

	e = newTestEngine(t, "<p>"+words(0, 10)+"</p>", "<p></p>")
	e.Reflow()
	if e.PageCount() != 2 {
		t.Errorf("PageCount() = %d, want 2 while the caret is on the blank page", e.PageCount())
	}
}

func TestReflow_Idempotent(t *testing.T) {
	e := newTestEngine(t,
		"<h1>Title</h1><p>"+words(0, 23)+"</p><p>short</p>",
		"<p>"+words(23, 4)+"</p><blockquote>"+words(27, 9)+"</blockquote>")

	e.Settle(20)
	before := e.Render()

	rep := e.Reflow()
	if rep.Changed() {
		t.Errorf("second reflow changed layout: %+v", rep)
	}
	if after := e.Render(); !reflect.DeepEqual(before, after) {
		t.Errorf("Render() changed:\n%q\n%q", before, after)
	}
}

func TestSettle_Converges(t *testing.T) {
	var sb strings.Builder
	next := 0
	for i := 1; i <= 12; i++ {
		n := (i * 7) % 13
		sb.WriteString("<p>" + words(next, n) + "</p>")
		next += n
	}
	e := newTestEngine(t, sb.String())
	want := e.Text()

	rep, passes := e.Settle(100)

	if passes >= 100 {
		t.Fatalf("Settle did not converge")
	}
	if got := e.Text(); got != want {
		t.Errorf("text changed during pagination:\n%q\n%q", got, want)
	}
	assertFits(t, e, rep)
}

type reentrantMeasurer struct {
	inner   layout.Measurer
	engine  *Engine
	skipped int
}

func (m *reentrantMeasurer) MeasureHeight(f richtext.Fragment, width float64) float64 {
	if m.engine != nil && m.engine.Reflow().Skipped {
		m.skipped++
	}
	return m.inner.MeasureHeight(f, width)
}

func TestReflow_NotReentrant(t *testing.T) {
	m := &reentrantMeasurer{inner: layout.NewTextMeasurer(layout.Metrics{FontSize: 10, LineHeight: 2, AdvanceRatio: 1})}
	e := New(Config{Measurer: m, Size: layout.PageSize{Width: 100, Height: 100}})
	e.Load([]richtext.Fragment{richtext.MustParse("<p>" + words(0, 12) + "</p>")})
	m.engine = e

	e.Reflow()

	if m.skipped == 0 {
		t.Error("nested reflow should be skipped")
	}
	if e.Busy() {
		t.Error("engine still busy after reflow")
	}
}
