package editor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/typenhq/typen/internal/auth"
	"github.com/typenhq/typen/internal/autosave"
	"github.com/typenhq/typen/internal/document"
	"github.com/typenhq/typen/internal/layout"
	"github.com/typenhq/typen/internal/pagination"
	"github.com/typenhq/typen/internal/prediction"
	"github.com/typenhq/typen/internal/richtext"
	"github.com/typenhq/typen/internal/schedule"
	"github.com/typenhq/typen/internal/types"
)

type memBooks struct {
	mu      sync.Mutex
	books   map[string]types.Book
	updates int
	err     error
}

func (m *memBooks) GetBook(_ context.Context, id string) (types.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.books[id]
	if !ok {
		return types.Book{}, errors.New("book not found")
	}
	return b, nil
}

func (m *memBooks) UpdateBook(_ context.Context, id string, u types.BookUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	b := m.books[id]
	if u.Content != nil {
		b.Content = *u.Content
	}
	if u.WordCount != nil {
		b.WordCount = *u.WordCount
	}
	if u.Title != nil {
		b.Title = *u.Title
	}
	if u.Genre != nil {
		b.Genre = *u.Genre
	}
	m.books[id] = b
	m.updates++
	return nil
}

func (m *memBooks) get(id string) types.Book {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.books[id]
}

type fixedPredictor struct {
	mu    sync.Mutex
	words []string
	texts []string
	genre string
}

func (p *fixedPredictor) Predict(_ context.Context, req types.PredictRequest) ([]types.Prediction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.texts = append(p.texts, req.Text)
	p.genre = req.Genre
	out := make([]types.Prediction, len(p.words))
	for i, w := range p.words {
		out[i] = types.Prediction{ID: i + 1, Rank: fmt.Sprint(i + 1), Word: w, Type: types.PredictionProbable}
	}
	return out, nil
}

type fakeIdentity struct {
	mu       sync.Mutex
	signedIn bool
}

func (f *fakeIdentity) CurrentUser() (auth.User, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return auth.User{ID: "u1"}, f.signedIn
}

func (f *fakeIdentity) SignedIn() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.signedIn
}

func (f *fakeIdentity) SignOut() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signedIn = false
}

func (f *fakeIdentity) Token() string { return "token" }

type harness struct {
	session   *Session
	books     *memBooks
	predictor *fixedPredictor
	identity  *fakeIdentity
	clock     *schedule.Manual
	signedOut int
}

// Pages hold ten five-cell words, two per line.
func open(t *testing.T, content string) *harness {
	t.Helper()
	h := &harness{
		books: &memBooks{books: map[string]types.Book{
			"b1": {ID: "b1", Title: "Draft", Genre: "fantasy", Content: content},
		}},
		predictor: &fixedPredictor{words: []string{"dragon", "castle"}},
		identity:  &fakeIdentity{signedIn: true},
		clock:     schedule.NewManual(),
	}
	s, err := Open(context.Background(), Config{
		BookID:      "b1",
		Books:       h.books,
		Predictor:   h.predictor,
		Identity:    h.identity,
		Timers:      h.clock,
		Measurer:    layout.NewTextMeasurer(layout.Metrics{FontSize: 10, LineHeight: 2, AdvanceRatio: 1}),
		PageSize:    layout.PageSize{Width: 100, Height: 100},
		OnSignedOut: func() { h.signedOut++ },
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Leave(context.Background()) })
	h.session = s
	return h
}

func words(from, n int) string {
	var sb strings.Builder
	for i := from; i < from+n; i++ {
		fmt.Fprintf(&sb, "w%03d ", i)
	}
	return sb.String()
}

func TestOpen_RequiresSignIn(t *testing.T) {
	_, err := Open(context.Background(), Config{
		BookID:    "b1",
		Books:     &memBooks{},
		Predictor: &fixedPredictor{},
		Identity:  &fakeIdentity{},
	})
	if !errors.Is(err, auth.ErrUnauthorized) {
		t.Errorf("Open() error = %v, want ErrUnauthorized", err)
	}
}

func TestOpen_TwoPageContent(t *testing.T) {
	h := open(t, "Hello"+document.PageBreakMarker+"World")

	st := h.session.State()
	if len(st.Pages) != 2 {
		t.Fatalf("pages = %q, want 2", st.Pages)
	}
	for i, want := range []string{"Hello", "World"} {
		if got := document.StripMarkup(st.Pages[i]); got != want {
			t.Errorf("page %d = %q, want %q", i, got, want)
		}
	}
	if st.Counts.Words != 2 {
		t.Errorf("word count = %d, want 2", st.Counts.Words)
	}
	if got := h.session.Text(); got != "Hello\nWorld" {
		t.Errorf("Text() = %q", got)
	}
	if st.Genre != "fantasy" || st.SaveStatus != autosave.StatusSaved {
		t.Errorf("state = %+v", st)
	}
}

func TestTypingUntilOverflow(t *testing.T) {
	h := open(t, "")
	typed := ""
	for i := 0; i < 15; i++ {
		w := words(i, 1)
		if err := h.session.InsertText(w); err != nil {
			t.Fatal(err)
		}
		typed += w
	}

	st := h.session.State()
	if len(st.Pages) != 2 {
		t.Fatalf("pages = %d, want 2", len(st.Pages))
	}
	if got := h.session.Text(); got != typed {
		t.Errorf("Text() = %q, want %q", got, typed)
	}
	if st.Counts.Words != 15 {
		t.Errorf("word count = %d, want 15", st.Counts.Words)
	}
	if st.Cursor.PageIndex != 1 {
		t.Errorf("cursor page = %d, want 1", st.Cursor.PageIndex)
	}
	if !strings.Contains(h.session.Document(), document.PageBreakMarker) {
		t.Error("serialized document should contain a page break")
	}
}

func TestBackspaceAtPageStartMerges(t *testing.T) {
	h := open(t, "<p>"+words(0, 10)+"</p>"+document.PageBreakMarker+"<p>next</p>")
	if n := len(h.session.State().Pages); n != 2 {
		t.Fatalf("pages = %d, want 2", n)
	}
	h.session.SetCursor(pagination.CursorPosition{PageIndex: 1, Offset: 0})

	if err := h.session.DeleteBackward(); err != nil {
		t.Fatal(err)
	}

	// The merged paragraph is split again, so the text still spans pages
	// but the paragraph break is gone.
	if got := h.session.Text(); got != words(0, 10)+"next" {
		t.Errorf("Text() = %q", got)
	}
}

func TestBackspaceAtContinuationKeepsCountsInStep(t *testing.T) {
	h := open(t, "<p>"+words(0, 10)+"</p>"+document.PageBreakMarker+`<p data-continued="true">w010</p>`)
	if n := len(h.session.State().Pages); n != 2 {
		t.Fatalf("pages = %d, want 2", n)
	}
	h.session.SetCursor(pagination.CursorPosition{PageIndex: 1, Offset: 0})

	if err := h.session.DeleteBackward(); err != nil {
		t.Fatal(err)
	}

	want := words(0, 9) + "w009w010"
	text := h.session.Text()
	if text != want {
		t.Errorf("Text() = %q, want %q", text, want)
	}
	st := h.session.State()
	if len(st.Pages) != 2 || document.StripMarkup(st.Pages[1]) != "w009w010" {
		t.Errorf("pages = %q, want the joined word on page 2", st.Pages)
	}
	if got := len(strings.Fields(text)); st.Counts.Words != got {
		t.Errorf("word count = %d, want %d", st.Counts.Words, got)
	}

	h.clock.Advance(prediction.DefaultDebounce)
	h.session.Wait()
	h.predictor.mu.Lock()
	sent := append([]string(nil), h.predictor.texts...)
	h.predictor.mu.Unlock()
	if len(sent) == 0 || sent[len(sent)-1] != want {
		t.Errorf("requests = %q, want the joined text", sent)
	}
}

func TestSuggestionFlow(t *testing.T) {
	h := open(t, "<p>The</p>")
	h.session.SetCursor(pagination.CursorPosition{PageIndex: 0, Offset: 3})
	h.session.InsertText(" ")

	h.clock.Advance(prediction.DefaultDebounce)
	h.session.Wait()

	st := h.session.State()
	if len(st.Predictions) != 2 || st.Loading {
		t.Fatalf("predictions = %+v, loading = %v", st.Predictions, st.Loading)
	}
	h.predictor.mu.Lock()
	sent := append([]string(nil), h.predictor.texts...)
	genre := h.predictor.genre
	h.predictor.mu.Unlock()
	if len(sent) != 1 || sent[0] != "The" || genre != "fantasy" {
		t.Errorf("requests = %q genre = %q", sent, genre)
	}

	if err := h.session.InsertSuggestion(st.Predictions[0].Word); err != nil {
		t.Fatal(err)
	}
	if got := h.session.Text(); got != "The dragon " {
		t.Errorf("Text() = %q", got)
	}
	if cur := h.session.State().Cursor; cur.Offset != len("The dragon ") {
		t.Errorf("cursor offset = %d, want after the space", cur.Offset)
	}
}

func TestAutosave(t *testing.T) {
	h := open(t, "<p>start</p>")
	h.session.InsertText(" more")

	if st := h.session.State(); st.SaveStatus != autosave.StatusUnsaved {
		t.Errorf("SaveStatus = %s, want unsaved", st.SaveStatus)
	}
	h.clock.Advance(2 * time.Second)
	h.session.Wait()

	b := h.books.get("b1")
	if b.Content != "<p>start more</p>" || b.WordCount != 2 {
		t.Errorf("saved book = %q / %d", b.Content, b.WordCount)
	}
	if st := h.session.State(); st.SaveStatus != autosave.StatusSaved {
		t.Errorf("SaveStatus = %s, want saved", st.SaveStatus)
	}
}

func TestUnauthorizedSaveSignsOut(t *testing.T) {
	h := open(t, "<p>x</p>")
	h.books.mu.Lock()
	h.books.err = fmt.Errorf("server error (401): %w", auth.ErrUnauthorized)
	h.books.mu.Unlock()

	h.session.InsertText("y")
	h.clock.Advance(2 * time.Second)
	h.session.Wait()

	if h.signedOut != 1 || h.identity.SignedIn() {
		t.Errorf("signedOut = %d, identity signed in = %v", h.signedOut, h.identity.SignedIn())
	}
	if st := h.session.State(); st.SaveStatus != autosave.StatusError {
		t.Errorf("SaveStatus = %s, want error", st.SaveStatus)
	}
}

func TestFormattingCommands(t *testing.T) {
	h := open(t, "<p>make bold</p>")
	h.session.Select(pagination.Point{Offset: 5}, pagination.Point{Offset: 9})

	h.session.ToggleStyle(richtext.Bold)
	h.session.SetBlockKind(richtext.Heading2)

	if got := h.session.Document(); got != "<h2>make <strong>bold</strong></h2>" {
		t.Errorf("Document() = %q", got)
	}
}

func TestLeave(t *testing.T) {
	h := open(t, "<p>a</p>")
	h.session.InsertText("b")

	if err := h.session.Leave(context.Background()); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if b := h.books.get("b1"); b.Content != "<p>ab</p>" {
		t.Errorf("saved content = %q", b.Content)
	}
	if err := h.session.InsertText("c"); !errors.Is(err, ErrClosed) {
		t.Errorf("InsertText() after Leave error = %v, want ErrClosed", err)
	}
}

func TestUpdateMetadata(t *testing.T) {
	h := open(t, "")
	err := h.session.UpdateMetadata(context.Background(), types.BookUpdate{
		Title:   types.String("Renamed"),
		Genre:   types.String("mystery"),
		Content: types.String("ignored"),
	})
	if err != nil {
		t.Fatal(err)
	}
	b := h.books.get("b1")
	if b.Title != "Renamed" || b.Content != "" {
		t.Errorf("book = %+v", b)
	}
	if st := h.session.State(); st.Title != "Renamed" || st.Genre != "mystery" {
		t.Errorf("state = %+v", st)
	}
}
