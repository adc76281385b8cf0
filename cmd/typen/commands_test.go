package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/typenhq/typen/internal/auth"
	"github.com/typenhq/typen/internal/document"
	"github.com/typenhq/typen/internal/editor"
	"github.com/typenhq/typen/internal/layout"
	"github.com/typenhq/typen/internal/schedule"
	"github.com/typenhq/typen/internal/types"
)

func TestPlainToMarkup(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"lines", "one\ntwo\r\n\nthree", "<p>one</p><p>two</p><p>three</p>"},
		{"escapes", "a < b & c", "<p>a &lt; b &amp; c</p>"},
		{"form feed", "one\ftwo", "<p>one</p>" + document.PageBreakMarker + "<p>two</p>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := plainToMarkup(tt.in); got != tt.want {
				t.Errorf("plainToMarkup() = %q, want %q", got, tt.want)
			}
		})
	}
}

type memBooks struct {
	mu    sync.Mutex
	book  types.Book
	saves int
}

func (m *memBooks) GetBook(_ context.Context, id string) (types.Book, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id != m.book.ID {
		return types.Book{}, errors.New("book not found")
	}
	return m.book, nil
}

func (m *memBooks) UpdateBook(_ context.Context, _ string, u types.BookUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.Content != nil {
		m.book.Content = *u.Content
	}
	if u.WordCount != nil {
		m.book.WordCount = *u.WordCount
	}
	m.saves++
	return nil
}

type wordPredictor struct{ word string }

func (p wordPredictor) Predict(context.Context, types.PredictRequest) ([]types.Prediction, error) {
	return []types.Prediction{{ID: 1, Rank: "1", Word: p.word, Type: types.PredictionProbable}}, nil
}

func openTestEditor(t *testing.T, books *memBooks) *editor.Session {
	t.Helper()
	issuer, err := auth.NewIssuer(auth.IssuerConfig{Secret: "cli-secret"})
	if err != nil {
		t.Fatal(err)
	}
	token, err := issuer.Issue(auth.User{ID: "u1"})
	if err != nil {
		t.Fatal(err)
	}
	session, err := auth.NewSession(token)
	if err != nil {
		t.Fatal(err)
	}
	ed, err := editor.Open(context.Background(), editor.Config{
		BookID:    books.book.ID,
		Books:     books,
		Predictor: wordPredictor{word: "door"},
		Identity:  session,
		Timers:    schedule.NewManual(),
		Measurer:  layout.NewTextMeasurer(layout.DefaultMetrics()),
		PageSize:  layout.A4,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { ed.Leave(context.Background()) })
	return ed
}

func TestRunEditor(t *testing.T) {
	books := &memBooks{book: types.Book{ID: "b1", Title: "Draft"}}
	ed := openTestEditor(t, books)

	in := strings.NewReader(strings.Join([]string{
		"Hello",
		":enter",
		"World ",
		":regen",
		":pick 1",
		":pick 9",
		":style shout",
		":nope",
		":save",
		":quit",
		"never typed",
	}, "\n"))
	var out bytes.Buffer
	if err := runEditor(context.Background(), ed, in, &out); err != nil {
		t.Fatalf("runEditor() error = %v", err)
	}

	if got := ed.Text(); got != "Hello\nWorld door " {
		t.Errorf("Text() = %q", got)
	}
	books.mu.Lock()
	saved, saves := books.book.Content, books.saves
	books.mu.Unlock()
	if saves != 1 || !strings.Contains(saved, "<p>Hello</p>") || !strings.Contains(saved, "World door") {
		t.Errorf("saves = %d, content = %q", saves, saved)
	}

	output := out.String()
	for _, want := range []string{"saved", "usage: :pick <1-1>", "usage: :style", "unknown command :nope"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestRunEditor_EndOfInput(t *testing.T) {
	books := &memBooks{book: types.Book{ID: "b1"}}
	ed := openTestEditor(t, books)

	var out bytes.Buffer
	if err := runEditor(context.Background(), ed, strings.NewReader("Typed\n:back 2"), &out); err != nil {
		t.Fatal(err)
	}
	if got := ed.Text(); got != "Typ" {
		t.Errorf("Text() = %q, want %q", got, "Typ")
	}
}
