// Package editor wires the pagination engine, prediction pipeline and
// autosave scheduler into one editing session for a book.
//
// All document and page mutation is serialized behind the session mutex.
// Network calls (loading, saving, predicting) never run while it is held.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
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

// DefaultSettlePasses bounds the reflow passes run when a book is opened.
const DefaultSettlePasses = 50

// ErrClosed is returned by operations on a session that has been left.
var ErrClosed = errors.New("editor session closed")

// Books is the persistence the session needs.
type Books interface {
	GetBook(ctx context.Context, id string) (types.Book, error)
	UpdateBook(ctx context.Context, id string, u types.BookUpdate) error
}

// Config configures a Session.
type Config struct {
	BookID    string
	Books     Books
	Predictor prediction.Fetcher
	Identity  auth.Identity
	Timers    schedule.Scheduler
	Measurer  layout.Measurer
	PageSize  layout.PageSize
	Logger    *slog.Logger

	Debounce      time.Duration
	AutosaveDelay time.Duration
	LeaveTimeout  time.Duration
	SettlePasses  int

	// OnChange receives a fresh snapshot after predictions or the save
	// status change.
	OnChange func(State)

	// OnSignedOut runs when a save is rejected because the session expired.
	OnSignedOut func()
}

// State is a snapshot of everything the editor shows.
type State struct {
	BookID      string                    `json:"bookId"`
	Title       string                    `json:"title"`
	Genre       string                    `json:"genre"`
	Pages       []string                  `json:"pages"`
	Cursor      pagination.CursorPosition `json:"cursor"`
	Counts      document.Counts           `json:"counts"`
	Predictions []types.Prediction        `json:"predictions"`
	Loading     bool                      `json:"loading"`
	SaveStatus  autosave.Status           `json:"saveStatus"`
	Oversized   []int                     `json:"oversized,omitempty"`
}

// Session is one open book.
type Session struct {
	books    Books
	identity auth.Identity
	logger   *slog.Logger
	onChange func(State)
	signOut  func()
	passes   int

	pipeline *prediction.Pipeline
	saver    *autosave.Scheduler

	mu        sync.Mutex
	book      types.Book
	doc       *document.Document
	engine    *pagination.Engine
	oversized []int
	closed    bool
}

// Open loads a book and paginates it. The identity must be signed in.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	if cfg.Identity == nil || !cfg.Identity.SignedIn() {
		return nil, auth.ErrUnauthorized
	}
	if cfg.Books == nil || cfg.Predictor == nil {
		return nil, errors.New("books and predictor are required")
	}
	if cfg.BookID == "" {
		return nil, errors.New("book id is required")
	}
	if cfg.Timers == nil {
		cfg.Timers = schedule.NewTimerScheduler()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.SettlePasses <= 0 {
		cfg.SettlePasses = DefaultSettlePasses
	}

	book, err := cfg.Books.GetBook(ctx, cfg.BookID)
	if err != nil {
		return nil, fmt.Errorf("failed to load book: %w", err)
	}

	doc := document.Load(book.ID, book.Content)
	frags, err := pagination.ParsePages(doc.Pages())
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger.With("book_id", book.ID)
	s := &Session{
		books:    cfg.Books,
		identity: cfg.Identity,
		logger:   logger,
		onChange: cfg.OnChange,
		signOut:  cfg.OnSignedOut,
		passes:   cfg.SettlePasses,
		book:     book,
		doc:      doc,
		engine: pagination.New(pagination.Config{
			Measurer: cfg.Measurer,
			Size:     cfg.PageSize,
			Logger:   logger,
		}),
	}
	s.engine.Load(frags)
	rep, passes := s.engine.Settle(s.passes)
	s.oversized = rep.Oversized
	s.doc.SetPages(s.engine.Render())
	logger.Info("opened book", "pages", s.engine.PageCount(), "reflow_passes", passes)

	s.pipeline, err = prediction.New(prediction.Config{
		Fetcher:   cfg.Predictor,
		Scheduler: cfg.Timers,
		Debounce:  cfg.Debounce,
		Genre:     book.Genre,
		Logger:    logger,
		OnChange:  func(prediction.State) { s.emit() },
	})
	if err != nil {
		return nil, err
	}
	s.saver, err = autosave.New(autosave.Config{
		Save:           s.save,
		Timers:         cfg.Timers,
		Delay:          cfg.AutosaveDelay,
		LeaveTimeout:   cfg.LeaveTimeout,
		Logger:         logger,
		OnStatus:       func(autosave.Status) { s.emit() },
		OnUnauthorized: s.unauthorized,
	})
	if err != nil {
		return nil, err
	}

	s.pipeline.OnContentChanged(s.doc.PlainText())
	return s, nil
}

// edit runs fn under the lock and reflows once. Pages the pass creates are
// laid out by the next edit. The new text then goes to the prediction
// pipeline and the autosave timer.
func (s *Session) edit(fn func(e *pagination.Engine)) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	fn(s.engine)
	rep := s.engine.Reflow()
	s.oversized = rep.Oversized
	s.doc.SetPages(s.engine.Render())
	text := s.doc.PlainText()
	s.mu.Unlock()

	s.pipeline.OnContentChanged(text)
	s.saver.Touch()
	return nil
}

// InsertText types text at the caret, replacing any selection.
func (s *Session) InsertText(text string) error {
	return s.edit(func(e *pagination.Engine) { e.InsertText(text) })
}

// InsertSuggestion inserts a predicted word followed by a space. The caret
// ends after the space.
func (s *Session) InsertSuggestion(word string) error {
	return s.InsertText(word + " ")
}

// DeleteBackward deletes the selection or the grapheme before the caret.
func (s *Session) DeleteBackward() error {
	return s.edit(func(e *pagination.Engine) { e.DeleteBackward() })
}

// Enter splits the current block at the caret.
func (s *Session) Enter() error {
	return s.edit(func(e *pagination.Engine) { e.SplitBlock() })
}

// ToggleStyle flips an inline style on the selection, or for the next typed
// text when the caret is collapsed.
func (s *Session) ToggleStyle(style richtext.Style) error {
	return s.edit(func(e *pagination.Engine) { e.ToggleStyle(style) })
}

// SetBlockKind changes the kind of the paragraphs under the selection.
func (s *Session) SetBlockKind(k richtext.Kind) error {
	return s.edit(func(e *pagination.Engine) { e.SetBlockKind(k) })
}

// SetCursor places a collapsed caret at a page-relative offset.
func (s *Session) SetCursor(pos pagination.CursorPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.engine.RestoreCursor(pos)
	return nil
}

// Select sets a selection between two points.
func (s *Session) Select(anchor, focus pagination.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.engine.Select(anchor, focus)
	return nil
}

// Regenerate asks for fresh predictions without waiting for the debounce.
func (s *Session) Regenerate() error {
	s.mu.Lock()
	closed := s.closed
	text := s.doc.PlainText()
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	s.pipeline.OnContentChanged(text)
	s.pipeline.Regenerate()
	return nil
}

// Save runs an explicit save.
func (s *Session) Save(ctx context.Context) error {
	return s.saver.SaveNow(ctx)
}

// UpdateMetadata changes the book's descriptive fields. Content fields in u
// are ignored; they are owned by the session.
func (s *Session) UpdateMetadata(ctx context.Context, u types.BookUpdate) error {
	u.Content, u.WordCount = nil, nil
	if u.Empty() {
		return nil
	}
	if err := s.books.UpdateBook(ctx, s.book.ID, u); err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	s.mu.Lock()
	if u.Title != nil {
		s.book.Title = *u.Title
	}
	if u.Genre != nil {
		s.book.Genre = *u.Genre
		s.pipeline.SetGenre(*u.Genre)
	}
	s.mu.Unlock()
	return nil
}

// Leave saves one last time within the leave timeout and shuts the session
// down. Later operations return ErrClosed.
func (s *Session) Leave(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	err := s.saver.Leave(ctx)
	s.pipeline.Close()

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("final save failed", "error", err)
	}
	return err
}

// Wait blocks until in-flight prediction requests settle.
func (s *Session) Wait() {
	s.pipeline.Wait()
}

// Document returns the serialized content.
func (s *Session) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Serialize()
}

// Text returns the document's paragraphs separated by newlines.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Text()
}

// Caret returns the selection anchor and focus.
func (s *Session) Caret() (pagination.Point, pagination.Point) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Caret()
}

// State returns a snapshot.
func (s *Session) State() State {
	ps := s.pipeline.State()
	status := s.saver.Status()

	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		BookID:      s.book.ID,
		Title:       s.book.Title,
		Genre:       s.book.Genre,
		Pages:       s.doc.Pages(),
		Cursor:      s.engine.CursorPosition(),
		Counts:      s.doc.Counts(),
		Predictions: ps.Predictions,
		Loading:     ps.Loading,
		SaveStatus:  status,
		Oversized:   append([]int(nil), s.oversized...),
	}
}

func (s *Session) save(ctx context.Context) error {
	s.mu.Lock()
	id := s.book.ID
	content := s.doc.Serialize()
	words := s.doc.Counts().Words
	s.mu.Unlock()

	return s.books.UpdateBook(ctx, id, types.BookUpdate{
		Content:   &content,
		WordCount: &words,
	})
}

func (s *Session) unauthorized() {
	s.logger.Warn("session expired, autosave stopped")
	s.identity.SignOut()
	if s.signOut != nil {
		s.signOut()
	}
}

func (s *Session) emit() {
	if s.onChange == nil {
		return
	}
	s.onChange(s.State())
}
