// Package prediction debounces document changes into next-word prediction
// requests and keeps only the newest response.
package prediction

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/typenhq/typen/internal/schedule"
	"github.com/typenhq/typen/internal/types"
)

// Default timings.
const (
	DefaultDebounce = 500 * time.Millisecond
	DefaultTimeout  = 30 * time.Second
	DefaultGenre    = "fiction"
)

const debounceToken = "prediction.debounce"

// Fetcher requests predictions for a text.
type Fetcher interface {
	Predict(ctx context.Context, req types.PredictRequest) ([]types.Prediction, error)
}

// State is a snapshot of the pipeline.
type State struct {
	Predictions []types.Prediction `json:"predictions"`
	Loading     bool               `json:"loading"`
	Generation  uint64             `json:"generation"`
	LastError   string             `json:"lastError,omitempty"`
}

// Config configures a Pipeline.
type Config struct {
	Fetcher   Fetcher
	Scheduler schedule.Scheduler
	Debounce  time.Duration
	Timeout   time.Duration
	Genre     string
	Logger    *slog.Logger

	// OnChange is called after every state transition, outside any lock.
	OnChange func(State)
}

// Pipeline turns content changes into prediction requests. Only the last
// change inside the debounce window produces a request, and only the most
// recent request's response is applied.
type Pipeline struct {
	fetcher   Fetcher
	scheduler schedule.Scheduler
	debounce  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
	onChange  func(State)

	mu          sync.Mutex
	genre       string
	text        string
	generation  uint64
	cancel      context.CancelFunc
	predictions []types.Prediction
	loading     bool
	lastErr     error
	closed      bool

	wg sync.WaitGroup
}

// New creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Fetcher == nil {
		return nil, errors.New("prediction fetcher is required")
	}
	if cfg.Scheduler == nil {
		return nil, errors.New("scheduler is required")
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Genre == "" {
		cfg.Genre = DefaultGenre
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		fetcher:   cfg.Fetcher,
		scheduler: cfg.Scheduler,
		debounce:  cfg.Debounce,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
		onChange:  cfg.OnChange,
		genre:     cfg.Genre,
	}, nil
}

// SetGenre changes the genre sent with later requests.
func (p *Pipeline) SetGenre(genre string) {
	if genre == "" {
		genre = DefaultGenre
	}
	p.mu.Lock()
	p.genre = genre
	p.mu.Unlock()
}

// OnContentChanged records text and restarts the debounce window.
func (p *Pipeline) OnContentChanged(text string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.text = text
	p.mu.Unlock()

	p.scheduler.Schedule(debounceToken, p.debounce, p.fire)
}

// Regenerate requests predictions for the latest text immediately.
func (p *Pipeline) Regenerate() {
	p.scheduler.Cancel(debounceToken)
	p.fire()
}

func (p *Pipeline) fire() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.generation++
	gen := p.generation
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	p.cancel = cancel
	p.loading = true
	req := types.PredictRequest{Text: p.text, Genre: p.genre}
	p.wg.Add(1)
	p.mu.Unlock()

	p.notify()

	go func() {
		defer p.wg.Done()
		preds, err := p.fetcher.Predict(ctx, req)
		p.settle(gen, preds, err)
	}()
}

func (p *Pipeline) settle(gen uint64, preds []types.Prediction, err error) {
	p.mu.Lock()
	if gen != p.generation || p.closed {
		current := p.generation
		p.mu.Unlock()
		p.logger.Debug("discarding stale predictions", "generation", gen, "current", current)
		return
	}
	p.cancel()
	p.cancel = nil
	p.loading = false
	if err != nil {
		p.lastErr = err
	} else {
		p.predictions = preds
		p.lastErr = nil
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("prediction request failed", "generation", gen, "error", err)
	}
	p.notify()
}

// State returns a snapshot.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stateLocked()
}

func (p *Pipeline) stateLocked() State {
	s := State{
		Predictions: append([]types.Prediction(nil), p.predictions...),
		Loading:     p.loading,
		Generation:  p.generation,
	}
	if p.lastErr != nil {
		s.LastError = p.lastErr.Error()
	}
	return s
}

// Loading reports whether the newest request is still outstanding.
func (p *Pipeline) Loading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loading
}

// Predictions returns the last applied predictions.
func (p *Pipeline) Predictions() []types.Prediction {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]types.Prediction(nil), p.predictions...)
}

func (p *Pipeline) notify() {
	if p.onChange == nil {
		return
	}
	p.onChange(p.State())
}

// Wait blocks until every dispatched request has settled.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Close cancels the pending debounce and any request in flight, then waits
// for outstanding goroutines.
func (p *Pipeline) Close() {
	p.scheduler.Cancel(debounceToken)
	p.mu.Lock()
	p.closed = true
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.loading = false
	p.mu.Unlock()
	p.wg.Wait()
}
