package llmcall

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/typenhq/typen/internal/providers"
)

const (
	defaultQueueSize = 256
	writeTimeout     = 5 * time.Second
)

// Recorder handles fire-and-forget LLM call recording. Calls are queued and
// written by a single goroutine so the prediction path never waits on the
// database.
type Recorder struct {
	store  Store
	logger *slog.Logger

	queue chan *Call
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewRecorder starts a recorder writing to store.
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		store:  store,
		logger: logger,
		queue:  make(chan *Call, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// Record captures an LLM call asynchronously.
// This is non-blocking; calls are dropped when the queue is full.
func (r *Recorder) Record(result *providers.ChatResult, opts RecordOptions) {
	r.RecordCall(FromChatResult(result, opts))
}

// RecordCall captures an already-constructed Call asynchronously.
func (r *Recorder) RecordCall(call *Call) {
	if r == nil || call == nil {
		return
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- call:
	default:
		r.logger.Warn("llm call queue full, dropping record", "call_id", call.ID, "prompt_key", call.PromptKey)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for call := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := r.store.InsertLLMCall(ctx, call); err != nil {
			r.logger.Warn("failed to record llm call", "call_id", call.ID, "error", err)
		}
		cancel()
	}
}

// Close stops accepting calls and waits for queued ones to be written.
func (r *Recorder) Close() {
	if r == nil {
		return
	}
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}
