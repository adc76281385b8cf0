package autosave

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/typenhq/typen/internal/auth"
	"github.com/typenhq/typen/internal/schedule"
)

type recorder struct {
	mu       sync.Mutex
	calls    int
	err      error
	block    chan struct{}
	started  chan struct{}
	deadline time.Duration
}

func (r *recorder) save(ctx context.Context) error {
	r.mu.Lock()
	r.calls++
	err := r.err
	block, started := r.block, r.started
	if d, ok := ctx.Deadline(); ok {
		r.deadline = time.Until(d)
	}
	r.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestScheduler(t *testing.T, r *recorder, cfg Config) (*Scheduler, *schedule.Manual) {
	t.Helper()
	clock := schedule.NewManual()
	cfg.Save = r.save
	cfg.Timers = clock
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, clock
}

func TestTouch_SavesAfterQuietPeriod(t *testing.T) {
	r := &recorder{}
	s, clock := newTestScheduler(t, r, Config{})

	s.Touch()
	clock.Advance(1500 * time.Millisecond)
	s.Touch()
	clock.Advance(1500 * time.Millisecond)

	if r.count() != 0 {
		t.Fatalf("saved %d times before the timer elapsed", r.count())
	}
	if s.Status() != StatusUnsaved {
		t.Errorf("Status() = %s, want unsaved", s.Status())
	}

	clock.Advance(500 * time.Millisecond)
	if r.count() != 1 {
		t.Fatalf("saved %d times, want 1", r.count())
	}
	if s.Status() != StatusSaved {
		t.Errorf("Status() = %s, want saved", s.Status())
	}
}

func TestSilentSave_DoesNotShowSaving(t *testing.T) {
	r := &recorder{}
	var statuses []Status
	s, clock := newTestScheduler(t, r, Config{OnStatus: func(st Status) { statuses = append(statuses, st) }})

	s.Touch()
	clock.Advance(DefaultDelay)

	for _, st := range statuses {
		if st == StatusSaving {
			t.Fatalf("statuses = %v, silent save should not show saving", statuses)
		}
	}
}

func TestSaveNow_SkippedWhileSaving(t *testing.T) {
	r := &recorder{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, _ := newTestScheduler(t, r, Config{})
	s.Touch()

	errCh := make(chan error, 1)
	go func() { errCh <- s.SaveNow(context.Background()) }()
	<-r.started

	if got := s.Status(); got != StatusSaving {
		t.Errorf("Status() = %s, want saving", got)
	}
	if err := s.SaveNow(context.Background()); !errors.Is(err, ErrSaveInProgress) {
		t.Errorf("second SaveNow() error = %v, want ErrSaveInProgress", err)
	}

	close(r.block)
	if err := <-errCh; err != nil {
		t.Fatalf("SaveNow() error = %v", err)
	}
	if r.count() != 1 {
		t.Errorf("saved %d times, want 1", r.count())
	}
}

func TestAutosave_RearmsAfterSkip(t *testing.T) {
	r := &recorder{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, clock := newTestScheduler(t, r, Config{})

	s.Touch()
	errCh := make(chan error, 1)
	go func() { errCh <- s.SaveNow(context.Background()) }()
	<-r.started

	s.Touch()
	clock.Advance(DefaultDelay)
	if r.count() != 1 {
		t.Fatalf("autosave ran during an explicit save")
	}

	r.mu.Lock()
	block := r.block
	r.block = nil
	r.started = nil
	r.mu.Unlock()
	close(block)
	<-errCh

	if s.Status() != StatusUnsaved {
		t.Errorf("Status() = %s, want unsaved while the edit is pending", s.Status())
	}
	if !clock.Pending(timerToken) {
		t.Fatal("skipped autosave was not re-armed")
	}
	clock.Advance(DefaultDelay)
	if r.count() != 2 {
		t.Errorf("saved %d times, want 2", r.count())
	}
	if s.Status() != StatusSaved {
		t.Errorf("Status() = %s, want saved", s.Status())
	}
}

func TestFailure_SetsErrorAndRetriesOnNextEdit(t *testing.T) {
	r := &recorder{err: errors.New("connection refused")}
	s, clock := newTestScheduler(t, r, Config{})

	s.Touch()
	clock.Advance(DefaultDelay)
	if s.Status() != StatusError || s.Err() == nil {
		t.Fatalf("Status() = %s, Err() = %v", s.Status(), s.Err())
	}
	if clock.Pending(timerToken) {
		t.Fatal("failed save should not retry on its own")
	}

	r.mu.Lock()
	r.err = nil
	r.mu.Unlock()
	s.Touch()
	clock.Advance(DefaultDelay)
	if s.Status() != StatusSaved || s.Err() != nil {
		t.Errorf("Status() = %s, Err() = %v, want saved", s.Status(), s.Err())
	}
}

func TestUnauthorized_StopsAutosave(t *testing.T) {
	r := &recorder{err: fmt.Errorf("server error (401): %w", auth.ErrUnauthorized)}
	var signedOut atomic.Int32
	s, clock := newTestScheduler(t, r, Config{OnUnauthorized: func() { signedOut.Add(1) }})

	s.Touch()
	clock.Advance(DefaultDelay)

	if !s.Stopped() {
		t.Fatal("autosave should stop after unauthorized")
	}
	if signedOut.Load() != 1 {
		t.Errorf("OnUnauthorized ran %d times, want 1", signedOut.Load())
	}

	s.Touch()
	clock.Advance(DefaultDelay)
	if r.count() != 1 {
		t.Errorf("saved %d times after stop, want 1", r.count())
	}
	if err := s.SaveNow(context.Background()); !errors.Is(err, ErrStopped) {
		t.Errorf("SaveNow() error = %v, want ErrStopped", err)
	}
}

func TestLeave_BoundedSave(t *testing.T) {
	r := &recorder{}
	s, clock := newTestScheduler(t, r, Config{LeaveTimeout: time.Second})

	s.Touch()
	if err := s.Leave(context.Background()); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if r.count() != 1 {
		t.Fatalf("saved %d times, want 1", r.count())
	}
	if r.deadline <= 0 || r.deadline > time.Second {
		t.Errorf("save deadline = %v, want within the leave timeout", r.deadline)
	}
	if clock.Pending(timerToken) || !s.Stopped() {
		t.Error("Leave should cancel the timer and stop autosave")
	}
}

func TestLeave_NothingToSave(t *testing.T) {
	r := &recorder{}
	s, _ := newTestScheduler(t, r, Config{})

	if err := s.Leave(context.Background()); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if r.count() != 0 {
		t.Errorf("saved %d times for a clean document", r.count())
	}
}

func TestLeave_TimesOut(t *testing.T) {
	r := &recorder{block: make(chan struct{})}
	s, _ := newTestScheduler(t, r, Config{LeaveTimeout: 20 * time.Millisecond})
	s.Touch()

	err := s.Leave(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Leave() error = %v, want deadline exceeded", err)
	}
	if s.Status() != StatusError {
		t.Errorf("Status() = %s, want error", s.Status())
	}
}

func TestLeave_WaitsForRunningSaveThenSavesLaterEdits(t *testing.T) {
	r := &recorder{block: make(chan struct{}), started: make(chan struct{}, 2)}
	s, clock := newTestScheduler(t, r, Config{LeaveTimeout: 5 * time.Second})

	s.Touch()
	advanced := make(chan struct{})
	go func() {
		clock.Advance(DefaultDelay)
		close(advanced)
	}()
	<-r.started
	s.Touch()

	leaveErr := make(chan error, 1)
	go func() { leaveErr <- s.Leave(context.Background()) }()
	close(r.block)
	<-advanced

	if err := <-leaveErr; err != nil {
		t.Fatalf("Leave() error = %v", err)
	}
	if r.count() != 2 {
		t.Errorf("saved %d times, want 2", r.count())
	}
	if s.Status() != StatusSaved {
		t.Errorf("Status() = %s, want saved", s.Status())
	}
	if !s.Stopped() {
		t.Error("Leave should stop autosave")
	}
}

func TestLeave_GivesUpOnRunningSave(t *testing.T) {
	r := &recorder{block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, clock := newTestScheduler(t, r, Config{LeaveTimeout: 20 * time.Millisecond})

	s.Touch()
	go clock.Advance(DefaultDelay)
	<-r.started
	t.Cleanup(func() { close(r.block) })

	if err := s.Leave(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Leave() error = %v, want deadline exceeded", err)
	}
	if r.count() != 1 {
		t.Errorf("saved %d times, want only the running save", r.count())
	}
}
