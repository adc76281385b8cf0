// Package autosave persists a document shortly after the user stops editing.
package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/typenhq/typen/internal/auth"
	"github.com/typenhq/typen/internal/schedule"
)

// Default timings.
const (
	DefaultDelay        = 2000 * time.Millisecond
	DefaultLeaveTimeout = 3 * time.Second
	DefaultSaveTimeout  = 30 * time.Second
)

const timerToken = "autosave"

var (
	// ErrSaveInProgress is returned by SaveNow while another save runs.
	ErrSaveInProgress = errors.New("save already in progress")

	// ErrStopped is returned once autosave stopped after losing the session.
	ErrStopped = errors.New("autosave stopped")
)

// Status is the save indicator shown to the user.
type Status string

const (
	StatusSaved   Status = "saved"
	StatusSaving  Status = "saving"
	StatusUnsaved Status = "unsaved"
	StatusError   Status = "error"
)

// SaveFunc writes the current document.
type SaveFunc func(ctx context.Context) error

// Config configures a Scheduler.
type Config struct {
	Save         SaveFunc
	Timers       schedule.Scheduler
	Delay        time.Duration
	LeaveTimeout time.Duration
	SaveTimeout  time.Duration
	Logger       *slog.Logger

	// OnStatus is called after every status change, outside any lock.
	OnStatus func(Status)

	// OnUnauthorized is called once when a save fails because the session
	// is gone.
	OnUnauthorized func()
}

// Scheduler decides when saves run. Edits arm a silent save after Delay;
// explicit saves show the saving status; only one save runs at a time.
type Scheduler struct {
	save           SaveFunc
	timers         schedule.Scheduler
	delay          time.Duration
	leaveTimeout   time.Duration
	saveTimeout    time.Duration
	logger         *slog.Logger
	onStatus       func(Status)
	onUnauthorized func()

	mu      sync.Mutex
	status  Status
	saving  bool
	done    chan struct{}
	rearm   bool
	stopped bool
	edits   uint64
	saved   uint64
	lastErr error
}

// New creates a Scheduler in the saved state.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Save == nil {
		return nil, errors.New("save function is required")
	}
	if cfg.Timers == nil {
		return nil, errors.New("timer scheduler is required")
	}
	if cfg.Delay <= 0 {
		cfg.Delay = DefaultDelay
	}
	if cfg.LeaveTimeout <= 0 {
		cfg.LeaveTimeout = DefaultLeaveTimeout
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = DefaultSaveTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Scheduler{
		save:           cfg.Save,
		timers:         cfg.Timers,
		delay:          cfg.Delay,
		leaveTimeout:   cfg.LeaveTimeout,
		saveTimeout:    cfg.SaveTimeout,
		logger:         cfg.Logger,
		onStatus:       cfg.OnStatus,
		onUnauthorized: cfg.OnUnauthorized,
		status:         StatusSaved,
	}, nil
}

// Touch records an edit and restarts the autosave timer.
func (s *Scheduler) Touch() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.edits++
	changed := false
	if !s.saving || s.status != StatusSaving {
		changed = s.setLocked(StatusUnsaved)
	}
	s.mu.Unlock()

	s.timers.Schedule(timerToken, s.delay, s.autosave)
	if changed {
		s.emit(StatusUnsaved)
	}
}

func (s *Scheduler) autosave() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if s.saving {
		s.rearm = true
		s.mu.Unlock()
		s.logger.Debug("autosave skipped, save in flight")
		return
	}
	if s.edits == s.saved {
		s.mu.Unlock()
		return
	}
	s.begin()
	version := s.edits
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.saveTimeout)
	defer cancel()
	s.finish(version, s.save(ctx), false)
}

// SaveNow runs an explicit save, showing the saving status. It returns
// ErrSaveInProgress when a save is already running.
func (s *Scheduler) SaveNow(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrStopped
	}
	if s.saving {
		s.mu.Unlock()
		return ErrSaveInProgress
	}
	s.begin()
	version := s.edits
	s.setLocked(StatusSaving)
	s.mu.Unlock()

	s.timers.Cancel(timerToken)
	s.emit(StatusSaving)

	ctx, cancel := context.WithTimeout(ctx, s.saveTimeout)
	defer cancel()
	err := s.save(ctx)
	s.finish(version, err, true)
	return err
}

// Leave makes a final best-effort save bounded by the leave timeout and
// stops further autosaves. A save already running is waited for first, so
// edits made while it ran are saved too.
func (s *Scheduler) Leave(ctx context.Context) error {
	s.timers.Cancel(timerToken)
	defer s.Stop()

	ctx, cancel := context.WithTimeout(ctx, s.leaveTimeout)
	defer cancel()
	for {
		s.mu.Lock()
		if s.saving {
			done := s.done
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				s.logger.Warn("gave up waiting for the running save", "error", ctx.Err())
				return ctx.Err()
			}
		}
		dirty := s.edits != s.saved || s.status == StatusError
		s.mu.Unlock()

		if !dirty {
			return nil
		}
		err := s.SaveNow(ctx)
		switch {
		case errors.Is(err, ErrSaveInProgress):
			continue
		case errors.Is(err, ErrStopped):
			return nil
		}
		return err
	}
}

// begin marks a save as running. The caller holds the lock.
func (s *Scheduler) begin() {
	s.saving = true
	s.done = make(chan struct{})
}

func (s *Scheduler) finish(version uint64, err error, explicit bool) {
	s.mu.Lock()
	s.saving = false
	close(s.done)
	rearm := s.rearm
	s.rearm = false
	unauthorized := errors.Is(err, auth.ErrUnauthorized)

	var status Status
	switch {
	case err == nil:
		s.saved = version
		s.lastErr = nil
		status = StatusSaved
		if s.edits != version {
			status = StatusUnsaved
		}
	default:
		s.lastErr = err
		status = StatusError
	}
	if unauthorized {
		s.stopped = true
	}
	s.setLocked(status)
	stopped := s.stopped
	pending := s.edits != s.saved
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("failed to save document", "explicit", explicit, "error", err)
	}
	s.emit(status)

	switch {
	case unauthorized:
		s.timers.Cancel(timerToken)
		if s.onUnauthorized != nil {
			s.onUnauthorized()
		}
	case rearm && pending && !stopped:
		s.timers.Schedule(timerToken, s.delay, s.autosave)
	}
}

// Stop cancels the pending timer and ignores later edits.
func (s *Scheduler) Stop() {
	s.timers.Cancel(timerToken)
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// Status returns the current save indicator.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Saving reports whether any save, silent or explicit, is running.
func (s *Scheduler) Saving() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saving
}

// Stopped reports whether autosave has stopped.
func (s *Scheduler) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Err returns the last save error, cleared by a successful save.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Scheduler) setLocked(st Status) bool {
	if s.status == st {
		return false
	}
	s.status = st
	return true
}

func (s *Scheduler) emit(st Status) {
	if s.onStatus != nil {
		s.onStatus(st)
	}
}
