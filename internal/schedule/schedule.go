// Package schedule runs keyed, cancellable delayed callbacks.
//
// Scheduling a token that is already pending replaces the earlier callback,
// which is how debounce and autosave timers restart on every keystroke.
package schedule

import (
	"sync"
	"time"
)

// Scheduler runs fn after delay unless the token is rescheduled or cancelled
// first.
type Scheduler interface {
	Schedule(token string, delay time.Duration, fn func())
	Cancel(token string)
}

// TimerScheduler is a Scheduler backed by time.AfterFunc.
type TimerScheduler struct {
	mu     sync.Mutex
	timers map[string]*timer
	closed bool
}

type timer struct {
	t *time.Timer
}

// NewTimerScheduler creates a scheduler using wall-clock timers.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{timers: make(map[string]*timer)}
}

// Schedule arms token, replacing any pending callback for it.
func (s *TimerScheduler) Schedule(token string, delay time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if old, ok := s.timers[token]; ok {
		old.t.Stop()
	}
	tm := &timer{}
	tm.t = time.AfterFunc(delay, func() {
		s.mu.Lock()
		current := s.timers[token] == tm
		if current {
			delete(s.timers, token)
		}
		s.mu.Unlock()
		// A timer that was replaced may still fire if Stop lost the race.
		if current {
			fn()
		}
	})
	s.timers[token] = tm
}

// Cancel drops the pending callback for token, if any.
func (s *TimerScheduler) Cancel(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tm, ok := s.timers[token]; ok {
		tm.t.Stop()
		delete(s.timers, token)
	}
}

// Close cancels every pending callback. Later Schedule calls are ignored.
func (s *TimerScheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, tm := range s.timers {
		tm.t.Stop()
		delete(s.timers, token)
	}
	s.closed = true
}
