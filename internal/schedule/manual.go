package schedule

import (
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler driven by Advance instead of the wall clock. Tests
// use it to step debounce and autosave timers deterministically.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks map[string]task
}

type task struct {
	at  time.Duration
	seq int
	fn  func()
}

// NewManual creates a manual scheduler at time zero.
func NewManual() *Manual {
	return &Manual{tasks: make(map[string]task)}
}

func (m *Manual) Schedule(token string, delay time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.tasks[token] = task{at: m.now + delay, seq: m.seq, fn: fn}
}

func (m *Manual) Cancel(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, token)
}

// Advance moves the clock forward by d and runs every callback that comes
// due, in due order. Callbacks run without the lock held and may schedule
// more work; work falling inside the window runs in the same call.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		token, t, ok := m.next(target)
		if !ok {
			m.now = target
			m.mu.Unlock()
			return
		}
		delete(m.tasks, token)
		if t.at > m.now {
			m.now = t.at
		}
		m.mu.Unlock()
		t.fn()
	}
}

func (m *Manual) next(target time.Duration) (string, task, bool) {
	var due []string
	for token, t := range m.tasks {
		if t.at <= target {
			due = append(due, token)
		}
	}
	if len(due) == 0 {
		return "", task{}, false
	}
	sort.Slice(due, func(i, j int) bool {
		a, b := m.tasks[due[i]], m.tasks[due[j]]
		if a.at != b.at {
			return a.at < b.at
		}
		return a.seq < b.seq
	})
	return due[0], m.tasks[due[0]], true
}

// Pending reports whether token has a callback waiting.
func (m *Manual) Pending(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[token]
	return ok
}

// Now returns the elapsed manual time.
func (m *Manual) Now() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}
