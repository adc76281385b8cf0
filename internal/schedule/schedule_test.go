package schedule

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestManual_RescheduleReplaces(t *testing.T) {
	m := NewManual()
	var fired []string

	m.Schedule("debounce", 500*time.Millisecond, func() { fired = append(fired, "first") })
	m.Advance(400 * time.Millisecond)
	m.Schedule("debounce", 500*time.Millisecond, func() { fired = append(fired, "second") })
	m.Advance(400 * time.Millisecond)

	if len(fired) != 0 {
		t.Fatalf("fired = %v before the window closed", fired)
	}
	m.Advance(100 * time.Millisecond)
	if len(fired) != 1 || fired[0] != "second" {
		t.Errorf("fired = %v, want [second]", fired)
	}
	if m.Pending("debounce") {
		t.Error("token still pending after firing")
	}
}

func TestManual_Cancel(t *testing.T) {
	m := NewManual()
	ran := false
	m.Schedule("save", time.Second, func() { ran = true })
	m.Cancel("save")
	m.Advance(2 * time.Second)
	if ran {
		t.Error("cancelled callback ran")
	}
}

func TestManual_OrderAndChaining(t *testing.T) {
	m := NewManual()
	var order []string
	m.Schedule("b", 200*time.Millisecond, func() { order = append(order, "b") })
	m.Schedule("a", 100*time.Millisecond, func() {
		order = append(order, "a")
		m.Schedule("c", 50*time.Millisecond, func() { order = append(order, "c") })
	})

	m.Advance(time.Second)

	want := []string{"a", "c", "b"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
	if m.Now() != time.Second {
		t.Errorf("Now() = %v, want 1s", m.Now())
	}
}

func TestTimerScheduler_Debounces(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Close()

	var count atomic.Int32
	done := make(chan struct{}, 1)
	for i := 0; i < 5; i++ {
		s.Schedule("k", 20*time.Millisecond, func() {
			count.Add(1)
			done <- struct{}{}
		})
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
	time.Sleep(50 * time.Millisecond)
	if got := count.Load(); got != 1 {
		t.Errorf("callback ran %d times, want 1", got)
	}
}

func TestTimerScheduler_Cancel(t *testing.T) {
	s := NewTimerScheduler()
	defer s.Close()

	var ran atomic.Bool
	s.Schedule("k", 10*time.Millisecond, func() { ran.Store(true) })
	s.Cancel("k")
	time.Sleep(40 * time.Millisecond)
	if ran.Load() {
		t.Error("cancelled callback ran")
	}
}
