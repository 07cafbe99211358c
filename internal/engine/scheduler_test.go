package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTimerSchedulerOnce(t *testing.T) {
	s := NewTimerScheduler()
	defer s.CancelAll()

	var fired atomic.Int32
	s.ScheduleOnce(5*time.Millisecond, func() { fired.Add(1) })

	waitFor(t, "one-shot task", func() bool { return fired.Load() == 1 })

	time.Sleep(20 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("fired %d times, want 1", got)
	}
}

func TestTimerSchedulerCancelOnce(t *testing.T) {
	s := NewTimerScheduler()
	defer s.CancelAll()

	var fired atomic.Int32
	tok := s.ScheduleOnce(20*time.Millisecond, func() { fired.Add(1) })
	s.Cancel(tok)

	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("cancelled task fired %d times", got)
	}
}

func TestTimerSchedulerRepeating(t *testing.T) {
	s := NewTimerScheduler()
	defer s.CancelAll()

	var fired atomic.Int32
	tok := s.ScheduleRepeating(5*time.Millisecond, func() { fired.Add(1) })

	waitFor(t, "repeated ticks", func() bool { return fired.Load() >= 3 })

	s.Cancel(tok)
	n := fired.Load()
	time.Sleep(30 * time.Millisecond)
	// At most one tick can straddle the cancellation.
	if got := fired.Load(); got > n+1 {
		t.Errorf("ticks after cancel: %d", got-n)
	}
}

func TestTimerSchedulerRepeatingDropsBufferedTickOnCancel(t *testing.T) {
	s := NewTimerScheduler()
	defer s.CancelAll()

	var fired atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once

	// The callback blocks, so further ticks buffer in the ticker channel
	// while it runs.
	tok := s.ScheduleRepeating(5*time.Millisecond, func() {
		fired.Add(1)
		once.Do(func() { close(started) })
		<-release
	})

	<-started
	time.Sleep(20 * time.Millisecond)
	s.Cancel(tok)
	close(release)

	time.Sleep(30 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("fired %d times, want 1 (buffered tick ran after cancel)", got)
	}
}

func TestTimerSchedulerCancelIsIdempotent(t *testing.T) {
	s := NewTimerScheduler()

	tok := s.ScheduleRepeating(time.Hour, func() {})
	s.Cancel(tok)
	s.Cancel(tok)
	s.Cancel(Token(9999)) // unknown token
}

func TestTimerSchedulerCancelAll(t *testing.T) {
	s := NewTimerScheduler()

	var fired atomic.Int32
	s.ScheduleOnce(20*time.Millisecond, func() { fired.Add(1) })
	s.ScheduleRepeating(10*time.Millisecond, func() { fired.Add(1) })
	s.CancelAll()

	time.Sleep(50 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("tasks fired %d times after CancelAll", got)
	}
}
