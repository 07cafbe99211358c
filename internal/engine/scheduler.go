package engine

import (
	"sync"
	"time"
)

// Token identifies a scheduled task for cancellation. The zero Token is
// never issued.
type Token uint64

// Scheduler runs deferred and repeating tasks. Source switches cancel all
// tasks tied to the outgoing source by token, so no timer callback from a
// previous source can fire into the new one.
type Scheduler interface {
	ScheduleOnce(d time.Duration, fn func()) Token
	ScheduleRepeating(interval time.Duration, fn func()) Token
	Cancel(tok Token)
}

// TimerScheduler is the production Scheduler backed by the runtime timers.
type TimerScheduler struct {
	mu    sync.Mutex
	next  Token
	tasks map[Token]func() // cancel funcs
}

// NewTimerScheduler creates an empty TimerScheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{tasks: make(map[Token]func())}
}

func (s *TimerScheduler) ScheduleOnce(d time.Duration, fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	tok := s.next

	timer := time.AfterFunc(d, func() {
		s.mu.Lock()
		delete(s.tasks, tok)
		s.mu.Unlock()
		fn()
	})
	s.tasks[tok] = func() { timer.Stop() }

	return tok
}

func (s *TimerScheduler) ScheduleRepeating(interval time.Duration, fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next++
	tok := s.next

	ticker := time.NewTicker(interval)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				// A tick buffered before Cancel must not run after it.
				select {
				case <-stop:
					ticker.Stop()
					return
				default:
				}
				fn()
			case <-stop:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	s.tasks[tok] = func() { once.Do(func() { close(stop) }) }

	return tok
}

// Cancel stops the task identified by tok. Cancelling an unknown or
// already-finished token is a no-op.
func (s *TimerScheduler) Cancel(tok Token) {
	s.mu.Lock()
	cancel, ok := s.tasks[tok]
	delete(s.tasks, tok)
	s.mu.Unlock()

	if ok {
		cancel()
	}
}

// CancelAll stops every outstanding task. Used on shutdown.
func (s *TimerScheduler) CancelAll() {
	s.mu.Lock()
	cancels := make([]func(), 0, len(s.tasks))
	for tok, cancel := range s.tasks {
		cancels = append(cancels, cancel)
		delete(s.tasks, tok)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
