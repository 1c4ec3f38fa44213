package testutil

import (
	"sync"
	"time"

	"github.com/roach88/walletcore/internal/engine"
)

// ManualScheduler is an engine.Scheduler driven by the test. Nothing fires
// until Tick or Advance is called, and callbacks run on the caller's
// goroutine.
//
// Thread-safety: safe for concurrent use. Callbacks run without the lock
// held, so they may arm new timers.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*ManualTimer
}

// ManualTimer is a timer armed on a ManualScheduler.
type ManualTimer struct {
	s    *ManualScheduler
	at   time.Duration
	seq  int
	fn   func()
	done bool
}

// NewManualScheduler creates a scheduler at virtual time 0.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc implements engine.Scheduler.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) engine.Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t := &ManualTimer{s: s, at: s.now + d, seq: s.seq, fn: f}
	s.timers = append(s.timers, t)
	return t
}

// Stop implements engine.Timer.
func (t *ManualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.s.remove(t)
	return true
}

// Now returns the virtual time.
func (s *ManualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Pending returns the number of armed timers.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Tick jumps to the earliest armed timer and fires it. It returns false if
// nothing was armed.
func (s *ManualScheduler) Tick() bool {
	t := s.next(-1)
	if t == nil {
		return false
	}
	t.fn()
	return true
}

// Advance moves virtual time forward by d, firing every timer that comes due
// in order, including timers armed by those callbacks. It returns how many
// fired.
func (s *ManualScheduler) Advance(d time.Duration) int {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()

	fired := 0
	for {
		t := s.next(target)
		if t == nil {
			break
		}
		t.fn()
		fired++
	}

	s.mu.Lock()
	if s.now < target {
		s.now = target
	}
	s.mu.Unlock()
	return fired
}

// next pops the earliest timer due at or before limit (any timer if limit
// is negative) and moves the clock to it.
func (s *ManualScheduler) next(limit time.Duration) *ManualTimer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *ManualTimer
	for _, t := range s.timers {
		if limit >= 0 && t.at > limit {
			continue
		}
		if best == nil || t.at < best.at || (t.at == best.at && t.seq < best.seq) {
			best = t
		}
	}
	if best == nil {
		return nil
	}
	best.done = true
	s.remove(best)
	if best.at > s.now {
		s.now = best.at
	}
	return best
}

func (s *ManualScheduler) remove(t *ManualTimer) {
	for i, cur := range s.timers {
		if cur == t {
			s.timers = append(s.timers[:i:i], s.timers[i+1:]...)
			return
		}
	}
}
