package testutil

import (
	"sync"
	"time"
)

// WallClock is a settable wall clock for tests that timestamp things.
//
// Thread-safety: all methods are safe for concurrent use.
type WallClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewWallClock creates a clock reading start. A zero start means
// 2024-01-01T00:00:00Z.
func NewWallClock(start time.Time) *WallClock {
	if start.IsZero() {
		start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &WallClock{now: start}
}

// Now returns the current reading. Pass the method value where a
// func() time.Time is expected.
func (c *WallClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *WallClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
