package clock

import (
	"sync"
	"time"
)

// Clock provides the current time to code that needs to be testable
// without touching the system clock.
type Clock interface {
	// Now returns the current time
	Now() time.Time
}

// SystemClock reads the real system clock.
type SystemClock struct{}

// NewSystemClock creates a clock backed by time.Now.
func NewSystemClock() *SystemClock {
	return &SystemClock{}
}

// Now returns the current system time
func (c *SystemClock) Now() time.Time {
	return time.Now()
}

// FixtureClock is a controllable clock for tests. It only moves when
// told to, and is safe for concurrent readers (evaluations running in
// parallel handler tests all read the same instant).
type FixtureClock struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFixtureClock creates a fixture clock pinned at start.
// A zero start pins the clock at time.Now().
func NewFixtureClock(start time.Time) *FixtureClock {
	if start.IsZero() {
		start = time.Now()
	}
	return &FixtureClock{current: start}
}

// Now returns the pinned fixture time
func (c *FixtureClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Set pins the fixture clock to t
func (c *FixtureClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// Advance moves the fixture clock forward by d
func (c *FixtureClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Rewind moves the fixture clock backward by d
func (c *FixtureClock) Rewind(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(-d)
}
