// Package clock abstracts time so long-running loops can be driven
// deterministically in tests. Production code uses RealClock; tests use
// MockClock and advance it manually.
package clock

import (
	"sync"
	"time"
)

// Clock is the time source injected into background loops.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once d has elapsed.
	After(d time.Duration) <-chan time.Time

	// AfterFunc schedules f to run in its own goroutine after d. The returned
	// Timer can cancel the call via Stop.
	AfterFunc(d time.Duration, f func()) Timer

	// Sleep blocks the calling goroutine for at least d.
	Sleep(d time.Duration)

	// Since returns the elapsed time since t.
	Since(t time.Time) time.Duration
}

// Timer is a single scheduled event.
type Timer interface {
	// Stop cancels the event. It reports whether the call prevented the
	// timer from firing.
	Stop() bool
}

// RealClock delegates to the time package.
type RealClock struct{}

// NewRealClock returns a Clock backed by the system clock.
func NewRealClock() *RealClock { return &RealClock{} }

func (c *RealClock) Now() time.Time                         { return time.Now() }
func (c *RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (c *RealClock) Sleep(d time.Duration)                  { time.Sleep(d) }
func (c *RealClock) Since(t time.Time) time.Duration        { return time.Since(t) }

func (c *RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return &realTimer{timer: time.AfterFunc(d, f)}
}

type realTimer struct {
	timer *time.Timer
}

func (t *realTimer) Stop() bool { return t.timer.Stop() }

// MockClock is a manually driven Clock. Time only moves when a test calls
// Advance or Set; pending timers fire as the clock passes their deadline.
type MockClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*mockTimer
}

type mockTimer struct {
	mu       sync.Mutex
	deadline time.Time
	f        func()
	stopped  bool
}

// NewMockClock returns a MockClock frozen at start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{current: start}
}

func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *MockClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.AfterFunc(d, func() {
		ch <- c.Now()
	})
	return ch
}

func (c *MockClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := &mockTimer{deadline: c.current.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Sleep is a no-op: mock time only moves via Advance.
func (c *MockClock) Sleep(d time.Duration) {}

func (c *MockClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(t)
}

// Advance moves the clock forward by d and fires every timer whose deadline
// has passed. Timers fire outside the clock lock.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	now := c.current

	var due, pending []*mockTimer
	for _, t := range c.timers {
		t.mu.Lock()
		switch {
		case t.stopped:
		case !t.deadline.After(now):
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
		t.mu.Unlock()
	}
	c.timers = pending
	c.mu.Unlock()

	for _, t := range due {
		t.mu.Lock()
		if t.stopped {
			t.mu.Unlock()
			continue
		}
		t.stopped = true
		f := t.f
		t.mu.Unlock()
		f()
	}
}

// Set jumps the clock to t, firing timers along the way when t is in the
// future.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	current := c.current
	c.mu.Unlock()

	if t.After(current) {
		c.Advance(t.Sub(current))
		return
	}

	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

func (t *mockTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	wasActive := !t.stopped
	t.stopped = true
	return wasActive
}
