package testutil

import (
	"sync"
	"time"

	"github.com/coder/quartz"
)

// FrozenClock is a quartz.Clock whose "now" only moves when told to.
//
// Unlike quartz.Mock it needs no testing.TB, so it also drives scenario
// runs started from the command line. Timers and tickers are delegated to
// the real clock; a frozen "now" years away from wall time only changes how
// long they wait, and callers stop them on shutdown.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FrozenClock struct {
	quartz.Clock

	mu  sync.Mutex
	now time.Time
}

// NewFrozenClock creates a clock stopped at now.
func NewFrozenClock(now time.Time) *FrozenClock {
	return &FrozenClock{Clock: quartz.NewReal(), now: now}
}

// Now returns the frozen instant.
func (c *FrozenClock) Now(...string) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the frozen instant minus t.
func (c *FrozenClock) Since(t time.Time, _ ...string) time.Duration {
	return c.Now().Sub(t)
}

// Until returns t minus the frozen instant.
func (c *FrozenClock) Until(t time.Time, _ ...string) time.Duration {
	return t.Sub(c.Now())
}

// Advance moves the clock forward by d and returns the new instant.
// Negative durations are ignored.
func (c *FrozenClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now = c.now.Add(d)
	}
	return c.now
}

// Set moves the clock to t. The clock never moves backwards.
func (c *FrozenClock) Set(t time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
	return c.now
}
