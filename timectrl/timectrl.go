package timectrl

import (
	"context"
	"sort"
	"sync"
	"time"
)

// SimClock is an interface for accessing simulation time. The scheduler,
// the registry cycles and construction commands depend on this abstraction
// rather than on the time package directly so tests can drive time by hand.
type SimClock interface {
	// Now returns the current simulation time.
	Now() time.Time
	// After returns a channel that receives the current simulation time
	// once d has elapsed in simulation time.
	After(d time.Duration) <-chan time.Time
}

// WallClock is a SimClock backed by the real time package.
type WallClock struct{}

// Now returns time.Now.
func (WallClock) Now() time.Time { return time.Now() }

// After delegates to time.After.
func (WallClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Wall returns the process wall clock.
func Wall() SimClock { return WallClock{} }

// ManualClock is a SimClock that only advances when told to. After
// channels fire when Advance or Set moves time past their deadline.
type ManualClock struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*waiter
	changed chan struct{}
}

type waiter struct {
	at time.Time
	ch chan time.Time
}

// NewManualClock constructs a manual clock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start, changed: make(chan struct{})}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// After registers a waiter firing once the clock reaches now+d. A
// non-positive d fires immediately.
func (c *ManualClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	if d <= 0 {
		ch <- c.now
		return ch
	}
	c.waiters = append(c.waiters, &waiter{at: c.now.Add(d), ch: ch})
	c.notifyLocked()
	return ch
}

// Advance moves the clock forward by d and fires every due waiter.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(c.now.Add(d))
}

// Set moves the clock to t. Moving backwards is ignored.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.Before(c.now) {
		return
	}
	c.setLocked(t)
}

// Waiters returns the number of pending After channels.
func (c *ManualClock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}

// BlockUntil waits until at least n After channels are pending or ctx is
// done. Tests use it to make sure a goroutine is parked on the clock
// before advancing it.
func (c *ManualClock) BlockUntil(ctx context.Context, n int) error {
	for {
		c.mu.Lock()
		if len(c.waiters) >= n {
			c.mu.Unlock()
			return nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

func (c *ManualClock) setLocked(t time.Time) {
	c.now = t

	sort.Slice(c.waiters, func(i, j int) bool { return c.waiters[i].at.Before(c.waiters[j].at) })
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !w.at.After(t) {
			w.ch <- t
			continue
		}
		remaining = append(remaining, w)
	}
	c.waiters = remaining
	c.notifyLocked()
}

// notifyLocked wakes BlockUntil callers. Caller must hold c.mu.
func (c *ManualClock) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}
