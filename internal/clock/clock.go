// Package clock abstracts time so the debounce and cooldown timers can be
// driven deterministically in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock provides an abstraction for time operations to enable deterministic testing.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc waits for the duration to elapse and then calls f.
	// The returned Timer can be used to cancel the call.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable pending call created by Clock.AfterFunc.
type Timer interface {
	// Stop prevents the Timer from firing. It returns false if the timer
	// has already fired or been stopped.
	Stop() bool
}

// RealClock implements Clock using the system time.
type RealClock struct{}

// Now returns the current system time.
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// AfterFunc schedules f on its own goroutine after d.
func (c *RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// FakeClock implements Clock with a manually advanced time for testing.
// Timers fire synchronously from Advance, in deadline order.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
	timers  []*fakeTimer
	seq     int
}

type fakeTimer struct {
	clock    *FakeClock
	deadline time.Time
	seq      int
	f        func()
	done     bool
}

// NewFakeClock creates a new FakeClock with the given time.
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the fixed time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set updates the fixed time without firing timers.
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// AfterFunc registers f to run once the clock has been advanced by d.
func (c *FakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &fakeTimer{
		clock:    c,
		deadline: c.current.Add(d),
		seq:      c.seq,
		f:        f,
	}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the time forward by the given duration, firing every timer
// whose deadline is reached. Timers created by fired callbacks are also
// fired if they fall within the window.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.current.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDueLocked(target)
		if next == nil {
			if target.After(c.current) {
				c.current = target
			}
			c.mu.Unlock()
			return
		}
		next.done = true
		c.removeLocked(next)
		if next.deadline.After(c.current) {
			c.current = next.deadline
		}
		c.mu.Unlock()

		next.f()
	}
}

// PendingTimers returns the number of timers that have not fired or been stopped.
func (c *FakeClock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *FakeClock) nextDueLocked(target time.Time) *fakeTimer {
	if len(c.timers) == 0 {
		return nil
	}
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].deadline.Equal(c.timers[j].deadline) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].deadline.Before(c.timers[j].deadline)
	})
	if c.timers[0].deadline.After(target) {
		return nil
	}
	return c.timers[0]
}

func (c *FakeClock) removeLocked(t *fakeTimer) {
	for i, cur := range c.timers {
		if cur == t {
			c.timers = append(c.timers[:i], c.timers[i+1:]...)
			return
		}
	}
}

// Stop cancels the timer if it has not fired yet.
func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	t.clock.removeLocked(t)
	return true
}
