// Package debounce coalesces bursts of run requests into a single call.
package debounce

import (
	"sync"
	"time"

	"github.com/danieljhkim/testloop/internal/clock"
)

// Scheduler holds at most one pending request. Scheduling while a request
// is pending cancels it and starts a new window; only the last reason
// survives.
type Scheduler struct {
	clock clock.Clock

	mu    sync.Mutex
	timer clock.Timer
	gen   uint64
}

// New creates a Scheduler driven by clk.
func New(clk clock.Clock) *Scheduler {
	return &Scheduler{clock: clk}
}

// Schedule calls fn with reason once delay has passed without another
// Schedule call.
func (s *Scheduler) Schedule(reason string, fn func(reason string), delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(delay, func() {
		s.mu.Lock()
		if gen != s.gen {
			// Replaced after Stop lost the race with the timer.
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()

		fn(reason)
	})
}

// CancelAll drops the pending request, if any, without calling it.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// Pending reports whether a request is waiting to fire.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
