// Package gate admits at most one test run at a time.
//
// The gate stays closed for a cooldown window after a run settles so the
// files a run writes (coverage, reports) cannot immediately start another.
package gate

import (
	"sync"
	"time"

	"github.com/danieljhkim/testloop/internal/clock"
)

// Gate tracks whether a run is outstanding.
type Gate struct {
	clock clock.Clock

	mu        sync.Mutex
	executing bool
	released  bool
	cooldown  clock.Timer
}

// New creates an open Gate.
func New(clk clock.Clock) *Gate {
	return &Gate{clock: clk}
}

// TryEnter closes the gate and returns true if it was open.
// It returns false without changing state if a run is outstanding.
func (g *Gate) TryEnter() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.executing {
		return false
	}
	g.executing = true
	return true
}

// ExitAfterCooldown reopens the gate once cooldown has elapsed. After
// Release it does nothing.
func (g *Gate) ExitAfterCooldown(cooldown time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.released {
		return
	}
	if g.cooldown != nil {
		g.cooldown.Stop()
	}
	var t clock.Timer
	t = g.clock.AfterFunc(cooldown, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if g.cooldown == t {
			g.cooldown = nil
		}
		g.executing = false
	})
	g.cooldown = t
}

// Executing reports whether a run or its cooldown is outstanding.
func (g *Gate) Executing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.executing
}

// Release cancels a pending cooldown timer and refuses later ones. The gate
// is left closed if it was closed; Release is meant for shutdown.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released = true
	if g.cooldown != nil {
		g.cooldown.Stop()
		g.cooldown = nil
	}
}
