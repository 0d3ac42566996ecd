// Package testutil holds deterministic stand-ins used across package tests.
package testutil

import (
	"sync"
	"time"
)

// DeterministicClock is a wall clock that advances by a fixed step on every
// read.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type DeterministicClock struct {
	mu    sync.Mutex
	start time.Time
	step  time.Duration
	n     int64
}

// NewDeterministicClock creates a clock whose first Now returns start.
func NewDeterministicClock(start time.Time, step time.Duration) *DeterministicClock {
	return &DeterministicClock{start: start, step: step}
}

// Now returns the current time and advances the clock by one step.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.start.Add(time.Duration(c.n) * c.step)
	c.n++
	return t
}

// Current returns the time the next Now will return, without advancing.
func (c *DeterministicClock) Current() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.start.Add(time.Duration(c.n) * c.step)
}

// Reset rewinds the clock to start.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = 0
}
