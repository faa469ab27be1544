// Package clock provides an injectable time source so that domain logic
// with time-dependent transitions stays deterministic in tests.
// No external dependencies - uses only standard library.
package clock

import (
	"sync"
	"time"
)

// Clock is a source of the current time.
type Clock interface {
	// Now returns the current time in UTC.
	Now() time.Time
}

// System is a Clock backed by the wall clock.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time {
	return time.Now().UTC()
}

// NewSystem returns the wall-clock Clock.
func NewSystem() Clock {
	return System{}
}

// Fixed is a Clock that always returns the same instant. Intended for tests.
type Fixed struct {
	mu sync.RWMutex
	t  time.Time
}

// NewFixed creates a Fixed clock set to t (normalized to UTC).
func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t.UTC()}
}

// Now implements Clock.
func (f *Fixed) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.t
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = t.UTC()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.t = f.t.Add(d)
}
