// Package clock provides controllable Clock implementations for expiry tests.
package clock

import (
	"sync"
	"time"

	"github.com/artpar/paramkit/ports"
)

// Fake is a controllable clock for expiry tests.
type Fake struct {
	mu      sync.RWMutex
	current time.Time
}

// NewFake creates a fake clock set to t.
func NewFake(t time.Time) *Fake {
	return &Fake{current: t}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Set moves the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = t
}

// Advance moves the fake clock by d and returns the new time.
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
	return f.current
}

// Func adapts a plain function to ports.Clock.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time { return f() }

var (
	_ ports.Clock = (*Fake)(nil)
	_ ports.Clock = Func(nil)
)
