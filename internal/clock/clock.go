// Package clock abstracts wall-clock time so the sampler can be driven by a
// fake clock in tests.
package clock

import (
	"sync"
	"time"
)

// Clock provides the current time and one-shot delays.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

// New returns a Clock backed by the time package.
func New() Clock {
	return realClock{}
}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Fake is a manually driven Clock. After fires immediately and moves the
// clock forward by the requested delay, so a loop that waits between ticks
// runs at full speed while still observing the configured period.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	waited []time.Duration
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the fake current time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// After advances the clock by d and returns a channel that already holds the
// new time.
func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)
	f.waited = append(f.waited, d)

	ch := make(chan time.Time, 1)
	ch <- f.now
	return ch
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Waits returns the delays requested through After, in order.
func (f *Fake) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]time.Duration, len(f.waited))
	copy(out, f.waited)
	return out
}
