package classifier

import (
	"context"
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// ErrEmptyScript is returned by a Scripted classifier with no steps.
var ErrEmptyScript = errors.New("empty classifier script")

// Step is one scripted classifier answer.
type Step struct {
	Index int
	Err   error
}

// Scripted replays a fixed sequence of answers. It backs the "mock"
// classifier mode and tests.
type Scripted struct {
	mu     sync.Mutex
	steps  []Step
	loop   bool
	pos    int
	calls  int
	closed bool
}

// NewScripted creates a Scripted classifier. When the script runs out the last
// step repeats, or the script restarts if loop is set.
func NewScripted(steps []Step, loop bool) *Scripted {
	return &Scripted{steps: steps, loop: loop}
}

// NewScriptedIndices scripts plain label indices.
func NewScriptedIndices(indices []int, loop bool) *Scripted {
	steps := make([]Step, len(indices))
	for i, idx := range indices {
		steps[i] = Step{Index: idx}
	}
	return NewScripted(steps, loop)
}

// Preprocess returns a copy of raw.
func (s *Scripted) Preprocess(ctx context.Context, raw *gocv.Mat) (*gocv.Mat, error) {
	if raw == nil || raw.Empty() {
		return nil, ErrEmptyFrame
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := raw.Clone()
	return &out, nil
}

// Classify returns the next scripted answer.
func (s *Scripted) Classify(ctx context.Context, _ *gocv.Mat) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++

	if len(s.steps) == 0 {
		return 0, ErrEmptyScript
	}
	if s.pos >= len(s.steps) {
		if s.loop {
			s.pos = 0
		} else {
			s.pos = len(s.steps) - 1
		}
	}
	step := s.steps[s.pos]
	s.pos++
	return step.Index, step.Err
}

// Calls returns how many times Classify was called.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Closed reports whether Close was called.
func (s *Scripted) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close marks the classifier closed.
func (s *Scripted) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
