package session

import (
	"errors"

	"github.com/ayusman/fingerspell/internal/letter"
)

// ErrNothingPending is returned when Confirm or Reject is called while no
// candidate is awaiting a decision.
var ErrNothingPending = errors.New("no candidate awaiting confirmation")

// GateState is the confirmation gate's state.
type GateState int

const (
	// Idle means no candidate is pending.
	Idle GateState = iota
	// AwaitingConfirmation means exactly one candidate waits for the user.
	AwaitingConfirmation
)

func (s GateState) String() string {
	if s == AwaitingConfirmation {
		return "awaiting_confirmation"
	}
	return "idle"
}

// Gate holds at most one pending candidate.
type Gate struct {
	state   GateState
	pending letter.Label
}

// Raise moves an idle gate to AwaitingConfirmation. It returns false and keeps
// the existing candidate when one is already pending.
func (g *Gate) Raise(l letter.Label) bool {
	if g.state == AwaitingConfirmation {
		return false
	}
	g.state = AwaitingConfirmation
	g.pending = l
	return true
}

// Resolve clears the pending candidate and returns it.
func (g *Gate) Resolve() (letter.Label, error) {
	if g.state != AwaitingConfirmation {
		return letter.None, ErrNothingPending
	}
	l := g.pending
	g.state = Idle
	g.pending = letter.None
	return l, nil
}

// Pending returns the pending candidate, if any.
func (g *Gate) Pending() (letter.Label, bool) {
	return g.pending, g.state == AwaitingConfirmation
}

// State returns the gate's current state.
func (g *Gate) State() GateState {
	return g.state
}
