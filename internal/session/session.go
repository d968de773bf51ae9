package session

import (
	"sync"
	"time"

	"github.com/ayusman/fingerspell/internal/clock"
	"github.com/ayusman/fingerspell/internal/letter"
)

// EventKind names a state change of a Session.
type EventKind string

const (
	// EventCandidate is emitted when a candidate enters the gate.
	EventCandidate EventKind = "candidate"
	// EventSuppressed is emitted when a promotion is dropped because another
	// candidate is still pending.
	EventSuppressed EventKind = "suppressed"
	// EventConfirm is emitted when the user confirms the pending candidate.
	EventConfirm EventKind = "confirm"
	// EventReject is emitted when the user rejects the pending candidate.
	EventReject EventKind = "reject"
	// EventReset is emitted when the word is cleared.
	EventReset EventKind = "reset"
)

// Event records a single transition. Appended is the text added to the word
// by a confirm and is empty for every other kind.
type Event struct {
	Kind      EventKind    `json:"kind"`
	SessionID string       `json:"session_id"`
	Label     letter.Label `json:"label"`
	Appended  string       `json:"appended,omitempty"`
	Word      string       `json:"word"`
	At        time.Time    `json:"at"`
}

// Snapshot is the state a UI needs to render a session.
type Snapshot struct {
	SessionID    string       `json:"session_id"`
	Label        letter.Label `json:"label"`
	Word         string       `json:"word"`
	FPS          float64      `json:"fps"`
	Pending      bool         `json:"pending"`
	PendingLabel letter.Label `json:"pending_label"`
	RunLength    int          `json:"run_length"`
	Samples      int64        `json:"samples"`
}

// Config configures a Session.
type Config struct {
	ID           string
	Thresholds   letter.Thresholds
	SpaceLiteral string
	Clock        clock.Clock
}

// Session is the full recognition state of one camera session. All methods
// are safe for concurrent use; the stabilizer's pending check and the user's
// confirm/reject never interleave.
type Session struct {
	id           string
	spaceLiteral string
	clock        clock.Clock

	mu         sync.Mutex
	stabilizer *Stabilizer
	gate       Gate
	word       Word
	displayed  letter.Label
	fps        float64
	samples    int64
}

// New creates a Session with empty state.
func New(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	return &Session{
		id:           cfg.ID,
		spaceLiteral: cfg.SpaceLiteral,
		clock:        cfg.Clock,
		stabilizer:   NewStabilizer(cfg.Thresholds),
		displayed:    letter.None,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Observe feeds one classified sample. It returns an event when the sample
// promoted a candidate, whether or not the gate accepted it.
func (s *Session) Observe(l letter.Label) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.samples++
	s.displayed = l

	promo, ok := s.stabilizer.Step(l)
	if !ok {
		return Event{}, false
	}

	kind := EventCandidate
	if !s.gate.Raise(promo.Candidate) {
		kind = EventSuppressed
	}
	return s.event(kind, promo.Candidate, ""), true
}

// Confirm resolves the pending candidate by committing the label currently on
// display. The no-hand label is never committed, but the candidate is still
// cleared.
func (s *Session) Confirm() (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.gate.Resolve(); err != nil {
		return Event{}, err
	}

	appended := s.displayed.Text(s.spaceLiteral)
	s.word.Append(appended)
	return s.event(EventConfirm, s.displayed, appended), nil
}

// Reject discards the pending candidate without touching the word.
func (s *Session) Reject() (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.gate.Resolve()
	if err != nil {
		return Event{}, err
	}
	return s.event(EventReject, l, ""), nil
}

// ResetWord empties the word. Stabilizer and gate state are left alone.
func (s *Session) ResetWord() Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.word.Reset()
	return s.event(EventReset, letter.None, "")
}

// SetFrameRate records the sampler's latest frame-rate estimate.
func (s *Session) SetFrameRate(fps float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fps = fps
}

// Word returns the accumulated text.
func (s *Session) Word() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.word.String()
}

// GateState returns the confirmation gate's state.
func (s *Session) GateState() GateState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.State()
}

// Snapshot returns a consistent copy of the session's visible state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, ok := s.gate.Pending()
	_, run := s.stabilizer.Current()
	return Snapshot{
		SessionID:    s.id,
		Label:        s.displayed,
		Word:         s.word.String(),
		FPS:          s.fps,
		Pending:      ok,
		PendingLabel: pending,
		RunLength:    run,
		Samples:      s.samples,
	}
}

// event builds an Event; callers hold s.mu.
func (s *Session) event(kind EventKind, l letter.Label, appended string) Event {
	return Event{
		Kind:      kind,
		SessionID: s.id,
		Label:     l,
		Appended:  appended,
		Word:      s.word.String(),
		At:        s.clock.Now(),
	}
}
