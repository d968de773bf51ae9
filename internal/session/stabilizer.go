// Package session holds the per-camera-session recognition state: the run
// stabilizer, the confirmation gate and the word being spelled.
package session

import "github.com/ayusman/fingerspell/internal/letter"

// Promotion describes a run that ended long enough to propose a candidate.
type Promotion struct {
	// Candidate is the label that broke the run. It is the label offered for
	// confirmation, not the label whose run qualified.
	Candidate letter.Label
	// Prior is the label whose run just ended.
	Prior letter.Label
	// PriorCount is the length of the run that ended.
	PriorCount int
}

// Stabilizer tracks label runs across samples.
// It is not safe for concurrent use; Session serializes access.
type Stabilizer struct {
	thresholds letter.Thresholds
	current    letter.Label
	count      int
}

// NewStabilizer creates a Stabilizer starting from the neutral label.
func NewStabilizer(thresholds letter.Thresholds) *Stabilizer {
	return &Stabilizer{
		thresholds: thresholds,
		current:    letter.None,
	}
}

// Step feeds one sample. It returns a Promotion when the sample ends a run of
// the previous label that was strictly longer than that label's threshold.
//
// The run length counts every sample of the current label including the one
// that started it, so a label observed T+1 times in a row is promotable when
// its threshold is T.
func (s *Stabilizer) Step(l letter.Label) (Promotion, bool) {
	if l == s.current {
		s.count++
		return Promotion{}, false
	}

	prior, priorCount := s.current, s.count
	s.current = l
	s.count = 1

	if prior == letter.None || priorCount <= s.thresholds.For(prior) {
		return Promotion{}, false
	}

	return Promotion{
		Candidate:  l,
		Prior:      prior,
		PriorCount: priorCount,
	}, true
}

// Current returns the label of the run in progress and its length.
func (s *Stabilizer) Current() (letter.Label, int) {
	return s.current, s.count
}

// Reset returns the stabilizer to the neutral label.
func (s *Stabilizer) Reset() {
	s.current = letter.None
	s.count = 0
}
