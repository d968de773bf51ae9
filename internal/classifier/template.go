package classifier

import (
	"context"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/letter"
)

// Template classifies frames by detecting hand landmarks and picking the
// nearest letter template. No hand, or no template within tolerance, yields
// the no-hand label.
type Template struct {
	Preprocessor
	detector detector.Detector
	matcher  *Matcher

	mu       sync.Mutex
	lastHand *detector.HandLandmarks
}

// NewTemplate creates a Template classifier. It takes ownership of det.
func NewTemplate(det detector.Detector, matcher *Matcher, pre Preprocessor) *Template {
	if matcher == nil {
		matcher = NewMatcher()
	}
	return &Template{
		Preprocessor: pre,
		detector:     det,
		matcher:      matcher,
	}
}

// Matcher returns the template set used for classification.
func (t *Template) Matcher() *Matcher {
	return t.matcher
}

// Classify returns the index of the best matching letter.
func (t *Template) Classify(ctx context.Context, img *gocv.Mat) (int, error) {
	hands, err := t.detector.Detect(ctx, img)
	if err != nil {
		return 0, err
	}

	nothing := letter.Index(letter.Nothing)
	if len(hands) == 0 {
		t.setLastHand(nil)
		return nothing, nil
	}

	hand := hands[0]
	t.setLastHand(&hand)

	matches := t.matcher.Match(&hand)
	if len(matches) == 0 {
		return nothing, nil
	}
	if idx := letter.Index(matches[0].Template.Label); idx >= 0 {
		return idx, nil
	}
	return nothing, nil
}

// LastHand returns the hand seen by the most recent Classify call.
func (t *Template) LastHand() (detector.HandLandmarks, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.lastHand == nil {
		return detector.HandLandmarks{}, false
	}
	return *t.lastHand, true
}

func (t *Template) setLastHand(h *detector.HandLandmarks) {
	t.mu.Lock()
	t.lastHand = h
	t.mu.Unlock()
}

// Close stops the detector.
func (t *Template) Close() error {
	return t.detector.Close()
}
