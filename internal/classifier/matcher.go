package classifier

import (
	"math"
	"sort"
	"sync"

	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/letter"
)

// LetterTemplate is the averaged, normalized hand pose for one label.
type LetterTemplate struct {
	ID        string
	Label     letter.Label
	Landmarks []detector.Point3D
	Tolerance float64 // maximum summed landmark distance for a match
}

// Match is one template within tolerance of an observed hand.
type Match struct {
	Template *LetterTemplate
	Score    float64 // 1 / (1 + distance), higher is better
	Distance float64
}

// Matcher finds the letter templates closest to an observed hand. It is safe
// for concurrent use; templates are swapped while the sampler is running.
type Matcher struct {
	mu        sync.RWMutex
	templates []*LetterTemplate
}

// NewMatcher creates an empty Matcher.
func NewMatcher() *Matcher {
	return &Matcher{}
}

// Put adds t, replacing any template with the same ID. Templates without
// landmarks are ignored.
func (m *Matcher) Put(t *LetterTemplate) {
	if t == nil || len(t.Landmarks) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.templates {
		if existing.ID == t.ID {
			m.templates[i] = t
			return
		}
	}
	m.templates = append(m.templates, t)
}

// Remove removes a template by its ID.
func (m *Matcher) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.templates {
		if t.ID == id {
			m.templates = append(m.templates[:i], m.templates[i+1:]...)
			return
		}
	}
}

// Replace swaps the whole template set.
func (m *Matcher) Replace(templates []*LetterTemplate) {
	kept := make([]*LetterTemplate, 0, len(templates))
	for _, t := range templates {
		if t != nil && len(t.Landmarks) > 0 {
			kept = append(kept, t)
		}
	}
	m.mu.Lock()
	m.templates = kept
	m.mu.Unlock()
}

// Len returns the number of usable templates.
func (m *Matcher) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.templates)
}

// Match returns the templates within tolerance of hand, best first.
func (m *Matcher) Match(hand *detector.HandLandmarks) []Match {
	normalized := hand.Normalize()
	if normalized == nil {
		return nil
	}
	input := normalized.Points[:]

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []Match
	for _, t := range m.templates {
		distance := landmarkDistance(input, t.Landmarks)
		if distance > t.Tolerance {
			continue
		}
		matches = append(matches, Match{
			Template: t,
			Score:    1.0 / (1.0 + distance),
			Distance: distance,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches
}

// landmarkDistance sums the distances between corresponding points. A length
// mismatch never matches.
func landmarkDistance(a, b []detector.Point3D) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	var total float64
	for i := range a {
		total += detector.Distance(a[i], b[i])
	}
	return total
}
