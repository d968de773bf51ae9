package classifier

import (
	"math"
	"testing"

	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/letter"
)

// templateFrom builds a template from a fixture hand the way training would.
func templateFrom(id string, l letter.Label, hand detector.HandLandmarks, tolerance float64) *LetterTemplate {
	normalized := hand.Normalize()
	return &LetterTemplate{
		ID:        id,
		Label:     l,
		Landmarks: append([]detector.Point3D(nil), normalized.Points[:]...),
		Tolerance: tolerance,
	}
}

func TestMatcher_Match(t *testing.T) {
	matcher := NewMatcher()
	matcher.Put(templateFrom("a", "A", detector.FistLandmarks(), 1.0))
	matcher.Put(templateFrom("b", "B", detector.FlatHandLandmarks(), 1.0))

	t.Run("identical pose matches its letter", func(t *testing.T) {
		hand := detector.FistLandmarks()
		matches := matcher.Match(&hand)
		if len(matches) == 0 {
			t.Fatal("expected at least one match for fist input")
		}
		if matches[0].Template.Label != "A" {
			t.Errorf("best match = %s, want A", matches[0].Template.Label)
		}
		if matches[0].Score < 0.9 || matches[0].Distance > 0.1 {
			t.Errorf("expected near-perfect match, got score %f distance %f", matches[0].Score, matches[0].Distance)
		}
	})

	t.Run("pose far from every template", func(t *testing.T) {
		strict := NewMatcher()
		strict.Put(templateFrom("a", "A", detector.FistLandmarks(), 0.3))
		hand := detector.FlatHandLandmarks()
		if matches := strict.Match(&hand); len(matches) != 0 {
			t.Errorf("expected no match, got %s", matches[0].Template.Label)
		}
	})

	t.Run("matches sorted by score", func(t *testing.T) {
		loose := NewMatcher()
		loose.Put(templateFrom("a", "A", detector.FistLandmarks(), 100))
		loose.Put(templateFrom("l", "L", detector.LShapeLandmarks(), 100))
		hand := detector.LShapeLandmarks()
		matches := loose.Match(&hand)
		if len(matches) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(matches))
		}
		if matches[0].Template.Label != "L" || matches[0].Score < matches[1].Score {
			t.Errorf("matches not sorted: %+v", matches)
		}
	})

	t.Run("nil input", func(t *testing.T) {
		if matches := matcher.Match(nil); len(matches) != 0 {
			t.Errorf("expected 0 matches for nil input, got %d", len(matches))
		}
	})
}

func TestMatcher_PutRemoveReplace(t *testing.T) {
	matcher := NewMatcher()
	fist := templateFrom("t1", "A", detector.FistLandmarks(), 1)

	matcher.Put(fist)
	matcher.Put(templateFrom("t2", "B", detector.FlatHandLandmarks(), 1))
	matcher.Put(&LetterTemplate{ID: "untrained", Label: "C"})
	if matcher.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", matcher.Len())
	}

	matcher.Put(templateFrom("t1", "A", detector.FistLandmarks(), 5))
	if matcher.Len() != 2 {
		t.Errorf("Put with existing ID should replace, Len() = %d", matcher.Len())
	}

	matcher.Remove("t1")
	matcher.Remove("non-existent")
	if matcher.Len() != 1 {
		t.Errorf("Len() after remove = %d, want 1", matcher.Len())
	}

	matcher.Replace([]*LetterTemplate{fist, nil, {ID: "empty"}})
	if matcher.Len() != 1 {
		t.Errorf("Replace should keep only trained templates, Len() = %d", matcher.Len())
	}
}

func TestLandmarkDistance(t *testing.T) {
	a := []detector.Point3D{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 1}}
	b := []detector.Point3D{{X: 3, Y: 4, Z: 0}, {X: 1, Y: 1, Z: 1}}

	tests := []struct {
		name string
		a, b []detector.Point3D
		want float64
	}{
		{name: "identical", a: a, b: a, want: 0},
		{name: "one point off", a: a, b: b, want: 5},
		{name: "length mismatch", a: a, b: b[:1], want: math.Inf(1)},
		{name: "empty", a: nil, b: nil, want: math.Inf(1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := landmarkDistance(tt.a, tt.b)
			if got != tt.want && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("landmarkDistance() = %f, want %f", got, tt.want)
			}
		})
	}
}
