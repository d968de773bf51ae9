package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/letter"
)

func TestTemplate_Classify(t *testing.T) {
	ctx := context.Background()
	nothing := letter.Index(letter.Nothing)

	det := detector.NewMockDetector()
	matcher := NewMatcher()
	matcher.Put(templateFrom("a", "A", detector.FistLandmarks(), 1.0))
	matcher.Put(templateFrom("l", "L", detector.LShapeLandmarks(), 1.0))
	clf := NewTemplate(det, matcher, NewPreprocessor(0, true))

	tests := []struct {
		name  string
		hands []detector.HandLandmarks
		want  int
	}{
		{name: "no hand", hands: nil, want: nothing},
		{name: "fist", hands: []detector.HandLandmarks{detector.FistLandmarks()}, want: letter.Index("A")},
		{name: "L shape", hands: []detector.HandLandmarks{detector.LShapeLandmarks()}, want: letter.Index("L")},
		{name: "unknown pose", hands: []detector.HandLandmarks{detector.FlatHandLandmarks()}, want: nothing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			det.SetHands(tt.hands)
			got, err := clf.Classify(ctx, nil)
			if err != nil {
				t.Fatalf("Classify() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Classify() = %d, want %d", got, tt.want)
			}
			_, seen := clf.LastHand()
			if seen != (len(tt.hands) > 0) {
				t.Errorf("LastHand() seen = %v, want %v", seen, len(tt.hands) > 0)
			}
		})
	}

	t.Run("detector error", func(t *testing.T) {
		boom := errors.New("service died")
		det.SetError(boom)
		defer det.SetError(nil)
		if _, err := clf.Classify(ctx, nil); !errors.Is(err, boom) {
			t.Errorf("Classify() error = %v, want %v", err, boom)
		}
	})

	if clf.Matcher() != matcher {
		t.Error("Matcher() should return the shared matcher")
	}
	var _ Classifier = clf
}

func TestTemplate_EmptyMatcherSeesNothing(t *testing.T) {
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.FistLandmarks()})
	clf := NewTemplate(det, nil, NewPreprocessor(0, false))

	got, err := clf.Classify(context.Background(), nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got != letter.Index(letter.Nothing) {
		t.Errorf("Classify() = %d, want no-hand label", got)
	}
}
