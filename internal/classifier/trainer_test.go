package classifier

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/ayusman/fingerspell/internal/detector"
)

func rawSample(t *testing.T, h detector.HandLandmarks) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(SampleFromHand(h, 1000))
	if err != nil {
		t.Fatalf("marshal sample: %v", err)
	}
	return data
}

func floatEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestTrain(t *testing.T) {
	t.Run("single sample equals its normalized pose", func(t *testing.T) {
		hand := detector.FistLandmarks()
		got, err := Train([]json.RawMessage{rawSample(t, hand)})
		if err != nil {
			t.Fatalf("Train() error = %v", err)
		}
		want := hand.Normalize()
		for i := range got {
			if detector.Distance(got[i], want.Points[i]) > 1e-9 {
				t.Fatalf("landmark %d = %+v, want %+v", i, got[i], want.Points[i])
			}
		}
	})

	t.Run("averages normalized samples", func(t *testing.T) {
		a := detector.HandLandmarks{Handedness: "Right"}
		b := detector.HandLandmarks{Handedness: "Right"}
		a.Points[detector.MiddleMCP] = detector.Point3D{Y: -1}
		b.Points[detector.MiddleMCP] = detector.Point3D{Y: -2}
		a.Points[detector.IndexTip] = detector.Point3D{X: 1}
		b.Points[detector.IndexTip] = detector.Point3D{X: 4}

		got, err := Train([]json.RawMessage{rawSample(t, a), rawSample(t, b)})
		if err != nil {
			t.Fatalf("Train() error = %v", err)
		}
		// a scales by 1, b by 2: index tips normalize to 1 and 2.
		if !floatEqual(got[detector.IndexTip].X, 1.5) {
			t.Errorf("index tip X = %f, want 1.5", got[detector.IndexTip].X)
		}
		if !floatEqual(got[detector.MiddleMCP].Y, -1) {
			t.Errorf("middle knuckle Y = %f, want -1", got[detector.MiddleMCP].Y)
		}
	})

	t.Run("left and right hands train the same template", func(t *testing.T) {
		right := detector.LShapeLandmarks()
		left := detector.LShapeLandmarks()
		left.Handedness = "Left"
		for i := range left.Points {
			left.Points[i].X = 1 - left.Points[i].X
		}

		fromRight, _ := Train([]json.RawMessage{rawSample(t, right)})
		fromLeft, _ := Train([]json.RawMessage{rawSample(t, left)})
		for i := range fromRight {
			if detector.Distance(fromRight[i], fromLeft[i]) > 1e-6 {
				t.Fatalf("landmark %d differs: %+v vs %+v", i, fromRight[i], fromLeft[i])
			}
		}
	})
}

func TestTrain_Errors(t *testing.T) {
	tests := []struct {
		name    string
		samples []json.RawMessage
	}{
		{name: "no samples", samples: nil},
		{name: "invalid json", samples: []json.RawMessage{json.RawMessage(`{`)}},
		{name: "too few landmarks", samples: []json.RawMessage{json.RawMessage(`{"landmarks":[{"x":1,"y":1,"z":1}]}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Train(tt.samples); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := Train(nil); !errors.Is(err, ErrNoSamples) {
		t.Errorf("Train(nil) error = %v, want ErrNoSamples", err)
	}
}
