package detector

import (
	"context"
	"errors"
	"math"
	"testing"
)

const epsilon = 1e-9

func TestHandLandmarks_Normalize(t *testing.T) {
	t.Run("wrist at origin after normalization", func(t *testing.T) {
		hand := FlatHandLandmarks()
		normalized := hand.Normalize()

		w := normalized.Points[Wrist]
		if math.Abs(w.X) > epsilon || math.Abs(w.Y) > epsilon || math.Abs(w.Z) > epsilon {
			t.Errorf("expected wrist at origin, got %+v", w)
		}
		if normalized.Handedness != hand.Handedness || normalized.Score != hand.Score {
			t.Error("handedness and score should be preserved")
		}
	})

	t.Run("wrist to middle knuckle is unit length", func(t *testing.T) {
		hand := HandLandmarks{}
		hand.Points[Wrist] = Point3D{X: 10.0, Y: 20.0, Z: 5.0}
		hand.Points[MiddleMCP] = Point3D{X: 13.0, Y: 24.0, Z: 5.0}

		normalized := hand.Normalize()
		if d := Distance(Point3D{}, normalized.Points[MiddleMCP]); math.Abs(d-1.0) > epsilon {
			t.Errorf("expected distance 1.0, got %f", d)
		}
	})

	t.Run("left hand is mirrored", func(t *testing.T) {
		right := LShapeLandmarks()
		left := LShapeLandmarks()
		left.Handedness = "Left"
		for i := range left.Points {
			left.Points[i].X = 1.0 - left.Points[i].X
		}

		nr, nl := right.Normalize(), left.Normalize()
		for i := 0; i < NumLandmarks; i++ {
			if Distance(nr.Points[i], nl.Points[i]) > 1e-6 {
				t.Fatalf("landmark %d differs after mirroring: %+v vs %+v", i, nr.Points[i], nl.Points[i])
			}
		}
	})

	t.Run("nil hand returns nil", func(t *testing.T) {
		var hand *HandLandmarks
		if hand.Normalize() != nil {
			t.Error("expected nil result for nil input")
		}
	})

	t.Run("zero scale returns translated only", func(t *testing.T) {
		hand := HandLandmarks{}
		hand.Points[Wrist] = Point3D{X: 10.0, Y: 20.0, Z: 5.0}
		hand.Points[MiddleMCP] = Point3D{X: 10.0, Y: 20.0, Z: 5.0}

		normalized := hand.Normalize()
		if math.Abs(normalized.Points[Wrist].X) > epsilon {
			t.Errorf("expected wrist X to be 0, got %f", normalized.Points[Wrist].X)
		}
	})
}

func TestMockDetector(t *testing.T) {
	ctx := context.Background()

	t.Run("returns no hands by default", func(t *testing.T) {
		mock := NewMockDetector()
		hands, err := mock.Detect(ctx, nil)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 0 {
			t.Errorf("expected no hands, got %v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		mock.SetHands([]HandLandmarks{FistLandmarks()})

		hands, err := mock.Detect(ctx, nil)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if len(hands) != 1 {
			t.Errorf("expected 1 hand, got %d", len(hands))
		}
		if mock.Calls() != 1 {
			t.Errorf("Calls() = %d, want 1", mock.Calls())
		}
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(ctx, nil)
		if err != expectedErr {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if hands != nil {
			t.Errorf("expected nil hands when error is set, got %v", hands)
		}
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestLetterFixtures(t *testing.T) {
	t.Run("fist has every fingertip below its middle joint", func(t *testing.T) {
		lm := FistLandmarks()
		for _, f := range [][2]int{{IndexPIP, IndexTip}, {MiddlePIP, MiddleTip}, {RingPIP, RingTip}, {PinkyPIP, PinkyTip}} {
			if lm.Points[f[1]].Y <= lm.Points[f[0]].Y {
				t.Errorf("tip %d should be curled below joint %d", f[1], f[0])
			}
		}
	})

	t.Run("flat hand has fingers extended", func(t *testing.T) {
		lm := FlatHandLandmarks()
		for _, f := range [][2]int{{IndexMCP, IndexTip}, {MiddleMCP, MiddleTip}, {RingMCP, RingTip}, {PinkyMCP, PinkyTip}} {
			if ext := lm.Points[f[0]].Y - lm.Points[f[1]].Y; ext < 0.2 {
				t.Errorf("finger tip %d extension %f, want >= 0.2", f[1], ext)
			}
		}
	})

	t.Run("L shape has thumb out and index up", func(t *testing.T) {
		lm := LShapeLandmarks()
		if lm.Points[ThumbTip].X-lm.Points[ThumbMCP].X < 0.1 {
			t.Error("thumb should point out to the side")
		}
		if lm.Points[IndexMCP].Y-lm.Points[IndexTip].Y < 0.2 {
			t.Error("index finger should be extended")
		}
	})
}

func TestParseResponse(t *testing.T) {
	line := []byte(`{"hands":[{"handedness":"Right","score":0.4,"points":[{"x":1,"y":2,"z":3}]},{"handedness":"Left","score":0.9,"points":[{"x":0.5,"y":0.5,"z":0}]}]}`)

	hands, err := parseResponse(line, 0.5)
	if err != nil {
		t.Fatalf("parseResponse() error = %v", err)
	}
	if len(hands) != 1 {
		t.Fatalf("expected 1 hand above confidence, got %d", len(hands))
	}
	if hands[0].Handedness != "Left" || hands[0].Points[Wrist].X != 0.5 {
		t.Errorf("unexpected hand %+v", hands[0])
	}

	if _, err := parseResponse([]byte(`{"error":"model missing"}`), 0); err == nil {
		t.Error("expected service error to surface")
	}
	if _, err := parseResponse([]byte(`not json`), 0); err == nil {
		t.Error("expected parse error")
	}
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	_, err := NewMediaPipeDetector(Config{ScriptPath: "/nonexistent/" + scriptName})
	if !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("error = %v, want ErrScriptNotFound", err)
	}
}
