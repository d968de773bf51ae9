package detector

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns scripted detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a MockDetector that sees no hands.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Detect returns the configured hands or error.
func (m *MockDetector) Detect(_ context.Context, _ *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Calls returns how many times Detect was called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close is a no-op.
func (m *MockDetector) Close() error {
	return nil
}

// FistLandmarks returns a right hand in the fingerspelled "A" shape: all
// fingers curled into the palm, thumb resting upright along the index finger.
func FistLandmarks() HandLandmarks {
	lm := HandLandmarks{Handedness: "Right", Score: 0.95}

	lm.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	lm.Points[ThumbCMC] = Point3D{X: 0.56, Y: 0.76, Z: 0.0}
	lm.Points[ThumbMCP] = Point3D{X: 0.59, Y: 0.70, Z: 0.0}
	lm.Points[ThumbIP] = Point3D{X: 0.60, Y: 0.64, Z: 0.0}
	lm.Points[ThumbTip] = Point3D{X: 0.60, Y: 0.58, Z: 0.0}

	lm.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.66, Z: -0.02}
	lm.Points[IndexPIP] = Point3D{X: 0.55, Y: 0.62, Z: -0.05}
	lm.Points[IndexDIP] = Point3D{X: 0.54, Y: 0.66, Z: -0.05}
	lm.Points[IndexTip] = Point3D{X: 0.53, Y: 0.69, Z: -0.03}

	lm.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.65, Z: -0.02}
	lm.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.61, Z: -0.05}
	lm.Points[MiddleDIP] = Point3D{X: 0.49, Y: 0.65, Z: -0.05}
	lm.Points[MiddleTip] = Point3D{X: 0.48, Y: 0.68, Z: -0.03}

	lm.Points[RingMCP] = Point3D{X: 0.45, Y: 0.66, Z: -0.02}
	lm.Points[RingPIP] = Point3D{X: 0.45, Y: 0.62, Z: -0.05}
	lm.Points[RingDIP] = Point3D{X: 0.44, Y: 0.66, Z: -0.05}
	lm.Points[RingTip] = Point3D{X: 0.43, Y: 0.69, Z: -0.03}

	lm.Points[PinkyMCP] = Point3D{X: 0.41, Y: 0.68, Z: -0.02}
	lm.Points[PinkyPIP] = Point3D{X: 0.41, Y: 0.65, Z: -0.04}
	lm.Points[PinkyDIP] = Point3D{X: 0.40, Y: 0.68, Z: -0.04}
	lm.Points[PinkyTip] = Point3D{X: 0.40, Y: 0.71, Z: -0.02}

	return lm
}

// FlatHandLandmarks returns a right hand in the fingerspelled "B" shape: four
// fingers straight up and together, thumb folded across the palm.
func FlatHandLandmarks() HandLandmarks {
	lm := HandLandmarks{Handedness: "Right", Score: 0.95}

	lm.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	lm.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.76, Z: -0.01}
	lm.Points[ThumbMCP] = Point3D{X: 0.56, Y: 0.71, Z: -0.03}
	lm.Points[ThumbIP] = Point3D{X: 0.52, Y: 0.69, Z: -0.05}
	lm.Points[ThumbTip] = Point3D{X: 0.48, Y: 0.69, Z: -0.06}

	lm.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.67, Z: 0.0}
	lm.Points[IndexPIP] = Point3D{X: 0.55, Y: 0.54, Z: 0.0}
	lm.Points[IndexDIP] = Point3D{X: 0.55, Y: 0.45, Z: 0.0}
	lm.Points[IndexTip] = Point3D{X: 0.55, Y: 0.37, Z: 0.0}

	lm.Points[MiddleMCP] = Point3D{X: 0.51, Y: 0.66, Z: 0.0}
	lm.Points[MiddlePIP] = Point3D{X: 0.51, Y: 0.52, Z: 0.0}
	lm.Points[MiddleDIP] = Point3D{X: 0.51, Y: 0.42, Z: 0.0}
	lm.Points[MiddleTip] = Point3D{X: 0.51, Y: 0.33, Z: 0.0}

	lm.Points[RingMCP] = Point3D{X: 0.47, Y: 0.67, Z: 0.0}
	lm.Points[RingPIP] = Point3D{X: 0.47, Y: 0.54, Z: 0.0}
	lm.Points[RingDIP] = Point3D{X: 0.47, Y: 0.45, Z: 0.0}
	lm.Points[RingTip] = Point3D{X: 0.47, Y: 0.37, Z: 0.0}

	lm.Points[PinkyMCP] = Point3D{X: 0.43, Y: 0.69, Z: 0.0}
	lm.Points[PinkyPIP] = Point3D{X: 0.43, Y: 0.59, Z: 0.0}
	lm.Points[PinkyDIP] = Point3D{X: 0.43, Y: 0.51, Z: 0.0}
	lm.Points[PinkyTip] = Point3D{X: 0.43, Y: 0.44, Z: 0.0}

	return lm
}

// LShapeLandmarks returns a right hand in the fingerspelled "L" shape: index
// finger straight up, thumb out to the side, other fingers curled.
func LShapeLandmarks() HandLandmarks {
	lm := FistLandmarks()

	lm.Points[ThumbCMC] = Point3D{X: 0.56, Y: 0.76, Z: 0.02}
	lm.Points[ThumbMCP] = Point3D{X: 0.63, Y: 0.72, Z: 0.03}
	lm.Points[ThumbIP] = Point3D{X: 0.69, Y: 0.70, Z: 0.03}
	lm.Points[ThumbTip] = Point3D{X: 0.75, Y: 0.69, Z: 0.03}

	lm.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.67, Z: 0.0}
	lm.Points[IndexPIP] = Point3D{X: 0.56, Y: 0.54, Z: 0.0}
	lm.Points[IndexDIP] = Point3D{X: 0.56, Y: 0.45, Z: 0.0}
	lm.Points[IndexTip] = Point3D{X: 0.56, Y: 0.36, Z: 0.0}

	return lm
}
