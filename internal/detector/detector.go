package detector

import (
	"context"

	"gocv.io/x/gocv"
)

// Detector finds hand landmarks in a frame.
type Detector interface {
	// Detect returns the hands found in frame, best score first.
	// An empty slice means no hand is visible.
	Detect(ctx context.Context, frame *gocv.Mat) ([]HandLandmarks, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// ScriptPath points at mediapipe_service.py. Empty searches the usual locations.
	ScriptPath string

	// PythonPath is the interpreter. Empty prefers a local venv, then python3.
	PythonPath string

	// MaxHands is the maximum number of hands to detect. Fingerspelling uses one.
	MaxHands int

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64
}

// DefaultConfig returns a Config for single-hand fingerspelling.
func DefaultConfig() Config {
	return Config{
		MaxHands:      1,
		MinConfidence: 0.5,
	}
}
