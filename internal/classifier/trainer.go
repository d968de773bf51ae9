package classifier

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/fingerspell/internal/detector"
)

// ErrNoSamples is returned when training is asked to average nothing.
var ErrNoSamples = errors.New("no samples provided")

// Sample is one recorded hand pose. Landmarks are raw detector output; they
// are normalized during training.
type Sample struct {
	Handedness string             `json:"handedness,omitempty"`
	Landmarks  []detector.Point3D `json:"landmarks"`
	Timestamp  int64              `json:"timestamp,omitempty"`
}

// SampleFromHand captures a detected hand as a training sample.
func SampleFromHand(h detector.HandLandmarks, timestamp int64) Sample {
	return Sample{
		Handedness: h.Handedness,
		Landmarks:  append([]detector.Point3D(nil), h.Points[:]...),
		Timestamp:  timestamp,
	}
}

// Train normalizes every recorded sample and averages them into template
// landmarks.
func Train(samples []json.RawMessage) ([]detector.Point3D, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	averaged := make([]detector.Point3D, detector.NumLandmarks)
	for i, raw := range samples {
		var sample Sample
		if err := json.Unmarshal(raw, &sample); err != nil {
			return nil, fmt.Errorf("failed to parse sample %d: %w", i, err)
		}
		if len(sample.Landmarks) != detector.NumLandmarks {
			return nil, fmt.Errorf("sample %d has %d landmarks, expected %d",
				i, len(sample.Landmarks), detector.NumLandmarks)
		}

		hand := detector.HandLandmarks{Handedness: sample.Handedness}
		copy(hand.Points[:], sample.Landmarks)
		normalized := hand.Normalize()

		for j, p := range normalized.Points {
			averaged[j].X += p.X
			averaged[j].Y += p.Y
			averaged[j].Z += p.Z
		}
	}

	n := float64(len(samples))
	for j := range averaged {
		averaged[j].X /= n
		averaged[j].Y /= n
		averaged[j].Z /= n
	}
	return averaged, nil
}
