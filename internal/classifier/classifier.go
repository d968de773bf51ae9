// Package classifier turns camera frames into indices of the fingerspelling
// label table.
package classifier

import (
	"context"
	"errors"

	"gocv.io/x/gocv"
)

// ErrEmptyFrame is returned when a nil or empty Mat is passed in.
var ErrEmptyFrame = errors.New("empty frame")

// Classifier preprocesses frames and classifies them. Both calls happen once
// per sampler tick, in order.
type Classifier interface {
	// Preprocess returns the image shown to the user and passed to Classify.
	// The caller owns the returned Mat and must close it.
	Preprocess(ctx context.Context, raw *gocv.Mat) (*gocv.Mat, error)

	// Classify returns an index into letter.Labels.
	Classify(ctx context.Context, processed *gocv.Mat) (int, error)

	// Close releases any resources held by the classifier.
	Close() error
}
