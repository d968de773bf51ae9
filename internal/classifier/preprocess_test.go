package classifier

import (
	"context"
	"errors"
	"testing"

	"gocv.io/x/gocv"
)

func TestPreprocessor(t *testing.T) {
	ctx := context.Background()

	t.Run("crops and scales to a square", func(t *testing.T) {
		raw := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
		defer raw.Close()

		out, err := NewPreprocessor(0, false).Preprocess(ctx, &raw)
		if err != nil {
			t.Fatalf("Preprocess() error = %v", err)
		}
		defer out.Close()

		if out.Cols() != DefaultInputSize || out.Rows() != DefaultInputSize {
			t.Errorf("size = %dx%d, want %dx%d", out.Cols(), out.Rows(), DefaultInputSize, DefaultInputSize)
		}
	})

	t.Run("mirrors horizontally", func(t *testing.T) {
		raw := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
		defer raw.Close()
		raw.SetUCharAt(0, 0, 255)

		out, err := NewPreprocessor(100, true).Preprocess(ctx, &raw)
		if err != nil {
			t.Fatalf("Preprocess() error = %v", err)
		}
		defer out.Close()

		if got := out.GetUCharAt(0, 99*3); got != 255 {
			t.Errorf("mirrored pixel = %d, want 255", got)
		}
		if got := out.GetUCharAt(0, 0); got != 0 {
			t.Errorf("original corner = %d, want 0", got)
		}
	})

	t.Run("empty frame", func(t *testing.T) {
		empty := gocv.NewMat()
		defer empty.Close()

		if _, err := NewPreprocessor(0, false).Preprocess(ctx, &empty); !errors.Is(err, ErrEmptyFrame) {
			t.Errorf("error = %v, want ErrEmptyFrame", err)
		}
		if _, err := NewPreprocessor(0, false).Preprocess(ctx, nil); !errors.Is(err, ErrEmptyFrame) {
			t.Errorf("error = %v, want ErrEmptyFrame", err)
		}
	})
}
