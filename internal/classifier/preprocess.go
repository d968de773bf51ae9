package classifier

import (
	"context"
	"image"

	"gocv.io/x/gocv"
)

// DefaultInputSize is the square side, in pixels, of a preprocessed frame.
const DefaultInputSize = 224

// Preprocessor center-crops a frame to a square, scales it to Size and
// optionally mirrors it so the user sees themselves as in a mirror.
type Preprocessor struct {
	Size   int
	Mirror bool
}

// NewPreprocessor returns a Preprocessor. size <= 0 uses DefaultInputSize.
func NewPreprocessor(size int, mirror bool) Preprocessor {
	if size <= 0 {
		size = DefaultInputSize
	}
	return Preprocessor{Size: size, Mirror: mirror}
}

// Preprocess returns a new Mat holding the processed frame.
func (p Preprocessor) Preprocess(ctx context.Context, raw *gocv.Mat) (*gocv.Mat, error) {
	if raw == nil || raw.Empty() {
		return nil, ErrEmptyFrame
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	size := p.Size
	if size <= 0 {
		size = DefaultInputSize
	}

	w, h := raw.Cols(), raw.Rows()
	side := min(w, h)
	x0, y0 := (w-side)/2, (h-side)/2
	square := raw.Region(image.Rect(x0, y0, x0+side, y0+side))
	defer square.Close()

	out := gocv.NewMat()
	gocv.Resize(square, &out, image.Pt(size, size), 0, 0, gocv.InterpolationArea)
	if p.Mirror {
		gocv.Flip(out, &out, 1)
	}
	if out.Empty() {
		out.Close()
		return nil, ErrEmptyFrame
	}
	return &out, nil
}
