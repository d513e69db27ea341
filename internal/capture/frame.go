// Package capture provides screen and device frame capture using GoCV (OpenCV).
package capture

import (
	"errors"
	"image"
	"time"

	"gocv.io/x/gocv"
)

var (
	// ErrEmptyFrame is returned when a backend produced no pixels.
	ErrEmptyFrame = errors.New("captured frame is empty")
	// ErrEmptyRegion is returned when a clamped region has no area.
	ErrEmptyRegion = errors.New("capture region is empty")
	// ErrSourceClosed is returned when capturing from a closed source.
	ErrSourceClosed = errors.New("capture source is closed")
)

// Frame is one captured bitmap in BGR order, tagged with the absolute
// screen rectangle it was captured from.
type Frame struct {
	Mat       gocv.Mat
	Region    image.Rectangle
	Timestamp time.Time

	closed bool
}

// NewFrame wraps mat as a frame captured from region.
func NewFrame(mat gocv.Mat, region image.Rectangle) *Frame {
	return &Frame{
		Mat:       mat,
		Region:    region,
		Timestamp: time.Now(),
	}
}

// Offset returns the top-left corner of the captured region.
func (f *Frame) Offset() image.Point {
	return f.Region.Min
}

// Width returns the frame width in pixels.
func (f *Frame) Width() int {
	return f.Mat.Cols()
}

// Height returns the frame height in pixels.
func (f *Frame) Height() int {
	return f.Mat.Rows()
}

// Close releases the underlying Mat. Safe to call more than once.
func (f *Frame) Close() error {
	if f == nil || f.closed {
		return nil
	}
	f.closed = true
	return f.Mat.Close()
}

// Source captures frames on demand.
type Source interface {
	// CaptureFull grabs the whole screen (or device frame).
	CaptureFull() (*Frame, error)
	// CaptureRegion grabs r after clamping it to Bounds.
	CaptureRegion(r image.Rectangle) (*Frame, error)
	// Bounds reports the capturable area.
	Bounds() image.Rectangle
	Close() error
}

// ClampRegion clamps r into bounds. The origin is pulled inside the bounds
// and the size is truncated to what fits; it never grows the region.
func ClampRegion(r, bounds image.Rectangle) image.Rectangle {
	w, h := r.Dx(), r.Dy()
	x := clamp(r.Min.X, bounds.Min.X, bounds.Max.X-1)
	y := clamp(r.Min.Y, bounds.Min.Y, bounds.Max.Y-1)

	if w > bounds.Max.X-x {
		w = bounds.Max.X - x
	}
	if h > bounds.Max.Y-y {
		h = bounds.Max.Y - y
	}
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}

	return image.Rect(x, y, x+w, y+h)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SaveScreenshot writes frame to path. The format follows the extension.
func SaveScreenshot(path string, frame *Frame) error {
	if frame == nil || frame.Mat.Empty() {
		return ErrEmptyFrame
	}
	if ok := gocv.IMWrite(path, frame.Mat); !ok {
		return errors.New("failed to write screenshot " + path)
	}
	return nil
}
