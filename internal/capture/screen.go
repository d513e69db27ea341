package capture

import (
	"fmt"
	"image"
	"sync"

	"github.com/kbinani/screenshot"
	"gocv.io/x/gocv"
)

// ScreenSource captures pixels from a physical display.
type ScreenSource struct {
	display int
	bounds  image.Rectangle
	mu      sync.Mutex
	closed  bool
}

// NewScreenSource creates a source for the given display index.
func NewScreenSource(display int) (*ScreenSource, error) {
	if n := screenshot.NumActiveDisplays(); display < 0 || display >= n {
		return nil, fmt.Errorf("display %d not available (%d active)", display, n)
	}

	return &ScreenSource{
		display: display,
		bounds:  screenshot.GetDisplayBounds(display),
	}, nil
}

// Bounds returns the display rectangle in absolute screen coordinates.
func (s *ScreenSource) Bounds() image.Rectangle {
	return s.bounds
}

// CaptureFull grabs the whole display.
func (s *ScreenSource) CaptureFull() (*Frame, error) {
	return s.grab(s.bounds)
}

// CaptureRegion grabs r, clamped to the display.
func (s *ScreenSource) CaptureRegion(r image.Rectangle) (*Frame, error) {
	return s.grab(ClampRegion(r, s.bounds))
}

func (s *ScreenSource) grab(r image.Rectangle) (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSourceClosed
	}
	if r.Empty() {
		return nil, ErrEmptyRegion
	}

	img, err := screenshot.CaptureRect(r)
	if err != nil {
		return nil, fmt.Errorf("capture %v: %w", r, err)
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert capture: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrEmptyFrame
	}

	return NewFrame(mat, r), nil
}

// Close marks the source closed. Screen capture holds no native handles.
func (s *ScreenSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
