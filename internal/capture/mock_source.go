package capture

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back pre-built frames for testing.
type MockSource struct {
	frames []*gocv.Mat
	index  int
	loop   bool
	bounds image.Rectangle
	err    error
	calls  int
	mu     sync.Mutex
	closed bool
}

// NewMockSource creates a MockSource over frames. Bounds default to the size
// of the first frame.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	m := &MockSource{
		frames: frames,
		loop:   loop,
	}
	if len(frames) > 0 {
		m.bounds = image.Rect(0, 0, frames[0].Cols(), frames[0].Rows())
	}
	return m
}

// SetBounds overrides the reported screen bounds.
func (m *MockSource) SetBounds(r image.Rectangle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bounds = r
}

// SetError makes every capture fail with err until cleared with nil.
func (m *MockSource) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many captures were attempted.
func (m *MockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockSource) Bounds() image.Rectangle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bounds
}

func (m *MockSource) CaptureFull() (*Frame, error) {
	return m.next(image.Rectangle{})
}

// CaptureRegion returns the next frame tagged with the clamped region. The
// pixels are not cropped; tests build frames at region size.
func (m *MockSource) CaptureRegion(r image.Rectangle) (*Frame, error) {
	return m.next(r)
}

func (m *MockSource) next(r image.Rectangle) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++

	if m.closed {
		return nil, ErrSourceClosed
	}
	if m.err != nil {
		return nil, m.err
	}
	if len(m.frames) == 0 {
		return nil, fmt.Errorf("no frames available")
	}

	if m.index >= len(m.frames) {
		if !m.loop {
			return nil, fmt.Errorf("no more frames")
		}
		m.index = 0
	}

	// Clone the frame so the original isn't modified
	mat := m.frames[m.index].Clone()
	m.index++

	region := image.Rect(0, 0, mat.Cols(), mat.Rows())
	if !r.Empty() {
		region = ClampRegion(r, m.bounds)
	}

	return NewFrame(mat, region), nil
}

func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetFrames replaces the frame sequence
func (m *MockSource) SetFrames(frames []*gocv.Mat) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = frames
	m.index = 0
}

// Reset restarts playback from the beginning
func (m *MockSource) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.index = 0
}
