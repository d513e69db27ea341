package capture

import (
	"errors"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture device settings
const (
	DefaultDeviceFPS = 30
	DefaultWidth     = 1280
	DefaultHeight    = 720
)

// ErrCameraNotOpen is returned when trying to read from a device that is not open.
var ErrCameraNotOpen = errors.New("capture device is not open")

// CameraSource reads frames from a video capture device such as a capture
// card or a virtual camera mirroring another machine's screen.
type CameraSource struct {
	deviceID int
	capture  *gocv.VideoCapture
	mu       sync.Mutex
	running  bool
	fps      int
	width    int
	height   int
}

// NewCameraSource creates a CameraSource for the given device ID.
// The device is opened lazily by Open.
func NewCameraSource(deviceID int) *CameraSource {
	return &CameraSource{
		deviceID: deviceID,
		fps:      DefaultDeviceFPS,
		width:    DefaultWidth,
		height:   DefaultHeight,
	}
}

// Open opens the device and requests the default resolution.
func (c *CameraSource) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.deviceID)
	if err != nil {
		return err
	}

	capture.Set(gocv.VideoCaptureFrameWidth, float64(c.width))
	capture.Set(gocv.VideoCaptureFrameHeight, float64(c.height))
	capture.Set(gocv.VideoCaptureFPS, float64(c.fps))

	// The device may not honour the request.
	if w := int(capture.Get(gocv.VideoCaptureFrameWidth)); w > 0 {
		c.width = w
	}
	if h := int(capture.Get(gocv.VideoCaptureFrameHeight)); h > 0 {
		c.height = h
	}

	c.capture = capture
	c.running = true

	return nil
}

// Close closes the device and releases resources.
func (c *CameraSource) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// Bounds returns the device frame rectangle anchored at the origin.
func (c *CameraSource) Bounds() image.Rectangle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return image.Rect(0, 0, c.width, c.height)
}

// CaptureFull reads one full device frame.
func (c *CameraSource) CaptureFull() (*Frame, error) {
	mat, err := c.read()
	if err != nil {
		return nil, err
	}
	return NewFrame(mat, image.Rect(0, 0, mat.Cols(), mat.Rows())), nil
}

// CaptureRegion reads one device frame and crops it to r.
func (c *CameraSource) CaptureRegion(r image.Rectangle) (*Frame, error) {
	mat, err := c.read()
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	r = ClampRegion(r, image.Rect(0, 0, mat.Cols(), mat.Rows()))
	if r.Empty() {
		return nil, ErrEmptyRegion
	}

	roi := mat.Region(r)
	defer roi.Close()

	return NewFrame(roi.Clone(), r), nil
}

func (c *CameraSource) read() (gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return gocv.Mat{}, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok {
		mat.Close()
		return gocv.Mat{}, errors.New("failed to read frame from capture device")
	}

	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, ErrEmptyFrame
	}

	return mat, nil
}

// SetFPS sets the requested device frame rate.
// Values less than or equal to 0 are ignored.
func (c *CameraSource) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps

	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

// FPS returns the requested device frame rate.
func (c *CameraSource) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.fps
}

// IsOpen returns true if the device is currently open.
func (c *CameraSource) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
