package detect

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// MotionMode selects how moving regions are separated from the background.
type MotionMode int

const (
	// MotionMOG2 uses a Gaussian-mixture background model.
	MotionMOG2 MotionMode = iota
	// MotionKNN uses a k-nearest-neighbours background model.
	MotionKNN
	// MotionFrameDiff compares each frame with the previous one.
	MotionFrameDiff
)

func (m MotionMode) String() string {
	switch m {
	case MotionKNN:
		return "knn"
	case MotionFrameDiff:
		return "frame_diff"
	default:
		return "mog2"
	}
}

// maxMotionFraction is the share of the frame the largest moving region
// must cover to reach full confidence.
const maxMotionFraction = 0.1

// MotionParams tunes motion detection.
type MotionParams struct {
	Mode MotionMode

	// MinArea drops contours smaller than this many pixels.
	MinArea float64

	// DiffThreshold binarizes frame differences (0-255).
	DiffThreshold float64

	DilateIterations int

	// BlurSize is the Gaussian kernel size for frame differencing. Must be odd.
	BlurSize int

	// History and VarThreshold configure the background model.
	History      int
	VarThreshold float64
}

// DefaultMotionParams returns the default tuning.
func DefaultMotionParams() MotionParams {
	return MotionParams{
		Mode:             MotionMOG2,
		MinArea:          500,
		DiffThreshold:    25,
		DilateIterations: 2,
		BlurSize:         21,
		History:          50,
		VarThreshold:     16,
	}
}

// Validate checks the tuning values.
func (p MotionParams) Validate() error {
	switch {
	case p.MinArea < 0:
		return fmt.Errorf("min area must be >= 0, got %v", p.MinArea)
	case p.DiffThreshold < 0 || p.DiffThreshold > 255:
		return fmt.Errorf("diff threshold must be within [0,255], got %v", p.DiffThreshold)
	case p.DilateIterations < 0:
		return fmt.Errorf("dilate iterations must be >= 0, got %d", p.DilateIterations)
	case p.BlurSize <= 0 || p.BlurSize%2 == 0:
		return fmt.Errorf("blur size must be a positive odd number, got %d", p.BlurSize)
	case p.History < 1:
		return fmt.Errorf("history must be >= 1, got %d", p.History)
	case p.VarThreshold < 0:
		return fmt.Errorf("background threshold must be >= 0, got %v", p.VarThreshold)
	}
	return nil
}

// MotionDetector finds moving regions either by differencing consecutive
// frames or with a rolling background model.
type MotionDetector struct {
	params    MotionParams
	threshold float64

	prevGray    gocv.Mat
	initialized bool

	mog2    gocv.BackgroundSubtractorMOG2
	knn     gocv.BackgroundSubtractorKNN
	hasMOG2 bool
	hasKNN  bool

	kernel gocv.Mat
	mu     sync.Mutex
}

// NewMotionDetector creates a motion detector. Invalid params fall back to
// the defaults field by field.
func NewMotionDetector(params MotionParams, threshold float64) *MotionDetector {
	d := &MotionDetector{
		params:    sanitizeMotion(params),
		threshold: clamp01(threshold),
		prevGray:  gocv.NewMat(),
		kernel:    gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3)),
	}
	return d
}

func sanitizeMotion(p MotionParams) MotionParams {
	def := DefaultMotionParams()
	if p.MinArea < 0 {
		p.MinArea = def.MinArea
	}
	if p.DiffThreshold < 0 || p.DiffThreshold > 255 {
		p.DiffThreshold = def.DiffThreshold
	}
	if p.DilateIterations < 0 {
		p.DilateIterations = def.DilateIterations
	}
	if p.BlurSize <= 0 {
		p.BlurSize = def.BlurSize
	}
	if p.BlurSize%2 == 0 {
		p.BlurSize++
	}
	if p.History < 1 {
		p.History = def.History
	}
	if p.VarThreshold < 0 {
		p.VarThreshold = def.VarThreshold
	}
	return p
}

// Params returns the tuning in use.
func (d *MotionDetector) Params() MotionParams {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

// SetParams replaces the tuning. Changing the mode resets the model.
func (d *MotionDetector) SetParams(params MotionParams) {
	d.mu.Lock()
	defer d.mu.Unlock()

	params = sanitizeMotion(params)
	if params != d.params {
		d.params = params
		d.resetLocked()
	}
}

// SetThreshold sets the minimum confidence, clamped to [0,1].
func (d *MotionDetector) SetThreshold(t float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = clamp01(t)
}

// Detect analyzes a frame for motion. With frame differencing the first
// frame after construction or Reset only seeds the baseline and is never a
// detection.
func (d *MotionDetector) Detect(frame *gocv.Mat) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return Result{}, fmt.Errorf("motion detect: empty frame")
	}

	mask := gocv.NewMat()
	defer mask.Close()

	var seeded bool
	if d.params.Mode == MotionFrameDiff {
		seeded = d.diffMaskLocked(frame, &mask)
	} else {
		d.subtractMaskLocked(frame, &mask)
	}
	if seeded {
		return Result{}, nil
	}

	boxes, largest := d.regions(mask)
	if len(boxes) == 0 {
		return Result{}, nil
	}

	total := float64(frame.Rows() * frame.Cols())
	confidence := clamp01(largest.area / (maxMotionFraction * total))
	if confidence < d.threshold {
		return Result{Confidence: confidence}, nil
	}

	return Result{
		Found:      true,
		Center:     centerOf(largest.box),
		Confidence: confidence,
		Box:        largest.box,
		Objects:    boxes,
	}, nil
}

// diffMaskLocked fills mask with the thresholded difference against the
// previous frame. It reports true when the call only seeded the baseline.
func (d *MotionDetector) diffMaskLocked(frame *gocv.Mat, mask *gocv.Mat) bool {
	gray := toGray(*frame)
	defer gray.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := d.params.BlurSize
	gocv.GaussianBlur(gray, &blurred, image.Point{X: k, Y: k}, 0, 0, gocv.BorderDefault)

	if !d.initialized || d.prevGray.Rows() != blurred.Rows() || d.prevGray.Cols() != blurred.Cols() {
		blurred.CopyTo(&d.prevGray)
		d.initialized = true
		return true
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, d.prevGray, &diff)

	gocv.Threshold(diff, mask, float32(d.params.DiffThreshold), 255, gocv.ThresholdBinary)

	// Update previous frame
	blurred.CopyTo(&d.prevGray)

	d.dilateLocked(mask)
	return false
}

func (d *MotionDetector) subtractMaskLocked(frame *gocv.Mat, mask *gocv.Mat) {
	fg := gocv.NewMat()
	defer fg.Close()

	switch d.params.Mode {
	case MotionKNN:
		if !d.hasKNN {
			d.knn = gocv.NewBackgroundSubtractorKNNWithParams(d.params.History, d.params.VarThreshold, false)
			d.hasKNN = true
		}
		d.knn.Apply(*frame, &fg)
	default:
		if !d.hasMOG2 {
			d.mog2 = gocv.NewBackgroundSubtractorMOG2WithParams(d.params.History, d.params.VarThreshold, false)
			d.hasMOG2 = true
		}
		d.mog2.Apply(*frame, &fg)
	}

	gocv.MorphologyEx(fg, mask, gocv.MorphOpen, d.kernel)
	d.dilateLocked(mask)
}

func (d *MotionDetector) dilateLocked(mask *gocv.Mat) {
	for i := 0; i < d.params.DilateIterations; i++ {
		gocv.Dilate(*mask, mask, d.kernel)
	}
}

type region struct {
	box  image.Rectangle
	area float64
}

// regions returns the bounding boxes of every external contour whose area
// reaches MinArea, in contour order, plus the largest one.
func (d *MotionDetector) regions(mask gocv.Mat) ([]image.Rectangle, region) {
	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var (
		boxes   []image.Rectangle
		largest region
	)
	for _, contour := range contours.ToPoints() {
		pv := gocv.NewPointVectorFromPoints(contour)
		area := gocv.ContourArea(pv)
		if area < d.params.MinArea {
			pv.Close()
			continue
		}
		bb := gocv.BoundingRect(pv)
		pv.Close()

		boxes = append(boxes, bb)
		if len(boxes) == 1 || area > largest.area {
			largest = region{box: bb, area: area}
		}
	}
	return boxes, largest
}

// Reset discards the baseline frame and background model.
func (d *MotionDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

func (d *MotionDetector) resetLocked() {
	if !d.prevGray.Empty() {
		d.prevGray.Close()
		d.prevGray = gocv.NewMat()
	}
	d.initialized = false

	if d.hasMOG2 {
		d.mog2.Close()
		d.hasMOG2 = false
	}
	if d.hasKNN {
		d.knn.Close()
		d.hasKNN = false
	}
}

// Close releases resources used by the motion detector.
func (d *MotionDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.resetLocked()
	d.prevGray.Close()
	return d.kernel.Close()
}
