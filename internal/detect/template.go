package detect

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// TemplateDetector finds a reference image inside a frame using normalized
// cross-correlation.
type TemplateDetector struct {
	threshold float64
	templ     gocv.Mat
	path      string
	loaded    bool
	mu        sync.Mutex
}

// NewTemplateDetector creates a detector with no template loaded.
func NewTemplateDetector(threshold float64) *TemplateDetector {
	return &TemplateDetector{
		threshold: clamp01(threshold),
		templ:     gocv.NewMat(),
	}
}

// Load reads the reference image at path. Loading the path already in use
// is a no-op.
func (d *TemplateDetector) Load(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded && d.path == path {
		return nil
	}

	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return fmt.Errorf("load template %s: unreadable image", path)
	}
	defer img.Close()

	d.setLocked(img)
	d.path = path
	return nil
}

// SetTemplate uses a copy of mat (BGR or gray) as the reference image.
func (d *TemplateDetector) SetTemplate(mat gocv.Mat) error {
	if mat.Empty() {
		return ErrNoTemplate
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.setLocked(mat)
	d.path = ""
	return nil
}

func (d *TemplateDetector) setLocked(mat gocv.Mat) {
	gray := toGray(mat)
	d.templ.Close()
	d.templ = gray
	d.loaded = true
}

// Loaded reports whether a reference image is available.
func (d *TemplateDetector) Loaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Path returns the file the template was loaded from, if any.
func (d *TemplateDetector) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.path
}

// SetThreshold sets the minimum match score, clamped to [0,1].
func (d *TemplateDetector) SetThreshold(t float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = clamp01(t)
}

// Detect returns the best match. A not-found result still carries the best
// score as its confidence.
func (d *TemplateDetector) Detect(frame *gocv.Mat) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	scores, err := d.matchLocked(frame)
	if err != nil {
		return Result{}, err
	}
	defer scores.Close()

	_, maxVal, _, maxLoc := gocv.MinMaxLoc(scores)
	confidence := float64(maxVal)

	w, h := d.templ.Cols(), d.templ.Rows()
	box := image.Rect(maxLoc.X, maxLoc.Y, maxLoc.X+w, maxLoc.Y+h)

	if confidence < d.threshold {
		return Result{Confidence: confidence}, nil
	}

	return Result{
		Found:      true,
		Center:     image.Point{X: maxLoc.X + w/2, Y: maxLoc.Y + h/2},
		Confidence: confidence,
		Box:        box,
	}, nil
}

// DetectAll returns a Result for every location scoring at or above the
// threshold, in row-major order.
func (d *TemplateDetector) DetectAll(frame *gocv.Mat) ([]Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	scores, err := d.matchLocked(frame)
	if err != nil {
		return nil, err
	}
	defer scores.Close()

	w, h := d.templ.Cols(), d.templ.Rows()
	var results []Result
	for y := 0; y < scores.Rows(); y++ {
		for x := 0; x < scores.Cols(); x++ {
			score := float64(scores.GetFloatAt(y, x))
			if score < d.threshold {
				continue
			}
			results = append(results, Result{
				Found:      true,
				Center:     image.Point{X: x + w/2, Y: y + h/2},
				Confidence: clamp01(score),
				Box:        image.Rect(x, y, x+w, y+h),
			})
		}
	}
	return results, nil
}

func (d *TemplateDetector) matchLocked(frame *gocv.Mat) (gocv.Mat, error) {
	if !d.loaded {
		return gocv.Mat{}, ErrNoTemplate
	}
	if frame == nil || frame.Empty() {
		return gocv.Mat{}, fmt.Errorf("template match: empty frame")
	}
	if frame.Cols() < d.templ.Cols() || frame.Rows() < d.templ.Rows() {
		return gocv.Mat{}, fmt.Errorf("template match: frame %dx%d smaller than template %dx%d",
			frame.Cols(), frame.Rows(), d.templ.Cols(), d.templ.Rows())
	}

	gray := toGray(*frame)
	defer gray.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	scores := gocv.NewMat()
	gocv.MatchTemplate(gray, d.templ, &scores, gocv.TmCcoeffNormed, mask)
	return scores, nil
}

// Reset is a no-op; template matching keeps no per-frame state.
func (d *TemplateDetector) Reset() {}

// Close releases the reference image.
func (d *TemplateDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.loaded = false
	return d.templ.Close()
}

func toGray(src gocv.Mat) gocv.Mat {
	gray := gocv.NewMat()
	if src.Channels() > 1 {
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	} else {
		src.CopyTo(&gray)
	}
	return gray
}
