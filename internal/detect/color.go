package detect

import (
	"fmt"
	"image"
	"strings"
	"sync"

	"gocv.io/x/gocv"
)

// ColorSpace selects the space color bounds are expressed in.
type ColorSpace string

const (
	SpaceHSV ColorSpace = "HSV"
	SpaceRGB ColorSpace = "RGB"
	SpaceBGR ColorSpace = "BGR"
)

// minColorFraction is the share of the frame a blob must cover to reach
// full confidence.
const minColorFraction = 0.01

// ColorParams bounds the pixels that belong to the target.
type ColorParams struct {
	Lower [3]float64
	Upper [3]float64
	Space ColorSpace
}

// Preset HSV ranges.
var colorPresets = map[string]ColorParams{
	"red":   {Lower: [3]float64{0, 100, 100}, Upper: [3]float64{10, 255, 255}, Space: SpaceHSV},
	"blue":  {Lower: [3]float64{100, 100, 100}, Upper: [3]float64{130, 255, 255}, Space: SpaceHSV},
	"green": {Lower: [3]float64{40, 100, 100}, Upper: [3]float64{80, 255, 255}, Space: SpaceHSV},
}

// ColorPreset returns the named preset range.
func ColorPreset(name string) (ColorParams, bool) {
	p, ok := colorPresets[strings.ToLower(name)]
	return p, ok
}

// Validate checks the color space and that each lower bound is below its
// upper bound.
func (p ColorParams) Validate() error {
	switch p.Space {
	case SpaceHSV, SpaceRGB, SpaceBGR:
	default:
		return fmt.Errorf("unsupported color space %q", p.Space)
	}
	for i := range p.Lower {
		if p.Lower[i] > p.Upper[i] {
			return fmt.Errorf("color bound %d: lower %v above upper %v", i, p.Lower[i], p.Upper[i])
		}
	}
	return nil
}

// ColorDetector finds the largest blob of pixels within a color range.
type ColorDetector struct {
	params    ColorParams
	threshold float64
	mu        sync.Mutex
}

// NewColorDetector creates a color detector for params.
func NewColorDetector(params ColorParams, threshold float64) *ColorDetector {
	if params.Space == "" {
		params.Space = SpaceHSV
	}
	return &ColorDetector{
		params:    params,
		threshold: clamp01(threshold),
	}
}

// SetParams replaces the color range.
func (d *ColorDetector) SetParams(params ColorParams) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if params.Space == "" {
		params.Space = SpaceHSV
	}
	d.params = params
}

// Params returns the color range in use.
func (d *ColorDetector) Params() ColorParams {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.params
}

// SetThreshold sets the minimum confidence, clamped to [0,1].
func (d *ColorDetector) SetThreshold(t float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = clamp01(t)
}

// Detect masks the frame to the color range and reports the centroid of the
// largest contour. Confidence grows with blob area and saturates once the
// blob covers 1% of the frame.
func (d *ColorDetector) Detect(frame *gocv.Mat) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return Result{}, fmt.Errorf("color detect: empty frame")
	}

	converted := gocv.NewMat()
	defer converted.Close()

	switch d.params.Space {
	case SpaceHSV:
		gocv.CvtColor(*frame, &converted, gocv.ColorBGRToHSV)
	case SpaceRGB:
		gocv.CvtColor(*frame, &converted, gocv.ColorBGRToRGB)
	default:
		frame.CopyTo(&converted)
	}

	lower := gocv.NewScalar(d.params.Lower[0], d.params.Lower[1], d.params.Lower[2], 0)
	upper := gocv.NewScalar(d.params.Upper[0], d.params.Upper[1], d.params.Upper[2], 0)

	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(converted, lower, upper, &mask)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var (
		best    moments
		bestBox image.Rectangle
		found   bool
	)
	for _, contour := range contours.ToPoints() {
		m := polygonMoments(contour)
		if !found || m.area() > best.area() {
			best = m
			bestBox = boundingBox(contour)
			found = true
		}
	}
	if !found {
		return Result{}, nil
	}

	total := float64(frame.Rows() * frame.Cols())
	confidence := clamp01(best.area() / (minColorFraction * total))

	center, ok := best.centroid()
	if !ok || confidence < d.threshold {
		return Result{Confidence: confidence}, nil
	}

	return Result{
		Found:      true,
		Center:     center,
		Confidence: confidence,
		Box:        bestBox,
	}, nil
}

// Reset is a no-op; color masking keeps no per-frame state.
func (d *ColorDetector) Reset() {}

func (d *ColorDetector) Close() error {
	return nil
}

// boundingBox returns the inclusive pixel bounds of pts as a half-open
// rectangle.
func boundingBox(pts []image.Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	r := image.Rectangle{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		if p.X < r.Min.X {
			r.Min.X = p.X
		}
		if p.Y < r.Min.Y {
			r.Min.Y = p.Y
		}
		if p.X > r.Max.X {
			r.Max.X = p.X
		}
		if p.Y > r.Max.Y {
			r.Max.Y = p.Y
		}
	}
	r.Max = r.Max.Add(image.Pt(1, 1))
	return r
}
