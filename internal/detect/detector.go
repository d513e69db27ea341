// Package detect locates a target inside a captured frame using template
// matching, color masking or motion analysis.
package detect

import (
	"errors"
	"fmt"
	"image"
	"strings"

	"gocv.io/x/gocv"
)

var (
	// ErrNoTemplate is returned when template matching runs without a
	// reference image.
	ErrNoTemplate = errors.New("no template loaded")
	// ErrNotConfigured is returned when no detection method has been chosen.
	ErrNotConfigured = errors.New("detection method not configured")
	// ErrUnknownMethod is returned when parsing an unrecognised method name.
	ErrUnknownMethod = errors.New("unknown detection method")
)

// Detector defines the interface for a single detection strategy.
type Detector interface {
	// Detect analyzes a BGR frame. A frame without a match is not an error;
	// it yields a Result with Found false.
	Detect(frame *gocv.Mat) (Result, error)

	// Reset clears any state carried between frames.
	Reset()

	// Close releases any resources held by the detector.
	Close() error
}

// Method identifies the active detection strategy.
type Method int

const (
	MethodNone Method = iota
	MethodTemplate
	MethodColor
	MethodMotion
	// MethodCustom runs a caller-supplied Detector.
	MethodCustom
)

func (m Method) String() string {
	switch m {
	case MethodTemplate:
		return "template"
	case MethodColor:
		return "color"
	case MethodMotion:
		return "motion"
	case MethodCustom:
		return "custom"
	default:
		return "none"
	}
}

// ParseMethod maps a configuration name onto a Method and, for the motion
// variants, the motion mode it implies.
func ParseMethod(name string) (Method, MotionMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "template":
		return MethodTemplate, MotionFrameDiff, nil
	case "color", "colour":
		return MethodColor, MotionFrameDiff, nil
	case "motion", "mog2":
		return MethodMotion, MotionMOG2, nil
	case "knn":
		return MethodMotion, MotionKNN, nil
	case "frame_diff", "framediff":
		return MethodMotion, MotionFrameDiff, nil
	}
	return MethodNone, MotionFrameDiff, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
}

// Result is the outcome of detecting on one frame. Coordinates are local to
// the frame until Translate is applied.
type Result struct {
	Found      bool
	Center     image.Point
	Confidence float64
	Box        image.Rectangle

	// Objects lists every qualifying region. Only motion fills it.
	Objects []image.Rectangle
}

// Boxes returns the candidate boxes for target selection.
func (r Result) Boxes() []image.Rectangle {
	if len(r.Objects) > 0 {
		return r.Objects
	}
	if r.Found && !r.Box.Empty() {
		return []image.Rectangle{r.Box}
	}
	return nil
}

// Translate shifts every coordinate in r by offset.
func (r Result) Translate(offset image.Point) Result {
	out := r
	out.Center = r.Center.Add(offset)
	out.Box = r.Box.Add(offset)
	if len(r.Objects) > 0 {
		out.Objects = make([]image.Rectangle, len(r.Objects))
		for i, o := range r.Objects {
			out.Objects[i] = o.Add(offset)
		}
	}
	return out
}

func centerOf(r image.Rectangle) image.Point {
	return image.Point{X: r.Min.X + r.Dx()/2, Y: r.Min.Y + r.Dy()/2}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
