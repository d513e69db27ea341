package detect

import (
	"fmt"
	"sort"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultConfidenceThreshold is the minimum confidence for a detection.
const DefaultConfidenceThreshold = 0.8

// Engine owns one detector per strategy and routes frames to the active one.
// Control calls may come from any goroutine; they take effect on the next
// Detect.
type Engine struct {
	mu        sync.Mutex
	method    Method
	threshold float64

	template *TemplateDetector
	color    *ColorDetector
	motion   *MotionDetector
	custom   Detector

	// colorSet is true once a color range has been chosen.
	colorSet bool
}

// NewEngine creates an engine with no method selected.
func NewEngine(threshold float64) *Engine {
	threshold = clamp01(threshold)
	return &Engine{
		threshold: threshold,
		template:  NewTemplateDetector(threshold),
		color:     NewColorDetector(colorPresets["red"], threshold),
		motion:    NewMotionDetector(DefaultMotionParams(), threshold),
	}
}

// SetConfidenceThreshold updates the threshold for every strategy.
func (e *Engine) SetConfidenceThreshold(t float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.threshold = clamp01(t)
	e.template.SetThreshold(e.threshold)
	e.color.SetThreshold(e.threshold)
	e.motion.SetThreshold(e.threshold)
}

// ConfidenceThreshold returns the current threshold.
func (e *Engine) ConfidenceThreshold() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.threshold
}

// UseTemplate loads path and switches to template matching.
func (e *Engine) UseTemplate(path string) error {
	if err := e.template.Load(path); err != nil {
		return err
	}
	e.switchTo(MethodTemplate)
	return nil
}

// UseTemplateMat switches to template matching against mat.
func (e *Engine) UseTemplateMat(mat gocv.Mat) error {
	if err := e.template.SetTemplate(mat); err != nil {
		return err
	}
	e.switchTo(MethodTemplate)
	return nil
}

// UseColor switches to color detection with params.
func (e *Engine) UseColor(params ColorParams) error {
	if params.Space == "" {
		params.Space = SpaceHSV
	}
	if err := params.Validate(); err != nil {
		return err
	}
	e.color.SetParams(params)

	e.mu.Lock()
	e.colorSet = true
	e.mu.Unlock()

	e.switchTo(MethodColor)
	return nil
}

// UseMotion switches to motion detection with params. Changing the motion
// mode discards the previous model.
func (e *Engine) UseMotion(params MotionParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	e.motion.SetParams(params)
	e.switchTo(MethodMotion)
	return nil
}

// UseDetector switches to a caller-supplied strategy.
func (e *Engine) UseDetector(d Detector) {
	e.mu.Lock()
	e.custom = d
	e.mu.Unlock()

	e.switchTo(MethodCustom)
}

// ResetMotion discards the motion baseline and background model.
func (e *Engine) ResetMotion() {
	e.motion.Reset()
}

// Reset clears the per-frame state of the active strategy.
func (e *Engine) Reset() {
	if d, err := e.active(); err == nil {
		d.Reset()
	}
}

func (e *Engine) switchTo(m Method) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.method == MethodMotion && m != MethodMotion {
		e.motion.Reset()
	}
	e.method = m
}

// Method returns the active strategy.
func (e *Engine) Method() Method {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.method
}

// MotionParams returns the motion tuning in use.
func (e *Engine) MotionParams() MotionParams {
	return e.motion.Params()
}

// Configured reports whether a usable method is selected.
func (e *Engine) Configured() error {
	e.mu.Lock()
	method := e.method
	e.mu.Unlock()

	switch method {
	case MethodNone:
		return ErrNotConfigured
	case MethodTemplate:
		if !e.template.Loaded() {
			return ErrNoTemplate
		}
	}
	return nil
}

// Cycle moves to the next usable method in template, color, motion order
// and returns it. Template is skipped when no reference image is loaded.
func (e *Engine) Cycle() Method {
	order := []Method{MethodTemplate, MethodColor, MethodMotion}

	current := e.Method()
	start := 0
	for i, m := range order {
		if m == current {
			start = i + 1
			break
		}
	}

	for i := 0; i < len(order); i++ {
		next := order[(start+i)%len(order)]
		if next == MethodTemplate && !e.template.Loaded() {
			continue
		}
		e.switchTo(next)
		return next
	}
	return current
}

// Detect runs the active strategy on frame.
func (e *Engine) Detect(frame *gocv.Mat) (Result, error) {
	d, err := e.active()
	if err != nil {
		return Result{}, err
	}
	return d.Detect(frame)
}

// DetectAll returns one result per template instance at or above the
// threshold, best first. Overlapping matches of the same instance collapse
// into the highest scoring one. Other strategies return at most their
// primary result.
func (e *Engine) DetectAll(frame *gocv.Mat) ([]Result, error) {
	if e.Method() != MethodTemplate {
		res, err := e.Detect(frame)
		if err != nil || !res.Found {
			return nil, err
		}
		return []Result{res}, nil
	}

	all, err := e.template.DetectAll(frame)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].Confidence > all[j].Confidence })

	var kept []Result
	for _, r := range all {
		overlaps := false
		for _, k := range kept {
			if r.Box.Overlaps(k.Box) {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func (e *Engine) active() (Detector, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.method {
	case MethodTemplate:
		return e.template, nil
	case MethodColor:
		return e.color, nil
	case MethodMotion:
		return e.motion, nil
	case MethodCustom:
		if e.custom != nil {
			return e.custom, nil
		}
	}
	return nil, ErrNotConfigured
}

// Describe returns a one-line summary of the active strategy.
func (e *Engine) Describe() string {
	switch m := e.Method(); m {
	case MethodTemplate:
		return fmt.Sprintf("template (%s)", e.template.Path())
	case MethodColor:
		p := e.color.Params()
		return fmt.Sprintf("color %s %v-%v", p.Space, p.Lower, p.Upper)
	case MethodMotion:
		return fmt.Sprintf("motion (%s)", e.motion.Params().Mode)
	default:
		return m.String()
	}
}

// Close releases every strategy.
func (e *Engine) Close() error {
	e.template.Close()
	e.color.Close()
	return e.motion.Close()
}
