package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s = %v: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

var (
	validMethods = []string{"template", "color", "motion", "mog2", "knn", "frame_diff"}
	validSpaces  = []string{"HSV", "RGB", "BGR"}
)

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	src := c.Capture
	if src.Source != SourceScreen && src.Source != SourceDevice {
		return invalid("capture.source", src.Source, "must be screen or device")
	}
	if src.Display < 0 {
		return invalid("capture.display", src.Display, "must be non-negative")
	}
	if src.Device < 0 {
		return invalid("capture.device", src.Device, "must be non-negative")
	}

	r := c.CaptureRegion
	for _, f := range []struct {
		name string
		v    int
	}{
		{"capture_region.left", r.Left},
		{"capture_region.top", r.Top},
		{"capture_region.width", r.Width},
		{"capture_region.height", r.Height},
	} {
		if f.v < 0 {
			return invalid(f.name, f.v, "must be non-negative")
		}
	}

	t := c.Tracking
	if t.FPS < 1 || t.FPS > 120 {
		return invalid("tracking.fps", t.FPS, "must be 1-120")
	}
	if t.ConfidenceThreshold < 0 || t.ConfidenceThreshold > 1 {
		return invalid("tracking.confidence_threshold", t.ConfidenceThreshold, "must be 0.0-1.0")
	}
	if t.MovementSpeed < 0 || t.MovementSpeed > 1 {
		return invalid("tracking.movement_speed", t.MovementSpeed, "must be 0.0-1.0")
	}

	d := c.Detection
	if !slices.Contains(validMethods, strings.ToLower(d.Method)) {
		return invalid("detection.method", d.Method, "must be one of "+strings.Join(validMethods, ", "))
	}
	if !slices.Contains(validSpaces, strings.ToUpper(d.ColorSpace)) {
		return invalid("detection.color_space", d.ColorSpace, "must be one of "+strings.Join(validSpaces, ", "))
	}
	if err := validateColor(d); err != nil {
		return err
	}
	if d.MinArea < 0 {
		return invalid("detection.min_area", d.MinArea, "must be non-negative")
	}
	if d.MotionThreshold < 0 || d.MotionThreshold > 255 {
		return invalid("detection.motion_threshold", d.MotionThreshold, "must be 0-255")
	}
	if d.DilateIterations < 0 {
		return invalid("detection.dilate_iterations", d.DilateIterations, "must be non-negative")
	}
	if d.BlurKernelSize < 1 || d.BlurKernelSize%2 == 0 {
		return invalid("detection.blur_kernel_size", d.BlurKernelSize, "must be a positive odd integer")
	}
	if d.BackgroundHistory < 1 {
		return invalid("detection.background_history", d.BackgroundHistory, "must be positive")
	}
	if d.BackgroundThreshold < 0 {
		return invalid("detection.background_threshold", d.BackgroundThreshold, "must be non-negative")
	}

	m := c.Mouse
	if m.ClickDelay < 0 {
		return invalid("mouse.click_delay", m.ClickDelay, "must be >= 0")
	}
	if m.MoveDuration < 0 {
		return invalid("mouse.move_duration", m.MoveDuration, "must be >= 0")
	}
	if m.ThrottleInterval < 0 {
		return invalid("mouse.throttle_interval", m.ThrottleInterval, "must be >= 0")
	}

	if c.Visual.CircleRadius <= 0 {
		return invalid("visual.circle_radius", c.Visual.CircleRadius, "must be positive")
	}
	if c.Hooks.TimeoutMs < 0 {
		return invalid("hooks.timeout_ms", c.Hooks.TimeoutMs, "must be non-negative")
	}
	return nil
}

func validateColor(d Detection) error {
	if len(d.ColorLower) == 0 && len(d.ColorUpper) == 0 {
		return nil
	}
	if len(d.ColorLower) != 3 {
		return invalid("detection.color_lower", d.ColorLower, "must have three values")
	}
	if len(d.ColorUpper) != 3 {
		return invalid("detection.color_upper", d.ColorUpper, "must have three values")
	}
	for i := range d.ColorLower {
		if d.ColorLower[i] > d.ColorUpper[i] {
			return invalid("detection.color_lower", d.ColorLower, fmt.Sprintf("channel %d above upper bound", i))
		}
	}
	return nil
}

func invalid(field string, value any, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}
