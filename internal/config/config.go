// Package config loads and validates sightline settings from INI, YAML or
// JSON files.
package config

import (
	"image"
	"path/filepath"
	"strings"
	"time"

	"github.com/ayusman/sightline/internal/actuate"
	"github.com/ayusman/sightline/internal/detect"
)

// Config is the full application configuration. Each group maps to an INI
// section or a top-level YAML/JSON key.
type Config struct {
	Capture       Capture       `json:"capture" yaml:"capture"`
	CaptureRegion CaptureRegion `json:"capture_region" yaml:"capture_region"`
	Tracking      Tracking      `json:"tracking" yaml:"tracking"`
	Detection     Detection     `json:"detection" yaml:"detection"`
	Mouse         Mouse         `json:"mouse" yaml:"mouse"`
	Visual        Visual        `json:"visual" yaml:"visual"`
	Server        Server        `json:"server" yaml:"server"`
	Hooks         Hooks         `json:"hooks" yaml:"hooks"`
	Store         Store         `json:"store" yaml:"store"`
}

// Capture selects where frames come from: a display ("screen") or a video
// capture device such as a capture card ("device").
type Capture struct {
	Source  string `json:"source" yaml:"source"`
	Display int    `json:"display" yaml:"display"`
	Device  int    `json:"device" yaml:"device"`
}

// CaptureRegion is the screen area to watch. A zero width or height means
// the full screen.
type CaptureRegion struct {
	Left   int `json:"left" yaml:"left"`
	Top    int `json:"top" yaml:"top"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

type Tracking struct {
	FPS                 int     `json:"fps" yaml:"fps"`
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`
	SmoothMovement      bool    `json:"smooth_movement" yaml:"smooth_movement"`
	MovementSpeed       float64 `json:"movement_speed" yaml:"movement_speed"`
}

type Detection struct {
	// Method is one of template, color, motion, mog2, knn or frame_diff.
	Method       string `json:"method" yaml:"method"`
	TemplatePath string `json:"template_path" yaml:"template_path"`

	// ColorLower and ColorUpper hold three channel bounds each. Empty means
	// no color range is configured.
	ColorLower []float64 `json:"color_lower,omitempty" yaml:"color_lower,omitempty"`
	ColorUpper []float64 `json:"color_upper,omitempty" yaml:"color_upper,omitempty"`
	ColorSpace string    `json:"color_space" yaml:"color_space"`

	MinArea             int     `json:"min_area" yaml:"min_area"`
	BackgroundHistory   int     `json:"background_history" yaml:"background_history"`
	BackgroundThreshold float64 `json:"background_threshold" yaml:"background_threshold"`
	MotionThreshold     int     `json:"motion_threshold" yaml:"motion_threshold"`
	DilateIterations    int     `json:"dilate_iterations" yaml:"dilate_iterations"`
	BlurKernelSize      int     `json:"blur_kernel_size" yaml:"blur_kernel_size"`
}

// Mouse timings are in seconds.
type Mouse struct {
	AutoClick        bool    `json:"auto_click" yaml:"auto_click"`
	ClickDelay       float64 `json:"click_delay" yaml:"click_delay"`
	MoveDuration     float64 `json:"move_duration" yaml:"move_duration"`
	EnableClick      bool    `json:"enable_click" yaml:"enable_click"`
	ThrottleInterval float64 `json:"throttle_interval" yaml:"throttle_interval"`
}

type Visual struct {
	CircleRadius  int    `json:"circle_radius" yaml:"circle_radius"`
	ShowCrosshair bool   `json:"show_crosshair" yaml:"show_crosshair"`
	SaveDir       string `json:"save_dir" yaml:"save_dir"`
}

type Server struct {
	// Addr is the control panel listen address. Empty disables the server.
	Addr string `json:"addr" yaml:"addr"`
}

type Hooks struct {
	Dir       string `json:"dir" yaml:"dir"`
	TimeoutMs int    `json:"timeout_ms" yaml:"timeout_ms"`
}

type Store struct {
	// Path is the SQLite database file. Empty disables session history.
	Path string `json:"path" yaml:"path"`
}

// Capture sources.
const (
	SourceScreen = "screen"
	SourceDevice = "device"
)

// Default returns a configuration with every field set.
func Default() *Config {
	return &Config{
		Capture: Capture{Source: SourceScreen},
		Tracking: Tracking{
			FPS:                 30,
			ConfidenceThreshold: 0.8,
			SmoothMovement:      true,
			MovementSpeed:       0.3,
		},
		Detection: Detection{
			Method:              "template",
			TemplatePath:        "templates/target_object.png",
			ColorSpace:          string(detect.SpaceHSV),
			MinArea:             500,
			BackgroundHistory:   50,
			BackgroundThreshold: 16,
			MotionThreshold:     25,
			DilateIterations:    2,
			BlurKernelSize:      21,
		},
		Mouse: Mouse{
			ClickDelay:       0.1,
			MoveDuration:     0.1,
			EnableClick:      true,
			ThrottleInterval: 0.2,
		},
		Visual: Visual{
			CircleRadius:  30,
			ShowCrosshair: true,
			SaveDir:       ".",
		},
		Hooks: Hooks{
			Dir:       "hooks",
			TimeoutMs: 5000,
		},
	}
}

// Region returns the capture region as a rectangle. It is empty when the
// full screen should be captured.
func (c *Config) Region() image.Rectangle {
	r := c.CaptureRegion
	if r.Width <= 0 || r.Height <= 0 {
		return image.Rectangle{}
	}
	return image.Rect(r.Left, r.Top, r.Left+r.Width, r.Top+r.Height)
}

// MouseSettings converts the tracking and mouse groups for the actuator.
func (c *Config) MouseSettings() actuate.MouseSettings {
	return actuate.MouseSettings{
		MovementSpeed:    c.Tracking.MovementSpeed,
		MoveDuration:     seconds(c.Mouse.MoveDuration),
		SmoothMovement:   c.Tracking.SmoothMovement,
		AutoClick:        c.Mouse.AutoClick,
		EnableClick:      c.Mouse.EnableClick,
		ClickDelay:       seconds(c.Mouse.ClickDelay),
		ThrottleInterval: seconds(c.Mouse.ThrottleInterval),
	}
}

// MotionParams converts the detection group for the motion detector. The
// mode follows Method; non-motion methods get the default mode.
func (c *Config) MotionParams() detect.MotionParams {
	p := detect.DefaultMotionParams()
	if m, mode, err := detect.ParseMethod(c.Detection.Method); err == nil && m == detect.MethodMotion {
		p.Mode = mode
	}
	p.MinArea = float64(c.Detection.MinArea)
	p.DiffThreshold = float64(c.Detection.MotionThreshold)
	p.DilateIterations = c.Detection.DilateIterations
	p.BlurSize = c.Detection.BlurKernelSize
	p.History = c.Detection.BackgroundHistory
	p.VarThreshold = c.Detection.BackgroundThreshold
	return p
}

// ColorParams returns the configured color range, if any.
func (c *Config) ColorParams() (detect.ColorParams, bool) {
	d := c.Detection
	if len(d.ColorLower) != 3 || len(d.ColorUpper) != 3 {
		return detect.ColorParams{}, false
	}
	p := detect.ColorParams{Space: detect.ColorSpace(strings.ToUpper(d.ColorSpace))}
	copy(p.Lower[:], d.ColorLower)
	copy(p.Upper[:], d.ColorUpper)
	return p, true
}

// TemplatePathFor resolves the template path against the directory of the
// config file it was loaded from. Absolute paths are returned unchanged.
func (c *Config) TemplatePathFor(cfgPath string) string {
	p := c.Detection.TemplatePath
	if p == "" || filepath.IsAbs(p) || cfgPath == "" {
		return p
	}
	return filepath.Join(filepath.Dir(cfgPath), p)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
