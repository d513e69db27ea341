package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for files that are not INI, YAML or JSON.
var ErrUnsupportedFormat = errors.New("unsupported config format")

// Load reads path, merging its values over Default, and validates the
// result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Printf("config: %s not found, using defaults", path)
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ini":
		err = decodeINI(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save validates cfg and writes it to path in the format its extension names.
func Save(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	var (
		data []byte
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".ini":
		return encodeINI(cfg).SaveTo(path)
	case ".yaml", ".yml":
		data, err = yaml.Marshal(cfg)
	case ".json":
		data, err = json.MarshalIndent(cfg, "", "  ")
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Get looks up a dotted key such as "tracking.fps". Numbers come back as
// float64.
func Get(cfg *Config, key string) (any, bool) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, false
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}

	for _, part := range strings.Split(key, ".") {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, false
		}
		if v, ok = m[part]; !ok {
			return nil, false
		}
	}
	return v, true
}

func (c *Config) normalize() {
	c.Capture.Source = strings.ToLower(strings.TrimSpace(c.Capture.Source))
	c.Detection.Method = strings.ToLower(strings.TrimSpace(c.Detection.Method))
	c.Detection.ColorSpace = strings.ToUpper(strings.TrimSpace(c.Detection.ColorSpace))
}

// iniReader reads typed keys from an INI file. Absent keys leave the
// destination unchanged; the first unparsable value is kept in err.
type iniReader struct {
	f   *ini.File
	err error
}

func (r *iniReader) key(section, name string) (*ini.Key, bool) {
	if r.err != nil {
		return nil, false
	}
	sec := r.f.Section(section)
	if !sec.HasKey(name) {
		return nil, false
	}
	return sec.Key(name), true
}

func (r *iniReader) fail(section, name, value, want string) {
	r.err = invalid(section+"."+name, value, "not "+want)
}

func (r *iniReader) readInt(section, name string, dst *int) {
	if k, ok := r.key(section, name); ok {
		v, err := k.Int()
		if err != nil {
			r.fail(section, name, k.String(), "an integer")
			return
		}
		*dst = v
	}
}

func (r *iniReader) readFloat(section, name string, dst *float64) {
	if k, ok := r.key(section, name); ok {
		v, err := k.Float64()
		if err != nil {
			r.fail(section, name, k.String(), "a number")
			return
		}
		*dst = v
	}
}

func (r *iniReader) readBool(section, name string, dst *bool) {
	if k, ok := r.key(section, name); ok {
		v, err := k.Bool()
		if err != nil {
			r.fail(section, name, k.String(), "a boolean")
			return
		}
		*dst = v
	}
}

func (r *iniReader) readString(section, name string, dst *string) {
	if k, ok := r.key(section, name); ok {
		*dst = k.String()
	}
}

func (r *iniReader) readFloats(section, name string, dst *[]float64) {
	if k, ok := r.key(section, name); ok {
		v, err := k.StrictFloat64s(",")
		if err != nil {
			r.fail(section, name, k.String(), "a comma separated list of numbers")
			return
		}
		*dst = v
	}
}

func decodeINI(data []byte, cfg *Config) error {
	f, err := ini.Load(data)
	if err != nil {
		return err
	}
	r := &iniReader{f: f}

	src := &cfg.Capture
	r.readString("capture", "source", &src.Source)
	r.readInt("capture", "display", &src.Display)
	r.readInt("capture", "device", &src.Device)

	cr := &cfg.CaptureRegion
	r.readInt("capture_region", "left", &cr.Left)
	r.readInt("capture_region", "top", &cr.Top)
	r.readInt("capture_region", "width", &cr.Width)
	r.readInt("capture_region", "height", &cr.Height)

	t := &cfg.Tracking
	r.readInt("tracking", "fps", &t.FPS)
	r.readFloat("tracking", "confidence_threshold", &t.ConfidenceThreshold)
	r.readBool("tracking", "smooth_movement", &t.SmoothMovement)
	r.readFloat("tracking", "movement_speed", &t.MovementSpeed)

	d := &cfg.Detection
	r.readString("detection", "method", &d.Method)
	r.readString("detection", "template_path", &d.TemplatePath)
	r.readFloats("detection", "color_lower", &d.ColorLower)
	r.readFloats("detection", "color_upper", &d.ColorUpper)
	r.readString("detection", "color_space", &d.ColorSpace)
	r.readInt("detection", "min_area", &d.MinArea)
	r.readInt("detection", "background_history", &d.BackgroundHistory)
	r.readFloat("detection", "background_threshold", &d.BackgroundThreshold)
	r.readInt("detection", "motion_threshold", &d.MotionThreshold)
	r.readInt("detection", "dilate_iterations", &d.DilateIterations)
	r.readInt("detection", "blur_kernel_size", &d.BlurKernelSize)

	m := &cfg.Mouse
	r.readBool("mouse", "auto_click", &m.AutoClick)
	r.readFloat("mouse", "click_delay", &m.ClickDelay)
	r.readFloat("mouse", "move_duration", &m.MoveDuration)
	r.readBool("mouse", "enable_click", &m.EnableClick)
	r.readFloat("mouse", "throttle_interval", &m.ThrottleInterval)

	v := &cfg.Visual
	r.readInt("visual", "circle_radius", &v.CircleRadius)
	r.readBool("visual", "show_crosshair", &v.ShowCrosshair)
	r.readString("visual", "save_dir", &v.SaveDir)

	r.readString("server", "addr", &cfg.Server.Addr)
	r.readString("hooks", "dir", &cfg.Hooks.Dir)
	r.readInt("hooks", "timeout_ms", &cfg.Hooks.TimeoutMs)
	r.readString("store", "path", &cfg.Store.Path)
	return r.err
}

func encodeINI(cfg *Config) *ini.File {
	f := ini.Empty()
	set := func(section, key, value string) {
		f.Section(section).Key(key).SetValue(value)
	}
	itoa := strconv.Itoa
	ftoa := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	btoa := strconv.FormatBool

	set("capture", "source", cfg.Capture.Source)
	set("capture", "display", itoa(cfg.Capture.Display))
	set("capture", "device", itoa(cfg.Capture.Device))

	r := cfg.CaptureRegion
	set("capture_region", "left", itoa(r.Left))
	set("capture_region", "top", itoa(r.Top))
	set("capture_region", "width", itoa(r.Width))
	set("capture_region", "height", itoa(r.Height))

	t := cfg.Tracking
	set("tracking", "fps", itoa(t.FPS))
	set("tracking", "confidence_threshold", ftoa(t.ConfidenceThreshold))
	set("tracking", "smooth_movement", btoa(t.SmoothMovement))
	set("tracking", "movement_speed", ftoa(t.MovementSpeed))

	d := cfg.Detection
	set("detection", "method", d.Method)
	set("detection", "template_path", d.TemplatePath)
	if len(d.ColorLower) > 0 {
		set("detection", "color_lower", joinFloats(d.ColorLower))
	}
	if len(d.ColorUpper) > 0 {
		set("detection", "color_upper", joinFloats(d.ColorUpper))
	}
	set("detection", "color_space", d.ColorSpace)
	set("detection", "min_area", itoa(d.MinArea))
	set("detection", "background_history", itoa(d.BackgroundHistory))
	set("detection", "background_threshold", ftoa(d.BackgroundThreshold))
	set("detection", "motion_threshold", itoa(d.MotionThreshold))
	set("detection", "dilate_iterations", itoa(d.DilateIterations))
	set("detection", "blur_kernel_size", itoa(d.BlurKernelSize))

	m := cfg.Mouse
	set("mouse", "auto_click", btoa(m.AutoClick))
	set("mouse", "click_delay", ftoa(m.ClickDelay))
	set("mouse", "move_duration", ftoa(m.MoveDuration))
	set("mouse", "enable_click", btoa(m.EnableClick))
	set("mouse", "throttle_interval", ftoa(m.ThrottleInterval))

	v := cfg.Visual
	set("visual", "circle_radius", itoa(v.CircleRadius))
	set("visual", "show_crosshair", btoa(v.ShowCrosshair))
	set("visual", "save_dir", v.SaveDir)

	set("server", "addr", cfg.Server.Addr)
	set("hooks", "dir", cfg.Hooks.Dir)
	set("hooks", "timeout_ms", itoa(cfg.Hooks.TimeoutMs))
	set("store", "path", cfg.Store.Path)
	return f
}

func joinFloats(vs []float64) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}
