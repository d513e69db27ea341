package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ayusman/sightline/internal/config"
	"github.com/ayusman/sightline/internal/detect"
)

// options are the parsed command line flags.
type options struct {
	configPath   string
	display      int
	device       int
	template     string
	color        string
	motion       bool
	motionMethod string
	minArea      int
	motionThresh int
	region       string
	fullScreen   bool
	fps          int
	autoClick    bool
	verbose      bool
	testDetect   bool
	saveTest     bool
	serve        string
	tray         bool
	noShortcuts  bool
	dbPath       string
	hooksDir     string
}

func parseFlags(args []string, out io.Writer) (*options, error) {
	fs := flag.NewFlagSet("sightline", flag.ContinueOnError)
	fs.SetOutput(out)

	o := &options{}
	fs.StringVar(&o.configPath, "config", "config.json", "configuration file (.json, .yaml or .ini)")
	fs.IntVar(&o.display, "display", -1, "display index to capture (overrides config)")
	fs.IntVar(&o.device, "device", -1, "capture from this video device instead of the screen")
	fs.StringVar(&o.template, "template", "", "template image to track")
	fs.StringVar(&o.color, "color", "", "track a color preset: red, blue or green")
	fs.BoolVar(&o.motion, "motion", false, "track moving objects")
	fs.StringVar(&o.motionMethod, "motion-method", "frame_diff", "motion method: frame_diff, mog2 or knn")
	fs.IntVar(&o.minArea, "min-area", 0, "minimum motion area in pixels")
	fs.IntVar(&o.motionThresh, "motion-threshold", 0, "motion threshold (0-255)")
	fs.StringVar(&o.region, "region", "", "capture region as LEFT,TOP,WIDTH,HEIGHT")
	fs.BoolVar(&o.fullScreen, "full-screen", false, "capture the full screen")
	fs.IntVar(&o.fps, "fps", 0, "tracking frame rate (overrides config)")
	fs.BoolVar(&o.autoClick, "auto-click", false, "click when the pointer reaches the target")
	fs.BoolVar(&o.verbose, "v", false, "verbose per-frame logging")
	fs.BoolVar(&o.testDetect, "test-detection", false, "detect on a single frame and exit")
	fs.BoolVar(&o.saveTest, "save-test", false, "save the annotated test detection image")
	fs.StringVar(&o.serve, "serve", "", "serve the control panel on this address")
	fs.BoolVar(&o.tray, "tray", false, "show a system tray menu")
	fs.BoolVar(&o.noShortcuts, "no-shortcuts", false, "disable global keyboard shortcuts")
	fs.StringVar(&o.dbPath, "db", "", "SQLite database for session history")
	fs.StringVar(&o.hooksDir, "hooks", "", "directory of event hooks")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	return o, nil
}

// apply folds the flags into cfg. Explicit flags win over the file.
func (o *options) apply(cfg *config.Config) error {
	if o.display >= 0 {
		cfg.Capture.Source = config.SourceScreen
		cfg.Capture.Display = o.display
	}
	if o.device >= 0 {
		cfg.Capture.Source = config.SourceDevice
		cfg.Capture.Device = o.device
	}
	if o.fps != 0 {
		cfg.Tracking.FPS = o.fps
	}
	if o.autoClick {
		cfg.Mouse.AutoClick = true
		cfg.Mouse.EnableClick = true
	}
	if o.minArea != 0 {
		cfg.Detection.MinArea = o.minArea
	}
	if o.motionThresh != 0 {
		cfg.Detection.MotionThreshold = o.motionThresh
	}

	switch {
	case o.region != "":
		r, err := parseRegion(o.region)
		if err != nil {
			return err
		}
		cfg.CaptureRegion = r
	case o.fullScreen:
		cfg.CaptureRegion = config.CaptureRegion{}
	}

	switch {
	case o.template != "":
		// Relative to the working directory, not to the config file.
		path, err := filepath.Abs(o.template)
		if err != nil {
			return fmt.Errorf("template %s: %w", o.template, err)
		}
		cfg.Detection.Method = "template"
		cfg.Detection.TemplatePath = path
	case o.motion:
		if m, _, err := detect.ParseMethod(o.motionMethod); err != nil || m != detect.MethodMotion {
			return fmt.Errorf("invalid -motion-method %q", o.motionMethod)
		}
		cfg.Detection.Method = o.motionMethod
	case o.color != "":
		p, ok := detect.ColorPreset(o.color)
		if !ok {
			return fmt.Errorf("unknown color %q (want red, blue or green)", o.color)
		}
		cfg.Detection.Method = "color"
		cfg.Detection.ColorLower = p.Lower[:]
		cfg.Detection.ColorUpper = p.Upper[:]
		cfg.Detection.ColorSpace = string(p.Space)
	}

	if o.serve != "" {
		cfg.Server.Addr = o.serve
	}
	if o.dbPath != "" {
		cfg.Store.Path = o.dbPath
	}
	if o.hooksDir != "" {
		cfg.Hooks.Dir = o.hooksDir
	}
	return cfg.Validate()
}

// parseRegion parses "LEFT,TOP,WIDTH,HEIGHT".
func parseRegion(s string) (config.CaptureRegion, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return config.CaptureRegion{}, errors.New("region must be LEFT,TOP,WIDTH,HEIGHT")
	}

	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return config.CaptureRegion{}, fmt.Errorf("region: %q is not an integer", p)
		}
		if n < 0 {
			return config.CaptureRegion{}, fmt.Errorf("region: %d is negative", n)
		}
		v[i] = n
	}
	return config.CaptureRegion{Left: v[0], Top: v[1], Width: v[2], Height: v[3]}, nil
}

// configureEngine selects the detection strategy named by cfg.
func configureEngine(e *detect.Engine, cfg *config.Config, cfgPath string) error {
	method, _, err := detect.ParseMethod(cfg.Detection.Method)
	if err != nil {
		return err
	}

	switch method {
	case detect.MethodTemplate:
		path := cfg.TemplatePathFor(cfgPath)
		if err := e.UseTemplate(path); err != nil {
			return fmt.Errorf("template %s: %w", path, err)
		}
	case detect.MethodColor:
		p, ok := cfg.ColorParams()
		if !ok {
			return errors.New("color detection needs detection.color_lower and color_upper, or -color")
		}
		return e.UseColor(p)
	case detect.MethodMotion:
		return e.UseMotion(cfg.MotionParams())
	}
	return nil
}
