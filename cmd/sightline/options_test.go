package main

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/sightline/internal/config"
)

func TestParseRegion(t *testing.T) {
	tests := []struct {
		in      string
		want    config.CaptureRegion
		wantErr bool
	}{
		{in: "0,0,800,600", want: config.CaptureRegion{Width: 800, Height: 600}},
		{in: "10, 20, 30, 40", want: config.CaptureRegion{Left: 10, Top: 20, Width: 30, Height: 40}},
		{in: "1,2,3", wantErr: true},
		{in: "a,0,1,1", wantErr: true},
		{in: "0,-5,1,1", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseRegion(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFlagsDefaults(t *testing.T) {
	o, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "config.json", o.configPath)
	assert.Equal(t, "frame_diff", o.motionMethod)
	assert.False(t, o.testDetect)
}

func TestParseFlagsRejectsExtraArgs(t *testing.T) {
	_, err := parseFlags([]string{"-v", "extra"}, io.Discard)
	assert.Error(t, err)
}

func TestApplyOverrides(t *testing.T) {
	o, err := parseFlags([]string{
		"-fps", "60",
		"-auto-click",
		"-region", "5,5,100,100",
		"-template", "target.png",
		"-serve", "127.0.0.1:9000",
		"-db", "data/sessions.db",
	}, io.Discard)
	require.NoError(t, err)

	cfg := config.Default()
	require.NoError(t, o.apply(cfg))

	assert.Equal(t, 60, cfg.Tracking.FPS)
	assert.True(t, cfg.Mouse.AutoClick)
	assert.Equal(t, config.CaptureRegion{Left: 5, Top: 5, Width: 100, Height: 100}, cfg.CaptureRegion)
	assert.Equal(t, "template", cfg.Detection.Method)
	assert.True(t, filepath.IsAbs(cfg.Detection.TemplatePath))
	assert.Equal(t, "target.png", filepath.Base(cfg.Detection.TemplatePath))
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, "data/sessions.db", cfg.Store.Path)
}

func TestApplyTemplateIgnoresConfigDir(t *testing.T) {
	o, err := parseFlags([]string{"-config", filepath.Join("conf", "app.json"), "-template", "target.png"}, io.Discard)
	require.NoError(t, err)

	cfg := config.Default()
	require.NoError(t, o.apply(cfg))

	want, err := filepath.Abs("target.png")
	require.NoError(t, err)
	assert.Equal(t, want, cfg.TemplatePathFor(o.configPath))

	// Paths from the file itself still resolve next to it.
	fromFile := config.Default()
	fromFile.Detection.TemplatePath = "target.png"
	assert.Equal(t, filepath.Join("conf", "target.png"), fromFile.TemplatePathFor(o.configPath))
}

func TestApplyCaptureSource(t *testing.T) {
	o, err := parseFlags(nil, io.Discard)
	require.NoError(t, err)
	cfg := config.Default()
	require.NoError(t, o.apply(cfg))
	assert.Equal(t, config.Capture{Source: config.SourceScreen}, cfg.Capture)

	o, err = parseFlags([]string{"-device", "2"}, io.Discard)
	require.NoError(t, err)
	cfg = config.Default()
	require.NoError(t, o.apply(cfg))
	assert.Equal(t, config.SourceDevice, cfg.Capture.Source)
	assert.Equal(t, 2, cfg.Capture.Device)

	o, err = parseFlags([]string{"-display", "1"}, io.Discard)
	require.NoError(t, err)
	cfg = config.Default()
	cfg.Capture.Source = config.SourceDevice
	require.NoError(t, o.apply(cfg))
	assert.Equal(t, config.Capture{Source: config.SourceScreen, Display: 1}, cfg.Capture)
}

func TestApplyFullScreenClearsRegion(t *testing.T) {
	o, err := parseFlags([]string{"-full-screen"}, io.Discard)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.CaptureRegion = config.CaptureRegion{Width: 10, Height: 10}
	require.NoError(t, o.apply(cfg))
	assert.Equal(t, config.CaptureRegion{}, cfg.CaptureRegion)
}

func TestApplyColorPreset(t *testing.T) {
	o, err := parseFlags([]string{"-color", "blue"}, io.Discard)
	require.NoError(t, err)

	cfg := config.Default()
	require.NoError(t, o.apply(cfg))
	assert.Equal(t, "color", cfg.Detection.Method)
	assert.Len(t, cfg.Detection.ColorLower, 3)
	assert.Len(t, cfg.Detection.ColorUpper, 3)

	p, ok := cfg.ColorParams()
	require.True(t, ok)
	assert.Equal(t, 100.0, p.Lower[0])

	o.color = "purple"
	assert.Error(t, o.apply(config.Default()))
}

func TestApplyMotion(t *testing.T) {
	o, err := parseFlags([]string{"-motion", "-motion-method", "knn", "-min-area", "200", "-motion-threshold", "40"}, io.Discard)
	require.NoError(t, err)

	cfg := config.Default()
	require.NoError(t, o.apply(cfg))
	assert.Equal(t, "knn", cfg.Detection.Method)
	assert.Equal(t, 200, cfg.Detection.MinArea)
	assert.Equal(t, 40, cfg.Detection.MotionThreshold)

	o.motionMethod = "template"
	assert.Error(t, o.apply(config.Default()))
}

func TestApplyInvalidFPS(t *testing.T) {
	o, err := parseFlags([]string{"-fps", "500"}, io.Discard)
	require.NoError(t, err)
	assert.ErrorIs(t, o.apply(config.Default()), config.ErrInvalid)
}
