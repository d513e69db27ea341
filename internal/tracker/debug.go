package tracker

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"path/filepath"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/sightline/internal/capture"
	"github.com/ayusman/sightline/internal/detect"
)

var (
	boxColor    = color.RGBA{G: 255, A: 255}
	objectColor = color.RGBA{R: 255, G: 200, A: 255}
	centerColor = color.RGBA{R: 255, A: 255}
)

// annotate draws res onto mat in frame-local coordinates.
func annotate(mat *gocv.Mat, res detect.Result, radius int, crosshair bool) {
	if !res.Found {
		return
	}

	if len(res.Objects) > 1 {
		for _, o := range res.Objects {
			gocv.Rectangle(mat, o, objectColor, 1)
		}
	}
	if !res.Box.Empty() {
		gocv.Rectangle(mat, res.Box, boxColor, 2)
	}

	gocv.Circle(mat, res.Center, radius, centerColor, 2)
	gocv.Circle(mat, res.Center, 3, centerColor, -1)

	if crosshair {
		c := res.Center
		gocv.Line(mat, image.Pt(c.X-radius, c.Y), image.Pt(c.X+radius, c.Y), centerColor, 1)
		gocv.Line(mat, image.Pt(c.X, c.Y-radius), image.Pt(c.X, c.Y+radius), centerColor, 1)
	}
}

// previewBuffer holds the most recent annotated frame.
type previewBuffer struct {
	mu    sync.Mutex
	mat   gocv.Mat
	has   bool
	taken time.Time
}

func (p *previewBuffer) store(src gocv.Mat, res detect.Result, radius int, crosshair bool) {
	annotated := src.Clone()
	annotate(&annotated, res, radius, crosshair)

	p.mu.Lock()
	old, had := p.mat, p.has
	p.mat = annotated
	p.has = true
	p.taken = time.Now()
	p.mu.Unlock()

	if had {
		old.Close()
	}
}

func (p *previewBuffer) image() (image.Image, time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.has {
		return nil, time.Time{}, false
	}
	img, err := p.mat.ToImage()
	if err != nil {
		return nil, time.Time{}, false
	}
	return img, p.taken, true
}

func (p *previewBuffer) clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.has {
		p.mat.Close()
		p.has = false
	}
}

// Preview returns the latest annotated frame and when it was captured. ok is
// false when preview is disabled or no frame has been processed yet.
func (t *Tracker) Preview() (img image.Image, taken time.Time, ok bool) {
	return t.preview.image()
}

// TestDetection captures and analyzes a single frame without starting the
// loop. When save is set and the target is found, an annotated PNG is
// written to dir and its path returned.
func (t *Tracker) TestDetection(save bool, dir string) (detect.Result, string, error) {
	if err := t.engine.Configured(); err != nil {
		return detect.Result{}, "", err
	}

	frame, err := t.grab()
	if err != nil {
		return detect.Result{}, "", fmt.Errorf("test detection: %w", err)
	}
	defer frame.Close()

	local, err := t.engine.Detect(&frame.Mat)
	if err != nil {
		return detect.Result{}, "", fmt.Errorf("test detection: %w", err)
	}
	if local.Found && t.engine.Method() == detect.MethodTemplate {
		local.Objects = t.templateInstances(&frame.Mat)
	}
	res := local.Translate(frame.Offset())

	if !save || !local.Found {
		return res, "", nil
	}

	annotate(&frame.Mat, local, t.CircleRadius(), false)

	path := filepath.Join(dir, fmt.Sprintf("test_detection_%d.png", time.Now().Unix()))
	if err := capture.SaveScreenshot(path, frame); err != nil {
		return res, "", fmt.Errorf("test detection: %w", err)
	}
	log.Printf("tracker: detection test result saved: %s", path)
	return res, path, nil
}

// templateInstances lists every distinct template match when there is more
// than one.
func (t *Tracker) templateInstances(mat *gocv.Mat) []image.Rectangle {
	all, err := t.engine.DetectAll(mat)
	if err != nil {
		log.Printf("tracker: test detection: %v", err)
		return nil
	}
	if len(all) < 2 {
		return nil
	}
	boxes := make([]image.Rectangle, len(all))
	for i, r := range all {
		boxes[i] = r.Box
	}
	return boxes
}

// Screenshot saves the current capture region as debug_screenshot_<unix>.png
// in dir.
func (t *Tracker) Screenshot(dir string) (string, error) {
	frame, err := t.grab()
	if err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	defer frame.Close()

	path := filepath.Join(dir, fmt.Sprintf("debug_screenshot_%d.png", time.Now().Unix()))
	if err := capture.SaveScreenshot(path, frame); err != nil {
		return "", fmt.Errorf("screenshot: %w", err)
	}
	log.Printf("tracker: screenshot saved: %s", path)
	return path, nil
}

func (t *Tracker) grab() (*capture.Frame, error) {
	return capture.RegionGrab(t.source, t.Region)()
}
