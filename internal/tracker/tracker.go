// Package tracker runs the capture, detect and actuate loop that keeps the
// pointer on a visual target.
package tracker

import (
	"errors"
	"fmt"
	"image"
	"log"
	"sync"
	"time"

	"github.com/ayusman/sightline/internal/actuate"
	"github.com/ayusman/sightline/internal/capture"
	"github.com/ayusman/sightline/internal/detect"
	"github.com/ayusman/sightline/internal/store"
)

// Verbose enables per-frame logging.
var Verbose bool

var (
	// ErrNotConfigured is returned by Start when no detection method is set.
	ErrNotConfigured = errors.New("tracker: no detection method configured")
	// ErrNoTemplate is returned by Start when template matching has no
	// reference image.
	ErrNoTemplate = errors.New("tracker: no template loaded")
	// ErrShutdown is returned by Start after Shutdown.
	ErrShutdown = errors.New("tracker: shut down")
	// ErrStopping is returned by Start while a stopped loop has not exited
	// yet.
	ErrStopping = errors.New("tracker: previous session still stopping")
)

// State is the tracker lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConfigured
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "idle"
	}
}

// Tracking limits.
const (
	DefaultFPS          = 30
	DefaultCircleRadius = 30
	MinCircleRadius     = 10
	MaxCircleRadius     = 200

	// detectedWindow is how recently a detection counts as current.
	detectedWindow = time.Second
)

// stopTimeout bounds how long Stop waits for the loop to exit.
var stopTimeout = 2 * time.Second

// Config holds the tracker's collaborators and initial settings.
type Config struct {
	Source   capture.Source
	Engine   *detect.Engine
	Actuator *actuate.Actuator

	// Store, when set, receives one session row per run plus its
	// found/lost transitions.
	Store *store.Store

	FPS int
	// Region limits capture to part of the screen. Empty means full screen.
	Region image.Rectangle

	// MouseEnabled gates pointer actuation. Detection and listeners still
	// run when it is off.
	MouseEnabled bool

	CircleRadius  int
	ShowCrosshair bool
	// Preview keeps an annotated copy of the latest frame for Preview.
	Preview bool
}

// Tracker orchestrates capture, detection and actuation.
type Tracker struct {
	source   capture.Source
	engine   *detect.Engine
	actuator *actuate.Actuator
	store    *store.Store

	mu            sync.RWMutex
	state         State
	stopping      bool
	shutdown      bool
	fps           int
	region        image.Rectangle
	paused        bool
	mouseEnabled  bool
	circleRadius  int
	showCrosshair bool
	previewOn     bool
	listeners     []Listener
	detacher      Detacher

	stopCh chan struct{}
	doneCh chan struct{}
	stream *capture.Stream

	stats   Stats
	preview previewBuffer
}

// New creates a Tracker.
func New(cfg Config) *Tracker {
	fps := cfg.FPS
	if fps == 0 {
		fps = DefaultFPS
	}
	radius := cfg.CircleRadius
	if radius == 0 {
		radius = DefaultCircleRadius
	}

	return &Tracker{
		source:        cfg.Source,
		engine:        cfg.Engine,
		actuator:      cfg.Actuator,
		store:         cfg.Store,
		fps:           clampInt(fps, capture.MinFPS, capture.MaxFPS),
		region:        cfg.Region,
		mouseEnabled:  cfg.MouseEnabled,
		circleRadius:  clampInt(radius, MinCircleRadius, MaxCircleRadius),
		showCrosshair: cfg.ShowCrosshair,
		previewOn:     cfg.Preview,
	}
}

// Engine returns the detection engine.
func (t *Tracker) Engine() *detect.Engine {
	return t.engine
}

// Actuator returns the pointer actuator.
func (t *Tracker) Actuator() *actuate.Actuator {
	return t.actuator
}

// OnFound registers fn to run for every frame with a detection.
func (t *Tracker) OnFound(fn func(detect.Result)) {
	t.AddListener(funcListener{found: fn})
}

// OnLost registers fn to run once per found-to-lost transition.
func (t *Tracker) OnLost(fn func()) {
	t.AddListener(funcListener{lost: fn})
}

// AddListener registers l for tracking events.
func (t *Tracker) AddListener(l Listener) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
}

// SetDetacher registers the input source released by Shutdown.
func (t *Tracker) SetDetacher(d Detacher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.detacher = d
}

// State returns the lifecycle state.
func (t *Tracker) State() State {
	t.mu.RLock()
	state := t.state
	t.mu.RUnlock()

	if state == StateIdle && t.engine != nil && t.engine.Configured() == nil {
		return StateConfigured
	}
	return state
}

// IsTracking reports whether the loop is running.
func (t *Tracker) IsTracking() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state == StateRunning
}

// Start begins a tracking session on a new goroutine. Starting a running
// tracker logs a warning and does nothing. Starting while a stopped loop is
// still exiting returns ErrStopping.
func (t *Tracker) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.shutdown {
		return ErrShutdown
	}
	if t.stopping {
		return ErrStopping
	}
	if t.state == StateRunning {
		log.Println("tracker: start: already running")
		return nil
	}

	if t.engine == nil {
		return ErrNotConfigured
	}
	if err := t.engine.Configured(); err != nil {
		if errors.Is(err, detect.ErrNoTemplate) {
			return ErrNoTemplate
		}
		return ErrNotConfigured
	}

	now := time.Now()
	t.stats.reset(now)

	sess := t.beginSession(now)

	t.stream = capture.NewStream(capture.RegionGrab(t.source, t.Region), t.fps)
	t.stopCh = make(chan struct{})
	t.doneCh = make(chan struct{})
	t.state = StateRunning

	go t.run(t.stream, t.stopCh, t.doneCh, sess)

	log.Printf("tracker: started (%s, %d fps)", t.engine.Describe(), t.fps)
	return nil
}

// Stop ends the session and waits up to two seconds for the loop to exit.
// Stopping a tracker that is not running does nothing. If the loop outlives
// the wait, the tracker reports running until it exits and Start refuses
// with ErrStopping.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopCh == nil {
		t.mu.Unlock()
		return
	}
	stopCh, doneCh, stream := t.stopCh, t.doneCh, t.stream
	t.stopCh = nil
	t.stopping = true
	t.mu.Unlock()

	close(stopCh)
	stream.Close()

	if t.actuator != nil {
		t.actuator.StopContinuous()
	}

	select {
	case <-doneCh:
	case <-time.After(stopTimeout):
		log.Printf("tracker: stop: loop did not exit within %v; still draining", stopTimeout)
		go func() {
			<-doneCh
			log.Println("tracker: stopped after draining")
		}()
		return
	}

	log.Println("tracker: stopped")
}

// Wait blocks until the current session ends on its own or is stopped.
func (t *Tracker) Wait() {
	t.mu.RLock()
	done := t.doneCh
	t.mu.RUnlock()

	if done != nil {
		<-done
	}
}

// Shutdown stops tracking and releases the shortcut listener. The tracker
// cannot be started again.
func (t *Tracker) Shutdown() {
	t.Stop()

	t.mu.Lock()
	t.shutdown = true
	d := t.detacher
	t.detacher = nil
	t.mu.Unlock()

	if d != nil {
		d.Stop()
	}
	t.preview.clear()
}

// SetFPS sets the target frame rate, clamped to [1,120].
func (t *Tracker) SetFPS(fps int) {
	fps = clampInt(fps, capture.MinFPS, capture.MaxFPS)

	t.mu.Lock()
	t.fps = fps
	stream := t.stream
	t.mu.Unlock()

	if stream != nil {
		stream.SetFPS(fps)
	}
	log.Printf("tracker: fps set to %d", fps)
}

// FPS returns the target frame rate.
func (t *Tracker) FPS() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fps
}

// SetConfidenceThreshold sets the detection threshold for every method.
func (t *Tracker) SetConfidenceThreshold(th float64) {
	t.engine.SetConfidenceThreshold(th)
	log.Printf("tracker: confidence threshold set to %.2f", t.engine.ConfidenceThreshold())
}

// SetRegion limits capture to r. An empty rectangle selects the full screen.
func (t *Tracker) SetRegion(r image.Rectangle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.region = r.Canon()
}

// Region returns the capture region; empty means full screen.
func (t *Tracker) Region() image.Rectangle {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.region
}

// SetPaused pauses or resumes detection without ending the session.
func (t *Tracker) SetPaused(paused bool) {
	t.mu.Lock()
	t.paused = paused
	t.mu.Unlock()

	if paused {
		log.Println("tracker: paused")
	} else {
		log.Println("tracker: resumed")
	}
}

// TogglePause flips the pause flag and returns the new value.
func (t *Tracker) TogglePause() bool {
	p := !t.Paused()
	t.SetPaused(p)
	return p
}

// Paused reports whether detection is paused.
func (t *Tracker) Paused() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.paused
}

// SetMouseEnabled turns pointer actuation on or off.
func (t *Tracker) SetMouseEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mouseEnabled = enabled
}

// MouseEnabled reports whether detections move the pointer.
func (t *Tracker) MouseEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mouseEnabled
}

// SetAutoClick turns clicking on arrival on or off.
func (t *Tracker) SetAutoClick(enabled bool) {
	t.actuator.UpdateSettings(func(s *actuate.MouseSettings) { s.AutoClick = enabled })
	log.Printf("tracker: auto-click %s", onOff(enabled))
}

// AutoClick reports whether clicking on arrival is on.
func (t *Tracker) AutoClick() bool {
	return t.actuator.Settings().AutoClick
}

// ToggleAutoClick flips auto-click and returns the new value.
func (t *Tracker) ToggleAutoClick() bool {
	enabled := !t.actuator.Settings().AutoClick
	t.SetAutoClick(enabled)
	return enabled
}

// UpdateMouseSettings applies fn to the actuator settings.
func (t *Tracker) UpdateMouseSettings(fn func(*actuate.MouseSettings)) {
	t.actuator.UpdateSettings(fn)
}

// Method returns the active detection method.
func (t *Tracker) Method() detect.Method {
	return t.engine.Method()
}

// CycleMethod switches to the next usable detection method.
func (t *Tracker) CycleMethod() detect.Method {
	m := t.engine.Cycle()
	log.Printf("tracker: detection method %s", t.engine.Describe())
	return m
}

// ResetDetection clears the state of the active detection method.
func (t *Tracker) ResetDetection() {
	t.engine.Reset()
	t.engine.ResetMotion()
	log.Println("tracker: detection state reset")
}

// SetCircleRadius sets the annotation radius, clamped to [10,200].
func (t *Tracker) SetCircleRadius(r int) int {
	r = clampInt(r, MinCircleRadius, MaxCircleRadius)

	t.mu.Lock()
	t.circleRadius = r
	t.mu.Unlock()
	return r
}

// AdjustCircleRadius changes the annotation radius by delta.
func (t *Tracker) AdjustCircleRadius(delta int) int {
	return t.SetCircleRadius(t.CircleRadius() + delta)
}

// CircleRadius returns the annotation radius.
func (t *Tracker) CircleRadius() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.circleRadius
}

// SetPreview enables or disables keeping the latest annotated frame.
func (t *Tracker) SetPreview(enabled bool) {
	t.mu.Lock()
	t.previewOn = enabled
	t.mu.Unlock()

	if !enabled {
		t.preview.clear()
	}
}

// Stats returns the session counters.
func (t *Tracker) Stats() Snapshot {
	return t.stats.Snapshot(time.Now())
}

// Detected reports whether the target was found within the last second.
func (t *Tracker) Detected() bool {
	last := t.stats.lastSeen()
	return !last.IsZero() && time.Since(last) < detectedWindow
}

// Status summarizes the tracker for the control surfaces.
type Status struct {
	State        string          `json:"state"`
	Method       string          `json:"method"`
	Detector     string          `json:"detector"`
	FPS          int             `json:"fps"`
	Confidence   float64         `json:"confidence_threshold"`
	Paused       bool            `json:"paused"`
	MouseEnabled bool            `json:"mouse_enabled"`
	AutoClick    bool            `json:"auto_click"`
	Region       image.Rectangle `json:"region"`
	CircleRadius int             `json:"circle_radius"`
	Detected     bool            `json:"detected"`
	Stats        Snapshot        `json:"stats"`
}

// Status returns a snapshot of the tracker state.
func (t *Tracker) Status() Status {
	t.mu.RLock()
	st := Status{
		FPS:          t.fps,
		Paused:       t.paused,
		MouseEnabled: t.mouseEnabled,
		Region:       t.region,
		CircleRadius: t.circleRadius,
	}
	t.mu.RUnlock()

	st.State = t.State().String()
	st.Method = t.engine.Method().String()
	st.Detector = t.engine.Describe()
	st.Confidence = t.engine.ConfidenceThreshold()
	st.AutoClick = t.actuator.Settings().AutoClick
	st.Detected = t.Detected()
	st.Stats = t.Stats()
	return st
}

// LogStats writes the session counters to the log.
func (t *Tracker) LogStats() {
	s := t.Stats()
	log.Printf("tracker: stats: frames=%d detected=%d rate=%.1f%% fps=%.1f latency=%.1f±%.1fms elapsed=%v",
		s.FramesProcessed, s.ObjectsDetected, s.DetectionRate*100, s.AvgFPS,
		s.LatencyMeanMs, s.LatencyStdDevMs, s.Elapsed.Round(time.Second))
}

func (t *Tracker) snapshotListeners() []Listener {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Listener, len(t.listeners))
	copy(out, t.listeners)
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func regionString(r image.Rectangle) string {
	if r.Empty() {
		return "full"
	}
	return fmt.Sprintf("%d,%d,%d,%d", r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}
