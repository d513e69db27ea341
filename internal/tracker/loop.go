package tracker

import (
	"context"
	"errors"
	"log"
	"runtime/debug"
	"time"

	"github.com/ayusman/sightline/internal/capture"
	"github.com/ayusman/sightline/internal/detect"
	"github.com/ayusman/sightline/internal/store"
	"github.com/ayusman/sightline/internal/target"
)

// run is the tracking loop. It exits when stopCh closes, the stream ends, or
// an iteration panics.
func (t *Tracker) run(stream *capture.Stream, stopCh, doneCh chan struct{}, sess *store.Session) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	defer close(doneCh)
	defer t.finish(sess)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("tracker: loop panic: %v\n%s", r, debug.Stack())
		}
	}()

	wasFound := false
	for {
		select {
		case <-stopCh:
			return
		default:
		}

		if t.Paused() {
			if !t.idle(ctx, stream) {
				return
			}
			continue
		}

		frame, err := stream.Next(ctx)
		if err != nil {
			if errors.Is(err, capture.ErrStreamClosed) || ctx.Err() != nil {
				return
			}
			log.Printf("tracker: capture: %v", err)
			wasFound = t.handle(detect.Result{}, wasFound, sess)
			continue
		}

		start := time.Now()
		res := t.process(frame)
		frame.Close()

		wasFound = t.handle(res, wasFound, sess)
		t.stats.recordLatency(time.Since(start))
	}
}

// idle waits one frame interval while paused. It returns false when the
// loop should exit.
func (t *Tracker) idle(ctx context.Context, stream *capture.Stream) bool {
	timer := time.NewTimer(time.Second / time.Duration(stream.FPS()))
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// process runs detection on frame and returns the result in absolute screen
// coordinates. Detection errors yield a not-found result.
func (t *Tracker) process(frame *capture.Frame) detect.Result {
	res, err := t.engine.Detect(&frame.Mat)
	if err != nil {
		log.Printf("tracker: detect: %v", err)
		res = detect.Result{}
	}

	t.stats.recordFrame(res.Found, time.Now())

	t.mu.RLock()
	previewOn := t.previewOn
	radius := t.circleRadius
	crosshair := t.showCrosshair
	t.mu.RUnlock()

	if previewOn {
		t.preview.store(frame.Mat, res, radius, crosshair)
	}

	if Verbose {
		log.Printf("tracker: frame %dx%d found=%v conf=%.3f center=%v",
			frame.Width(), frame.Height(), res.Found, res.Confidence, res.Center)
	}

	return res.Translate(frame.Offset())
}

// handle delivers res to listeners and the actuator and returns whether the
// target is currently found.
func (t *Tracker) handle(res detect.Result, wasFound bool, sess *store.Session) bool {
	listeners := t.snapshotListeners()

	if res.Found {
		for _, l := range listeners {
			l.Found(res)
		}
		if !wasFound {
			t.recordEvent(sess, store.EventFound, res)
		}
		t.actuate(res)
		return true
	}

	if wasFound {
		for _, l := range listeners {
			l.Lost()
		}
		t.recordEvent(sess, store.EventLost, res)
	}
	return false
}

func (t *Tracker) actuate(res detect.Result) {
	if t.actuator == nil || !t.MouseEnabled() {
		return
	}

	point := res.Center
	if box, ok := target.Largest(res.Boxes()); ok && len(res.Objects) > 1 {
		point = target.Center(box)
	}

	moved, err := t.actuator.TrackToThrottled(point.X, point.Y)
	if err != nil {
		log.Printf("tracker: actuate: %v", err)
		return
	}
	if moved {
		t.stats.recordMove()
	}
}

func (t *Tracker) beginSession(now time.Time) *store.Session {
	if t.store == nil {
		return nil
	}

	sess := &store.Session{
		Method:    t.engine.Method().String(),
		Region:    regionString(t.region),
		StartedAt: now,
	}
	if err := t.store.Sessions().Create(sess); err != nil {
		log.Printf("tracker: store: create session: %v", err)
		return nil
	}
	return sess
}

func (t *Tracker) recordEvent(sess *store.Session, kind store.EventKind, res detect.Result) {
	if sess == nil {
		return
	}

	e := &store.Event{
		SessionID:  sess.ID,
		Kind:       kind,
		X:          res.Center.X,
		Y:          res.Center.Y,
		Confidence: res.Confidence,
	}
	if err := t.store.Events().Append(e); err != nil {
		log.Printf("tracker: store: append event: %v", err)
	}
}

// finish marks the session stopped and persists its summary.
func (t *Tracker) finish(sess *store.Session) {
	t.mu.Lock()
	t.state = StateStopped
	t.stopCh = nil
	t.stopping = false
	t.mu.Unlock()

	if sess == nil {
		return
	}

	now := time.Now()
	snap := t.stats.Snapshot(now)
	sess.EndedAt = &now
	sess.Frames = snap.FramesProcessed
	sess.Detections = snap.ObjectsDetected
	sess.Moves = snap.Moves
	sess.AvgFPS = snap.AvgFPS
	sess.LatencyMeanMs = snap.LatencyMeanMs
	sess.LatencyStdDevMs = snap.LatencyStdDevMs

	if err := t.store.Sessions().Update(sess); err != nil {
		log.Printf("tracker: store: update session: %v", err)
	}
}
