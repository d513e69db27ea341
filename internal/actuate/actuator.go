package actuate

import (
	"context"
	"image"
	"log"
	"math"
	"sync"
	"time"
)

// Smooth move bounds.
const (
	minSmoothDuration = 100 * time.Millisecond
	maxSmoothDuration = 2 * time.Second
	smoothStepsPerSec = 100
)

// continuousPoll is the pause between continuous-tracking iterations.
const continuousPoll = 10 * time.Millisecond

// continuousJoin bounds how long StopContinuous waits for the worker.
const continuousJoin = time.Second

// Actuator moves and clicks the pointer on behalf of the tracker.
type Actuator struct {
	pointer Pointer

	mu       sync.Mutex
	settings MouseSettings
	lastMove time.Time
	lastPos  image.Point
	hasPos   bool

	contMu     sync.Mutex
	contCancel context.CancelFunc
	contDone   chan struct{}

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates an Actuator driving p.
func New(p Pointer, settings MouseSettings) *Actuator {
	settings.normalize()
	return &Actuator{
		pointer:  p,
		settings: settings,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// Settings returns a copy of the current settings.
func (a *Actuator) Settings() MouseSettings {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.settings
}

// UpdateSettings applies fn to the settings under lock.
func (a *Actuator) UpdateSettings(fn func(*MouseSettings)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.settings)
	a.settings.normalize()
}

// LastPosition returns the last position the actuator moved to.
func (a *Actuator) LastPosition() (image.Point, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastPos, a.hasPos
}

// MoveTo jumps the pointer to (x, y).
func (a *Actuator) MoveTo(x, y int) error {
	if err := a.pointer.Move(x, y); err != nil {
		return wrap("move", err)
	}
	a.record(x, y)
	return nil
}

func (a *Actuator) record(x, y int) {
	a.mu.Lock()
	a.lastPos = image.Point{X: x, Y: y}
	a.hasPos = true
	a.lastMove = a.now()
	a.mu.Unlock()
}

// SmoothMoveTo glides the pointer to (x, y) with ease-out-quad timing. A zero
// duration is derived from the distance and movement speed. With smoothing
// disabled it behaves like MoveTo.
func (a *Actuator) SmoothMoveTo(x, y int, duration time.Duration) error {
	s := a.Settings()
	if !s.SmoothMovement {
		return a.MoveTo(x, y)
	}

	sx, sy := a.pointer.Location()
	if duration <= 0 {
		duration = SmoothDuration(image.Pt(sx, sy), image.Pt(x, y), s.MovementSpeed)
	}

	steps := int(duration.Seconds() * smoothStepsPerSec)
	if steps < 1 {
		steps = 1
	}
	stepDelay := duration / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		t := easeOutQuad(float64(i) / float64(steps))
		px := sx + int(math.Round(float64(x-sx)*t))
		py := sy + int(math.Round(float64(y-sy)*t))
		if err := a.pointer.Move(px, py); err != nil {
			return wrap("smooth move", err)
		}
		if i < steps {
			a.sleep(stepDelay)
		}
	}

	a.record(x, y)
	return nil
}

// SmoothDuration returns distance/1000 seconds scaled by (1-speed), clamped
// to [100ms, 2s].
func SmoothDuration(from, to image.Point, speed float64) time.Duration {
	dx := float64(to.X - from.X)
	dy := float64(to.Y - from.Y)
	dist := math.Hypot(dx, dy)

	d := time.Duration(dist / 1000 * (1 - speed) * float64(time.Second))
	if d < minSmoothDuration {
		return minSmoothDuration
	}
	if d > maxSmoothDuration {
		return maxSmoothDuration
	}
	return d
}

func easeOutQuad(t float64) float64 {
	return 1 - (1-t)*(1-t)
}

// travel moves with the configured MoveDuration, or a distance derived one
// when it is zero.
func (a *Actuator) travel(x, y int) error {
	s := a.Settings()
	if s.SmoothMovement {
		return a.SmoothMoveTo(x, y, s.MoveDuration)
	}
	return a.MoveTo(x, y)
}

// ClickAt moves to (x, y), waits ClickDelay and clicks. clicks of 2 or more
// produce a double click.
func (a *Actuator) ClickAt(x, y int, button string, clicks int) error {
	if err := a.travel(x, y); err != nil {
		return err
	}

	s := a.Settings()
	if !s.EnableClick {
		return nil
	}
	a.sleep(s.ClickDelay)

	if err := a.pointer.Click(button, clicks >= 2); err != nil {
		return wrap("click", err)
	}
	return nil
}

// DragTo presses button at start, glides to end over duration and releases.
func (a *Actuator) DragTo(start, end image.Point, duration time.Duration, button string) error {
	if err := a.MoveTo(start.X, start.Y); err != nil {
		return err
	}
	if err := a.pointer.Toggle(button, "down"); err != nil {
		return wrap("drag", err)
	}

	moveErr := a.glide(start, end, duration)

	if err := a.pointer.Toggle(button, "up"); err != nil && moveErr == nil {
		moveErr = wrap("drag", err)
	}
	if moveErr != nil {
		return moveErr
	}
	a.record(end.X, end.Y)
	return nil
}

// glide interpolates linearly regardless of the smoothing setting.
func (a *Actuator) glide(from, to image.Point, duration time.Duration) error {
	steps := int(duration.Seconds() * smoothStepsPerSec)
	if steps < 1 {
		steps = 1
	}
	stepDelay := duration / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		px := from.X + int(math.Round(float64(to.X-from.X)*t))
		py := from.Y + int(math.Round(float64(to.Y-from.Y)*t))
		if err := a.pointer.Move(px, py); err != nil {
			return wrap("drag", err)
		}
		if i < steps {
			a.sleep(stepDelay)
		}
	}
	return nil
}

// ScrollAt moves to (x, y) and scrolls clicks notches; positive is up.
func (a *Actuator) ScrollAt(x, y, clicks int) error {
	if err := a.MoveTo(x, y); err != nil {
		return err
	}
	if err := a.pointer.Scroll(0, clicks); err != nil {
		return wrap("scroll", err)
	}
	return nil
}

// TrackTo moves to (x, y) and clicks when auto-click is on.
func (a *Actuator) TrackTo(x, y int) error {
	if err := a.travel(x, y); err != nil {
		return err
	}

	s := a.Settings()
	if !s.AutoClick || !s.EnableClick {
		return nil
	}
	a.sleep(s.ClickDelay)
	if err := a.pointer.Click("left", false); err != nil {
		return wrap("auto click", err)
	}
	return nil
}

// TrackToThrottled calls TrackTo unless the previous actual move happened
// less than ThrottleInterval ago, in which case the target is dropped.
func (a *Actuator) TrackToThrottled(x, y int) (bool, error) {
	a.mu.Lock()
	interval := a.settings.ThrottleInterval
	recent := !a.lastMove.IsZero() && a.now().Sub(a.lastMove) < interval
	a.mu.Unlock()

	if recent {
		return false, nil
	}
	if err := a.TrackTo(x, y); err != nil {
		return false, err
	}
	return true, nil
}

// StartContinuous follows targetFn on its own goroutine until ctx ends,
// stopFn reports true or StopContinuous is called. targetFn returns false
// when there is nothing to follow.
func (a *Actuator) StartContinuous(ctx context.Context, targetFn func() (image.Point, bool), stopFn func() bool) {
	a.StopContinuous()

	a.contMu.Lock()
	defer a.contMu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	a.contCancel = cancel
	a.contDone = done

	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if stopFn != nil && stopFn() {
				return
			}

			if p, ok := targetFn(); ok {
				if err := a.TrackTo(p.X, p.Y); err != nil {
					log.Printf("actuate: continuous tracking: %v", err)
					a.sleep(100 * time.Millisecond)
					continue
				}
			}

			a.sleep(continuousPoll)
		}
	}()
}

// Continuous reports whether continuous tracking is running.
func (a *Actuator) Continuous() bool {
	a.contMu.Lock()
	done := a.contDone
	a.contMu.Unlock()

	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// StopContinuous stops continuous tracking and waits up to one second for
// the worker to exit.
func (a *Actuator) StopContinuous() {
	a.contMu.Lock()
	cancel, done := a.contCancel, a.contDone
	a.contCancel, a.contDone = nil, nil
	a.contMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-done:
	case <-time.After(continuousJoin):
		log.Printf("actuate: continuous tracking did not stop within %v", continuousJoin)
	}
}
