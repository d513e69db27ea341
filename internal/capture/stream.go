package capture

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"
)

// FPS limits for paced capture.
const (
	MinFPS = 1
	MaxFPS = 120
)

// ErrStreamClosed is returned by Next once the stream has been closed.
var ErrStreamClosed = errors.New("capture stream is closed")

// GrabFunc captures a single frame.
type GrabFunc func() (*Frame, error)

// Stream is a pull-based, paced frame sequence. Each Next call yields exactly
// one frame, waiting only as long as needed for 1/fps to have elapsed since
// the previous yield. A caller that overran the budget gets the next frame
// immediately. Nothing is buffered or dropped. A closed stream cannot be
// restarted.
type Stream struct {
	grab GrabFunc
	mu   sync.Mutex
	fps  int
	last time.Time

	closeOnce sync.Once
	done      chan struct{}

	now   func() time.Time
	sleep func(ctx context.Context, done <-chan struct{}, d time.Duration) error
}

// NewStream creates a stream calling grab for each frame.
func NewStream(grab GrabFunc, fps int) *Stream {
	return &Stream{
		grab:  grab,
		fps:   clampFPS(fps),
		done:  make(chan struct{}),
		now:   time.Now,
		sleep: sleepContext,
	}
}

// RegionGrab returns a GrabFunc capturing from src. A nil region func or an
// empty region means the full screen.
func RegionGrab(src Source, region func() image.Rectangle) GrabFunc {
	return func() (*Frame, error) {
		if region != nil {
			if r := region(); !r.Empty() {
				return src.CaptureRegion(r)
			}
		}
		return src.CaptureFull()
	}
}

// SetFPS changes the target rate, clamped to [MinFPS, MaxFPS].
func (s *Stream) SetFPS(fps int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fps = clampFPS(fps)
}

// FPS returns the target rate.
func (s *Stream) FPS() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fps
}

// Next blocks until the frame budget has elapsed and returns one frame.
func (s *Stream) Next(ctx context.Context) (*Frame, error) {
	select {
	case <-s.done:
		return nil, ErrStreamClosed
	default:
	}

	s.mu.Lock()
	budget := time.Second / time.Duration(s.fps)
	last := s.last
	s.mu.Unlock()

	if !last.IsZero() {
		if wait := budget - s.now().Sub(last); wait > 0 {
			if err := s.sleep(ctx, s.done, wait); err != nil {
				return nil, err
			}
		}
	}

	select {
	case <-s.done:
		return nil, ErrStreamClosed
	default:
	}

	s.mu.Lock()
	s.last = s.now()
	s.mu.Unlock()

	return s.grab()
}

// Close ends the stream.
func (s *Stream) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func clampFPS(fps int) int {
	if fps < MinFPS {
		return MinFPS
	}
	if fps > MaxFPS {
		return MaxFPS
	}
	return fps
}

func sleepContext(ctx context.Context, done <-chan struct{}, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrStreamClosed
	case <-t.C:
		return nil
	}
}
