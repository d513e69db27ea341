package capture

import (
	"context"
	"errors"
	"image"
	"testing"
	"time"

	"gocv.io/x/gocv"
)

// fakeClock lets tests observe the sleeps a Stream requests.
type fakeClock struct {
	now    time.Time
	slept  []time.Duration
	onGrab time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, _ <-chan struct{}, d time.Duration) error {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
	return nil
}

func newTestStream(fps int, clock *fakeClock) (*Stream, *int) {
	grabs := 0
	s := NewStream(func() (*Frame, error) {
		grabs++
		clock.now = clock.now.Add(clock.onGrab)
		return NewFrame(gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3), image.Rect(0, 0, 2, 2)), nil
	}, fps)
	s.now = clock.Now
	s.sleep = clock.Sleep
	return s, &grabs
}

func TestStreamPacing(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0), onGrab: 10 * time.Millisecond}
	s, grabs := newTestStream(10, clock)

	for i := 0; i < 3; i++ {
		f, err := s.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		f.Close()
	}

	if *grabs != 3 {
		t.Errorf("grabs = %d, want 3", *grabs)
	}
	// First frame is immediate, each later one waits out the 100ms budget
	// minus the 10ms the grab took.
	if len(clock.slept) != 2 {
		t.Fatalf("sleeps = %v, want 2 sleeps", clock.slept)
	}
	for _, d := range clock.slept {
		if d != 90*time.Millisecond {
			t.Errorf("sleep = %v, want 90ms", d)
		}
	}
}

func TestStreamOverrunNoSleep(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0), onGrab: 500 * time.Millisecond}
	s, _ := newTestStream(10, clock)

	for i := 0; i < 3; i++ {
		f, err := s.Next(context.Background())
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		f.Close()
	}

	if len(clock.slept) != 0 {
		t.Errorf("sleeps = %v, want none after overrun", clock.slept)
	}
}

func TestStreamSetFPSClamped(t *testing.T) {
	s := NewStream(nil, 30)

	tests := []struct {
		fps  int
		want int
	}{
		{0, MinFPS},
		{-5, MinFPS},
		{60, 60},
		{500, MaxFPS},
	}

	for _, tt := range tests {
		s.SetFPS(tt.fps)
		if got := s.FPS(); got != tt.want {
			t.Errorf("SetFPS(%d): FPS() = %d, want %d", tt.fps, got, tt.want)
		}
	}
}

func TestStreamClosed(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	s, grabs := newTestStream(30, clock)

	s.Close()
	s.Close()

	if _, err := s.Next(context.Background()); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Next() after Close error = %v, want %v", err, ErrStreamClosed)
	}
	if *grabs != 0 {
		t.Errorf("grabs = %d, want 0", *grabs)
	}
}

func TestStreamContextCancelled(t *testing.T) {
	s := NewStream(func() (*Frame, error) {
		return NewFrame(gocv.NewMatWithSize(2, 2, gocv.MatTypeCV8UC3), image.Rect(0, 0, 2, 2)), nil
	}, 1)

	f, err := s.Next(context.Background())
	if err != nil {
		t.Fatalf("first Next() error = %v", err)
	}
	f.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Next() error = %v, want %v", err, context.Canceled)
	}
}

func TestRegionGrab(t *testing.T) {
	mat := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer mat.Close()

	src := NewMockSource([]*gocv.Mat{&mat}, true)
	src.SetBounds(image.Rect(0, 0, 100, 100))

	region := image.Rect(20, 30, 30, 40)
	grab := RegionGrab(src, func() image.Rectangle { return region })

	f, err := grab()
	if err != nil {
		t.Fatalf("grab() error = %v", err)
	}
	defer f.Close()

	if f.Region != region {
		t.Errorf("Region = %v, want %v", f.Region, region)
	}

	full, err := RegionGrab(src, nil)()
	if err != nil {
		t.Fatalf("full grab() error = %v", err)
	}
	defer full.Close()

	if full.Offset() != image.Pt(0, 0) {
		t.Errorf("full Offset() = %v, want origin", full.Offset())
	}
}
