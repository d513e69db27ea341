package actuate

import (
	"image"
	"sync"
	"time"
)

// fakePointer records every platform call.
type fakePointer struct {
	mu      sync.Mutex
	pos     image.Point
	moves   []image.Point
	clicks  []string
	toggles []string
	scrolls []int
	moveErr error
}

func (f *fakePointer) Move(x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.moveErr != nil {
		return f.moveErr
	}
	f.pos = image.Pt(x, y)
	f.moves = append(f.moves, f.pos)
	return nil
}

func (f *fakePointer) Location() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos.X, f.pos.Y
}

func (f *fakePointer) Click(button string, double bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if double {
		button += "x2"
	}
	f.clicks = append(f.clicks, button)
	return nil
}

func (f *fakePointer) Toggle(button, state string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toggles = append(f.toggles, button+":"+state)
	return nil
}

func (f *fakePointer) Scroll(dx, dy int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scrolls = append(f.scrolls, dy)
	return nil
}

func (f *fakePointer) moveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.moves)
}

// fakeClock advances only when told to or when the actuator sleeps.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	slept time.Duration
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.slept += d
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestActuator(s MouseSettings) (*Actuator, *fakePointer, *fakeClock) {
	p := &fakePointer{}
	c := &fakeClock{now: time.Unix(1700000000, 0)}
	a := New(p, s)
	a.now = c.Now
	a.sleep = c.Sleep
	return a, p, c
}
