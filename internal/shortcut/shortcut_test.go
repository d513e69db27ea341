package shortcut

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/sightline/internal/detect"
)

type fakeBackend struct {
	handlers map[string]func()
	started  bool
	stopped  int
	startErr error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{handlers: make(map[string]func())}
}

func (b *fakeBackend) Register(keys []string, fn func()) {
	b.handlers[strings.Join(keys, "+")] = fn
}

func (b *fakeBackend) Start() error {
	if b.startErr != nil {
		return b.startErr
	}
	b.started = true
	return nil
}

func (b *fakeBackend) Stop() { b.stopped++ }

func (b *fakeBackend) press(keys ...string) bool {
	fn, ok := b.handlers[strings.Join(keys, "+")]
	if ok {
		fn()
	}
	return ok
}

type fakeController struct {
	mu     sync.Mutex
	calls  []string
	radius int
}

func (c *fakeController) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
}

func (c *fakeController) Stop()             { c.record("stop") }
func (c *fakeController) TogglePause() bool { c.record("pause"); return true }
func (c *fakeController) Screenshot(string) (string, error) {
	c.record("screenshot")
	return "shot.png", nil
}
func (c *fakeController) ToggleAutoClick() bool      { c.record("auto-click"); return true }
func (c *fakeController) CycleMethod() detect.Method { c.record("cycle"); return detect.MethodColor }
func (c *fakeController) ResetDetection()            { c.record("reset") }
func (c *fakeController) LogStats()                  { c.record("stats") }
func (c *fakeController) TestDetection(bool, string) (detect.Result, string, error) {
	c.record("test")
	return detect.Result{}, "", nil
}
func (c *fakeController) AdjustCircleRadius(delta int) int {
	c.record("radius")
	c.radius += delta
	return c.radius
}

func TestRegisterDefaults(t *testing.T) {
	backend := newFakeBackend()
	d := NewDispatcher(backend)
	ctl := &fakeController{radius: 30}

	quit := 0
	require.NoError(t, RegisterDefaults(d, ctl, t.TempDir(), func() { quit++ }))
	require.NoError(t, d.Start())
	assert.True(t, backend.started)

	presses := []struct {
		key  string
		want string
	}{
		{"p", "pause"},
		{"s", "screenshot"},
		{"c", "auto-click"},
		{"m", "cycle"},
		{"r", "reset"},
		{"f", "stats"},
		{"t", "test"},
		{"=", "radius"},
		{"-", "radius"},
		{"q", "stop"},
		{"x", "stop"},
	}
	for _, p := range presses {
		require.True(t, backend.press("ctrl", "shift", p.key), "no handler for %s", p.key)
	}

	want := make([]string, len(presses))
	for i, p := range presses {
		want[i] = p.want
	}
	assert.Equal(t, want, ctl.calls)
	assert.Equal(t, 2, quit)
	assert.Equal(t, 30, ctl.radius)

	assert.True(t, backend.press("ctrl", "shift", "h"))
}

func TestDispatcherRegisterValidation(t *testing.T) {
	d := NewDispatcher(newFakeBackend())

	assert.Error(t, d.Register(Binding{Name: "x"}))
	require.NoError(t, d.Register(Binding{Name: "a", Keys: []string{"a"}, Action: func() {}}))
	assert.Error(t, d.Register(Binding{Name: "a", Keys: []string{"b"}, Action: func() {}}), "duplicate name")

	require.NoError(t, d.Start())
	assert.Error(t, d.Register(Binding{Name: "late", Keys: []string{"l"}, Action: func() {}}))
}

func TestDispatcherTrigger(t *testing.T) {
	d := NewDispatcher(newFakeBackend())
	ran := false
	require.NoError(t, d.Register(Binding{Name: "go", Keys: []string{"g"}, Action: func() { ran = true }}))

	require.NoError(t, d.Trigger("go"))
	assert.True(t, ran)

	err := d.Trigger("missing")
	assert.True(t, errors.Is(err, ErrUnknownBinding))
}

func TestDispatcherActionPanicContained(t *testing.T) {
	d := NewDispatcher(newFakeBackend())
	require.NoError(t, d.Register(Binding{Name: "bad", Keys: []string{"b"}, Action: func() { panic("x") }}))

	assert.NotPanics(t, func() { d.Trigger("bad") })
}

func TestDispatcherStartStop(t *testing.T) {
	backend := newFakeBackend()
	d := NewDispatcher(backend)

	d.Stop()
	assert.Zero(t, backend.stopped, "stop before start is a no-op")

	require.NoError(t, d.Start())
	d.Stop()
	d.Stop()
	assert.Equal(t, 1, backend.stopped)

	backend.startErr = errors.New("no display")
	assert.Error(t, d.Start())
}

func TestHelpAndCombo(t *testing.T) {
	d := NewDispatcher(newFakeBackend())
	require.NoError(t, RegisterDefaults(d, &fakeController{}, ".", nil))

	help := d.Help()
	assert.Contains(t, help, "Ctrl+Shift+Q")
	assert.Contains(t, help, "cycle detection method")
	assert.Len(t, d.Bindings(), 12)

	b := Binding{Keys: []string{"q", "shift", "ctrl"}}
	assert.Equal(t, "Ctrl+Shift+Q", b.Combo())
}
