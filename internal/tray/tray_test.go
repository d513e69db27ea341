package tray

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayusman/sightline/internal/detect"
)

type fakeController struct {
	paused  bool
	auto    bool
	method  detect.Method
	methods []detect.Method
	resets  int
}

func (c *fakeController) Paused() bool          { return c.paused }
func (c *fakeController) AutoClick() bool       { return c.auto }
func (c *fakeController) Method() detect.Method { return c.method }
func (c *fakeController) TogglePause() bool     { c.paused = !c.paused; return c.paused }
func (c *fakeController) ToggleAutoClick() bool { c.auto = !c.auto; return c.auto }
func (c *fakeController) ResetDetection()       { c.resets++ }
func (c *fakeController) CycleMethod() detect.Method {
	c.method = c.methods[0]
	c.methods = append(c.methods[1:], c.method)
	return c.method
}

func TestHandlers(t *testing.T) {
	ctl := &fakeController{method: detect.MethodTemplate, methods: []detect.Method{detect.MethodColor, detect.MethodMotion}}
	tr := New(ctl)

	tr.handlePause()
	assert.True(t, ctl.paused)
	assert.Equal(t, pauseTitle(true), tr.state().pause)
	tr.handlePause()
	assert.False(t, ctl.paused)

	tr.handleAutoClick()
	assert.True(t, ctl.auto)
	assert.True(t, tr.state().auto)

	tr.handleCycle()
	assert.Equal(t, "Method: color", tr.state().method)
	tr.handleCycle()
	assert.Equal(t, "Method: motion", tr.state().method)
}

func TestMenuFollowsController(t *testing.T) {
	ctl := &fakeController{method: detect.MethodColor}
	tr := New(ctl)
	assert.Equal(t, menuState{pause: pauseTitle(false), method: "Method: color"}, tr.state())

	// Changes made outside the menu, e.g. from the control panel.
	ctl.auto = true
	ctl.paused = true
	ctl.method = detect.MethodMotion
	assert.Equal(t, menuState{pause: pauseTitle(true), auto: true, method: "Method: motion"}, tr.state())

	tr.handleAutoClick()
	assert.False(t, ctl.auto, "toggle starts from the controller's value")
	assert.False(t, tr.state().auto)
}

func TestOpenCallback(t *testing.T) {
	tr := New(&fakeController{})
	tr.handleOpen()

	opened := 0
	tr.OnOpen(func() { opened++ })
	tr.handleOpen()
	assert.Equal(t, 1, opened)
}

func TestLastEvent(t *testing.T) {
	tr := New(&fakeController{})
	assert.Equal(t, "none", tr.Last())

	tr.Found(detect.Result{Found: true, Center: image.Pt(150, 250)})
	assert.Equal(t, "found at (150, 250)", tr.Last())

	tr.Found(detect.Result{Found: true, Center: image.Pt(10, 10)})
	assert.Equal(t, "found at (150, 250)", tr.Last(), "only acquisitions update")

	tr.Lost()
	assert.Equal(t, "lost", tr.Last())

	tr.Found(detect.Result{Found: true, Center: image.Pt(10, 10)})
	assert.Equal(t, "found at (10, 10)", tr.Last())
}

func TestTitles(t *testing.T) {
	assert.Equal(t, "Method: color", methodTitle(detect.MethodColor))
	assert.NotEqual(t, pauseTitle(true), pauseTitle(false))
}
