// Package tray provides a system tray menu for controlling the tracker.
package tray

import (
	"fmt"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"github.com/ayusman/sightline/internal/detect"
)

// Controller is the tracker surface the tray drives. The menu reads its
// state from it on every redraw.
type Controller interface {
	Paused() bool
	AutoClick() bool
	Method() detect.Method

	TogglePause() bool
	ToggleAutoClick() bool
	CycleMethod() detect.Method
	ResetDetection()
}

// refreshInterval is how often the menu picks up changes made elsewhere,
// such as from the control panel.
const refreshInterval = time.Second

// Tray is the system tray menu. It also implements tracker.Listener so the
// menu can show the last tracking event.
type Tray struct {
	ctl    Controller
	onOpen func()
	onQuit func()
	found  bool
	last   string
	mu     sync.RWMutex

	// Menu items stored for later updates
	menuPause  *systray.MenuItem
	menuAuto   *systray.MenuItem
	menuMethod *systray.MenuItem
	menuLast   *systray.MenuItem
}

// New creates a Tray driving ctl.
func New(ctl Controller) *Tray {
	return &Tray{
		ctl:  ctl,
		last: "none",
	}
}

// OnOpen sets the callback for the "Open Control Panel" item. The item is
// only shown when a callback is set before Run.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray and blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, unblocking Run.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Sightline")
	systray.SetTooltip("Sightline object tracker")

	st := t.state()

	t.mu.Lock()
	t.menuPause = systray.AddMenuItem(st.pause, "Pause or resume tracking")
	t.menuAuto = systray.AddMenuItemCheckbox("Auto-click", "Click when the pointer reaches the target", st.auto)
	t.menuMethod = systray.AddMenuItem(st.method, "Cycle detection method")
	menuReset := systray.AddMenuItem("Reset Detection", "Reset the background model")
	systray.AddSeparator()

	t.menuLast = systray.AddMenuItem("Last: "+t.last, "Last tracking event")
	t.menuLast.Disable()
	systray.AddSeparator()

	var openCh chan struct{}
	if t.onOpen != nil {
		openCh = systray.AddMenuItem("Open Control Panel...", "Open the control panel in a browser").ClickedCh
	}
	menuQuit := systray.AddMenuItem("Quit", "Quit Sightline")
	t.mu.Unlock()

	go func() {
		tick := time.NewTicker(refreshInterval)
		defer tick.Stop()

		for {
			select {
			case <-tick.C:
				t.refresh()
			case <-t.menuPause.ClickedCh:
				t.handlePause()
			case <-t.menuAuto.ClickedCh:
				t.handleAutoClick()
			case <-t.menuMethod.ClickedCh:
				t.handleCycle()
			case <-menuReset.ClickedCh:
				t.ctl.ResetDetection()
				t.refresh()
			case <-openCh:
				t.handleOpen()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handlePause() {
	t.ctl.TogglePause()
	t.refresh()
}

func (t *Tray) handleAutoClick() {
	t.ctl.ToggleAutoClick()
	t.refresh()
}

func (t *Tray) handleCycle() {
	t.ctl.CycleMethod()
	t.refresh()
}

// menuState is what the stateful items display.
type menuState struct {
	pause  string
	auto   bool
	method string
}

func (t *Tray) state() menuState {
	return menuState{
		pause:  pauseTitle(t.ctl.Paused()),
		auto:   t.ctl.AutoClick(),
		method: methodTitle(t.ctl.Method()),
	}
}

// refresh redraws the stateful items from the controller.
func (t *Tray) refresh() {
	st := t.state()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.menuPause != nil {
		t.menuPause.SetTitle(st.pause)
	}
	if t.menuAuto != nil {
		if st.auto {
			t.menuAuto.Check()
		} else {
			t.menuAuto.Uncheck()
		}
	}
	if t.menuMethod != nil {
		t.menuMethod.SetTitle(st.method)
	}
}

func (t *Tray) handleOpen() {
	t.mu.RLock()
	callback := t.onOpen
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Found implements tracker.Listener. Only acquisitions update the menu.
func (t *Tray) Found(res detect.Result) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.found {
		return
	}
	t.found = true
	t.setLastLocked(fmt.Sprintf("found at (%d, %d)", res.Center.X, res.Center.Y))
}

// Lost implements tracker.Listener.
func (t *Tray) Lost() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.found = false
	t.setLastLocked("lost")
}

func (t *Tray) setLastLocked(s string) {
	t.last = s
	if t.menuLast != nil {
		t.menuLast.SetTitle("Last: " + s)
	}
}

// Last returns the text of the last tracking event.
func (t *Tray) Last() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last
}

func pauseTitle(paused bool) string {
	if paused {
		return "▶ Resume"
	}
	return "❚❚ Pause"
}

func methodTitle(m detect.Method) string {
	return "Method: " + m.String()
}
