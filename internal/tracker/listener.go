package tracker

import "github.com/ayusman/sightline/internal/detect"

// Listener receives tracking events. Calls are made synchronously on the
// tracking goroutine, so implementations must return quickly.
type Listener interface {
	// Found is called for every frame in which the target was detected.
	// Coordinates are absolute screen coordinates.
	Found(res detect.Result)
	// Lost is called once when a detected target disappears.
	Lost()
}

// Detacher releases an input source attached to the tracker, such as the
// global shortcut listener.
type Detacher interface {
	Stop()
}

type funcListener struct {
	found func(detect.Result)
	lost  func()
}

func (l funcListener) Found(res detect.Result) {
	if l.found != nil {
		l.found(res)
	}
}

func (l funcListener) Lost() {
	if l.lost != nil {
		l.lost()
	}
}
