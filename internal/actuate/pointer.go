// Package actuate drives the system pointer toward detected targets.
package actuate

import (
	"fmt"

	"github.com/go-vgo/robotgo"
)

// Pointer is the platform mouse.
type Pointer interface {
	Move(x, y int) error
	Location() (x, y int)
	// Click presses button ("left", "right", "center") once, or twice when
	// double is set.
	Click(button string, double bool) error
	// Toggle presses ("down") or releases ("up") button.
	Toggle(button, state string) error
	Scroll(dx, dy int) error
}

// RobotPointer drives the real pointer through robotgo.
type RobotPointer struct{}

// NewRobotPointer returns the system pointer.
func NewRobotPointer() *RobotPointer {
	return &RobotPointer{}
}

func (RobotPointer) Move(x, y int) error {
	robotgo.Move(x, y)
	return nil
}

func (RobotPointer) Location() (int, int) {
	return robotgo.Location()
}

func (RobotPointer) Click(button string, double bool) error {
	if !validButton(button) {
		return fmt.Errorf("unknown mouse button %q", button)
	}
	robotgo.Click(button, double)
	return nil
}

func (RobotPointer) Toggle(button, state string) error {
	if !validButton(button) {
		return fmt.Errorf("unknown mouse button %q", button)
	}
	robotgo.Toggle(button, state)
	return nil
}

func (RobotPointer) Scroll(dx, dy int) error {
	robotgo.Scroll(dx, dy)
	return nil
}

func validButton(b string) bool {
	switch b {
	case "left", "right", "center":
		return true
	}
	return false
}
