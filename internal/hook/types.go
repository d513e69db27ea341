// Package hook runs external programs when the tracker acquires or loses
// its target.
package hook

import (
	"encoding/json"
	"slices"
	"time"
)

// Event names a tracking transition.
type Event string

const (
	EventFound Event = "found"
	EventLost  Event = "lost"
)

// Manifest describes a hook and the events it subscribes to.
type Manifest struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Executable  string          `json:"executable"`
	Events      []Event         `json:"events"`
	Config      json.RawMessage `json:"config,omitempty"`
}

// Point is a screen coordinate.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Request is written to the hook's stdin as JSON.
type Request struct {
	Event      Event           `json:"event"`
	Center     *Point          `json:"center,omitempty"`
	Confidence float64         `json:"confidence"`
	Time       time.Time       `json:"time"`
	Config     json.RawMessage `json:"config,omitempty"`
}

// Response is read from the hook's stdout.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Hook is a discovered hook with its location on disk.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}

// Handles reports whether h subscribes to ev. A manifest without events
// subscribes to all of them.
func (h *Hook) Handles(ev Event) bool {
	return len(h.Manifest.Events) == 0 || slices.Contains(h.Manifest.Events, ev)
}
