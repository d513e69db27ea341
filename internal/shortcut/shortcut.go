// Package shortcut maps global hotkeys onto tracker controls.
package shortcut

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
)

// ErrUnknownBinding is returned by Trigger for an unregistered name.
var ErrUnknownBinding = errors.New("unknown shortcut")

// Binding ties a key combination to an action.
type Binding struct {
	Name        string
	Keys        []string
	Description string
	Action      func()
}

// Combo renders the key combination, e.g. "Ctrl+Shift+Q".
func (b Binding) Combo() string {
	parts := make([]string, 0, len(b.Keys))
	for _, k := range orderKeys(b.Keys) {
		parts = append(parts, strings.ToUpper(k[:1])+k[1:])
	}
	return strings.Join(parts, "+")
}

// orderKeys lists modifiers first so combos read naturally.
func orderKeys(keys []string) []string {
	rank := map[string]int{"ctrl": 0, "alt": 1, "shift": 2, "cmd": 3}
	out := append([]string(nil), keys...)
	sort.SliceStable(out, func(i, j int) bool {
		ri, ok := rank[out[i]]
		if !ok {
			ri = 10
		}
		rj, ok := rank[out[j]]
		if !ok {
			rj = 10
		}
		return ri < rj
	})
	return out
}

// Backend delivers global key events.
type Backend interface {
	// Register arranges for fn to run when keys are pressed together.
	Register(keys []string, fn func())
	// Start begins listening. It does not block.
	Start() error
	// Stop ends listening.
	Stop()
}

// Dispatcher owns the registered bindings and the backend that feeds them.
type Dispatcher struct {
	backend  Backend
	mu       sync.Mutex
	bindings []Binding
	running  bool
}

// NewDispatcher creates a dispatcher on backend.
func NewDispatcher(backend Backend) *Dispatcher {
	return &Dispatcher{backend: backend}
}

// Register adds b. Bindings must be registered before Start.
func (d *Dispatcher) Register(b Binding) error {
	if b.Name == "" || len(b.Keys) == 0 || b.Action == nil {
		return fmt.Errorf("shortcut %q: name, keys and action are required", b.Name)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("shortcut %q: dispatcher already started", b.Name)
	}
	for _, existing := range d.bindings {
		if existing.Name == b.Name {
			return fmt.Errorf("shortcut %q: already registered", b.Name)
		}
	}
	d.bindings = append(d.bindings, b)
	return nil
}

// Bindings returns the registered bindings in registration order.
func (d *Dispatcher) Bindings() []Binding {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Binding(nil), d.bindings...)
}

// Help returns one line per binding.
func (d *Dispatcher) Help() string {
	var sb strings.Builder
	sb.WriteString("Keyboard shortcuts:\n")
	for _, b := range d.Bindings() {
		fmt.Fprintf(&sb, "  %-16s %s\n", b.Combo(), b.Description)
	}
	return sb.String()
}

// Start registers every binding with the backend and begins listening.
func (d *Dispatcher) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	for _, b := range d.bindings {
		b := b
		d.backend.Register(b.Keys, func() { d.run(b) })
	}
	if err := d.backend.Start(); err != nil {
		return fmt.Errorf("start shortcut listener: %w", err)
	}

	d.running = true
	log.Printf("shortcut: listening for %d shortcuts", len(d.bindings))
	return nil
}

// Stop ends listening. It is safe to call more than once.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	d.backend.Stop()
	d.running = false
}

// Trigger runs the binding called name as if its keys were pressed.
func (d *Dispatcher) Trigger(name string) error {
	for _, b := range d.Bindings() {
		if b.Name == name {
			d.run(b)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownBinding, name)
}

// run executes b, containing any panic so the hook goroutine survives.
func (d *Dispatcher) run(b Binding) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("shortcut: %s: panic: %v", b.Name, r)
		}
	}()
	b.Action()
}
