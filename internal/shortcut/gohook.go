package shortcut

import (
	"sync"

	hook "github.com/robotn/gohook"
)

// GoHookBackend listens for global key presses with gohook.
type GoHookBackend struct {
	mu   sync.Mutex
	done <-chan bool
}

// NewGoHookBackend returns a backend bound to the system keyboard.
func NewGoHookBackend() *GoHookBackend {
	return &GoHookBackend{}
}

func (b *GoHookBackend) Register(keys []string, fn func()) {
	hook.Register(hook.KeyDown, keys, func(hook.Event) {
		fn()
	})
}

func (b *GoHookBackend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	events := hook.Start()
	b.done = hook.Process(events)
	return nil
}

func (b *GoHookBackend) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	hook.End()
	b.done = nil
}
