package hook

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/ayusman/sightline/internal/detect"
)

// queueSize bounds the events waiting for a hook run. Events beyond it are
// dropped rather than stalling the tracking loop.
const queueSize = 16

// Runner turns tracker callbacks into hook runs. It fires EventFound when a
// target is acquired and EventLost when it disappears; repeated found
// frames in between are ignored. Hooks run on a single background worker
// in event order.
type Runner struct {
	mgr  *Manager
	exec *Executor

	mu     sync.Mutex
	found  bool
	closed bool
	queue  chan Request

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	now func() time.Time
}

// NewRunner starts a runner for the hooks mgr has discovered.
func NewRunner(mgr *Manager, exec *Executor) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Runner{
		mgr:    mgr,
		exec:   exec,
		queue:  make(chan Request, queueSize),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go r.work()
	return r
}

// Found implements tracker.Listener.
func (r *Runner) Found(res detect.Result) {
	r.mu.Lock()
	acquired := !r.found
	r.found = true
	r.mu.Unlock()

	if !acquired {
		return
	}
	r.Fire(Request{
		Event:      EventFound,
		Center:     &Point{X: res.Center.X, Y: res.Center.Y},
		Confidence: res.Confidence,
	})
}

// Lost implements tracker.Listener.
func (r *Runner) Lost() {
	r.mu.Lock()
	wasFound := r.found
	r.found = false
	r.mu.Unlock()

	if !wasFound {
		return
	}
	r.Fire(Request{Event: EventLost})
}

// Fire queues req for every hook subscribed to its event. It reports false
// when the runner is closed or the queue is full.
func (r *Runner) Fire(req Request) bool {
	if req.Time.IsZero() {
		req.Time = r.now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false
	}
	select {
	case r.queue <- req:
		return true
	default:
		log.Printf("hook: queue full, dropping %s event", req.Event)
		return false
	}
}

// Close stops accepting events, lets queued runs finish and waits for the
// worker. Calling it again is a no-op.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	r.cancel()
}

func (r *Runner) work() {
	defer close(r.done)
	for req := range r.queue {
		r.dispatch(req)
	}
}

func (r *Runner) dispatch(req Request) {
	for _, h := range r.mgr.For(req.Event) {
		hreq := req
		resp, err := r.exec.Execute(r.ctx, h, &hreq)
		if err != nil {
			log.Printf("hook: %s: %v", h.Manifest.Name, err)
			continue
		}
		if !resp.Success {
			log.Printf("hook: %s: %s", h.Manifest.Name, resp.Error)
		}
	}
}
