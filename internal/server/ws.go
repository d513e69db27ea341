package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/sightline/internal/detect"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const (
	// positionInterval limits how often found positions are pushed while
	// the target stays acquired.
	positionInterval = 100 * time.Millisecond
	hubBuffer        = 64
	writeTimeout     = time.Second
)

// Message is one event pushed to websocket clients.
type Message struct {
	Type       string  `json:"type"`
	X          int     `json:"x,omitempty"`
	Y          int     `json:"y,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Time       int64   `json:"time"`
}

// EventHub broadcasts tracking events to websocket clients. It implements
// tracker.Listener; callbacks never block on slow clients.
type EventHub struct {
	mu       sync.RWMutex
	clients  map[*websocket.Conn]bool
	found    bool
	lastSent time.Time

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once

	now func() time.Time
}

// NewEventHub creates a hub and starts its broadcaster.
func NewEventHub() *EventHub {
	h := newEventHub()
	go h.broadcast()
	return h
}

func newEventHub() *EventHub {
	return &EventHub{
		clients: make(map[*websocket.Conn]bool),
		out:     make(chan []byte, hubBuffer),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

// Found implements tracker.Listener. The first found frame after a loss is
// always sent; later ones at most every positionInterval.
func (h *EventHub) Found(res detect.Result) {
	now := h.now()

	h.mu.Lock()
	acquired := !h.found
	if !acquired && now.Sub(h.lastSent) < positionInterval {
		h.mu.Unlock()
		return
	}
	h.found = true
	h.lastSent = now
	h.mu.Unlock()

	typ := "position"
	if acquired {
		typ = "found"
	}
	h.publish(Message{
		Type:       typ,
		X:          res.Center.X,
		Y:          res.Center.Y,
		Confidence: res.Confidence,
		Time:       now.UnixMilli(),
	})
}

// Lost implements tracker.Listener.
func (h *EventHub) Lost() {
	h.mu.Lock()
	h.found = false
	h.mu.Unlock()

	h.publish(Message{Type: "lost", Time: h.now().UnixMilli()})
}

func (h *EventHub) publish(m Message) {
	msg, err := json.Marshal(m)
	if err != nil {
		return
	}
	select {
	case h.out <- msg:
	default:
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *EventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close stops the broadcaster. Connected clients are left to the server.
func (h *EventHub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// broadcast is the only writer to client connections.
func (h *EventHub) broadcast() {
	for {
		select {
		case <-h.done:
			return
		case msg := <-h.out:
			h.mu.RLock()
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(writeTimeout))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Printf("server: websocket write: %v", err)
				}
			}
			h.mu.RUnlock()
		}
	}
}
