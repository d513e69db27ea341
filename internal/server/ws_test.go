package server

import (
	"encoding/json"
	"image"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/sightline/internal/detect"
)

func TestEventHub_Broadcast(t *testing.T) {
	hub := NewEventHub()
	defer hub.Close()

	ts := httptest.NewServer(hub)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	hub.Found(detect.Result{Found: true, Center: image.Pt(150, 250), Confidence: 0.9})
	hub.Lost()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var msg Message
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "found", msg.Type)
	assert.Equal(t, 150, msg.X)
	assert.Equal(t, 250, msg.Y)

	_, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "lost", msg.Type)
}

func TestEventHub_ThrottlesPositions(t *testing.T) {
	hub := newEventHub()

	now := time.Now()
	hub.now = func() time.Time { return now }

	hit := detect.Result{Found: true, Center: image.Pt(1, 1)}
	hub.Found(hit)
	hub.Found(hit)
	hub.Found(hit)
	assert.Len(t, hub.out, 1, "repeat positions within the interval are dropped")

	now = now.Add(positionInterval)
	hub.Found(hit)
	assert.Len(t, hub.out, 2)

	hub.Lost()
	hub.Found(hit)
	assert.Len(t, hub.out, 4, "a new acquisition is always sent")
}
