package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ayusman/sightline/internal/store"
)

// newTestStore creates a new Store with a temporary database for testing.
func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})

	return s
}

func createSession(t *testing.T, s *store.Store, id string, started time.Time) {
	t.Helper()

	ended := started.Add(10 * time.Second)
	sess := &store.Session{
		ID:         id,
		Method:     "color",
		Region:     "100,200 640x480",
		StartedAt:  started,
		EndedAt:    &ended,
		Frames:     300,
		Detections: 150,
	}
	if err := s.Sessions().Create(sess); err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
}

func TestSessionHandler_List(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	createSession(t, s, "older", base)
	createSession(t, s, "newer", base.Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}

	var resp listSessionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(resp.Sessions))
	}
	if resp.Sessions[0].ID != "newer" {
		t.Errorf("expected newest first, got %q", resp.Sessions[0].ID)
	}
	if resp.Sessions[0].DetectionRate != 0.5 {
		t.Errorf("expected detection rate 0.5, got %v", resp.Sessions[0].DetectionRate)
	}
	if resp.Sessions[0].DurationSec != 10 {
		t.Errorf("expected duration 10s, got %v", resp.Sessions[0].DurationSec)
	}
}

func TestSessionHandler_ListLimit(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		createSession(t, s, id, base.Add(time.Duration(i)*time.Minute))
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions?limit=2", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp listSessionsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Sessions) != 2 {
		t.Errorf("expected 2 sessions, got %d", len(resp.Sessions))
	}

	req = httptest.NewRequest(http.MethodGet, "/api/sessions?limit=abc", nil)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status %d for bad limit, got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestSessionHandler_Get(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)

	createSession(t, s, "sess-1", time.Now().Add(-time.Minute))
	for _, kind := range []store.EventKind{store.EventFound, store.EventLost} {
		if err := s.Events().Append(&store.Event{SessionID: "sess-1", Kind: kind, X: 10, Y: 20}); err != nil {
			t.Fatalf("failed to append event: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sessions/sess-1", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp sessionDetailResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.ID != "sess-1" {
		t.Errorf("expected ID sess-1, got %q", resp.ID)
	}
	if len(resp.Events) != 2 || resp.Events[0].Kind != "found" || resp.Events[1].Kind != "lost" {
		t.Errorf("unexpected events: %+v", resp.Events)
	}
}

func TestSessionHandler_NotFound(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		req := httptest.NewRequest(method, "/api/sessions/missing", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected status %d, got %d", method, http.StatusNotFound, rec.Code)
		}
	}
}

func TestSessionHandler_Delete(t *testing.T) {
	s := newTestStore(t)
	handler := NewSessionHandler(s)
	createSession(t, s, "gone", time.Now())

	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/gone", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if _, err := s.Sessions().GetByID("gone"); err != store.ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSessionHandler_MethodNotAllowed(t *testing.T) {
	handler := NewSessionHandler(newTestStore(t))

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
	}
}
