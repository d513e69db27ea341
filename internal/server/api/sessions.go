package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/sightline/internal/store"
)

// SessionHandler serves /api/sessions and /api/sessions/{id}.
type SessionHandler struct {
	store *store.Store
}

// NewSessionHandler creates a SessionHandler on s.
func NewSessionHandler(s *store.Store) *SessionHandler {
	return &SessionHandler{store: s}
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := itemID(r.URL.Path, "/api/sessions")

	if id == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.list(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, id)
	case http.MethodDelete:
		h.delete(w, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type sessionResponse struct {
	ID              string  `json:"id"`
	Method          string  `json:"method"`
	Region          string  `json:"region"`
	StartedAt       string  `json:"started_at"`
	EndedAt         string  `json:"ended_at,omitempty"`
	DurationSec     float64 `json:"duration_sec"`
	Frames          int64   `json:"frames"`
	Detections      int64   `json:"detections"`
	DetectionRate   float64 `json:"detection_rate"`
	Moves           int64   `json:"moves"`
	AvgFPS          float64 `json:"avg_fps"`
	LatencyMeanMs   float64 `json:"latency_mean_ms"`
	LatencyStdDevMs float64 `json:"latency_stddev_ms"`
}

type eventResponse struct {
	Kind       string  `json:"kind"`
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Confidence float64 `json:"confidence"`
	CreatedAt  string  `json:"created_at"`
}

type sessionDetailResponse struct {
	sessionResponse
	Events []eventResponse `json:"events"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

func toSessionResponse(s *store.Session) sessionResponse {
	resp := sessionResponse{
		ID:              s.ID,
		Method:          s.Method,
		Region:          s.Region,
		StartedAt:       s.StartedAt.Format(time.RFC3339),
		DurationSec:     s.Duration().Seconds(),
		Frames:          s.Frames,
		Detections:      s.Detections,
		DetectionRate:   s.DetectionRate(),
		Moves:           s.Moves,
		AvgFPS:          s.AvgFPS,
		LatencyMeanMs:   s.LatencyMeanMs,
		LatencyStdDevMs: s.LatencyStdDevMs,
	}
	if s.EndedAt != nil {
		resp.EndedAt = s.EndedAt.Format(time.RFC3339)
	}
	return resp
}

// list handles GET /api/sessions?limit=N, newest first.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	sessions, err := h.store.Sessions().List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}

	resp := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// get handles GET /api/sessions/{id} and includes the session's events.
func (h *SessionHandler) get(w http.ResponseWriter, id string) {
	s, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	events, err := h.store.Events().ListBySession(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list events")
		return
	}

	resp := sessionDetailResponse{
		sessionResponse: toSessionResponse(s),
		Events:          make([]eventResponse, 0, len(events)),
	}
	for _, e := range events {
		resp.Events = append(resp.Events, eventResponse{
			Kind:       string(e.Kind),
			X:          e.X,
			Y:          e.Y,
			Confidence: e.Confidence,
			CreatedAt:  e.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, id string) {
	if err := h.store.Sessions().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
