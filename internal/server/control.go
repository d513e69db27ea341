package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/sightline/internal/actuate"
	"github.com/ayusman/sightline/internal/config"
	"github.com/ayusman/sightline/internal/detect"
	"github.com/ayusman/sightline/internal/tracker"
)

// Tracker is the part of *tracker.Tracker the control panel drives.
type Tracker interface {
	Status() tracker.Status
	Start() error
	Stop()
	SetPaused(paused bool)
	TogglePause() bool
	SetAutoClick(enabled bool)
	ToggleAutoClick() bool
	SetMouseEnabled(enabled bool)
	CycleMethod() detect.Method
	ResetDetection()
	SetFPS(fps int)
	SetConfidenceThreshold(th float64)
	SetCircleRadius(r int) int
	UpdateMouseSettings(fn func(*actuate.MouseSettings))
	Preview() (image.Image, time.Time, bool)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.config.Tracker.Status())
}

// controlRequest is the body of POST /api/control. Toggle actions flip the
// current value unless Enabled is given; numeric actions read Value.
type controlRequest struct {
	Action  string   `json:"action"`
	Enabled *bool    `json:"enabled,omitempty"`
	Value   *float64 `json:"value,omitempty"`
}

var errMissingValue = errors.New("value is required")

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := applyControl(s.config.Tracker, req); err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, tracker.ErrNotConfigured) || errors.Is(err, tracker.ErrNoTemplate) || errors.Is(err, tracker.ErrShutdown) ||
			errors.Is(err, tracker.ErrStopping) {
			status = http.StatusConflict
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.config.Tracker.Status())
}

func applyControl(t Tracker, req controlRequest) error {
	value := func() (float64, error) {
		if req.Value == nil {
			return 0, fmt.Errorf("%s: %w", req.Action, errMissingValue)
		}
		return *req.Value, nil
	}

	switch req.Action {
	case "start":
		return t.Start()
	case "stop":
		t.Stop()
	case "pause":
		if req.Enabled != nil {
			t.SetPaused(*req.Enabled)
		} else {
			t.TogglePause()
		}
	case "autoclick":
		if req.Enabled != nil {
			t.SetAutoClick(*req.Enabled)
		} else {
			t.ToggleAutoClick()
		}
	case "mouse":
		if req.Enabled == nil {
			return fmt.Errorf("mouse: enabled is required")
		}
		t.SetMouseEnabled(*req.Enabled)
	case "cycle":
		t.CycleMethod()
	case "reset":
		t.ResetDetection()
	case "fps":
		v, err := value()
		if err != nil {
			return err
		}
		t.SetFPS(int(v))
	case "threshold":
		v, err := value()
		if err != nil {
			return err
		}
		t.SetConfidenceThreshold(v)
	case "radius":
		v, err := value()
		if err != nil {
			return err
		}
		t.SetCircleRadius(int(v))
	default:
		return fmt.Errorf("unknown action %q", req.Action)
	}
	return nil
}

// configHandler serves GET and PUT /api/config.
type configHandler struct {
	mu      sync.Mutex
	cfg     *config.Config
	path    string
	tracker Tracker
}

func (h *configHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.mu.Lock()
		defer h.mu.Unlock()
		writeJSON(w, http.StatusOK, h.cfg)

	case http.MethodPut:
		h.update(w, r)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// update decodes the body over a copy of the current configuration,
// validates it, applies the live-tunable fields and persists it.
func (h *configHandler) update(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	next := *h.cfg
	next.Detection.ColorLower = append([]float64(nil), h.cfg.Detection.ColorLower...)
	next.Detection.ColorUpper = append([]float64(nil), h.cfg.Detection.ColorUpper...)
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if err := next.Validate(); err != nil {
		var verr *config.ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": verr.Error(),
				"field": verr.Field,
			})
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	if h.path != "" {
		if err := config.Save(h.path, &next); err != nil {
			log.Printf("server: save config: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to save config")
			return
		}
	}

	*h.cfg = next
	if h.tracker != nil {
		h.apply(&next)
	}
	writeJSON(w, http.StatusOK, h.cfg)
}

func (h *configHandler) apply(c *config.Config) {
	h.tracker.SetFPS(c.Tracking.FPS)
	h.tracker.SetConfidenceThreshold(c.Tracking.ConfidenceThreshold)
	h.tracker.SetCircleRadius(c.Visual.CircleRadius)

	ms := c.MouseSettings()
	h.tracker.UpdateMouseSettings(func(s *actuate.MouseSettings) {
		*s = ms
	})
}
