// Package server provides the HTTP control panel for sightline.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ayusman/sightline/internal/config"
	"github.com/ayusman/sightline/internal/server/api"
	"github.com/ayusman/sightline/internal/store"
)

// Config holds the server configuration. Routes are registered only for
// the parts that are set.
type Config struct {
	StaticDir string
	Store     *store.Store
	Tracker   Tracker
	Events    *EventHub

	// Settings is the live configuration served at /api/config. Updates
	// are written back to ConfigPath when it is set.
	Settings   *config.Config
	ConfigPath string
}

// Server is the control panel HTTP handler.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
	cfg    *configHandler
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)

		settings := api.NewSettingsHandler(s.config.Store)
		s.mux.Handle("/api/settings", settings)
		s.mux.Handle("/api/settings/", settings)
	}

	if s.config.Tracker != nil {
		s.mux.HandleFunc("/api/status", s.handleStatus)
		s.mux.HandleFunc("/api/control", s.handleControl)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.Tracker))
	}

	if s.config.Settings != nil {
		s.cfg = &configHandler{
			cfg:     s.config.Settings,
			path:    s.config.ConfigPath,
			tracker: s.config.Tracker,
		}
		s.mux.Handle("/api/config", s.cfg)
	}

	if s.config.Events != nil {
		s.mux.Handle("/api/events", s.config.Events)
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.Tracker != nil {
		resp["tracking"] = s.config.Tracker.Status().State
	}
	if s.config.Events != nil {
		resp["clients"] = s.config.Events.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListenAndServe serves on addr until the listener fails. The MJPEG stream
// and event feed are long-lived, so only header reads are bounded.
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
