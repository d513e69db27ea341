package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name         string
		cfg          Config
		wantTracking any
	}{
		{name: "bare server", cfg: Config{}, wantTracking: nil},
		{name: "with tracker", cfg: Config{Tracker: newFakeTracker()}, wantTracking: "idle"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, New(tt.cfg), http.MethodGet, "/api/health")

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var body map[string]any
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["status"] != "ok" {
				t.Errorf("status field = %v, want ok", body["status"])
			}
			if _, ok := body["uptime"]; !ok {
				t.Error("missing uptime")
			}
			if body["tracking"] != tt.wantTracking {
				t.Errorf("tracking = %v, want %v", body["tracking"], tt.wantTracking)
			}
		})
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	s := New(Config{})
	for _, m := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		if rec := serve(t, s, m, "/api/health"); rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s /api/health = %d, want %d", m, rec.Code, http.StatusMethodNotAllowed)
		}
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"index.html": "<html><body>panel</body></html>",
		"app.js":     "console.log('sightline')",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	s := New(Config{StaticDir: dir})

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/", http.StatusOK, files["index.html"]},
		{"/app.js", http.StatusOK, files["app.js"]},
		{"/missing.css", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(t, s, http.MethodGet, tt.path)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantBody != "" && rec.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestUnknownRoutes(t *testing.T) {
	s := New(Config{})
	for _, p := range []string{"/", "/api/nonexistent"} {
		if rec := serve(t, s, http.MethodGet, p); rec.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want %d", p, rec.Code, http.StatusNotFound)
		}
	}
}
