package store

import (
	"errors"
	"testing"
)

func TestSettingsRepository(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if _, err := repo.Get("tracking.fps"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() on empty store error = %v, want %v", err, ErrNotFound)
	}

	if err := repo.Set("tracking.fps", "30"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set("tracking.fps", "60"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if err := repo.Set("detection.method", "color"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	v, err := repo.Get("tracking.fps")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v != "60" {
		t.Errorf("Get() = %q, want %q", v, "60")
	}

	all, err := repo.All()
	if err != nil {
		t.Fatalf("All() error = %v", err)
	}
	if len(all) != 2 || all["detection.method"] != "color" {
		t.Errorf("All() = %v, want 2 entries", all)
	}

	if err := repo.Delete("tracking.fps"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete("tracking.fps"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want %v", err, ErrNotFound)
	}
}
