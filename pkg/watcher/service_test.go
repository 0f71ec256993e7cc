package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewService(t *testing.T) {
	if _, err := NewService(nil); err == nil {
		t.Error("empty watch list must error")
	}

	path := filepath.Join(t.TempDir(), "zones.geojson")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewService([]string{path})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if len(s.files) != 1 {
		t.Errorf("len(s.files) = %d, want 1", len(s.files))
	}
}

func TestService_CheckChanged(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.geojson")
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := NewService([]string{path})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}

	// 1. Initial check - baseline, nothing changed
	if _, changed := s.CheckChanged(); changed {
		t.Error("baseline check must not report a change")
	}

	// 2. Touch the file (explicit future mtime avoids clock granularity)
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}

	got, changed := s.CheckChanged()
	if !changed {
		t.Fatal("touched file not reported")
	}
	if got != path {
		t.Errorf("changed path = %q, want %q", got, path)
	}

	// 3. No further change
	if _, changed := s.CheckChanged(); changed {
		t.Error("second check must not report again")
	}
}

func TestService_LateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.geojson")

	s, err := NewService([]string{path})
	if err != nil {
		t.Fatalf("Failed to create service: %v", err)
	}

	if _, changed := s.CheckChanged(); changed {
		t.Error("missing file must not report")
	}

	if err := os.WriteFile(path, []byte("here now"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, changed := s.CheckChanged()
	if !changed || got != path {
		t.Errorf("file appearance not reported: (%q, %v)", got, changed)
	}
}
