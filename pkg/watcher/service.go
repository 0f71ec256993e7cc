// Package watcher polls files for modification. The scheduler drives the
// checks; the service keeps no goroutine of its own.
package watcher

import (
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Service monitors files for mtime changes.
type Service struct {
	mu    sync.Mutex
	files map[string]time.Time
}

// NewService creates a monitor for the given files. A file that does not
// exist yet is reported as changed on first appearance.
func NewService(paths []string) (*Service, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to watch")
	}

	files := make(map[string]time.Time, len(paths))
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to stat %s: %w", path, err)
			}
			slog.Warn("Watcher: File does not exist yet", "path", path)
			files[path] = time.Time{}
			continue
		}
		files[path] = info.ModTime()
	}

	return &Service{files: files}, nil
}

// CheckChanged returns a watched file whose mtime moved since the last
// check, or ("", false) when nothing changed. One file per call; repeated
// calls drain multiple simultaneous changes.
func (s *Service) CheckChanged() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for path, last := range s.files {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		mt := info.ModTime()
		if mt.After(last) {
			s.files[path] = mt
			slog.Info("Watcher: File changed", "path", path)
			return path, true
		}
	}

	return "", false
}
