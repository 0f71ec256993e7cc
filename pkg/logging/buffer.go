package logging

import "sync"

// captureLines bounds the ring each capture writer keeps.
const captureLines = 16

// CaptureWriter is a thread-safe io.Writer that keeps the most recent
// lines written through it, so status endpoints can poll the stream
// without tailing real log output. Each Write is treated as one line.
type CaptureWriter struct {
	mu    sync.RWMutex
	lines []string
}

// GlobalLogCapture receives every server log line.
var GlobalLogCapture = &CaptureWriter{}

// GlobalEventCapture receives operations events only.
var GlobalEventCapture = &CaptureWriter{}

// Write implements io.Writer.
func (w *CaptureWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, string(p))
	if len(w.lines) > captureLines {
		w.lines = w.lines[len(w.lines)-captureLines:]
	}
	return len(p), nil
}

// GetLastLine returns the most recent line, or "" before the first Write.
func (w *CaptureWriter) GetLastLine() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.lines) == 0 {
		return ""
	}
	return w.lines[len(w.lines)-1]
}

// Recent returns up to n of the most recent lines, oldest first.
func (w *CaptureWriter) Recent(n int) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if n <= 0 || n > len(w.lines) {
		n = len(w.lines)
	}
	out := make([]string, n)
	copy(out, w.lines[len(w.lines)-n:])
	return out
}
