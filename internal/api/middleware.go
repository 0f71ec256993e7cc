package api

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"skyroute/pkg/logging"
	"skyroute/pkg/ratelimit"
)

// statusWriter records the response code for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack forwards to the underlying writer so websocket upgrades work
// behind the logging wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

// requestLog writes one line per request to the request log.
func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		if logging.RequestLogger == nil {
			return
		}
		logging.RequestLogger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"ip", ratelimit.ClientIP(r),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
