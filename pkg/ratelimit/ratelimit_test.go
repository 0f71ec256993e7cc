package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"skyroute/pkg/config"
)

func newTestLimiter(cfg config.RateLimitConfig) (*Limiter, func(d time.Duration)) {
	l := New(&cfg)
	current := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return current }
	return l, func(d time.Duration) { current = current.Add(d) }
}

func TestAllowWithinBudget(t *testing.T) {
	l, _ := newTestLimiter(config.RateLimitConfig{PerMinute: 5, PerHour: 500})

	for i := 0; i < 5; i++ {
		if ok, reason, _ := l.Allow("10.0.0.1"); !ok {
			t.Fatalf("request %d refused: %s", i+1, reason)
		}
	}

	ok, reason, retry := l.Allow("10.0.0.1")
	if ok {
		t.Fatal("6th request allowed past a 5/min budget")
	}
	if !strings.Contains(reason, "requests/minute") {
		t.Errorf("reason = %q", reason)
	}
	if retry <= 0 || retry > time.Minute {
		t.Errorf("retryAfter = %v", retry)
	}

	// Other addresses are unaffected
	if ok, _, _ := l.Allow("10.0.0.2"); !ok {
		t.Error("separate address throttled")
	}
}

func TestWindowSlides(t *testing.T) {
	l, advance := newTestLimiter(config.RateLimitConfig{PerMinute: 2, PerHour: 500})

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.1")
	if ok, _, _ := l.Allow("10.0.0.1"); ok {
		t.Fatal("budget not enforced")
	}

	advance(61 * time.Second)
	if ok, reason, _ := l.Allow("10.0.0.1"); !ok {
		t.Errorf("window did not slide: %s", reason)
	}
}

func TestHourBudget(t *testing.T) {
	l, advance := newTestLimiter(config.RateLimitConfig{PerMinute: 3, PerHour: 5})

	// Spread requests so the minute window never trips
	for i := 0; i < 5; i++ {
		if ok, reason, _ := l.Allow("10.0.0.1"); !ok {
			t.Fatalf("request %d refused: %s", i+1, reason)
		}
		advance(time.Minute)
	}

	ok, reason, retry := l.Allow("10.0.0.1")
	if ok {
		t.Fatal("6th request allowed past a 5/hr budget")
	}
	if !strings.Contains(reason, "requests/hour") {
		t.Errorf("reason = %q", reason)
	}
	if retry < 50*time.Minute || retry > time.Hour {
		t.Errorf("retryAfter = %v, want close to the hour window", retry)
	}
}

func TestBanAfterViolations(t *testing.T) {
	l, advance := newTestLimiter(config.RateLimitConfig{
		PerMinute:    1,
		PerHour:      500,
		BanThreshold: 3,
		BanDuration:  config.Duration(time.Hour),
	})

	l.Allow("10.0.0.1") // uses the budget

	// Two violations, then the third triggers the ban
	for i := 0; i < 3; i++ {
		if ok, _, _ := l.Allow("10.0.0.1"); ok {
			t.Fatalf("violation %d unexpectedly allowed", i+1)
		}
	}

	ok, reason, retry := l.Allow("10.0.0.1")
	if ok {
		t.Fatal("banned address allowed")
	}
	if !strings.Contains(reason, "banned") {
		t.Errorf("reason = %q", reason)
	}
	if retry <= 59*time.Minute {
		t.Errorf("ban retry = %v, want about an hour", retry)
	}

	// Ban expires
	advance(61 * time.Minute)
	if ok, reason, _ := l.Allow("10.0.0.1"); !ok {
		t.Errorf("expired ban still enforced: %s", reason)
	}
}

func TestLazyEviction(t *testing.T) {
	l, advance := newTestLimiter(config.RateLimitConfig{PerMinute: 500, PerHour: 500})

	l.Allow("10.0.0.1")
	if l.Visitors() != 1 {
		t.Fatalf("Visitors = %d", l.Visitors())
	}

	advance(2 * time.Hour)

	// The eviction runs every 100 Allow calls
	for i := 0; i < 100; i++ {
		l.Allow("10.0.0.2")
	}
	if l.Visitors() != 1 {
		t.Errorf("stale visitor not evicted, Visitors = %d", l.Visitors())
	}
}

func TestCleanup(t *testing.T) {
	l, advance := newTestLimiter(config.RateLimitConfig{PerMinute: 500, PerHour: 500})

	l.Allow("10.0.0.1")
	l.Allow("10.0.0.2")
	advance(2 * time.Hour)
	l.Allow("10.0.0.3")

	l.Cleanup()
	if l.Visitors() != 1 {
		t.Errorf("Visitors = %d, want 1", l.Visitors())
	}
}

func TestMiddleware(t *testing.T) {
	l := New(&config.RateLimitConfig{PerMinute: 2, PerHour: 500})

	var served int
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		served++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/orders", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status %d", i+1, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/orders", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
	if served != 2 {
		t.Errorf("handler served %d times, want 2", served)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"direct", "10.0.0.1:5555", "", "10.0.0.1"},
		{"proxied", "127.0.0.1:80", "203.0.113.7", "203.0.113.7"},
		{"proxy chain", "127.0.0.1:80", "203.0.113.7, 10.0.0.1", "203.0.113.7"},
		{"no port", "10.0.0.9", "", "10.0.0.9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			if got := ClientIP(req); got != tt.want {
				t.Errorf("ClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
