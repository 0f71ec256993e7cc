// Package ratelimit throttles API callers per IP: sliding windows for
// per-minute and per-hour budgets, plus a temporary ban once an address
// piles up enough violations. Visitor state is evicted lazily on the
// request path, so idle addresses cost nothing.
package ratelimit

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"skyroute/pkg/config"
)

// cleanupInterval is how often Allow() triggers lazy eviction of stale visitors.
const cleanupInterval = 100

type visitor struct {
	minute     []time.Time
	hour       []time.Time
	violations int
	banUntil   time.Time
	lastSeen   time.Time
}

// Limiter enforces per-IP request budgets.
type Limiter struct {
	mu         sync.Mutex
	visitors   map[string]*visitor
	perMinute  int
	perHour    int
	banAfter   int
	banFor     time.Duration
	allowCalls int

	now func() time.Time
}

// New creates a limiter from config. Zero values fall back to the
// defaults (60/min, 500/hr, ban after 1000 violations for an hour).
func New(cfg *config.RateLimitConfig) *Limiter {
	l := &Limiter{
		visitors:  make(map[string]*visitor),
		perMinute: cfg.PerMinute,
		perHour:   cfg.PerHour,
		banAfter:  cfg.BanThreshold,
		banFor:    time.Duration(cfg.BanDuration),
		now:       time.Now,
	}
	if l.perMinute <= 0 {
		l.perMinute = 60
	}
	if l.perHour <= 0 {
		l.perHour = 500
	}
	if l.banAfter <= 0 {
		l.banAfter = 1000
	}
	if l.banFor <= 0 {
		l.banFor = time.Hour
	}
	return l
}

// Allow records one request from ip and reports whether it may proceed.
// When refused, retryAfter says how long the caller should back off.
func (l *Limiter) Allow(ip string) (allowed bool, reason string, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	l.allowCalls++
	if l.allowCalls%cleanupInterval == 0 {
		l.evictLocked(now)
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{}
		l.visitors[ip] = v
	}
	v.lastSeen = now

	if now.Before(v.banUntil) {
		remaining := v.banUntil.Sub(now)
		return false, fmt.Sprintf("ip banned for %ds due to abuse", int(remaining.Seconds())), remaining
	}

	v.minute = trim(v.minute, now.Add(-time.Minute))
	v.hour = trim(v.hour, now.Add(-time.Hour))

	if len(v.minute) >= l.perMinute {
		retry := v.minute[0].Add(time.Minute).Sub(now)
		return false, fmt.Sprintf("rate limit: %d requests/minute exceeded", l.perMinute), l.punish(ip, v, now, retry)
	}
	if len(v.hour) >= l.perHour {
		retry := v.hour[0].Add(time.Hour).Sub(now)
		return false, fmt.Sprintf("rate limit: %d requests/hour exceeded", l.perHour), l.punish(ip, v, now, retry)
	}

	v.minute = append(v.minute, now)
	v.hour = append(v.hour, now)
	return true, "", 0
}

// punish counts a violation and converts repeat offenders into bans.
func (l *Limiter) punish(ip string, v *visitor, now time.Time, retry time.Duration) time.Duration {
	v.violations++
	if v.violations >= l.banAfter {
		v.banUntil = now.Add(l.banFor)
		v.violations = 0
		slog.Warn("IP banned for abuse", "ip", ip, "duration", l.banFor)
		return l.banFor
	}
	return retry
}

// Cleanup evicts all stale visitors. The request path already evicts
// lazily; this keeps the map small through quiet periods.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evictLocked(l.now())
}

// evictLocked drops visitors idle past the hour window. Banned addresses
// stay until the ban runs out.
func (l *Limiter) evictLocked(now time.Time) {
	cutoff := now.Add(-time.Hour)
	for ip, v := range l.visitors {
		if v.lastSeen.Before(cutoff) && now.After(v.banUntil) {
			delete(l.visitors, ip)
		}
	}
}

// trim drops timestamps at or before cutoff. Timestamps are appended in
// order, so the first survivor marks the new slice start.
func trim(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	return ts[i:]
}

// Visitors returns the number of tracked addresses.
func (l *Limiter) Visitors() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// Middleware wraps next with the limiter. Refusals answer 429 with a
// Retry-After header.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		allowed, reason, retry := l.Allow(ip)
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retry.Seconds())+1))
			http.Error(w, reason, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP extracts the caller address: first X-Forwarded-For hop when a
// proxy fills it, otherwise the connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
