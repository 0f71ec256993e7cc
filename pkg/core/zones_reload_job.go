package core

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"skyroute/pkg/geofence"
	"skyroute/pkg/watcher"
)

// ZonesReloadJob polls the no-fly zones file and reloads the registry
// when it changes. A reload that fails to parse keeps the previous zone
// set, so a half-written file never drops airspace.
type ZonesReloadJob struct {
	BaseJob
	watch     *watcher.Service
	zones     *geofence.Registry
	interval  time.Duration
	lastCheck int64 // unix nanos, shared with the tick loop
}

func NewZonesReloadJob(w *watcher.Service, r *geofence.Registry, interval time.Duration) *ZonesReloadJob {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ZonesReloadJob{
		BaseJob:  NewBaseJob("ZonesReload"),
		watch:    w,
		zones:    r,
		interval: interval,
	}
}

func (j *ZonesReloadJob) ShouldFire() bool {
	if !j.Idle() {
		return false
	}
	last := atomic.LoadInt64(&j.lastCheck)
	if last == 0 {
		return true
	}
	return time.Since(time.Unix(0, last)) >= j.interval
}

// Run stats the watched file and reloads on change. The stat is cheap,
// so Run doubles as the poll.
func (j *ZonesReloadJob) Run(ctx context.Context) {
	if !j.TryLock() {
		return
	}
	defer j.Unlock()

	atomic.StoreInt64(&j.lastCheck, time.Now().UnixNano())

	path, changed := j.watch.CheckChanged()
	if !changed {
		return
	}
	if err := j.zones.LoadFile(path); err != nil {
		slog.Error("ZonesReload: keeping previous zone set", "path", path, "error", err)
		return
	}
	slog.Info("ZonesReload: zones reloaded", "path", path, "count", j.zones.Count())
}
