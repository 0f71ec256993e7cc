package api

import (
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"skyroute/pkg/fleet"
	"skyroute/pkg/geofence"
	"skyroute/pkg/model"
	"skyroute/pkg/ratelimit"
	"skyroute/pkg/telemetry"
	"skyroute/pkg/tracker"
	"skyroute/pkg/version"
)

// StatsHandler serves the operations dashboard snapshot.
type StatsHandler struct {
	store   fleet.Store
	monitor *telemetry.Monitor
	tracker *tracker.Tracker
	limiter *ratelimit.Limiter
	zones   *geofence.Registry
	started time.Time

	mu      sync.Mutex
	maxHeap uint64
}

// NewStatsHandler creates a new stats handler. Monitor, tracker, limiter
// and zones may be nil; the matching sections are then empty.
func NewStatsHandler(st fleet.Store, mon *telemetry.Monitor, tr *tracker.Tracker, lim *ratelimit.Limiter, zones *geofence.Registry) *StatsHandler {
	return &StatsHandler{
		store:   st,
		monitor: mon,
		tracker: tr,
		limiter: lim,
		zones:   zones,
		started: time.Now(),
	}
}

// ProviderStatsDTO is a provider's upstream usage with a derived hit rate.
type ProviderStatsDTO struct {
	CacheHits     int64 `json:"cache_hits"`
	CacheMisses   int64 `json:"cache_misses"`
	APISuccess    int64 `json:"api_success"`
	APIZeroResult int64 `json:"api_zero"`
	APIFailures   int64 `json:"api_errors"`
	HitRate       int64 `json:"hit_rate"`
}

// FleetStats summarizes the fleet's current shape.
type FleetStats struct {
	Drones          map[string]int `json:"drones"` // status -> count
	DronesTotal     int            `json:"drones_total"`
	PendingOrders   int            `json:"pending_orders"`
	DeliveredOrders int            `json:"delivered_orders"`
	ActiveMissions  int            `json:"active_missions"`
}

// RuntimeStats is the server's own footprint.
type RuntimeStats struct {
	Goroutines int    `json:"goroutines"`
	HeapMB     uint64 `json:"heap_mb"`
	HeapMaxMB  uint64 `json:"heap_max_mb"`
	UptimeSec  int64  `json:"uptime_sec"`
}

type StatsResponse struct {
	Fleet       FleetStats                  `json:"fleet"`
	Health      map[string]int              `json:"health"` // verdict -> count, reporting drones only
	Providers   map[string]ProviderStatsDTO `json:"providers"`
	RateLimited int                         `json:"tracked_clients"`
	Zones       int                         `json:"zones"`
	Runtime     RuntimeStats                `json:"runtime"`
	Version     string                      `json:"version"`
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{
		Fleet:     h.gatherFleet(r),
		Health:    h.gatherHealth(),
		Providers: make(map[string]ProviderStatsDTO),
		Runtime:   h.gatherRuntime(),
		Version:   version.Version,
	}

	if h.tracker != nil {
		for provider, stats := range h.tracker.Snapshot() {
			totalCache := stats.CacheHits + stats.CacheMisses
			hitRate := int64(0)
			if totalCache > 0 {
				hitRate = (stats.CacheHits * 100) / totalCache
			}
			resp.Providers[provider] = ProviderStatsDTO{
				CacheHits:     stats.CacheHits,
				CacheMisses:   stats.CacheMisses,
				APISuccess:    stats.APISuccess,
				APIZeroResult: stats.APIZeroResult,
				APIFailures:   stats.APIFailures,
				HitRate:       hitRate,
			}
		}
	}

	if h.limiter != nil {
		resp.RateLimited = h.limiter.Visitors()
	}
	if h.zones != nil {
		resp.Zones = h.zones.Count()
	}

	writeJSON(w, http.StatusOK, resp)
}

// gatherFleet counts what it can; a failed count logs and reads zero
// rather than failing the whole snapshot.
func (h *StatsHandler) gatherFleet(r *http.Request) FleetStats {
	ctx := r.Context()
	fs := FleetStats{Drones: make(map[string]int)}

	drones, err := h.store.ListDrones(ctx)
	if err != nil {
		slog.Error("Stats: drone list failed", "error", err)
	}
	for _, d := range drones {
		fs.Drones[string(d.Status)]++
	}
	fs.DronesTotal = len(drones)

	if n, err := h.store.CountOrders(ctx, model.OrderPending); err == nil {
		fs.PendingOrders = n
	} else {
		slog.Error("Stats: pending count failed", "error", err)
	}
	if n, err := h.store.CountOrders(ctx, model.OrderDelivered); err == nil {
		fs.DeliveredOrders = n
	} else {
		slog.Error("Stats: delivered count failed", "error", err)
	}
	if n, err := h.store.CountActiveMissions(ctx); err == nil {
		fs.ActiveMissions = n
	} else {
		slog.Error("Stats: active mission count failed", "error", err)
	}

	return fs
}

func (h *StatsHandler) gatherHealth() map[string]int {
	health := make(map[string]int)
	if h.monitor == nil {
		return health
	}
	for _, v := range h.monitor.HealthAll() {
		health[string(v.Status)]++
	}
	return health
}

func (h *StatsHandler) gatherRuntime() RuntimeStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	heap := ms.HeapAlloc

	h.mu.Lock()
	if heap > h.maxHeap {
		h.maxHeap = heap
	}
	maxHeap := h.maxHeap
	h.mu.Unlock()

	return RuntimeStats{
		Goroutines: runtime.NumGoroutine(),
		HeapMB:     bToMb(heap),
		HeapMaxMB:  bToMb(maxHeap),
		UptimeSec:  int64(time.Since(h.started).Seconds()),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}
