// Package api is the HTTP surface of the dispatch server: order intake,
// fleet and mission control, weather and zone lookups, delivery code
// verification, telemetry ingest, and runtime configuration.
package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"skyroute/pkg/ratelimit"
	"skyroute/pkg/version"
)

// NewServer creates and configures the HTTP server.
// It accepts handlers for all API endpoints and a shutdownFunc for graceful shutdown.
func NewServer(addr string, orders *OrderHandler, drones *DroneHandler, missions *MissionHandler, weatherH *WeatherHandler, zonesH *ZoneHandler, codesH *CodeHandler, cfg *ConfigHandler, stats *StatsHandler, tel *TelemetryHandler, limiter *ratelimit.Limiter, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health and Version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)

	// 2. Orders
	mux.HandleFunc("POST /api/orders", orders.HandleCreate)
	mux.HandleFunc("GET /api/orders", orders.HandleList)
	mux.HandleFunc("GET /api/orders/{id}", orders.HandleGet)
	mux.HandleFunc("DELETE /api/orders/{id}", orders.HandleCancel)

	// 3. Drones
	mux.HandleFunc("POST /api/drones", drones.HandleRegister)
	mux.HandleFunc("GET /api/drones", drones.HandleList)
	mux.HandleFunc("GET /api/drones/{id}", drones.HandleGet)
	mux.HandleFunc("GET /api/drones/{id}/health", drones.HandleHealth)
	mux.HandleFunc("GET /api/drones/{id}/track", drones.HandleTrack)

	// 4. Missions
	mux.HandleFunc("POST /api/missions/assign", missions.HandleAssign)
	mux.HandleFunc("POST /api/missions/{id}/start", missions.HandleStart)
	mux.HandleFunc("POST /api/missions/{id}/complete", missions.HandleComplete)
	mux.HandleFunc("GET /api/missions", missions.HandleList)
	mux.HandleFunc("GET /api/missions/{id}", missions.HandleGet)

	// 5. Weather
	if weatherH != nil {
		mux.HandleFunc("GET /api/weather/current", weatherH.HandleCurrent)
		mux.HandleFunc("GET /api/weather/safety", weatherH.HandleSafety)
	}

	// 6. No-fly zones
	if zonesH != nil {
		mux.HandleFunc("GET /api/zones", zonesH.HandleAll)
		mux.HandleFunc("GET /api/zones/near", zonesH.HandleNear)
	}

	// 7. Delivery codes
	if codesH != nil {
		mux.HandleFunc("POST /api/codes/verify", codesH.HandleVerify)
	}

	// 8. Runtime config
	mux.HandleFunc("/api/config", cfg.HandleConfig)
	mux.HandleFunc("DELETE /api/config/{key}", cfg.HandleReset)

	// 9. Stats and logs
	mux.Handle("GET /api/stats", stats)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)
	mux.HandleFunc("GET /api/events/latest", handleLatestEvent)

	// 10. Telemetry ingest
	if tel != nil {
		mux.HandleFunc("GET /api/telemetry/ws", tel.HandleStream)
		mux.HandleFunc("POST /api/telemetry", tel.HandleReport)
	}

	// 11. Shutdown Endpoint
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Call shutdown in a goroutine to allow response to flush
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	var handler http.Handler = mux
	if limiter != nil {
		handler = limiter.Middleware(handler)
	}
	handler = requestLog(handler)

	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
