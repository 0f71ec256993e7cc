package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"skyroute/pkg/fleet"
	"skyroute/pkg/model"
	"skyroute/pkg/store"
	"skyroute/pkg/telemetry"
)

// DroneHandler exposes the vehicle registry, per-drone health verdicts,
// and recent flight tracks.
type DroneHandler struct {
	fleet   *fleet.Service
	monitor *telemetry.Monitor
	tracks  store.TelemetryStore
}

// NewDroneHandler creates a new drone handler. Monitor and track store
// may be nil; the matching endpoints then answer 404 or empty.
func NewDroneHandler(svc *fleet.Service, mon *telemetry.Monitor, tracks store.TelemetryStore) *DroneHandler {
	return &DroneHandler{fleet: svc, monitor: mon, tracks: tracks}
}

// HandleRegister handles POST /api/drones.
func (h *DroneHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var d model.Drone
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.fleet.RegisterDrone(r.Context(), &d); err != nil {
		writeFleetError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, &d)
}

// HandleList handles GET /api/drones.
func (h *DroneHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	drones, err := h.fleet.ListDrones(r.Context())
	if err != nil {
		writeFleetError(w, err)
		return
	}
	if drones == nil {
		drones = []*model.Drone{}
	}

	writeJSON(w, http.StatusOK, drones)
}

// HandleGet handles GET /api/drones/{id}.
func (h *DroneHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	d, err := h.fleet.GetDrone(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFleetError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// HandleHealth handles GET /api/drones/{id}/health.
func (h *DroneHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// The drone must exist even when the monitor has never heard from it.
	if _, err := h.fleet.GetDrone(r.Context(), id); err != nil {
		writeFleetError(w, err)
		return
	}

	if h.monitor == nil {
		http.Error(w, "telemetry monitor disabled", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, h.monitor.Health(id))
}

// HandleTrack handles GET /api/drones/{id}/track. The optional "since"
// param is RFC3339; the default is the last hour.
func (h *DroneHandler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if _, err := h.fleet.GetDrone(r.Context(), id); err != nil {
		writeFleetError(w, err)
		return
	}

	since := time.Now().Add(-time.Hour)
	if s := r.URL.Query().Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		since = t
	}

	var track []*model.Telemetry
	if h.tracks != nil {
		var err error
		track, err = h.tracks.GetTrack(r.Context(), id, since)
		if err != nil {
			slog.Error("Failed to load track", "drone", id, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
	}
	if track == nil {
		track = []*model.Telemetry{}
	}

	writeJSON(w, http.StatusOK, track)
}
