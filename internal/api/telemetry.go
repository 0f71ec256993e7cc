package api

import (
	"encoding/json"
	"net/http"

	"skyroute/pkg/model"
	"skyroute/pkg/telemetry"
)

// TelemetryHandler ingests drone position reports. The websocket stream
// is the normal path; the POST endpoint serves drones that cannot hold a
// connection.
type TelemetryHandler struct {
	monitor *telemetry.Monitor
}

// NewTelemetryHandler creates a new telemetry handler. Returns nil
// without a monitor so the server skips the routes.
func NewTelemetryHandler(mon *telemetry.Monitor) *TelemetryHandler {
	if mon == nil {
		return nil
	}
	return &TelemetryHandler{monitor: mon}
}

// ReportResponse acknowledges one ingested report with the drone's
// updated health verdict.
type ReportResponse struct {
	Accepted bool               `json:"accepted"`
	Health   *model.DroneHealth `json:"health,omitempty"`
}

// HandleStream handles GET /api/telemetry/ws.
func (h *TelemetryHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	h.monitor.ServeWS(w, r)
}

// HandleReport handles POST /api/telemetry.
func (h *TelemetryHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	var tp model.Telemetry
	if err := json.NewDecoder(r.Body).Decode(&tp); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.monitor.Record(r.Context(), &tp); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, ReportResponse{
		Accepted: true,
		Health:   h.monitor.Health(tp.DroneID),
	})
}
