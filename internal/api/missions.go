package api

import (
	"encoding/json"
	"net/http"

	"skyroute/pkg/fleet"
	"skyroute/pkg/model"
	"skyroute/pkg/route"
)

// MissionHandler exposes dispatch and the mission lifecycle.
type MissionHandler struct {
	fleet *fleet.Service
}

// NewMissionHandler creates a new mission handler.
func NewMissionHandler(svc *fleet.Service) *MissionHandler {
	return &MissionHandler{fleet: svc}
}

// AssignRequest is the dispatch request body. DroneID is optional; when
// empty the dispatcher picks the best available vehicle.
type AssignRequest struct {
	OrderID string `json:"order_id"`
	DroneID string `json:"drone_id,omitempty"`
}

// AssignResponse carries the planned mission and the route behind it.
// The route is returned once here and not persisted.
type AssignResponse struct {
	Mission *model.Mission `json:"mission"`
	Route   *route.Route   `json:"route"`
}

// HandleAssign handles POST /api/missions/assign.
func (h *MissionHandler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	var req AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrderID == "" {
		http.Error(w, "order_id is required", http.StatusBadRequest)
		return
	}

	m, rt, err := h.fleet.Dispatch(r.Context(), req.OrderID, req.DroneID)
	if err != nil {
		writeFleetError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, AssignResponse{Mission: m, Route: rt})
}

// HandleStart handles POST /api/missions/{id}/start.
func (h *MissionHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	m, err := h.fleet.StartMission(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFleetError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// HandleComplete handles POST /api/missions/{id}/complete.
func (h *MissionHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	m, err := h.fleet.CompleteMission(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFleetError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// HandleList handles GET /api/missions. Optional query params: status, limit.
func (h *MissionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := model.MissionStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 0)

	missions, err := h.fleet.ListMissions(r.Context(), status, limit)
	if err != nil {
		writeFleetError(w, err)
		return
	}
	if missions == nil {
		missions = []*model.Mission{}
	}

	writeJSON(w, http.StatusOK, missions)
}

// HandleGet handles GET /api/missions/{id}.
func (h *MissionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	m, err := h.fleet.GetMission(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFleetError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, m)
}
