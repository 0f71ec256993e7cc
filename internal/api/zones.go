package api

import (
	"net/http"

	"skyroute/pkg/geo"
	"skyroute/pkg/geofence"
)

// ZoneHandler exposes the no-fly zone registry.
type ZoneHandler struct {
	reg *geofence.Registry
}

// NewZoneHandler creates a new zone handler. Returns nil without a
// registry so the server skips the routes.
func NewZoneHandler(reg *geofence.Registry) *ZoneHandler {
	if reg == nil {
		return nil
	}
	return &ZoneHandler{reg: reg}
}

// HandleAll handles GET /api/zones.
func (h *ZoneHandler) HandleAll(w http.ResponseWriter, r *http.Request) {
	zones := h.reg.All()
	if zones == nil {
		zones = []geofence.Zone{}
	}

	writeJSON(w, http.StatusOK, zones)
}

// HandleNear handles GET /api/zones/near?lat=&lon=. Both params are
// required; the lookup covers the point's H3 cell and its neighbors.
func (h *ZoneHandler) HandleNear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("lat") == "" || r.URL.Query().Get("lon") == "" {
		http.Error(w, "lat and lon are required", http.StatusBadRequest)
		return
	}
	lat, err := queryFloat(r, "lat", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	lon, err := queryFloat(r, "lon", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	zones, err := h.reg.ZonesNear(geo.Point{Lat: lat, Lon: lon})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if zones == nil {
		zones = []geofence.Zone{}
	}

	writeJSON(w, http.StatusOK, zones)
}
