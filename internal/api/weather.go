package api

import (
	"net/http"
	"strconv"

	"skyroute/pkg/weather"
)

// WeatherHandler exposes the current report and the flight safety verdict.
type WeatherHandler struct {
	svc     *weather.Service
	baseLat float64
	baseLon float64
}

// NewWeatherHandler creates a new weather handler. Returns nil without a
// service so the server skips the routes.
func NewWeatherHandler(svc *weather.Service, baseLat, baseLon float64) *WeatherHandler {
	if svc == nil {
		return nil
	}
	return &WeatherHandler{svc: svc, baseLat: baseLat, baseLon: baseLon}
}

// SafetyResponse is the verdict for GET /api/weather/safety.
type SafetyResponse struct {
	Safe    bool            `json:"safe"`
	Reasons []string        `json:"reasons,omitempty"`
	Report  *weather.Report `json:"report"`
}

// HandleCurrent handles GET /api/weather/current. Optional lat/lon query
// params; the default is the depot.
func (h *WeatherHandler) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := h.coords(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.svc.Current(r.Context(), lat, lon)
	if err != nil {
		http.Error(w, "weather unavailable", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// HandleSafety handles GET /api/weather/safety.
func (h *WeatherHandler) HandleSafety(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := h.coords(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.svc.Current(r.Context(), lat, lon)
	if err != nil {
		http.Error(w, "weather unavailable", http.StatusBadGateway)
		return
	}

	safe, reasons := h.svc.SafeForFlight(report)

	writeJSON(w, http.StatusOK, SafetyResponse{Safe: safe, Reasons: reasons, Report: report})
}

func (h *WeatherHandler) coords(r *http.Request) (float64, float64, error) {
	lat, err := queryFloat(r, "lat", h.baseLat)
	if err != nil {
		return 0, 0, err
	}
	lon, err := queryFloat(r, "lon", h.baseLon)
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func queryFloat(r *http.Request, key string, fallback float64) (float64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &badParamError{key}
	}
	return v, nil
}

type badParamError struct{ key string }

func (e *badParamError) Error() string { return e.key + " must be a number" }
