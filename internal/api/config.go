package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"skyroute/pkg/config"
	"skyroute/pkg/store"
)

// ConfigHandler handles configuration API requests.
type ConfigHandler struct {
	store   store.StateStore
	cfgProv config.Provider
	appCfg  *config.Config
}

// NewConfigHandler creates a new ConfigHandler.
func NewConfigHandler(st store.StateStore, cfg config.Provider) *ConfigHandler {
	return &ConfigHandler{
		store:   st,
		cfgProv: cfg,
		appCfg:  cfg.AppConfig(),
	}
}

// ConfigResponse is the effective configuration: YAML values with runtime
// overrides applied. The tail fields are static and read-only.
type ConfigResponse struct {
	AutoDispatch       bool    `json:"auto_dispatch"`
	MinDispatchBattery float64 `json:"min_dispatch_battery"`
	MaxActiveMissions  int     `json:"max_active_missions"`
	WeatherBypass      bool    `json:"weather_bypass"`
	CodeTTL            string  `json:"code_ttl"`

	BaseLat         float64 `json:"base_lat"`
	BaseLon         float64 `json:"base_lon"`
	WeatherProvider string  `json:"weather_provider"`
	RouteGridSizeM  float64 `json:"route_grid_size_m"`
}

// ConfigRequest carries runtime override updates. Pointers distinguish
// false/zero from missing.
type ConfigRequest struct {
	AutoDispatch       *bool    `json:"auto_dispatch,omitempty"`
	MinDispatchBattery *float64 `json:"min_dispatch_battery,omitempty"`
	MaxActiveMissions  *int     `json:"max_active_missions,omitempty"`
	WeatherBypass      *bool    `json:"weather_bypass,omitempty"`
	CodeTTL            string   `json:"code_ttl,omitempty"`
}

// HandleConfig is a unified handler for all config-related methods, facilitating CORS/OPTIONS.
func (h *ConfigHandler) HandleConfig(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, PUT, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.HandleGetConfig(w, r)
	case http.MethodPut, http.MethodPost:
		h.HandleSetConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGetConfig returns the effective configuration.
func (h *ConfigHandler) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.getConfigResponse(r.Context()))
}

func (h *ConfigHandler) getConfigResponse(ctx context.Context) ConfigResponse {
	return ConfigResponse{
		AutoDispatch:       h.cfgProv.AutoDispatch(ctx),
		MinDispatchBattery: h.cfgProv.MinDispatchBattery(ctx),
		MaxActiveMissions:  h.cfgProv.MaxActiveMissions(ctx),
		WeatherBypass:      h.cfgProv.WeatherBypass(ctx),
		CodeTTL:            h.cfgProv.CodeTTL(ctx).String(),
		BaseLat:            h.appCfg.Fleet.BaseLat,
		BaseLon:            h.appCfg.Fleet.BaseLon,
		WeatherProvider:    h.appCfg.Weather.Provider,
		RouteGridSizeM:     float64(h.appCfg.Route.GridResolution),
	}
}

// HandleSetConfig updates runtime overrides.
func (h *ConfigHandler) HandleSetConfig(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read body", http.StatusBadRequest)
		return
	}
	defer func() { _ = r.Body.Close() }()

	var req ConfigRequest
	if err := json.Unmarshal(body, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := h.applyUpdates(r.Context(), &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Return updated config
	h.HandleGetConfig(w, r)
}

func (h *ConfigHandler) applyUpdates(ctx context.Context, req *ConfigRequest) error {
	if req.AutoDispatch != nil {
		if err := h.setBool(ctx, config.KeyAutoDispatch, *req.AutoDispatch); err != nil {
			return err
		}
	}

	if req.MinDispatchBattery != nil {
		v := *req.MinDispatchBattery
		if v < 0 || v > 100 {
			return fmt.Errorf("min_dispatch_battery must be between 0 and 100")
		}
		if err := h.set(ctx, config.KeyMinDispatchBattery, fmt.Sprintf("%.2f", v)); err != nil {
			return err
		}
	}

	if req.MaxActiveMissions != nil {
		v := *req.MaxActiveMissions
		if v < 1 {
			return fmt.Errorf("max_active_missions must be at least 1")
		}
		if err := h.set(ctx, config.KeyMaxActiveMissions, fmt.Sprintf("%d", v)); err != nil {
			return err
		}
	}

	if req.WeatherBypass != nil {
		if err := h.setBool(ctx, config.KeyWeatherBypass, *req.WeatherBypass); err != nil {
			return err
		}
		if *req.WeatherBypass {
			slog.Warn("Weather gate bypass enabled by operator")
		}
	}

	if req.CodeTTL != "" {
		d, err := time.ParseDuration(req.CodeTTL)
		if err != nil || d <= 0 {
			return fmt.Errorf("code_ttl must be a positive duration like 5m")
		}
		if err := h.set(ctx, config.KeyCodeTTL, d.String()); err != nil {
			return err
		}
	}

	return nil
}

func (h *ConfigHandler) setBool(ctx context.Context, key string, val bool) error {
	strVal := "false"
	if val {
		strVal = "true"
	}
	return h.set(ctx, key, strVal)
}

func (h *ConfigHandler) set(ctx context.Context, key, val string) error {
	if err := h.store.SetState(ctx, key, val); err != nil {
		slog.Error("Failed to save state", "key", key, "error", err)
		return fmt.Errorf("failed to save %s", key)
	}
	slog.Debug("Config updated", key, val)
	return nil
}

// HandleReset handles DELETE /api/config/{key}: it drops one runtime
// override so the YAML value applies again.
func (h *ConfigHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if !config.RuntimeKey(key) {
		http.Error(w, fmt.Sprintf("unknown runtime key, expected one of: %s", strings.Join(config.RuntimeKeys, ", ")), http.StatusBadRequest)
		return
	}

	if err := h.store.DeleteState(r.Context(), key); err != nil {
		slog.Error("Failed to delete state", "key", key, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	slog.Info("Runtime override cleared", "key", key)

	h.HandleGetConfig(w, r)
}
