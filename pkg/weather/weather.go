// Package weather fetches current conditions for dispatch decisions and
// route planning. A Provider abstracts the upstream source; the Service
// layers report caching, provider fallback, and flight-safety grading on
// top.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"skyroute/pkg/cache"
	"skyroute/pkg/config"
	"skyroute/pkg/request"
	"skyroute/pkg/route"
	"skyroute/pkg/tracker"
)

// Report is a normalized weather snapshot for one location.
type Report struct {
	Provider     string    `json:"provider"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	TemperatureC float64   `json:"temperature_c"`
	WindSpeedMS  float64   `json:"wind_speed_ms"`
	WindGustMS   float64   `json:"wind_gust_ms,omitempty"`
	RainMMH      float64   `json:"rain_mmh"`
	VisibilityM  float64   `json:"visibility_m"`
	HumidityPct  float64   `json:"humidity_pct"`
	Condition    string    `json:"condition"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// ForRoute converts a report into the optimizer's weather input.
func (r *Report) ForRoute() *route.Weather {
	if r == nil {
		return nil
	}
	return &route.Weather{WindSpeedMS: r.WindSpeedMS, TemperatureC: r.TemperatureC}
}

// Provider abstracts a weather data source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, lat, lon float64) (*Report, error)
}

// Service fetches, caches, and grades weather reports.
type Service struct {
	primary  Provider
	fallback Provider
	cache    cache.Cacher
	tracker  *tracker.Tracker
	backoff  *request.ProviderBackoff
	ttl      time.Duration
	limits   config.WeatherLimits
}

// New builds the service with the provider named in cfg. An openweather
// setup without an API key degrades to the mock so dev machines still fly.
func New(cfg *config.WeatherConfig, rc *request.Client, c cache.Cacher, tr *tracker.Tracker) (*Service, error) {
	var p Provider
	switch cfg.Provider {
	case "openweather":
		if cfg.Key == "" {
			slog.Warn("No OpenWeather API key configured, using mock weather")
			p = NewMock()
		} else {
			p = NewOpenWeather(rc, cfg.Key)
		}
	case "mock", "":
		p = NewMock()
	default:
		return nil, fmt.Errorf("unknown weather provider: %s", cfg.Provider)
	}
	return NewService(cfg, p, c, tr), nil
}

// NewService wires an explicit provider. Tests inject fakes here.
func NewService(cfg *config.WeatherConfig, p Provider, c cache.Cacher, tr *tracker.Tracker) *Service {
	s := &Service{
		primary:  p,
		fallback: NewMock(),
		cache:    c,
		tracker:  tr,
		backoff:  request.NewProviderBackoff(30*time.Second, 15*time.Minute),
		ttl:      time.Duration(cfg.TTL),
		limits:   cfg.Limits,
	}
	if s.ttl <= 0 {
		s.ttl = 5 * time.Minute
	}
	if s.primary == nil {
		s.primary = s.fallback
	}
	return s
}

// Current returns the weather at a point, serving cached reports younger
// than the configured TTL.
func (s *Service) Current(ctx context.Context, lat, lon float64) (*Report, error) {
	key := cacheKey(lat, lon)
	if raw, ok := s.cache.GetCache(ctx, key); ok {
		var r Report
		if err := json.Unmarshal(raw, &r); err == nil && time.Since(r.FetchedAt) < s.ttl {
			return &r, nil
		}
	}
	return s.refresh(ctx, lat, lon, key)
}

// Refresh forces a provider fetch for a point, replacing whatever is
// cached. The scheduler calls this for the depot between dispatches.
func (s *Service) Refresh(ctx context.Context, lat, lon float64) (*Report, error) {
	return s.refresh(ctx, lat, lon, cacheKey(lat, lon))
}

func (s *Service) refresh(ctx context.Context, lat, lon float64, key string) (*Report, error) {
	r, err := s.fetch(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(r); err == nil {
		if err := s.cache.SetCache(ctx, key, raw); err != nil {
			slog.Warn("Failed to cache weather report", "key", key, "error", err)
		}
	}
	return r, nil
}

// fetch tries the primary provider, honoring its backoff window, and
// falls back to the mock when the primary is down or blocked.
func (s *Service) fetch(ctx context.Context, lat, lon float64) (*Report, error) {
	p := s.primary
	if p != s.fallback && !s.backoff.Allowed(p.Name()) {
		slog.Debug("Weather provider in backoff, using fallback", "provider", p.Name())
		p = s.fallback
	}

	r, err := p.Fetch(ctx, lat, lon)
	if err != nil && p != s.fallback {
		s.backoff.RecordFailure(p.Name())
		slog.Warn("Weather fetch failed, using fallback", "provider", p.Name(), "error", err)
		p = s.fallback
		r, err = p.Fetch(ctx, lat, lon)
	} else if err == nil && p == s.primary && p != s.fallback {
		s.backoff.RecordSuccess(p.Name())
	}
	if err != nil {
		return nil, err
	}

	// A real response always carries a condition string. An empty shell
	// means the upstream answered 200 with nothing usable in it.
	if r.Condition == "" && r.WindSpeedMS == 0 && r.VisibilityM == 0 {
		s.tracker.TrackAPIZero(p.Name())
	}
	return r, nil
}

// SafeForFlight grades a report against the configured limits. The
// reasons list is empty when the report passes.
func (s *Service) SafeForFlight(r *Report) (bool, []string) {
	var reasons []string
	if max := float64(s.limits.MaxWind); max > 0 && r.WindSpeedMS > max {
		reasons = append(reasons, fmt.Sprintf("wind %.1f m/s exceeds limit %.1f m/s", r.WindSpeedMS, max))
	}
	if s.limits.MaxRainMMH > 0 && r.RainMMH > s.limits.MaxRainMMH {
		reasons = append(reasons, fmt.Sprintf("rain %.1f mm/h exceeds limit %.1f mm/h", r.RainMMH, s.limits.MaxRainMMH))
	}
	if min := float64(s.limits.MinVisibility); min > 0 && r.VisibilityM < min {
		reasons = append(reasons, fmt.Sprintf("visibility %.0f m below limit %.0f m", r.VisibilityM, min))
	}
	if r.TemperatureC < s.limits.TempMinC || r.TemperatureC > s.limits.TempMaxC {
		reasons = append(reasons, fmt.Sprintf("temperature %.1f C outside %.0f to %.0f C", r.TemperatureC, s.limits.TempMinC, s.limits.TempMaxC))
	}
	return len(reasons) == 0, reasons
}

// cacheKey quantizes to ~11m so nearby lookups share a report.
func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("weather:%.4f,%.4f", lat, lon)
}
