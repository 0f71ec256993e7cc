package weather

import (
	"context"
	"time"
)

// Mock returns deterministic fair-weather reports. It stands in when no
// API key is configured and when the real provider is down or backed off.
type Mock struct {
	TemperatureC float64
	WindSpeedMS  float64
	RainMMH      float64
	VisibilityM  float64
	Condition    string
	Err          error // When set, Fetch fails with it
}

// NewMock creates a mock provider with calm defaults.
func NewMock() *Mock {
	return &Mock{
		TemperatureC: 22.0,
		WindSpeedMS:  3.2,
		VisibilityM:  10000,
		Condition:    "Clear",
	}
}

// Name returns the provider identifier.
func (m *Mock) Name() string { return "mock" }

// Fetch returns the configured canned report.
func (m *Mock) Fetch(ctx context.Context, lat, lon float64) (*Report, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return &Report{
		Provider:     m.Name(),
		Lat:          lat,
		Lon:          lon,
		TemperatureC: m.TemperatureC,
		WindSpeedMS:  m.WindSpeedMS,
		RainMMH:      m.RainMMH,
		VisibilityM:  m.VisibilityM,
		HumidityPct:  50,
		Condition:    m.Condition,
		FetchedAt:    time.Now(),
	}, nil
}
