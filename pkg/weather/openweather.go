package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"skyroute/pkg/request"
)

// OpenWeather fetches current conditions from the OpenWeatherMap API.
type OpenWeather struct {
	request     *request.Client
	apiKey      string
	APIEndpoint string // Optional override for testing
}

// NewOpenWeather creates a new OpenWeatherMap provider.
func NewOpenWeather(r *request.Client, apiKey string) *OpenWeather {
	return &OpenWeather{request: r, apiKey: apiKey}
}

// Name returns the provider identifier.
func (p *OpenWeather) Name() string { return "openweather" }

// Fetch retrieves current conditions for a point.
func (p *OpenWeather) Fetch(ctx context.Context, lat, lon float64) (*Report, error) {
	endpoint := "https://api.openweathermap.org/data/2.5/weather"
	if p.APIEndpoint != "" {
		endpoint = p.APIEndpoint
	}

	u, _ := url.Parse(endpoint)
	q := u.Query()
	q.Add("lat", fmt.Sprintf("%.4f", lat))
	q.Add("lon", fmt.Sprintf("%.4f", lon))
	q.Add("units", "metric")
	q.Add("appid", p.apiKey)
	u.RawQuery = q.Encode()

	// The service caches normalized reports with a freshness stamp, so
	// the transport layer must not cache the raw body.
	body, err := p.request.Get(ctx, u.String(), "")
	if err != nil {
		return nil, err
	}

	var apiResp struct {
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
		Main struct {
			Temp     float64 `json:"temp"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
			Gust  float64 `json:"gust"`
		} `json:"wind"`
		Rain struct {
			OneH float64 `json:"1h"`
		} `json:"rain"`
		Visibility float64 `json:"visibility"`
	}
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to decode json: %w", err)
	}

	r := &Report{
		Provider:     p.Name(),
		Lat:          lat,
		Lon:          lon,
		TemperatureC: apiResp.Main.Temp,
		WindSpeedMS:  apiResp.Wind.Speed,
		WindGustMS:   apiResp.Wind.Gust,
		RainMMH:      apiResp.Rain.OneH,
		VisibilityM:  apiResp.Visibility,
		HumidityPct:  apiResp.Main.Humidity,
		FetchedAt:    time.Now(),
	}
	if len(apiResp.Weather) > 0 {
		r.Condition = apiResp.Weather[0].Main
	}
	return r, nil
}
