package route

import (
	"fmt"

	"skyroute/pkg/geo"
)

// NoFlyZone is a circular exclusion region. Entering the circle is a hard
// violation; the envelope RadiusM+SafetyBufferM around it is penalized in
// edge cost but remains legal.
type NoFlyZone struct {
	Name    string    `json:"name,omitempty"`
	Center  geo.Point `json:"center"`
	RadiusM float64   `json:"radius_m"`
}

// Constraints bound one optimization call. The struct is read-only for the
// duration of the call.
type Constraints struct {
	MaxAltitudeM   float64     `json:"max_altitude_m"`
	MaxWindMS      float64     `json:"max_wind_ms"`
	NoFlyZones     []NoFlyZone `json:"no_fly_zones"`
	SafetyBufferM  float64     `json:"safety_buffer_m"`
	WeatherPenalty float64     `json:"weather_penalty"`
}

// DefaultConstraints returns the regulatory defaults for a small delivery
// drone: 120m ceiling, 10 m/s wind limit, 50m buffer around zones.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxAltitudeM:   120,
		MaxWindMS:      10,
		SafetyBufferM:  50,
		WeatherPenalty: 1.5,
	}
}

// Validate rejects malformed constraints before any search runs.
func (c *Constraints) Validate() error {
	if c.MaxAltitudeM <= 0 {
		return fmt.Errorf("max altitude must be positive, got %g", c.MaxAltitudeM)
	}
	if c.MaxWindMS <= 0 {
		return fmt.Errorf("max wind speed must be positive, got %g", c.MaxWindMS)
	}
	if c.SafetyBufferM < 0 {
		return fmt.Errorf("safety buffer must not be negative, got %g", c.SafetyBufferM)
	}
	if c.WeatherPenalty < 0 {
		return fmt.Errorf("weather penalty must not be negative, got %g", c.WeatherPenalty)
	}
	for i, z := range c.NoFlyZones {
		if z.RadiusM <= 0 {
			return fmt.Errorf("zone %d: radius must be positive, got %g", i, z.RadiusM)
		}
		if z.Center.Lat < -90 || z.Center.Lat > 90 {
			return fmt.Errorf("zone %d: latitude %g out of range", i, z.Center.Lat)
		}
		if z.Center.Lon < -180 || z.Center.Lon > 180 {
			return fmt.Errorf("zone %d: longitude %g out of range", i, z.Center.Lon)
		}
	}
	return nil
}

// Allows reports whether a position violates no hard constraint: the
// altitude ceiling and the zone circles themselves. Proximity inside the
// safety envelope is not a violation, only a cost penalty.
func (c *Constraints) Allows(p geo.Point) bool {
	if p.AltM > c.MaxAltitudeM {
		return false
	}
	for _, z := range c.NoFlyZones {
		if geo.Distance(p, z.Center) < z.RadiusM {
			return false
		}
	}
	return true
}
