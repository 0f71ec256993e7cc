// Package route plans delivery flight paths with a grid-quantized A* search
// over geographic coordinates. One Optimize call is a pure computation: it
// allocates its own working sets, shares nothing, and returns an immutable
// result, so concurrent calls need no coordination.
package route

import (
	"time"

	"skyroute/pkg/geo"
)

// Weather is the snapshot of current conditions the planner optimizes
// against. A nil *Weather is valid everywhere and means "no weather data".
type Weather struct {
	WindSpeedMS  float64 `json:"wind_speed_ms"`
	TemperatureC float64 `json:"temperature_c"`
}

// Metadata describes how a route was produced.
type Metadata struct {
	Algorithm       string    `json:"algorithm"`
	Iterations      int       `json:"iterations"`
	WaypointCount   int       `json:"waypoint_count"`
	WeatherAdjusted bool      `json:"weather_adjusted"`
	Fallback        bool      `json:"fallback"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Route is the immutable result of one optimization call.
//
// Fallback routes (Metadata.Fallback true) are the direct two-point path
// returned when the search exhausted its budget; they bypassed obstacle
// avoidance and their SafetyScore reflects whatever the straight line
// crosses.
type Route struct {
	Waypoints        []geo.Point `json:"waypoints"`
	TotalDistanceM   float64     `json:"total_distance_m"`
	EstimatedTimeMin float64     `json:"estimated_time_min"`
	BatteryNeededPct float64     `json:"battery_needed_pct"`
	SafetyScore      float64     `json:"safety_score"`
	WindResistance   float64     `json:"wind_resistance"`
	Metadata         Metadata    `json:"metadata"`
}
