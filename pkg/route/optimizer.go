package route

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"skyroute/pkg/geo"
)

// Options are the engine tunables fixed at construction. Per-call inputs
// (endpoints, constraints, weather) are passed to Optimize instead.
type Options struct {
	Weights         Weights
	GridResolutionM float64
	MaxIterations   int
}

// DefaultOptions uses a 100m grid and a 10k iteration budget, enough for
// delivery legs of a few km with detours.
func DefaultOptions() Options {
	return Options{
		Weights:         DefaultWeights(),
		GridResolutionM: 100,
		MaxIterations:   10000,
	}
}

// Optimizer plans routes. Construct once, share freely; Optimize is safe for
// concurrent use.
type Optimizer struct {
	weights         Weights
	gridResolutionM float64
	maxIterations   int
	log             *slog.Logger
}

// NewOptimizer validates the options eagerly so a misconfigured engine never
// plans a single route.
func NewOptimizer(opts Options) (*Optimizer, error) {
	if err := opts.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights: %w", err)
	}
	if opts.GridResolutionM <= 0 {
		return nil, fmt.Errorf("grid resolution must be positive, got %g", opts.GridResolutionM)
	}
	if opts.MaxIterations <= 0 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", opts.MaxIterations)
	}
	return &Optimizer{
		weights:         opts.Weights,
		gridResolutionM: opts.GridResolutionM,
		maxIterations:   opts.MaxIterations,
		log:             slog.With("component", "route"),
	}, nil
}

// GridResolutionM returns the configured grid step in meters.
func (o *Optimizer) GridResolutionM() float64 {
	return o.gridResolutionM
}

// Optimize plans a route from start to goal under the given constraints and
// optional weather. A failed search is not an error: the result degrades to
// the direct two-point path with Metadata.Fallback set. Errors are returned
// only for invalid constraints and context cancellation.
func (o *Optimizer) Optimize(ctx context.Context, start, goal geo.Point, cons Constraints, wx *Weather) (*Route, error) {
	if err := cons.Validate(); err != nil {
		return nil, fmt.Errorf("invalid constraints: %w", err)
	}

	o.log.Debug("optimizing route",
		"from_lat", start.Lat, "from_lon", start.Lon,
		"to_lat", goal.Lat, "to_lon", goal.Lon,
		"zones", len(cons.NoFlyZones), "weather", wx != nil)

	meta := Metadata{
		Algorithm:       "astar",
		WeatherAdjusted: wx != nil,
		GeneratedAt:     time.Now().UTC(),
	}

	var path []geo.Point
	if start == goal {
		path = []geo.Point{start, goal}
	} else {
		res, err := o.search(ctx, start, goal, &cons, wx)
		if err != nil {
			return nil, err
		}
		meta.Iterations = res.iterations
		if res.found {
			path = smooth(res.path, cons.NoFlyZones)
		} else {
			o.log.Warn("no path found, degrading to direct route",
				"iterations", res.iterations, "zones", len(cons.NoFlyZones))
			path = []geo.Point{start, goal}
			meta.Fallback = true
		}
	}

	// The search can terminate on the start node when the endpoints sit
	// within one grid cell; pad so a route always holds both ends.
	if len(path) == 1 {
		path = append(path, goal)
	}
	meta.WaypointCount = len(path)

	dist := pathDistance(path)
	rt := &Route{
		Waypoints:        path,
		TotalDistanceM:   dist,
		EstimatedTimeMin: estimateFlightTime(dist, wx),
		BatteryNeededPct: estimateBattery(dist, wx),
		SafetyScore:      safetyScore(path, &cons),
		WindResistance:   windResistance(wx),
		Metadata:         meta,
	}

	o.log.Info("route optimized",
		"waypoints", len(path),
		"distance_km", fmt.Sprintf("%.2f", dist/1000),
		"time_min", fmt.Sprintf("%.1f", rt.EstimatedTimeMin),
		"battery_pct", fmt.Sprintf("%.1f", rt.BatteryNeededPct),
		"fallback", meta.Fallback)

	return rt, nil
}
