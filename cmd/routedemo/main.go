// Package main provides a debugging CLI to plan a single route without the
// dispatch server. It loads no-fly zones from a GeoJSON file, runs the
// optimizer with an optional wind override, and prints the waypoints and
// mission numbers so detours and fallbacks can be inspected offline.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"skyroute/pkg/geo"
	"skyroute/pkg/geofence"
	"skyroute/pkg/route"
)

// corridorM matches the zone query margin the dispatch service uses, so the
// demo sees the same airspace a real mission would.
const corridorM = 2000.0

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	from := flag.String("from", "23.3441,85.3096", "Start as lat,lon")
	to := flag.String("to", "23.4100,85.4400", "Goal as lat,lon")
	alt := flag.Float64("alt", 60, "Cruise altitude in meters")
	zonesPath := flag.String("zones", "", "No-fly zones GeoJSON file (optional)")
	grid := flag.Float64("grid", 100, "Grid resolution in meters")
	iters := flag.Int("iters", 10000, "Search iteration budget")
	wind := flag.Float64("wind", 0, "Wind speed in m/s (0 plans in still air)")
	temp := flag.Float64("temp", 22, "Temperature in Celsius, used with -wind")
	asJSON := flag.Bool("json", false, "Print the raw route as JSON")
	verbose := flag.Bool("v", false, "Show engine logs")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	start, err := parsePoint(*from, *alt)
	if err != nil {
		return fmt.Errorf("bad -from: %w", err)
	}
	goal, err := parsePoint(*to, *alt)
	if err != nil {
		return fmt.Errorf("bad -to: %w", err)
	}

	opt, err := route.NewOptimizer(route.Options{
		Weights:         route.DefaultWeights(),
		GridResolutionM: *grid,
		MaxIterations:   *iters,
	})
	if err != nil {
		return err
	}

	cons := route.DefaultConstraints()
	if *zonesPath != "" {
		reg := geofence.NewRegistry(7)
		if err := reg.LoadFile(*zonesPath); err != nil {
			return fmt.Errorf("failed to load zones: %w", err)
		}
		cons, err = reg.Constraints(cons, start, goal, corridorM)
		if err != nil {
			return fmt.Errorf("zone lookup failed: %w", err)
		}
		fmt.Printf("Zones: %d loaded, %d near the corridor\n", reg.Count(), len(cons.NoFlyZones))
	}

	var wx *route.Weather
	if *wind > 0 {
		wx = &route.Weather{WindSpeedMS: *wind, TemperatureC: *temp}
	}

	fmt.Printf("Planning: %.4f, %.4f -> %.4f, %.4f at %.0fm\n", start.Lat, start.Lon, goal.Lat, goal.Lon, *alt)
	fmt.Printf("Grid: %.0fm, budget %d iterations\n\n", *grid, *iters)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	t0 := time.Now()
	rt, err := opt.Optimize(ctx, start, goal, cons, wx)
	if err != nil {
		return err
	}
	elapsed := time.Since(t0)

	if *asJSON {
		out, err := json.MarshalIndent(rt, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	printRoute(rt, elapsed)
	return nil
}

func printRoute(rt *route.Route, elapsed time.Duration) {
	if rt.Metadata.Fallback {
		fmt.Printf("WARN: Search exhausted its budget after %d iterations.\n", rt.Metadata.Iterations)
		fmt.Println("      Showing the direct path; it may cross zones. Raise -iters or -grid.")
	} else {
		fmt.Printf("Route found in %d iterations (%s, %s)\n", rt.Metadata.Iterations, rt.Metadata.Algorithm, elapsed.Round(time.Millisecond))
	}

	fmt.Println(strings.Repeat("-", 50))
	for i, wp := range rt.Waypoints {
		line := fmt.Sprintf("%3d. %.6f, %.6f", i+1, wp.Lat, wp.Lon)
		if i < len(rt.Waypoints)-1 {
			hdg := geo.Bearing(wp, rt.Waypoints[i+1])
			line += fmt.Sprintf("  hdg %03.0f", hdg)
			if i > 0 {
				prev := geo.Bearing(rt.Waypoints[i-1], wp)
				line += fmt.Sprintf("  turn %+.0f", geo.NormalizeAngle(hdg-prev))
			}
		}
		fmt.Println(line)
	}
	fmt.Println(strings.Repeat("-", 50))

	fmt.Printf("Distance:        %.2f km\n", rt.TotalDistanceM/1000)
	fmt.Printf("Flight time:     %.1f min\n", rt.EstimatedTimeMin)
	fmt.Printf("Battery needed:  %.1f%%\n", rt.BatteryNeededPct)
	fmt.Printf("Safety score:    %.1f\n", rt.SafetyScore)
	if rt.WindResistance > 0 {
		fmt.Printf("Wind resistance: %.2f\n", rt.WindResistance)
	}
}

func parsePoint(s string, altM float64) (geo.Point, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return geo.Point{}, fmt.Errorf("want lat,lon, got %q", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("bad latitude %q", parts[0])
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return geo.Point{}, fmt.Errorf("bad longitude %q", parts[1])
	}
	if lat < -90 || lat > 90 {
		return geo.Point{}, fmt.Errorf("latitude %g out of range", lat)
	}
	if lon < -180 || lon > 180 {
		return geo.Point{}, fmt.Errorf("longitude %g out of range", lon)
	}
	return geo.Point{Lat: lat, Lon: lon, AltM: altM}, nil
}
