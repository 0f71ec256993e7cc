// Package geofence maintains the no-fly zone registry. Zones are circles
// loaded from a GeoJSON FeatureCollection and indexed into H3 cells so
// corridor lookups touch a handful of map entries instead of every zone.
// Exact circle math stays with the route planner; the registry only
// narrows candidates.
package geofence

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	h3 "github.com/uber/h3-go/v4"

	"skyroute/pkg/geo"
	"skyroute/pkg/route"
)

// Zone is a circular no-fly area.
type Zone struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Category string    `json:"category,omitempty"`
	Center   geo.Point `json:"center"`
	RadiusM  float64   `json:"radius_m"`
}

// NoFly converts the zone to the planner's constraint shape.
func (z Zone) NoFly() route.NoFlyZone {
	return route.NoFlyZone{Name: z.Name, Center: z.Center, RadiusM: z.RadiusM}
}

// Registry holds the loaded zones and their spatial index.
type Registry struct {
	resolution int

	mu    sync.RWMutex
	zones []Zone
	index map[h3.Cell][]int
}

// NewRegistry creates an empty registry. Resolution 7 cells (~1.2km
// edges) fit delivery-scale zones; the config exposes it for tuning.
func NewRegistry(resolution int) *Registry {
	if resolution <= 0 {
		resolution = 7
	}
	return &Registry{
		resolution: resolution,
		index:      make(map[h3.Cell][]int),
	}
}

// LoadFile replaces the zone set from a GeoJSON file.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return r.Load(data)
}

// Load replaces the zone set from GeoJSON bytes. Point features need a
// radius_m property; Polygon features are reduced to their circumscribed
// circle. Anything else is skipped with a warning.
func (r *Registry) Load(data []byte) error {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return fmt.Errorf("failed to parse zones: %w", err)
	}

	zones := make([]Zone, 0, len(fc.Features))
	for i, f := range fc.Features {
		z, ok := featureZone(f, i)
		if !ok {
			slog.Warn("Skipping zone feature without usable geometry", "index", i)
			continue
		}
		zones = append(zones, z)
	}

	index, err := buildIndex(zones, r.resolution)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.zones = zones
	r.index = index
	r.mu.Unlock()

	slog.Info("Loaded no-fly zones", "count", len(zones))
	return nil
}

func featureZone(f *geojson.Feature, i int) (Zone, bool) {
	z := Zone{
		ID:       f.Properties.MustString("id", fmt.Sprintf("zone-%d", i)),
		Name:     f.Properties.MustString("name", ""),
		Category: f.Properties.MustString("category", ""),
	}

	switch g := f.Geometry.(type) {
	case orb.Point:
		z.Center = geo.Point{Lat: g[1], Lon: g[0]}
		z.RadiusM = f.Properties.MustFloat64("radius_m", 0)
	case orb.Polygon:
		centroid, _ := planar.CentroidArea(g)
		center := geo.Point{Lat: centroid[1], Lon: centroid[0]}
		// Circumscribed circle: max distance centroid to any vertex
		maxDist := 0.0
		for _, ring := range g {
			for _, pt := range ring {
				if d := geo.Distance(center, geo.Point{Lat: pt[1], Lon: pt[0]}); d > maxDist {
					maxDist = d
				}
			}
		}
		z.Center = center
		z.RadiusM = maxDist
	default:
		return Zone{}, false
	}

	if z.RadiusM <= 0 {
		return Zone{}, false
	}
	return z, true
}

// buildIndex covers each zone's disk with H3 cells. Coverage errs wide;
// false positives cost one circle check downstream.
func buildIndex(zones []Zone, res int) (map[h3.Cell][]int, error) {
	index := make(map[h3.Cell][]int)
	for i, z := range zones {
		origin, err := h3.LatLngToCell(h3.NewLatLng(z.Center.Lat, z.Center.Lon), res)
		if err != nil {
			return nil, fmt.Errorf("indexing zone %s: %w", z.ID, err)
		}
		step, err := ringStepM(origin)
		if err != nil {
			return nil, fmt.Errorf("indexing zone %s: %w", z.ID, err)
		}
		k := int(math.Ceil(z.RadiusM/step)) + 1
		cells, err := h3.GridDisk(origin, k)
		if err != nil {
			return nil, fmt.Errorf("indexing zone %s: %w", z.ID, err)
		}
		for _, c := range cells {
			index[c] = append(index[c], i)
		}
	}
	return index, nil
}

// ringStepM measures the center-to-center spacing around origin, which
// is what one GridDisk ring buys in coverage. Cell sizes vary across the
// globe, so this is measured rather than taken from a table.
func ringStepM(origin h3.Cell) (float64, error) {
	neighbors, err := h3.GridDisk(origin, 1)
	if err != nil {
		return 0, err
	}
	oll, err := h3.CellToLatLng(origin)
	if err != nil {
		return 0, err
	}
	op := geo.Point{Lat: oll.Lat, Lon: oll.Lng}

	step := math.MaxFloat64
	for _, n := range neighbors {
		if n == origin {
			continue
		}
		nll, err := h3.CellToLatLng(n)
		if err != nil {
			return 0, err
		}
		if d := geo.Distance(op, geo.Point{Lat: nll.Lat, Lon: nll.Lng}); d < step {
			step = d
		}
	}
	if step == math.MaxFloat64 || step <= 0 {
		return 0, fmt.Errorf("cell %v has no neighbors", origin)
	}
	return step, nil
}

// ZonesNear returns candidate zones around a point.
func (r *Registry) ZonesNear(p geo.Point) ([]Zone, error) {
	cell, err := h3.LatLngToCell(h3.NewLatLng(p.Lat, p.Lon), r.resolution)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect([]h3.Cell{cell}), nil
}

// ZonesAlong returns candidate zones near the corridor from a to b,
// widened by marginM meters on each side.
func (r *Registry) ZonesAlong(a, b geo.Point, marginM float64) ([]Zone, error) {
	ac, err := h3.LatLngToCell(h3.NewLatLng(a.Lat, a.Lon), r.resolution)
	if err != nil {
		return nil, err
	}
	bc, err := h3.LatLngToCell(h3.NewLatLng(b.Lat, b.Lon), r.resolution)
	if err != nil {
		return nil, err
	}

	path, err := h3.GridPath(ac, bc)
	if err != nil {
		// Pentagon crossings have no grid path. Scan the zone set
		// directly; corridors are short so this stays cheap.
		return r.zonesNearSegment(a, b, marginM), nil
	}

	k := 1
	if marginM > 0 {
		if step, err := ringStepM(ac); err == nil {
			k = int(math.Ceil(marginM/step)) + 1
		}
	}

	seen := make(map[h3.Cell]bool)
	cells := make([]h3.Cell, 0, len(path)*(k+1)*3)
	for _, c := range path {
		disk, err := h3.GridDisk(c, k)
		if err != nil {
			return nil, err
		}
		for _, d := range disk {
			if !seen[d] {
				seen[d] = true
				cells = append(cells, d)
			}
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(cells), nil
}

func (r *Registry) zonesNearSegment(a, b geo.Point, marginM float64) []Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Zone
	for _, z := range r.zones {
		if geo.DistanceToSegment(z.Center, a, b) <= z.RadiusM+marginM {
			out = append(out, z)
		}
	}
	return out
}

// collect gathers unique zones for the cells. Caller holds the read lock.
func (r *Registry) collect(cells []h3.Cell) []Zone {
	seen := make(map[int]bool)
	var out []Zone
	for _, c := range cells {
		for _, idx := range r.index[c] {
			if !seen[idx] {
				seen[idx] = true
				out = append(out, r.zones[idx])
			}
		}
	}
	return out
}

// Constraints widens base with every candidate zone along the corridor.
func (r *Registry) Constraints(base route.Constraints, a, b geo.Point, marginM float64) (route.Constraints, error) {
	zones, err := r.ZonesAlong(a, b, marginM)
	if err != nil {
		return base, err
	}
	for _, z := range zones {
		base.NoFlyZones = append(base.NoFlyZones, z.NoFly())
	}
	return base, nil
}

// All returns a copy of the loaded zones.
func (r *Registry) All() []Zone {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Zone, len(r.zones))
	copy(out, r.zones)
	return out
}

// Count returns the number of loaded zones.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.zones)
}
