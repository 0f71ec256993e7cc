package geofence

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"skyroute/pkg/geo"
	"skyroute/pkg/route"
)

const testZones = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"id": "ixr", "name": "Birsa Munda Airport", "category": "airport", "radius_m": 2500},
      "geometry": {"type": "Point", "coordinates": [85.3217, 23.3143]}
    },
    {
      "type": "Feature",
      "properties": {"id": "hec", "name": "HEC Industrial Area", "radius_m": 800},
      "geometry": {"type": "Point", "coordinates": [85.2900, 23.3200]}
    },
    {
      "type": "Feature",
      "properties": {"name": "Morabadi Ground"},
      "geometry": {"type": "Polygon", "coordinates": [[[85.3090, 23.3720], [85.3130, 23.3720], [85.3130, 23.3760], [85.3090, 23.3760], [85.3090, 23.3720]]]}
    }
  ]
}`

func loadedRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry(7)
	if err := r.Load([]byte(testZones)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return r
}

func hasZone(zones []Zone, id string) bool {
	for _, z := range zones {
		if z.ID == id {
			return true
		}
	}
	return false
}

func TestLoad(t *testing.T) {
	r := loadedRegistry(t)

	if r.Count() != 3 {
		t.Fatalf("Count = %d, want 3", r.Count())
	}

	var ground *Zone
	for _, z := range r.All() {
		if z.Name == "Morabadi Ground" {
			zc := z
			ground = &zc
		}
	}
	if ground == nil {
		t.Fatal("polygon zone missing")
	}

	// Circumscribed circle of a ~400x445m rectangle
	if ground.RadiusM < 250 || ground.RadiusM > 350 {
		t.Errorf("polygon radius = %.0f m, want roughly 300", ground.RadiusM)
	}
	if math.Abs(ground.Center.Lat-23.374) > 1e-3 || math.Abs(ground.Center.Lon-85.311) > 1e-3 {
		t.Errorf("polygon centroid = %+v", ground.Center)
	}
}

func TestLoadSkipsUnusableFeatures(t *testing.T) {
	data := `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "properties": {"id": "no-radius"}, "geometry": {"type": "Point", "coordinates": [85.3, 23.3]}},
	    {"type": "Feature", "properties": {"id": "line"}, "geometry": {"type": "LineString", "coordinates": [[85.3, 23.3], [85.4, 23.4]]}},
	    {"type": "Feature", "properties": {"id": "good", "radius_m": 500}, "geometry": {"type": "Point", "coordinates": [85.3, 23.3]}}
	  ]
	}`

	r := NewRegistry(7)
	if err := r.Load([]byte(data)); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
	if r.All()[0].ID != "good" {
		t.Errorf("kept zone = %q", r.All()[0].ID)
	}
}

func TestLoadRejectsGarbage(t *testing.T) {
	r := NewRegistry(7)
	if err := r.Load([]byte("not geojson")); err == nil {
		t.Error("expected parse error")
	}
}

func TestZonesNear(t *testing.T) {
	r := loadedRegistry(t)

	zones, err := r.ZonesNear(geo.Point{Lat: 23.3143, Lon: 85.3217})
	if err != nil {
		t.Fatalf("ZonesNear failed: %v", err)
	}
	if !hasZone(zones, "ixr") {
		t.Errorf("airport missing from candidates at its own center: %v", zones)
	}

	zones, err = r.ZonesNear(geo.Point{Lat: 24.0, Lon: 86.0})
	if err != nil {
		t.Fatalf("ZonesNear failed: %v", err)
	}
	if len(zones) != 0 {
		t.Errorf("expected no candidates 90km out, got %v", zones)
	}
}

func TestZonesAlong(t *testing.T) {
	r := loadedRegistry(t)

	// Corridor passing within ~700m of the airport center
	zones, err := r.ZonesAlong(geo.Point{Lat: 23.30, Lon: 85.28}, geo.Point{Lat: 23.33, Lon: 85.35}, 0)
	if err != nil {
		t.Fatalf("ZonesAlong failed: %v", err)
	}
	if !hasZone(zones, "ixr") {
		t.Errorf("airport missing from corridor candidates: %v", zones)
	}

	// Corridor 30km north of everything
	zones, err = r.ZonesAlong(geo.Point{Lat: 23.60, Lon: 85.28}, geo.Point{Lat: 23.63, Lon: 85.35}, 0)
	if err != nil {
		t.Fatalf("ZonesAlong failed: %v", err)
	}
	if len(zones) != 0 {
		t.Errorf("expected no candidates far north, got %v", zones)
	}
}

func TestReload(t *testing.T) {
	r := loadedRegistry(t)

	slim := `{
	  "type": "FeatureCollection",
	  "features": [
	    {"type": "Feature", "properties": {"id": "hec", "name": "HEC Industrial Area", "radius_m": 800}, "geometry": {"type": "Point", "coordinates": [85.2900, 23.3200]}}
	  ]
	}`
	if err := r.Load([]byte(slim)); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if r.Count() != 1 {
		t.Errorf("Count after reload = %d, want 1", r.Count())
	}
	if r.All()[0].ID != "hec" {
		t.Errorf("surviving zone = %q", r.All()[0].ID)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zones.geojson")
	if err := os.WriteFile(path, []byte(testZones), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(7)
	if err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if r.Count() != 3 {
		t.Errorf("Count = %d, want 3", r.Count())
	}

	if err := r.LoadFile(filepath.Join(t.TempDir(), "missing.geojson")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestNoFlyConversion(t *testing.T) {
	z := Zone{ID: "ixr", Name: "Birsa Munda Airport", Center: geo.Point{Lat: 23.3143, Lon: 85.3217}, RadiusM: 2500}
	nf := z.NoFly()
	if nf.Name != z.Name || nf.Center != z.Center || nf.RadiusM != 2500 {
		t.Errorf("conversion mismatch: %+v", nf)
	}
}

func TestConstraints(t *testing.T) {
	r := loadedRegistry(t)

	base := route.DefaultConstraints()
	c, err := r.Constraints(base, geo.Point{Lat: 23.30, Lon: 85.28}, geo.Point{Lat: 23.33, Lon: 85.35}, 0)
	if err != nil {
		t.Fatalf("Constraints failed: %v", err)
	}
	if len(c.NoFlyZones) == 0 {
		t.Error("corridor over the airport produced no zones")
	}
	if c.MaxAltitudeM != base.MaxAltitudeM {
		t.Error("base constraint fields must carry through")
	}
}
