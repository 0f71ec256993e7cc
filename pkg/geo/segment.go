package geo

import "math"

// metersPerDegreeLat is the approximate north-south span of one degree of latitude.
const metersPerDegreeLat = 111320.0

// DistanceToSegment calculates the minimum distance in meters from point p to the
// segment a-b. Coordinates are projected onto a local tangent plane centered on a,
// which is accurate for the segment lengths a delivery vehicle flies (tens of km).
func DistanceToSegment(p, a, b Point) float64 {
	cosLat := math.Cos(a.Lat * math.Pi / 180.0)

	ax, ay := 0.0, 0.0
	bx := (b.Lon - a.Lon) * metersPerDegreeLat * cosLat
	by := (b.Lat - a.Lat) * metersPerDegreeLat
	px := (p.Lon - a.Lon) * metersPerDegreeLat * cosLat
	py := (p.Lat - a.Lat) * metersPerDegreeLat

	dx := bx - ax
	dy := by - ay

	if dx == 0 && dy == 0 {
		// Segment is a point
		return Distance(p, a)
	}

	// Parameter t for the projection of p onto the line
	t := ((px-ax)*dx + (py-ay)*dy) / (dx*dx + dy*dy)

	if t < 0 {
		return Distance(p, a)
	} else if t > 1 {
		return Distance(p, b)
	}

	cx := ax + t*dx
	cy := ay + t*dy
	return math.Hypot(px-cx, py-cy)
}

// Interpolate returns the point at fraction f along the segment a-b, with f
// clamped to [0, 1]. Linear in lat/lon, which is adequate at delivery ranges.
func Interpolate(a, b Point, f float64) Point {
	if f <= 0 {
		return a
	}
	if f >= 1 {
		return b
	}
	return Point{
		Lat:  a.Lat + (b.Lat-a.Lat)*f,
		Lon:  a.Lon + (b.Lon-a.Lon)*f,
		AltM: a.AltM + (b.AltM-a.AltM)*f,
	}
}
