package route

import "skyroute/pkg/geo"

// reconstruct walks parent indices from the terminal node back to the start
// and returns the chain in start-to-goal order.
func reconstruct(arena []searchNode, terminal int) []geo.Point {
	var path []geo.Point
	for i := terminal; i >= 0; i = arena[i].parent {
		path = append(path, arena[i].pos)
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path
}

// smooth drops intermediate waypoints greedily: from each kept waypoint it
// scans backward from the end for the farthest point reachable by a clear
// straight segment. When not even the adjacent waypoint is reachable (a
// chord can clip a zone both of its endpoints clear), the intermediate
// waypoint is kept as-is.
func smooth(path []geo.Point, zones []NoFlyZone) []geo.Point {
	if len(path) <= 2 {
		return path
	}

	smoothed := []geo.Point{path[0]}
	i := 0
	for i < len(path)-1 {
		advanced := false
		for j := len(path) - 1; j > i; j-- {
			if lineClear(path[i], path[j], zones) {
				smoothed = append(smoothed, path[j])
				i = j
				advanced = true
				break
			}
		}
		if !advanced {
			i++
			smoothed = append(smoothed, path[i])
		}
	}
	return smoothed
}

// clearSamples is the number of interior points checked per candidate
// segment on top of the segment-distance test.
const clearSamples = 10

// lineClear reports whether the segment between two waypoints stays outside
// every no-fly circle. It uses the same zone geometry as node expansion, so
// smoothing can never reintroduce a crossing the search avoided. The
// segment-distance test runs on a tangent-plane projection; sampled interior
// points re-check with true great-circle distance, which matters on the long
// chords smoothing proposes.
func lineClear(a, b geo.Point, zones []NoFlyZone) bool {
	for _, z := range zones {
		if geo.DistanceToSegment(z.Center, a, b) < z.RadiusM {
			return false
		}
	}
	for i := 1; i < clearSamples; i++ {
		p := geo.Interpolate(a, b, float64(i)/clearSamples)
		for _, z := range zones {
			if geo.Distance(p, z.Center) < z.RadiusM {
				return false
			}
		}
	}
	return true
}
