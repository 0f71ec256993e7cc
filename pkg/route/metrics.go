package route

import (
	"math"

	"skyroute/pkg/geo"
)

// Flight model constants for a small quad-rotor delivery vehicle.
const (
	baseSpeedMS       = 12.0 // cruise speed in still air
	minSpeedMS        = 5.0  // floor for effective ground speed
	windSpeedFactor   = 0.3  // m/s of cruise lost per m/s of wind
	calmWindMS        = 5.0  // wind at or below this has no cost effect
	whPerKm           = 15.0 // consumption at cruise
	batteryCapacityWh = 55.0
	batteryMargin     = 1.2 // 20% reserve on every estimate
)

// pathDistance sums the consecutive waypoint distances in meters.
func pathDistance(path []geo.Point) float64 {
	total := 0.0
	for i := 0; i < len(path)-1; i++ {
		total += geo.Distance(path[i], path[i+1])
	}
	return total
}

// estimateFlightTime returns minutes of flight for the given ground distance.
// Wind reduces effective speed down to the floor; the floor also guards the
// division when wind is extreme.
func estimateFlightTime(distanceM float64, wx *Weather) float64 {
	speed := baseSpeedMS
	if wx != nil {
		speed = math.Max(baseSpeedMS-wx.WindSpeedMS*windSpeedFactor, minSpeedMS)
	}
	return distanceM / speed / 60
}

// estimateBattery returns the percentage of capacity the flight needs,
// including the reserve margin, capped at 100.
func estimateBattery(distanceM float64, wx *Weather) float64 {
	distanceKm := distanceM / 1000
	consumption := whPerKm * distanceKm

	if wx != nil && wx.WindSpeedMS > calmWindMS {
		consumption *= 1 + (wx.WindSpeedMS-calmWindMS)*0.1
	}

	pct := consumption / batteryCapacityWh * 100 * batteryMargin
	return math.Min(pct, 100)
}

// safetyScore starts at 100 and deducts for every waypoint inside a zone's
// buffered envelope. The deduction is cumulative across waypoints, so a path
// that lingers near a zone scores worse than one that clips the envelope
// once. Floor is 0.
func safetyScore(path []geo.Point, cons *Constraints) float64 {
	score := 100.0
	for _, wp := range path {
		for _, z := range cons.NoFlyZones {
			envelope := z.RadiusM + cons.SafetyBufferM
			if d := geo.Distance(wp, z.Center); d < envelope {
				score -= (1 - d/envelope) * 20
			}
		}
	}
	return math.Max(score, 0)
}

// windResistance is the super-linear headwind effort factor: zero in calm
// air, (wind-5)^1.5 above the threshold.
func windResistance(wx *Weather) float64 {
	if wx == nil || wx.WindSpeedMS < calmWindMS {
		return 0
	}
	return math.Pow(wx.WindSpeedMS-calmWindMS, 1.5)
}
