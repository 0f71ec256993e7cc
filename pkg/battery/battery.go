// Package battery estimates flight energy cost for dispatch decisions.
// The linear model was fitted offline against flight logs; coefficients
// are percent of charge per unit.
package battery

import (
	"fmt"
	"log/slog"
)

const (
	// Wind and heat only start costing energy above these floors.
	windFloorMS = 5.0
	tempFloorC  = 25.0

	// zScore95 spans the 95% confidence interval.
	zScore95 = 1.96

	// landingReservePct must remain after the worst-case flight.
	landingReservePct = 20.0
)

// Params are the fitted model coefficients.
type Params struct {
	BasePct      float64 // fixed overhead per flight
	PerKm        float64
	PerKg        float64
	PerWindMS    float64 // per m/s above windFloorMS
	PerDegC      float64 // per °C above tempFloorC
	Per10mAlt    float64
	SafetyMargin float64 // multiplier on the raw estimate
	StdDevFrac   float64 // model spread as a fraction of the estimate
}

// DefaultParams returns the current production fit.
func DefaultParams() Params {
	return Params{
		BasePct:      2.0,
		PerKm:        0.15,
		PerKg:        0.08,
		PerWindMS:    0.05,
		PerDegC:      0.02,
		Per10mAlt:    0.01,
		SafetyMargin: 1.25,
		StdDevFrac:   0.10,
	}
}

// Conditions describe one planned flight.
type Conditions struct {
	DistanceKm   float64
	PayloadKg    float64
	WindSpeedMS  float64
	TemperatureC float64
	AltitudeM    float64
}

// Breakdown itemizes a prediction in percent of charge.
type Breakdown struct {
	Base        float64 `json:"base"`
	Distance    float64 `json:"distance"`
	Payload     float64 `json:"payload"`
	Wind        float64 `json:"wind"`
	Temperature float64 `json:"temperature"`
	Altitude    float64 `json:"altitude"`
	Margin      float64 `json:"safety_margin"`
}

// Prediction is an estimated battery draw with its 95% interval.
type Prediction struct {
	UsagePct  float64   `json:"usage_pct"`
	LowerPct  float64   `json:"lower_pct"`
	UpperPct  float64   `json:"upper_pct"`
	Breakdown Breakdown `json:"breakdown"`
}

// Predictor applies the linear model.
type Predictor struct {
	params Params
}

// New returns a predictor with the production coefficients.
func New() *Predictor {
	return &Predictor{params: DefaultParams()}
}

// NewWithParams returns a predictor with custom coefficients.
func NewWithParams(p Params) *Predictor {
	return &Predictor{params: p}
}

// Predict estimates battery draw for a flight under the given conditions.
// The upper bound is capped at a full charge; the point estimate is not,
// so an impossible flight still reads as impossible.
func (p *Predictor) Predict(c Conditions) Prediction {
	wind := max(c.WindSpeedMS-windFloorMS, 0)
	heat := max(c.TemperatureC-tempFloorC, 0)

	b := Breakdown{
		Base:        p.params.BasePct,
		Distance:    p.params.PerKm * c.DistanceKm,
		Payload:     p.params.PerKg * c.PayloadKg,
		Wind:        p.params.PerWindMS * wind,
		Temperature: p.params.PerDegC * heat,
		Altitude:    p.params.Per10mAlt * c.AltitudeM / 10,
	}
	raw := b.Base + b.Distance + b.Payload + b.Wind + b.Temperature + b.Altitude
	usage := raw * p.params.SafetyMargin
	b.Margin = usage - raw

	sd := usage * p.params.StdDevFrac
	pred := Prediction{
		UsagePct:  usage,
		LowerPct:  max(usage-zScore95*sd, 0),
		UpperPct:  min(usage+zScore95*sd, 100),
		Breakdown: b,
	}

	slog.Debug("Battery: prediction",
		"usage_pct", fmt.Sprintf("%.2f", pred.UsagePct),
		"lower_pct", fmt.Sprintf("%.2f", pred.LowerPct),
		"upper_pct", fmt.Sprintf("%.2f", pred.UpperPct),
		"distance_km", c.DistanceKm)
	return pred
}

// CanComplete decides whether a drone at the given charge can fly the
// predicted mission. The worst-case bound must fit and leave enough to
// land safely.
func (p *Predictor) CanComplete(batteryPct float64, pred Prediction) (bool, string) {
	needed := pred.UpperPct
	if batteryPct < needed {
		return false, fmt.Sprintf("insufficient battery: need %.1f%%, have %.1f%%", needed, batteryPct)
	}
	remaining := batteryPct - needed
	if remaining < landingReservePct {
		return false, fmt.Sprintf("unsafe landing margin: %.1f%% left after flight", remaining)
	}
	return true, fmt.Sprintf("safe to dispatch (%.1f%% margin)", remaining)
}
