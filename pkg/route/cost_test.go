package route

import (
	"strings"
	"testing"

	"skyroute/pkg/geo"
)

func TestWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		w       Weights
		wantErr string
	}{
		{
			name: "Defaults",
			w:    DefaultWeights(),
		},
		{
			name: "Distance Only",
			w:    Weights{Distance: 1},
		},
		{
			name:    "Negative Weight",
			w:       Weights{Distance: 1.2, Battery: -0.2},
			wantErr: "negative",
		},
		{
			name:    "Sum Below One",
			w:       Weights{Distance: 0.3, Battery: 0.3, Wind: 0.2, Safety: 0.1},
			wantErr: "sum",
		},
		{
			name:    "Sum Above One",
			w:       Weights{Distance: 0.5, Battery: 0.3, Wind: 0.2, Safety: 0.2},
			wantErr: "sum",
		},
		{
			name: "Sum Within Tolerance",
			w:    Weights{Distance: 0.3, Battery: 0.3, Wind: 0.2, Safety: 0.2 + 5e-10},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEdgeCost(t *testing.T) {
	o, err := NewOptimizer(DefaultOptions())
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}

	from := geo.Point{Lat: 0, Lon: 0, AltM: 100}
	to := geo.Point{Lat: 0, Lon: 0.001, AltM: 100}
	dist := geo.Distance(from, to)
	empty := Constraints{MaxAltitudeM: 120, MaxWindMS: 10, SafetyBufferM: 50}

	t.Run("Distance Term Only", func(t *testing.T) {
		got := o.edgeCost(from, to, &empty, nil)
		want := dist * 0.3
		if !approx(got, want, 1e-9) {
			t.Errorf("edgeCost = %v, want %v", got, want)
		}
	})

	t.Run("Altitude Change Adds Battery Term", func(t *testing.T) {
		up := to
		up.AltM = 110
		got := o.edgeCost(from, up, &empty, nil)
		want := dist*0.3 + 10*0.5*0.3
		if !approx(got, want, 1e-9) {
			t.Errorf("edgeCost = %v, want %v", got, want)
		}
	})

	t.Run("Wind Above Threshold", func(t *testing.T) {
		got := o.edgeCost(from, to, &empty, &Weather{WindSpeedMS: 8.5})
		want := dist*0.3 + (8.5-5)*10*0.2
		if !approx(got, want, 1e-9) {
			t.Errorf("edgeCost = %v, want %v", got, want)
		}
	})

	t.Run("Calm Wind Is Free", func(t *testing.T) {
		for _, wind := range []float64{0, 4, 5} {
			got := o.edgeCost(from, to, &empty, &Weather{WindSpeedMS: wind})
			want := dist * 0.3
			if !approx(got, want, 1e-9) {
				t.Errorf("edgeCost(wind=%g) = %v, want %v", wind, got, want)
			}
		}
	})

	t.Run("Proximity To Zone Envelope", func(t *testing.T) {
		center := geo.DestinationPoint(to, 1020, 0)
		cons := empty
		cons.NoFlyZones = []NoFlyZone{{Center: center, RadiusM: 1000}}

		d := geo.Distance(to, center)
		got := o.edgeCost(from, to, &cons, nil)
		want := dist*0.3 + (1050-d)/100*0.2
		if !approx(got, want, 1e-9) {
			t.Errorf("edgeCost = %v, want %v", got, want)
		}
	})

	t.Run("Zone Beyond Envelope Is Free", func(t *testing.T) {
		center := geo.DestinationPoint(to, 1100, 0)
		cons := empty
		cons.NoFlyZones = []NoFlyZone{{Center: center, RadiusM: 1000}}

		got := o.edgeCost(from, to, &cons, nil)
		want := dist * 0.3
		if !approx(got, want, 1e-9) {
			t.Errorf("edgeCost = %v, want %v", got, want)
		}
	})

	t.Run("Penalty Keyed On Destination Not Origin", func(t *testing.T) {
		// Envelope covers from but not to; the edge must cost nothing extra.
		center := geo.DestinationPoint(from, 120, 180)
		cons := empty
		cons.NoFlyZones = []NoFlyZone{{Center: center, RadiusM: 100}}

		if d := geo.Distance(to, center); d < 150 {
			t.Fatalf("bad fixture: to is %gm from center, want >= 150", d)
		}
		got := o.edgeCost(from, to, &cons, nil)
		want := dist * 0.3
		if !approx(got, want, 1e-9) {
			t.Errorf("edgeCost = %v, want %v", got, want)
		}
	})
}

func TestHeuristic(t *testing.T) {
	p := geo.Point{Lat: 23.3441, Lon: 85.3096}
	goal := geo.Point{Lat: 23.3540, Lon: 85.3350}
	if got, want := heuristic(p, goal), geo.Distance(p, goal); got != want {
		t.Errorf("heuristic = %v, want %v", got, want)
	}
	if got := heuristic(goal, goal); got != 0 {
		t.Errorf("heuristic at goal = %v, want 0", got)
	}
}
