package api

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"skyroute/pkg/battery"
	"skyroute/pkg/codes"
	"skyroute/pkg/config"
	"skyroute/pkg/db"
	"skyroute/pkg/fleet"
	"skyroute/pkg/geofence"
	"skyroute/pkg/model"
	"skyroute/pkg/ratelimit"
	"skyroute/pkg/route"
	"skyroute/pkg/store"
	"skyroute/pkg/telemetry"
	"skyroute/pkg/tracker"
	"skyroute/pkg/weather"
)

// testAPI bundles the handlers with the backing store and services so
// tests can seed state directly and assert on side effects.
type testAPI struct {
	st      *store.SQLiteStore
	svc     *fleet.Service
	codes   *codes.Manager
	monitor *telemetry.Monitor
	zones   *geofence.Registry
	prov    *config.UnifiedProvider

	orders   *OrderHandler
	drones   *DroneHandler
	missions *MissionHandler
	config   *ConfigHandler
	codesH   *CodeHandler
	tel      *TelemetryHandler
}

func newTestAPI(t *testing.T, mutate func(*config.Config)) *testAPI {
	t.Helper()

	d, err := db.Init(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("Failed to init DB: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	cfg := config.DefaultConfig()
	if mutate != nil {
		mutate(cfg)
	}
	st := store.NewSQLiteStore(d)
	prov := config.NewProvider(cfg, st)

	opt, err := route.NewOptimizer(route.DefaultOptions())
	if err != nil {
		t.Fatalf("Failed to build optimizer: %v", err)
	}

	mgr := codes.NewManager(st, prov)
	mon := telemetry.NewMonitor(cfg.Telemetry, st)

	svc, err := fleet.New(fleet.Deps{
		Store:     st,
		Config:    prov,
		Optimizer: opt,
		Battery:   battery.New(),
		Codes:     mgr,
	})
	if err != nil {
		t.Fatalf("Failed to build fleet: %v", err)
	}

	return &testAPI{
		st:      st,
		svc:     svc,
		codes:   mgr,
		monitor: mon,
		prov:    prov,

		orders:   NewOrderHandler(svc),
		drones:   NewDroneHandler(svc, mon, st),
		missions: NewMissionHandler(svc),
		config:   NewConfigHandler(st, prov),
		codesH:   NewCodeHandler(mgr),
		tel:      NewTelemetryHandler(mon),
	}
}

func (a *testAPI) seedDrone(t *testing.T, id string, batteryPct float64) *model.Drone {
	t.Helper()
	d := &model.Drone{
		ID:           id,
		Model:        "SkyHawk X1",
		Status:       model.DroneIdle,
		BatteryPct:   batteryPct,
		Lat:          23.3441,
		Lon:          85.3096,
		MaxPayloadKg: 3.0,
		CreatedAt:    time.Now(),
	}
	if err := a.st.SaveDrone(context.Background(), d); err != nil {
		t.Fatalf("Failed to seed drone: %v", err)
	}
	return d
}

// seedOrder creates a short in-town delivery.
func (a *testAPI) seedOrder(t *testing.T) *model.Order {
	t.Helper()
	o := &model.Order{
		Customer:  "Asha Verma",
		Phone:     "9876543210",
		PickupLat: 23.3441,
		PickupLon: 85.3096,
		DropLat:   23.3560,
		DropLon:   85.3200,
		WeightKg:  1.5,
		Priority:  1,
	}
	if err := a.svc.CreateOrder(context.Background(), o); err != nil {
		t.Fatalf("Failed to seed order: %v", err)
	}
	return o
}

// newTestServer builds the full routed handler for endpoint-level tests.
func newTestServer(t *testing.T, a *testAPI, limiter *ratelimit.Limiter) http.Handler {
	t.Helper()

	wcfg := &config.WeatherConfig{
		Provider: "mock",
		TTL:      config.Duration(time.Minute),
		Limits:   config.DefaultConfig().Weather.Limits,
	}
	wsvc := weather.NewService(wcfg, calmProvider{}, a.st, tracker.New())

	zones := geofence.NewRegistry(7)
	a.zones = zones

	srv := NewServer("localhost:0",
		a.orders,
		a.drones,
		a.missions,
		NewWeatherHandler(wsvc, 23.3441, 85.3096),
		NewZoneHandler(zones),
		a.codesH,
		a.config,
		NewStatsHandler(a.st, a.monitor, tracker.New(), limiter, zones),
		a.tel,
		limiter,
		func() {},
	)
	return srv.Handler
}

// calmProvider serves fair-weather reports.
type calmProvider struct{}

func (calmProvider) Name() string { return "calm" }

func (calmProvider) Fetch(ctx context.Context, lat, lon float64) (*weather.Report, error) {
	return &weather.Report{
		Provider:     "calm",
		Lat:          lat,
		Lon:          lon,
		TemperatureC: 26,
		WindSpeedMS:  3,
		RainMMH:      0,
		VisibilityM:  9000,
		Condition:    "clear",
		FetchedAt:    time.Now(),
	}, nil
}

// stormProvider serves reports that breach the wind limit.
type stormProvider struct{}

func (stormProvider) Name() string { return "storm" }

func (stormProvider) Fetch(ctx context.Context, lat, lon float64) (*weather.Report, error) {
	return &weather.Report{
		Provider:     "storm",
		Lat:          lat,
		Lon:          lon,
		TemperatureC: 24,
		WindSpeedMS:  18,
		RainMMH:      6,
		VisibilityM:  700,
		Condition:    "thunderstorm",
		FetchedAt:    time.Now(),
	}, nil
}
