package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"skyroute/internal/api"
	"skyroute/pkg/battery"
	"skyroute/pkg/cache"
	"skyroute/pkg/codes"
	"skyroute/pkg/config"
	"skyroute/pkg/core"
	"skyroute/pkg/db"
	"skyroute/pkg/db/maintenance"
	"skyroute/pkg/fleet"
	"skyroute/pkg/geofence"
	"skyroute/pkg/logging"
	"skyroute/pkg/probe"
	"skyroute/pkg/ratelimit"
	"skyroute/pkg/request"
	"skyroute/pkg/route"
	"skyroute/pkg/store"
	"skyroute/pkg/telemetry"
	"skyroute/pkg/tracker"
	"skyroute/pkg/version"
	"skyroute/pkg/watcher"
	"skyroute/pkg/weather"
)

var (
	initConfig = flag.Bool("init-config", false, "Generate default config file and exit")
	configPath = flag.String("config", "configs/skyroute.yaml", "Path to the config file")
)

func main() {
	flag.Parse()

	// Handle --init-config flag
	if *initConfig {
		if err := config.GenerateDefault(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Config file generated:", *configPath)
		return
	}

	if err := run(context.Background(), *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL ERROR: Application failed: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// A .env beside the binary can carry OPENWEATHER_API_KEY and cache
	// connection strings; absence is the normal case.
	_ = godotenv.Load()

	appCfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	cleanupLogs, err := logging.Init(&appCfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	defer cleanupLogs()

	slog.Info("SkyRoute Started", "version", version.Version)

	dbConn, st, err := initDB(appCfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	if err := maintenance.Run(ctx, st, appCfg.Fleet.RosterFile, time.Duration(appCfg.Telemetry.Retention)); err != nil {
		return fmt.Errorf("database maintenance failed: %w", err)
	}

	cc := initCache(ctx, &appCfg.Cache, st)
	if closer, ok := cc.(io.Closer); ok {
		defer closer.Close()
	}

	tr := tracker.New()
	prov := config.NewProvider(appCfg, st)

	reqClient := request.New(request.Config{
		Retries:   appCfg.Request.Retries,
		Timeout:   time.Duration(appCfg.Request.Timeout),
		BaseDelay: time.Duration(appCfg.Request.Backoff.BaseDelay),
		MaxDelay:  time.Duration(appCfg.Request.Backoff.MaxDelay),
	}, cc, tr)

	wsvc, err := weather.New(&appCfg.Weather, reqClient, cc, tr)
	if err != nil {
		return fmt.Errorf("failed to initialize weather service: %w", err)
	}

	// The registry load is reported through the startup probes below, so
	// a missing zones file degrades to unconstrained planning instead of
	// refusing to start.
	zones := geofence.NewRegistry(appCfg.Geofence.H3Resolution)
	zonesErr := zones.LoadFile(appCfg.Geofence.ZonesFile)
	if zonesErr != nil {
		slog.Warn("No-fly zones not loaded", "path", appCfg.Geofence.ZonesFile, "error", zonesErr)
	}

	opt, err := route.NewOptimizer(route.Options{
		Weights:         appCfg.Route.Weights,
		GridResolutionM: float64(appCfg.Route.GridResolution),
		MaxIterations:   appCfg.Route.MaxIterations,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize route optimizer: %w", err)
	}

	mgr := codes.NewManager(st, prov)
	mon := telemetry.NewMonitor(appCfg.Telemetry, st)

	svc, err := fleet.New(fleet.Deps{
		Store:     st,
		Config:    prov,
		Optimizer: opt,
		Weather:   wsvc,
		Zones:     zones,
		Battery:   battery.New(),
		Codes:     mgr,
		Monitor:   mon,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize fleet service: %w", err)
	}

	limiter := ratelimit.New(&appCfg.RateLimit)

	sched := setupScheduler(appCfg, svc, wsvc, mgr, mon, st, zones, cc, limiter)
	go sched.Start(ctx)

	// Startup Probes
	probes := []probe.Probe{
		{
			Name:     "State store",
			Check:    probe.Database(st),
			Critical: true,
		},
		{
			Name:     "Cache backend",
			Check:    probe.Cache(cc),
			Critical: false,
		},
		{
			Name:     "Weather provider",
			Check:    probe.Weather(wsvc, appCfg.Fleet.BaseLat, appCfg.Fleet.BaseLon),
			Critical: false,
		},
	}
	// The zones file is read again by the reload watcher, so readability
	// matters beyond the initial load.
	zonesCheck := probe.File(appCfg.Geofence.ZonesFile)
	if zonesErr != nil {
		zonesCheck = func(context.Context) error { return zonesErr }
	}
	probes = append(probes, probe.Probe{
		Name:     "No-fly zones",
		Check:    zonesCheck,
		Critical: false, // planner flies unconstrained without them
	})

	results := probe.Run(ctx, probes)
	if err := probe.AnalyzeResults(results); err != nil {
		return fmt.Errorf("startup checks failed: %w", err)
	}

	return runServer(ctx, appCfg, prov, svc, wsvc, zones, mgr, mon, st, tr, limiter)
}

func initDB(appCfg *config.Config) (*db.DB, *store.SQLiteStore, error) {
	dbConn, err := db.Init(appCfg.DB.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return dbConn, store.NewSQLiteStore(dbConn), nil
}

// initCache falls back to the sqlite store when the configured backend
// is unreachable. Dispatch must not depend on an external cache.
func initCache(ctx context.Context, cfg *config.CacheConfig, st *store.SQLiteStore) cache.Cacher {
	cc, err := cache.New(ctx, cfg, st)
	if err != nil {
		slog.Warn("Cache backend unavailable, using sqlite", "backend", cfg.Backend, "error", err)
		return st
	}
	return cc
}

func setupScheduler(cfg *config.Config, svc *fleet.Service, wsvc *weather.Service, mgr *codes.Manager, mon *telemetry.Monitor, st *store.SQLiteStore, zones *geofence.Registry, cc cache.Cacher, limiter *ratelimit.Limiter) *core.Scheduler {
	sched := core.NewScheduler(time.Second)

	// Auto-dispatch sweep; the runtime auto_dispatch override gates it
	// inside the service, so flipping the switch needs no restart.
	sched.AddJob(core.NewTimeJob("FleetLoop", time.Duration(cfg.Ticker.FleetLoop), func(c context.Context) {
		if _, err := svc.DispatchPending(c); err != nil {
			slog.Error("Auto-dispatch sweep failed", "error", err)
		}
	}))

	sched.AddJob(core.NewTimeJob("HealthSweep", time.Duration(cfg.Ticker.HealthSweep), func(context.Context) {
		mon.Sweep()
	}))

	sched.AddJob(core.NewTimeJob("CodesCleanup", time.Duration(cfg.Ticker.CodesCleanup), func(c context.Context) {
		if _, err := mgr.CleanupExpired(c); err != nil {
			slog.Error("Code cleanup failed", "error", err)
		}
	}))

	// Keeps the depot report warm so dispatch decisions read from cache.
	sched.AddJob(core.NewTimeJob("WeatherRefresh", time.Duration(cfg.Ticker.WeatherRefresh), func(c context.Context) {
		if _, err := wsvc.Refresh(c, cfg.Fleet.BaseLat, cfg.Fleet.BaseLon); err != nil {
			slog.Warn("Depot weather refresh failed", "error", err)
		}
	}))

	sched.AddJob(core.NewTimeJob("TelemetryPrune", time.Duration(cfg.Ticker.TelemetryPrune), func(c context.Context) {
		cutoff := time.Now().Add(-time.Duration(cfg.Telemetry.Retention))
		if n, err := st.PruneTelemetry(c, cutoff); err != nil {
			slog.Error("Telemetry prune failed", "error", err)
		} else if n > 0 {
			slog.Info("Telemetry pruned", "rows", n)
		}
	}))

	// Redis expires keys itself; the table-backed caches need the sweep.
	if pruner, ok := cc.(interface {
		PruneCache(ctx context.Context, olderThan time.Duration) (int, error)
	}); ok {
		sched.AddJob(core.NewTimeJob("CachePrune", time.Duration(cfg.Ticker.CachePrune), func(c context.Context) {
			if n, err := pruner.PruneCache(c, cache.Retention); err != nil {
				slog.Error("Cache prune failed", "error", err)
			} else if n > 0 {
				slog.Info("Cache pruned", "rows", n)
			}
		}))
	}

	sched.AddJob(core.NewTimeJob("RateLimitPrune", time.Duration(cfg.Ticker.RateLimitPrune), func(context.Context) {
		limiter.Cleanup()
	}))

	if cfg.Geofence.Watch {
		w, err := watcher.NewService([]string{cfg.Geofence.ZonesFile})
		if err != nil {
			slog.Warn("Zones watcher disabled", "error", err)
		} else {
			sched.AddJob(core.NewZonesReloadJob(w, zones, 2*time.Second))
		}
	}

	return sched
}

func runServer(ctx context.Context, cfg *config.Config, prov config.Provider, svc *fleet.Service, wsvc *weather.Service, zones *geofence.Registry, mgr *codes.Manager, mon *telemetry.Monitor, st *store.SQLiteStore, tr *tracker.Tracker, limiter *ratelimit.Limiter) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	shutdownFunc := func() { quit <- syscall.SIGTERM }

	srv := api.NewServer(cfg.Server.Address,
		api.NewOrderHandler(svc),
		api.NewDroneHandler(svc, mon, st),
		api.NewMissionHandler(svc),
		api.NewWeatherHandler(wsvc, cfg.Fleet.BaseLat, cfg.Fleet.BaseLon),
		api.NewZoneHandler(zones),
		api.NewCodeHandler(mgr),
		api.NewConfigHandler(st, prov),
		api.NewStatsHandler(st, mon, tr, limiter, zones),
		api.NewTelemetryHandler(mon),
		limiter,
		shutdownFunc,
	)

	return runServerLifecycle(ctx, srv, quit)
}

func runServerLifecycle(ctx context.Context, srv *http.Server, quit chan os.Signal) error {
	slog.Info("Starting server", "addr", srv.Addr)
	serverErrors := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()
	select {
	case <-quit:
		slog.Info("Shutting down server...")
	case <-ctx.Done():
		slog.Info("Context cancelled, shutting down...")
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
