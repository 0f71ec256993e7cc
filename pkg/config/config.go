package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"skyroute/pkg/route"
)

// Config holds the application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	DB        DBConfig        `yaml:"db"`
	Cache     CacheConfig     `yaml:"cache"`
	Request   RequestConfig   `yaml:"request"`
	Weather   WeatherConfig   `yaml:"weather"`
	Route     RouteConfig     `yaml:"route"`
	Geofence  GeofenceConfig  `yaml:"geofence"`
	Codes     CodesConfig     `yaml:"codes"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Fleet     FleetConfig     `yaml:"fleet"`
	Ticker    TickerConfig    `yaml:"ticker"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// LogConfig holds logging settings, one logger per concern. Events is a
// plain-text operations trail rather than a structured log.
type LogConfig struct {
	Server    LogSettings `yaml:"server"`
	Requests  LogSettings `yaml:"requests"`
	Telemetry LogSettings `yaml:"telemetry"`
	Events    LogSettings `yaml:"events"`
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// DBConfig holds database settings.
type DBConfig struct {
	Path string `yaml:"path"`
}

// CacheConfig selects the cache backend and its connection settings.
type CacheConfig struct {
	Backend  string         `yaml:"backend"` // sqlite, redis, postgres
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PostgresConfig holds postgres connection settings.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RequestConfig holds outbound HTTP settings.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// WeatherConfig holds the weather provider and flight-safety limits.
type WeatherConfig struct {
	Provider string        `yaml:"provider"` // openweather, mock
	Key      string        `yaml:"key"`
	TTL      Duration      `yaml:"ttl"` // snapshot cache lifetime
	Limits   WeatherLimits `yaml:"limits"`
}

// WeatherLimits are the no-fly thresholds. A snapshot breaching any of them
// grounds dispatch.
type WeatherLimits struct {
	MaxWind       Speed    `yaml:"max_wind"`
	MaxRainMMH    float64  `yaml:"max_rain_mmh"`
	MinVisibility Distance `yaml:"min_visibility"`
	TempMinC      float64  `yaml:"temp_min_c"`
	TempMaxC      float64  `yaml:"temp_max_c"`
}

// RouteConfig holds the optimizer tunables and default constraints.
type RouteConfig struct {
	Weights        route.Weights `yaml:"weights"`
	GridResolution Distance      `yaml:"grid_resolution"`
	MaxIterations  int           `yaml:"max_iterations"`
	MaxAltitude    Distance      `yaml:"max_altitude"`
	MaxWind        Speed         `yaml:"max_wind"`
	SafetyBuffer   Distance      `yaml:"safety_buffer"`
	WeatherPenalty float64       `yaml:"weather_penalty"`
}

// GeofenceConfig holds the no-fly zone source settings.
type GeofenceConfig struct {
	ZonesFile    string `yaml:"zones_file"` // GeoJSON FeatureCollection
	Watch        bool   `yaml:"watch"`      // reload on file change
	H3Resolution int    `yaml:"h3_resolution"`
}

// CodesConfig holds delivery confirmation code settings.
type CodesConfig struct {
	TTL             Duration `yaml:"ttl"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
	MaxAttempts     int      `yaml:"max_attempts"`
}

// RateLimitConfig holds API rate limiting settings.
type RateLimitConfig struct {
	PerMinute    int      `yaml:"per_minute"`
	PerHour      int      `yaml:"per_hour"`
	BanThreshold int      `yaml:"ban_threshold"` // cumulative violations before a ban
	BanDuration  Duration `yaml:"ban_duration"`
}

// TelemetryConfig holds fleet health monitoring thresholds. Heartbeat is
// the expected report interval; a drone silent for OfflineAfter is marked
// offline. MaxBatteryDip is percent of charge per minute.
type TelemetryConfig struct {
	Heartbeat     Duration `yaml:"heartbeat"`
	OfflineAfter  Duration `yaml:"offline_after"`
	MaxBatteryDip float64  `yaml:"max_battery_dip"`
	MaxSpeed      Speed    `yaml:"max_speed"`
	MaxTempC      float64  `yaml:"max_temp_c"`
	Retention     Duration `yaml:"retention"`
}

// FleetConfig holds dispatch settings.
type FleetConfig struct {
	BaseLat            float64 `yaml:"base_lat"`
	BaseLon            float64 `yaml:"base_lon"`
	MinDispatchBattery float64 `yaml:"min_dispatch_battery"` // %
	MaxActiveMissions  int     `yaml:"max_active_missions"`
	AutoDispatch       bool    `yaml:"auto_dispatch"`
	RosterFile         string  `yaml:"roster_file"` // CSV seeding unknown drones at startup
}

// TickerConfig holds background job intervals.
type TickerConfig struct {
	FleetLoop      Duration `yaml:"fleet_loop"`
	WeatherRefresh Duration `yaml:"weather_refresh"`
	CodesCleanup   Duration `yaml:"codes_cleanup"`
	HealthSweep    Duration `yaml:"health_sweep"`
	TelemetryPrune Duration `yaml:"telemetry_prune"`
	CachePrune     Duration `yaml:"cache_prune"`
	RateLimitPrune Duration `yaml:"rate_limit_prune"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address: "localhost:8000",
		},
		Log: LogConfig{
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Telemetry: LogSettings{
				Path:  "./logs/telemetry.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
		},
		DB: DBConfig{
			Path: "./data/skyroute.db",
		},
		Cache: CacheConfig{
			Backend: "sqlite",
			Redis: RedisConfig{
				Addr: "localhost:6379",
			},
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(30 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(500 * time.Millisecond),
				MaxDelay:  Duration(8 * time.Second),
			},
		},
		Weather: WeatherConfig{
			Provider: "openweather",
			TTL:      Duration(5 * time.Minute),
			Limits: WeatherLimits{
				MaxWind:       Speed(12),
				MaxRainMMH:    2.0,
				MinVisibility: Distance(1000),
				TempMinC:      0,
				TempMaxC:      45,
			},
		},
		Route: RouteConfig{
			Weights:        route.DefaultWeights(),
			GridResolution: Distance(100),
			MaxIterations:  10000,
			MaxAltitude:    Distance(120),
			MaxWind:        Speed(10),
			SafetyBuffer:   Distance(50),
			WeatherPenalty: 1.5,
		},
		Geofence: GeofenceConfig{
			ZonesFile:    "./data/zones.geojson",
			Watch:        true,
			H3Resolution: 7,
		},
		Codes: CodesConfig{
			TTL:             Duration(5 * time.Minute),
			CleanupInterval: Duration(1 * time.Minute),
			MaxAttempts:     3,
		},
		RateLimit: RateLimitConfig{
			PerMinute:    60,
			PerHour:      500,
			BanThreshold: 1000,
			BanDuration:  Duration(1 * time.Hour),
		},
		Telemetry: TelemetryConfig{
			Heartbeat:     Duration(5 * time.Second),
			OfflineAfter:  Duration(15 * time.Second),
			MaxBatteryDip: 5.0,
			MaxSpeed:      Speed(20),
			MaxTempC:      70,
			Retention:     Duration(24 * time.Hour),
		},
		Fleet: FleetConfig{
			BaseLat:            23.3441,
			BaseLon:            85.3096,
			MinDispatchBattery: 50,
			MaxActiveMissions:  5,
			AutoDispatch:       true,
			RosterFile:         "data/fleet_roster.csv",
		},
		Ticker: TickerConfig{
			FleetLoop:      Duration(10 * time.Second),
			WeatherRefresh: Duration(5 * time.Minute),
			CodesCleanup:   Duration(1 * time.Minute),
			HealthSweep:    Duration(5 * time.Second),
			TelemetryPrune: Duration(1 * time.Hour),
			CachePrune:     Duration(10 * time.Minute),
			RateLimitPrune: Duration(1 * time.Minute),
		},
	}
}

// Load loads the configuration from the given path. If the file does not
// exist, it is created with default values. An existing file is merged over
// the defaults but never written back, preserving user formatting.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}

		applyEnv(cfg)

		if err := validate(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	applyEnv(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv fills secrets and connection strings from the environment when
// the file leaves them empty. Environment values never overwrite explicit
// config.
func applyEnv(cfg *Config) {
	if cfg.Weather.Key == "" {
		if key := os.Getenv("OPENWEATHER_API_KEY"); key != "" {
			cfg.Weather.Key = key
		}
	}
	if cfg.Cache.Redis.Addr == "" {
		if addr := os.Getenv("REDIS_ADDR"); addr != "" {
			cfg.Cache.Redis.Addr = addr
		}
	}
	if cfg.Cache.Postgres.DSN == "" {
		if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
			cfg.Cache.Postgres.DSN = dsn
		}
	}
}

func validate(cfg *Config) error {
	switch cfg.Cache.Backend {
	case "sqlite", "redis", "postgres":
	default:
		return fmt.Errorf("unknown cache backend '%s': must be sqlite, redis or postgres", cfg.Cache.Backend)
	}
	switch cfg.Weather.Provider {
	case "openweather", "mock":
	default:
		return fmt.Errorf("unknown weather provider '%s': must be openweather or mock", cfg.Weather.Provider)
	}
	if err := cfg.Route.Weights.Validate(); err != nil {
		return fmt.Errorf("route weights: %w", err)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# SkyRoute Configuration
# ----------------------
# Supported Units:
#   Duration: ns, us, ms, s, m, h, d (day), w (week)
#   Distance: m (meters), km (kilometers), nm (nautical miles), ft (feet)
#   Speed:    m/s, km/h, kt (knots)

`)
	data = append(header, data...)

	// Inject comments for enum fields; regex keeps the indentation intact.
	reBackend := regexp.MustCompile(`(?m)^(\s+)backend:`)
	data = reBackend.ReplaceAll(data, []byte("${1}# Options: sqlite, redis, postgres\n${1}backend:"))

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: openweather, mock\n${1}provider:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path. Returns
// nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
