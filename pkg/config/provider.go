package config

import (
	"context"
	"strconv"
	"time"

	"skyroute/pkg/store"
)

// Provider is the unified view of configuration: static YAML values with
// per-key runtime overrides layered on top.
type Provider interface {
	// Dispatch
	AutoDispatch(ctx context.Context) bool
	MinDispatchBattery(ctx context.Context) float64
	MaxActiveMissions(ctx context.Context) int

	// Safety
	WeatherBypass(ctx context.Context) bool

	// Codes
	CodeTTL(ctx context.Context) time.Duration

	// Raw access for components that need deep settings.
	AppConfig() *Config
}

// UnifiedProvider implements Provider by bridging static Config and the
// persistent state store.
type UnifiedProvider struct {
	base  *Config
	store store.StateStore
}

// NewProvider creates a new UnifiedProvider. A nil store disables runtime
// overrides entirely.
func NewProvider(base *Config, st store.StateStore) *UnifiedProvider {
	return &UnifiedProvider{
		base:  base,
		store: st,
	}
}

func (p *UnifiedProvider) AppConfig() *Config { return p.base }

func (p *UnifiedProvider) AutoDispatch(ctx context.Context) bool {
	return p.getBool(ctx, KeyAutoDispatch, p.base.Fleet.AutoDispatch)
}

func (p *UnifiedProvider) MinDispatchBattery(ctx context.Context) float64 {
	return p.getFloat64(ctx, KeyMinDispatchBattery, p.base.Fleet.MinDispatchBattery)
}

func (p *UnifiedProvider) MaxActiveMissions(ctx context.Context) int {
	return p.getInt(ctx, KeyMaxActiveMissions, p.base.Fleet.MaxActiveMissions)
}

func (p *UnifiedProvider) WeatherBypass(ctx context.Context) bool {
	return p.getBool(ctx, KeyWeatherBypass, false)
}

func (p *UnifiedProvider) CodeTTL(ctx context.Context) time.Duration {
	return p.getDuration(ctx, KeyCodeTTL, time.Duration(p.base.Codes.TTL))
}

// --- Helpers ---

func (p *UnifiedProvider) getInt(ctx context.Context, key string, fallback int) int {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if i, err := strconv.Atoi(val); err == nil {
				return i
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getFloat64(ctx context.Context, key string, fallback float64) float64 {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				return f
			}
		}
	}
	return fallback
}

func (p *UnifiedProvider) getBool(ctx context.Context, key string, fallback bool) bool {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			return val == "true"
		}
	}
	return fallback
}

func (p *UnifiedProvider) getDuration(ctx context.Context, key string, fallback time.Duration) time.Duration {
	if p.store != nil {
		if val, ok := p.store.GetState(ctx, key); ok && val != "" {
			if dur, err := ParseDuration(val); err == nil {
				return dur
			}
		}
	}
	return fallback
}
