// Package cache provides the response cache behind the outbound HTTP
// client. The sqlite backend reuses the store's compressed cache table;
// redis and postgres stand alone for deployments that already run one.
package cache

import (
	"context"
	"fmt"
	"time"

	"skyroute/pkg/config"
)

// Retention is how long entries stay around: redis expires keys at write
// time, the sqlite and postgres tables are pruned by a scheduler job.
// Entry freshness (TTL) is checked by readers; retention only bounds the
// table size.
const Retention = 30 * 24 * time.Hour

// Cacher defines the caching interface.
type Cacher interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	SetCache(ctx context.Context, key string, val []byte) error
}

// New returns the Cacher for the configured backend. The caller passes
// the store-backed Cacher used when the backend is sqlite.
func New(ctx context.Context, cfg *config.CacheConfig, sqlite Cacher) (Cacher, error) {
	switch cfg.Backend {
	case "redis":
		return NewRedisCache(ctx, &cfg.Redis)
	case "postgres":
		return NewPostgresCache(ctx, cfg.Postgres.DSN)
	case "sqlite", "":
		return sqlite, nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}
