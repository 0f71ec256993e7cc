package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresCache implements Cacher on a postgres table.
type PostgresCache struct {
	pool *pgxpool.Pool
}

// NewPostgresCache connects, pings, and ensures the cache table exists.
func NewPostgresCache(ctx context.Context, dsn string) (*PostgresCache, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}

	const ddl = `CREATE TABLE IF NOT EXISTS cache (
		key TEXT PRIMARY KEY,
		value BYTEA,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`
	if _, err := pool.Exec(ctx, ddl); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres cache ddl: %w", err)
	}

	return &PostgresCache{pool: pool}, nil
}

func (c *PostgresCache) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := c.pool.QueryRow(ctx, `SELECT value FROM cache WHERE key = $1`, key).Scan(&val)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			slog.Warn("postgres cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	return val, true
}

func (c *PostgresCache) SetCache(ctx context.Context, key string, val []byte) error {
	_, err := c.pool.Exec(ctx,
		`INSERT INTO cache (key, value, created_at) VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, created_at = now()`,
		key, val)
	return err
}

// PruneCache removes entries older than the given age.
func (c *PostgresCache) PruneCache(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := c.pool.Exec(ctx, `DELETE FROM cache WHERE created_at < $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Close releases the pool.
func (c *PostgresCache) Close() error {
	c.pool.Close()
	return nil
}
