package cache

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"skyroute/pkg/config"
)

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedisCache(ctx, &config.RedisConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	defer c.Close()

	if _, hit := c.GetCache(ctx, "weather:23.34:85.31"); hit {
		t.Error("expected miss on empty cache")
	}

	payload := []byte(`{"wind_speed": 8.5}`)
	if err := c.SetCache(ctx, "weather:23.34:85.31", payload); err != nil {
		t.Fatalf("SetCache failed: %v", err)
	}

	got, hit := c.GetCache(ctx, "weather:23.34:85.31")
	if !hit {
		t.Fatal("expected hit")
	}
	if string(got) != string(payload) {
		t.Errorf("round trip mismatch: %q", got)
	}

	// Entries carry the retention TTL
	if ttl := mr.TTL("weather:23.34:85.31"); ttl <= 0 {
		t.Errorf("expected a positive TTL, got %v", ttl)
	}

	// Expired entries miss
	mr.FastForward(Retention + 1)
	if _, hit := c.GetCache(ctx, "weather:23.34:85.31"); hit {
		t.Error("expected miss after expiry")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	sqlite := &fakeCacher{}

	got, err := New(ctx, &config.CacheConfig{Backend: "sqlite"}, sqlite)
	if err != nil {
		t.Fatalf("New(sqlite) failed: %v", err)
	}
	if got != Cacher(sqlite) {
		t.Error("sqlite backend should return the store-backed cacher")
	}

	got, err = New(ctx, &config.CacheConfig{Backend: "redis", Redis: config.RedisConfig{Addr: mr.Addr()}}, sqlite)
	if err != nil {
		t.Fatalf("New(redis) failed: %v", err)
	}
	if _, ok := got.(*RedisCache); !ok {
		t.Errorf("expected *RedisCache, got %T", got)
	}

	if _, err := New(ctx, &config.CacheConfig{Backend: "memcached"}, sqlite); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNewPostgresCacheBadDSN(t *testing.T) {
	if _, err := NewPostgresCache(context.Background(), "not-a-dsn://"); err == nil {
		t.Error("expected error for malformed DSN")
	}
}

type fakeCacher struct{}

func (f *fakeCacher) GetCache(context.Context, string) ([]byte, bool) { return nil, false }
func (f *fakeCacher) SetCache(context.Context, string, []byte) error { return nil }
