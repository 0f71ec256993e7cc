package probe

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"skyroute/pkg/cache"
	"skyroute/pkg/store"
	"skyroute/pkg/weather"
)

// Database verifies the state store with a write-read roundtrip.
func Database(st store.StateStore) CheckFunc {
	return func(ctx context.Context) error {
		stamp := time.Now().UTC().Format(time.RFC3339)
		if err := st.SetState(ctx, "probe_heartbeat", stamp); err != nil {
			return fmt.Errorf("state write: %w", err)
		}
		got, ok := st.GetState(ctx, "probe_heartbeat")
		if !ok || got != stamp {
			return fmt.Errorf("state read back %q, wrote %q", got, stamp)
		}
		return nil
	}
}

// Cache verifies the configured cache backend with a roundtrip.
func Cache(c cache.Cacher) CheckFunc {
	return func(ctx context.Context) error {
		want := []byte(time.Now().UTC().Format(time.RFC3339Nano))
		if err := c.SetCache(ctx, "probe:cache", want); err != nil {
			return fmt.Errorf("cache write: %w", err)
		}
		got, ok := c.GetCache(ctx, "probe:cache")
		if !ok || !bytes.Equal(got, want) {
			return fmt.Errorf("cache read back %q, wrote %q", got, want)
		}
		return nil
	}
}

// File verifies a path exists and is a readable regular file.
func File(path string) CheckFunc {
	return func(ctx context.Context) error {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return fmt.Errorf("%s is a directory", path)
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		return f.Close()
	}
}

// Weather verifies the provider answers for the depot location.
func Weather(svc *weather.Service, lat, lon float64) CheckFunc {
	return func(ctx context.Context) error {
		r, err := svc.Current(ctx, lat, lon)
		if err != nil {
			return err
		}
		if r.Condition == "" && r.WindSpeedMS == 0 && r.VisibilityM == 0 {
			return fmt.Errorf("provider %s returned an empty report", r.Provider)
		}
		return nil
	}
}
