package store

import (
	"context"
	"time"

	"skyroute/pkg/model"
)

// OrderStore handles delivery order persistence.
type OrderStore interface {
	GetOrder(ctx context.Context, id string) (*model.Order, error)
	ListOrders(ctx context.Context, status model.OrderStatus, limit int) ([]*model.Order, error)
	SaveOrder(ctx context.Context, o *model.Order) error
	CountOrders(ctx context.Context, status model.OrderStatus) (int, error)
}

// DroneStore handles fleet drone persistence.
type DroneStore interface {
	GetDrone(ctx context.Context, id string) (*model.Drone, error)
	ListDrones(ctx context.Context) ([]*model.Drone, error)
	SaveDrone(ctx context.Context, d *model.Drone) error
	UpdateDronePosition(ctx context.Context, id string, lat, lon, batteryPct float64, seen time.Time) error
}

// MissionStore handles planned and flown mission persistence.
type MissionStore interface {
	GetMission(ctx context.Context, id string) (*model.Mission, error)
	GetMissionByOrder(ctx context.Context, orderID string) (*model.Mission, error)
	ListMissions(ctx context.Context, status model.MissionStatus, limit int) ([]*model.Mission, error)
	SaveMission(ctx context.Context, m *model.Mission) error
	CountActiveMissions(ctx context.Context) (int, error)
}

// CodeStore handles delivery code persistence across the code lifecycle.
// Active codes move to history on use or expiry; old history rows move
// to the archive during cleanup.
type CodeStore interface {
	GetActiveCode(ctx context.Context, orderID string) (*model.DeliveryCode, error)
	SaveActiveCode(ctx context.Context, c *model.DeliveryCode) error
	DeleteActiveCode(ctx context.Context, code string) error
	ListExpiredCodes(ctx context.Context, asOf time.Time) ([]*model.DeliveryCode, error)
	AppendCodeHistory(ctx context.Context, c *model.DeliveryCode, event string) error
	ArchiveCodeHistory(ctx context.Context, before time.Time) (int, error)
}

// TelemetryStore handles drone telemetry history.
type TelemetryStore interface {
	SaveTelemetry(ctx context.Context, tp *model.Telemetry) error
	GetTrack(ctx context.Context, droneID string, since time.Time) ([]*model.Telemetry, error)
	PruneTelemetry(ctx context.Context, before time.Time) (int, error)
}

// CacheStore handles generic key-value caching.
type CacheStore interface {
	GetCache(ctx context.Context, key string) ([]byte, bool)
	HasCache(ctx context.Context, key string) (bool, error)
	SetCache(ctx context.Context, key string, val []byte) error
	ListCacheKeys(ctx context.Context, prefix string) ([]string, error)
	PruneCache(ctx context.Context, olderThan time.Duration) (int, error)
}

// StateStore handles persistent application state.
type StateStore interface {
	GetState(ctx context.Context, key string) (string, bool)
	SetState(ctx context.Context, key, val string) error
	DeleteState(ctx context.Context, key string) error
}
