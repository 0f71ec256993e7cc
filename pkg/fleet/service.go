// Package fleet coordinates orders, drones and missions: intake
// validation, dispatch decisions, the mission lifecycle and the drone
// stats that fall out of it.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"skyroute/pkg/battery"
	"skyroute/pkg/codes"
	"skyroute/pkg/config"
	"skyroute/pkg/geofence"
	"skyroute/pkg/logging"
	"skyroute/pkg/model"
	"skyroute/pkg/route"
	"skyroute/pkg/store"
	"skyroute/pkg/telemetry"
	"skyroute/pkg/weather"
)

// Lifecycle errors, wrapped with detail at each site. Handlers map them
// to HTTP statuses with errors.Is.
var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid request")
	ErrConflict = errors.New("conflict")
	ErrRefused  = errors.New("dispatch refused")
)

// maxOrderWeightKg is the hard payload cap across the fleet.
const maxOrderWeightKg = 5.0

// Store is the persistence surface fleet needs.
type Store interface {
	store.OrderStore
	store.DroneStore
	store.MissionStore
}

// Deps wires the service. Store, Config and Optimizer are required;
// the rest degrade gracefully when nil (no weather gate, no zone
// constraints, no battery gate, no code issue, no health gate).
type Deps struct {
	Store     Store
	Config    config.Provider
	Optimizer *route.Optimizer
	Weather   *weather.Service
	Zones     *geofence.Registry
	Battery   *battery.Predictor
	Codes     *codes.Manager
	Monitor   *telemetry.Monitor
}

// Service is the fleet coordinator.
type Service struct {
	store     Store
	cfg       config.Provider
	optimizer *route.Optimizer
	weather   *weather.Service
	zones     *geofence.Registry
	battery   *battery.Predictor
	codes     *codes.Manager
	monitor   *telemetry.Monitor

	now func() time.Time
}

// New builds the fleet service.
func New(d Deps) (*Service, error) {
	if d.Store == nil {
		return nil, fmt.Errorf("fleet requires a store")
	}
	if d.Config == nil {
		return nil, fmt.Errorf("fleet requires a config provider")
	}
	if d.Optimizer == nil {
		return nil, fmt.Errorf("fleet requires a route optimizer")
	}
	return &Service{
		store:     d.Store,
		cfg:       d.Config,
		optimizer: d.Optimizer,
		weather:   d.Weather,
		zones:     d.Zones,
		battery:   d.Battery,
		codes:     d.Codes,
		monitor:   d.Monitor,
		now:       time.Now,
	}, nil
}

// newID returns prefix plus 8 hex chars.
func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// --- Orders ---

var (
	phoneCleanRe = regexp.MustCompile(`[\s\-()]`)
	phoneRe      = regexp.MustCompile(`^[6-9]\d{9}$`)
)

// cleanPhone strips formatting and the country prefix from an Indian
// mobile number. A bare 91 prefix is only removed when the rest is a
// full 10-digit number, since 91 is also a valid subscriber prefix.
func cleanPhone(phone string) string {
	p := phoneCleanRe.ReplaceAllString(phone, "")
	p = strings.TrimPrefix(p, "+91")
	if len(p) == 12 && strings.HasPrefix(p, "91") {
		p = p[2:]
	}
	return p
}

func validateOrder(o *model.Order) error {
	if strings.TrimSpace(o.Customer) == "" {
		return fmt.Errorf("%w: customer name required", ErrInvalid)
	}
	if o.Phone != "" && !phoneRe.MatchString(o.Phone) {
		return fmt.Errorf("%w: invalid mobile number", ErrInvalid)
	}
	for _, c := range []struct {
		name     string
		lat, lon float64
	}{
		{"pickup", o.PickupLat, o.PickupLon},
		{"drop", o.DropLat, o.DropLon},
	} {
		if c.lat < -90 || c.lat > 90 {
			return fmt.Errorf("%w: %s latitude %g out of range", ErrInvalid, c.name, c.lat)
		}
		if c.lon < -180 || c.lon > 180 {
			return fmt.Errorf("%w: %s longitude %g out of range", ErrInvalid, c.name, c.lon)
		}
	}
	if o.WeightKg <= 0 || o.WeightKg > maxOrderWeightKg {
		return fmt.Errorf("%w: weight must be in (0, %g] kg, got %g", ErrInvalid, maxOrderWeightKg, o.WeightKg)
	}
	if o.Priority < 1 || o.Priority > 3 {
		return fmt.Errorf("%w: priority must be 1 (normal), 2 (high) or 3 (urgent)", ErrInvalid)
	}
	return nil
}

// CreateOrder validates, assigns an ID and persists a new order.
func (s *Service) CreateOrder(ctx context.Context, o *model.Order) error {
	if o == nil {
		return fmt.Errorf("%w: empty order", ErrInvalid)
	}
	if o.Priority == 0 {
		o.Priority = 1
	}
	o.Phone = cleanPhone(o.Phone)
	if err := validateOrder(o); err != nil {
		return err
	}

	now := s.now()
	o.ID = newID("ORD-")
	o.Status = model.OrderPending
	o.DroneID = ""
	o.CreatedAt = now
	o.UpdatedAt = now

	if err := s.store.SaveOrder(ctx, o); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	slog.Info("Fleet: order created",
		"order", o.ID, "customer", o.Customer,
		"weight_kg", o.WeightKg, "priority", o.Priority)
	logging.LogEvent(&model.FleetEvent{
		Type:      "order",
		Title:     "Order " + o.ID,
		Summary:   fmt.Sprintf("%.1fkg for %s", o.WeightKg, o.Customer),
		Timestamp: now,
	})
	return nil
}

// GetOrder returns one order.
func (s *Service) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if o == nil {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	return o, nil
}

// ListOrders returns orders, optionally filtered by status.
func (s *Service) ListOrders(ctx context.Context, status model.OrderStatus, limit int) ([]*model.Order, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}
	return s.store.ListOrders(ctx, status, limit)
}

// CancelOrder cancels an order that has not launched. A planned mission
// is aborted and its drone released.
func (s *Service) CancelOrder(ctx context.Context, id string) error {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return err
	}
	if !model.CanTransition(o.Status, model.OrderCancelled) {
		return fmt.Errorf("%w: cannot cancel order in status %s", ErrConflict, o.Status)
	}

	now := s.now()
	m, err := s.store.GetMissionByOrder(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load mission: %w", err)
	}
	if m != nil && m.Status == model.MissionPlanned {
		m.Status = model.MissionAborted
		m.CompletedAt = &now
		if err := s.store.SaveMission(ctx, m); err != nil {
			return fmt.Errorf("failed to abort mission: %w", err)
		}
		if err := s.releaseDrone(ctx, m.DroneID); err != nil {
			return err
		}
	}

	o.Status = model.OrderCancelled
	o.UpdatedAt = now
	if err := s.store.SaveOrder(ctx, o); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	slog.Info("Fleet: order cancelled", "order", id)
	logging.LogEvent(&model.FleetEvent{
		Type:      "order",
		Title:     "Order " + id + " cancelled",
		Timestamp: now,
	})
	return nil
}

// releaseDrone returns an assigned drone to the idle pool.
func (s *Service) releaseDrone(ctx context.Context, droneID string) error {
	d, err := s.store.GetDrone(ctx, droneID)
	if err != nil {
		return fmt.Errorf("failed to load drone: %w", err)
	}
	if d == nil || d.Status != model.DroneAssigned {
		return nil
	}
	d.Status = model.DroneIdle
	if err := s.store.SaveDrone(ctx, d); err != nil {
		return fmt.Errorf("failed to release drone: %w", err)
	}
	return nil
}

// --- Drones ---

var droneIDRe = regexp.MustCompile(`^DRN-\d{2,}$`)

// RegisterDrone adds a vehicle to the fleet.
func (s *Service) RegisterDrone(ctx context.Context, d *model.Drone) error {
	if d == nil {
		return fmt.Errorf("%w: empty drone", ErrInvalid)
	}
	if !droneIDRe.MatchString(d.ID) {
		return fmt.Errorf("%w: drone id must look like DRN-01", ErrInvalid)
	}
	if strings.TrimSpace(d.Model) == "" {
		return fmt.Errorf("%w: drone model required", ErrInvalid)
	}
	if d.BatteryPct < 0 || d.BatteryPct > 100 {
		return fmt.Errorf("%w: battery must be between 0 and 100", ErrInvalid)
	}
	if d.Status == "" {
		d.Status = model.DroneIdle
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: unknown drone status %q", ErrInvalid, d.Status)
	}
	if d.MaxPayloadKg <= 0 {
		d.MaxPayloadKg = 2.5
	}

	existing, err := s.store.GetDrone(ctx, d.ID)
	if err != nil {
		return fmt.Errorf("failed to load drone: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: drone %s already registered", ErrConflict, d.ID)
	}

	d.CreatedAt = s.now()
	if err := s.store.SaveDrone(ctx, d); err != nil {
		return fmt.Errorf("failed to save drone: %w", err)
	}
	slog.Info("Fleet: drone registered", "drone", d.ID, "model", d.Model)
	return nil
}

// GetDrone returns one drone.
func (s *Service) GetDrone(ctx context.Context, id string) (*model.Drone, error) {
	d, err := s.store.GetDrone(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load drone: %w", err)
	}
	if d == nil {
		return nil, fmt.Errorf("%w: drone %s", ErrNotFound, id)
	}
	return d, nil
}

// ListDrones returns the whole fleet.
func (s *Service) ListDrones(ctx context.Context) ([]*model.Drone, error) {
	return s.store.ListDrones(ctx)
}
