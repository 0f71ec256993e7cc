package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"skyroute/pkg/battery"
	"skyroute/pkg/geo"
	"skyroute/pkg/logging"
	"skyroute/pkg/model"
	"skyroute/pkg/route"
	"skyroute/pkg/weather"
)

const (
	// cruiseAltM is the planning altitude for battery prediction.
	cruiseAltM = 60.0

	// zoneCorridorM widens the zone query around the flight corridor so
	// detours stay inside known airspace.
	zoneCorridorM = 2000.0
)

// Dispatch plans a mission for a pending order. An empty droneID picks
// the best available vehicle. The returned route holds the planned
// waypoints; only the mission's scalar outcome is persisted.
func (s *Service) Dispatch(ctx context.Context, orderID, droneID string) (*model.Mission, *route.Route, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	if o.Status != model.OrderPending {
		return nil, nil, fmt.Errorf("%w: order %s is %s, not pending", ErrConflict, o.ID, o.Status)
	}

	active, err := s.store.CountActiveMissions(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count missions: %w", err)
	}
	if maxActive := s.cfg.MaxActiveMissions(ctx); active >= maxActive {
		return nil, nil, fmt.Errorf("%w: %d missions active, limit %d", ErrRefused, active, maxActive)
	}

	var d *model.Drone
	if droneID == "" {
		if d, err = s.pickDrone(ctx, o); err != nil {
			return nil, nil, err
		}
	} else {
		if d, err = s.GetDrone(ctx, droneID); err != nil {
			return nil, nil, err
		}
		if err = s.fitForOrder(ctx, d, o); err != nil {
			return nil, nil, err
		}
	}

	wx, err := s.weatherGate(ctx, o)
	if err != nil {
		return nil, nil, err
	}

	start := geo.Point{Lat: o.PickupLat, Lon: o.PickupLon, AltM: cruiseAltM}
	goal := geo.Point{Lat: o.DropLat, Lon: o.DropLon, AltM: cruiseAltM}

	cons := s.constraints()
	if s.zones != nil {
		cons, err = s.zones.Constraints(cons, start, goal, zoneCorridorM)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: zone lookup failed: %v", ErrRefused, err)
		}
	}

	rt, err := s.optimizer.Optimize(ctx, start, goal, cons, wx.ForRoute())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: no viable route: %v", ErrRefused, err)
	}

	needPct := rt.BatteryNeededPct
	if s.battery != nil {
		cond := battery.Conditions{
			DistanceKm: rt.TotalDistanceM / 1000,
			PayloadKg:  o.WeightKg,
			AltitudeM:  cruiseAltM,
		}
		if wx != nil {
			cond.WindSpeedMS = wx.WindSpeedMS
			cond.TemperatureC = wx.TemperatureC
		}
		pred := s.battery.Predict(cond)
		ok, reason := s.battery.CanComplete(d.BatteryPct, pred)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrRefused, reason)
		}
		needPct = pred.UsagePct
	}

	now := s.now()
	m := &model.Mission{
		ID:             newID("MIS-"),
		OrderID:        o.ID,
		DroneID:        d.ID,
		Status:         model.MissionPlanned,
		DistanceM:      rt.TotalDistanceM,
		FlightTimeMin:  rt.EstimatedTimeMin,
		BatteryPct:     needPct,
		SafetyScore:    rt.SafetyScore,
		WindResistance: rt.WindResistance,
		WaypointCount:  len(rt.Waypoints),
		Fallback:       rt.Metadata.Fallback,
		CreatedAt:      now,
	}
	if err := s.store.SaveMission(ctx, m); err != nil {
		return nil, nil, fmt.Errorf("failed to save mission: %w", err)
	}

	d.Status = model.DroneAssigned
	if err := s.store.SaveDrone(ctx, d); err != nil {
		return nil, nil, fmt.Errorf("failed to reserve drone: %w", err)
	}

	o.Status = model.OrderAssigned
	o.DroneID = d.ID
	o.UpdatedAt = now
	if err := s.store.SaveOrder(ctx, o); err != nil {
		return nil, nil, fmt.Errorf("failed to save order: %w", err)
	}

	if s.codes != nil {
		if _, err := s.codes.Issue(ctx, o.ID); err != nil {
			slog.Warn("Fleet: delivery code issue failed", "order", o.ID, "error", err)
		}
	}

	slog.Info("Fleet: mission planned",
		"mission", m.ID, "order", o.ID, "drone", d.ID,
		"distance_km", fmt.Sprintf("%.2f", m.DistanceM/1000),
		"battery_pct", fmt.Sprintf("%.1f", m.BatteryPct),
		"fallback", m.Fallback)
	logging.LogEvent(&model.FleetEvent{
		Type:      "dispatch",
		Title:     "Mission " + m.ID,
		Summary:   fmt.Sprintf("%s flies %s, %.1fkm", d.ID, o.ID, m.DistanceM/1000),
		Timestamp: now,
	})
	return m, rt, nil
}

// pickDrone returns the dispatchable drone with the most battery that
// can lift the order.
func (s *Service) pickDrone(ctx context.Context, o *model.Order) (*model.Drone, error) {
	drones, err := s.store.ListDrones(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list drones: %w", err)
	}
	minBattery := s.cfg.MinDispatchBattery(ctx)

	var best *model.Drone
	for _, d := range drones {
		if !d.Status.Dispatchable() || d.BatteryPct < minBattery || d.MaxPayloadKg < o.WeightKg {
			logging.TraceDefault("Fleet: drone skipped", "drone", d.ID, "status", d.Status, "battery", d.BatteryPct)
			continue
		}
		if !s.healthOK(d.ID) {
			logging.TraceDefault("Fleet: drone skipped by health", "drone", d.ID)
			continue
		}
		if best == nil || d.BatteryPct > best.BatteryPct {
			best = d
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no dispatchable drone for %.1fkg", ErrRefused, o.WeightKg)
	}
	return best, nil
}

// fitForOrder checks an explicitly requested drone against the same
// gates pickDrone applies.
func (s *Service) fitForOrder(ctx context.Context, d *model.Drone, o *model.Order) error {
	if !d.Status.Dispatchable() {
		return fmt.Errorf("%w: drone %s is %s", ErrRefused, d.ID, d.Status)
	}
	if minBattery := s.cfg.MinDispatchBattery(ctx); d.BatteryPct < minBattery {
		return fmt.Errorf("%w: drone %s at %.1f%% battery, floor is %.1f%%", ErrRefused, d.ID, d.BatteryPct, minBattery)
	}
	if d.MaxPayloadKg < o.WeightKg {
		return fmt.Errorf("%w: drone %s lifts %.1fkg max, order is %.1fkg", ErrRefused, d.ID, d.MaxPayloadKg, o.WeightKg)
	}
	if !s.healthOK(d.ID) {
		return fmt.Errorf("%w: drone %s failed health check", ErrRefused, d.ID)
	}
	return nil
}

// healthOK consults the telemetry monitor. Unknown is allowed so a
// freshly registered drone can fly before its first report.
func (s *Service) healthOK(droneID string) bool {
	if s.monitor == nil {
		return true
	}
	h := s.monitor.Health(droneID)
	return h.Status != model.HealthCritical && h.Status != model.HealthOffline
}

// weatherGate fetches conditions at the pickup point and refuses unsafe
// flights unless the bypass override is set.
func (s *Service) weatherGate(ctx context.Context, o *model.Order) (*weather.Report, error) {
	if s.weather == nil {
		return nil, nil
	}
	wx, err := s.weather.Current(ctx, o.PickupLat, o.PickupLon)
	bypass := s.cfg.WeatherBypass(ctx)
	if err != nil {
		if bypass {
			slog.Warn("Fleet: weather unavailable, bypass active", "order", o.ID, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("%w: weather unavailable: %v", ErrRefused, err)
	}
	if bypass {
		return wx, nil
	}
	if safe, reasons := s.weather.SafeForFlight(wx); !safe {
		return nil, fmt.Errorf("%w: unsafe weather: %s", ErrRefused, strings.Join(reasons, "; "))
	}
	return wx, nil
}

func (s *Service) constraints() route.Constraints {
	rc := s.cfg.AppConfig().Route
	return route.Constraints{
		MaxAltitudeM:   float64(rc.MaxAltitude),
		MaxWindMS:      float64(rc.MaxWind),
		SafetyBufferM:  float64(rc.SafetyBuffer),
		WeatherPenalty: rc.WeatherPenalty,
	}
}

// StartMission launches a planned mission.
func (s *Service) StartMission(ctx context.Context, id string) (*model.Mission, error) {
	m, err := s.GetMission(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != model.MissionPlanned {
		return nil, fmt.Errorf("%w: mission %s is %s, not planned", ErrConflict, m.ID, m.Status)
	}

	now := s.now()
	m.Status = model.MissionEnRoute
	m.StartedAt = &now
	if err := s.store.SaveMission(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mission: %w", err)
	}

	if d, err := s.store.GetDrone(ctx, m.DroneID); err != nil {
		return nil, fmt.Errorf("failed to load drone: %w", err)
	} else if d != nil {
		d.Status = model.DroneInFlight
		if err := s.store.SaveDrone(ctx, d); err != nil {
			return nil, fmt.Errorf("failed to save drone: %w", err)
		}
	}

	if o, err := s.store.GetOrder(ctx, m.OrderID); err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	} else if o != nil && model.CanTransition(o.Status, model.OrderInTransit) {
		o.Status = model.OrderInTransit
		o.UpdatedAt = now
		if err := s.store.SaveOrder(ctx, o); err != nil {
			return nil, fmt.Errorf("failed to save order: %w", err)
		}
	}

	slog.Info("Fleet: mission started", "mission", m.ID, "drone", m.DroneID)
	logging.LogEvent(&model.FleetEvent{
		Type:      "dispatch",
		Title:     "Mission " + m.ID + " airborne",
		Summary:   m.DroneID + " en route for " + m.OrderID,
		Timestamp: now,
	})
	return m, nil
}

// CompleteMission lands a mission: the order is delivered, the drone
// returns to the pool with updated lifetime stats, the delivery code is
// archived.
func (s *Service) CompleteMission(ctx context.Context, id string) (*model.Mission, error) {
	m, err := s.GetMission(ctx, id)
	if err != nil {
		return nil, err
	}
	if m.Status != model.MissionEnRoute {
		return nil, fmt.Errorf("%w: mission %s is %s, not en_route", ErrConflict, m.ID, m.Status)
	}

	now := s.now()
	m.Status = model.MissionCompleted
	m.CompletedAt = &now
	if err := s.store.SaveMission(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to save mission: %w", err)
	}

	if d, err := s.store.GetDrone(ctx, m.DroneID); err != nil {
		return nil, fmt.Errorf("failed to load drone: %w", err)
	} else if d != nil {
		d.Status = model.DroneIdle
		d.TotalFlights++
		d.TotalKm += m.DistanceM / 1000
		d.BatteryPct = max(d.BatteryPct-m.BatteryPct, 0)
		if err := s.store.SaveDrone(ctx, d); err != nil {
			return nil, fmt.Errorf("failed to save drone: %w", err)
		}
	}

	if o, err := s.store.GetOrder(ctx, m.OrderID); err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	} else if o != nil && model.CanTransition(o.Status, model.OrderDelivered) {
		o.Status = model.OrderDelivered
		o.UpdatedAt = now
		if err := s.store.SaveOrder(ctx, o); err != nil {
			return nil, fmt.Errorf("failed to save order: %w", err)
		}
	}

	if s.codes != nil {
		if err := s.codes.CompleteDelivery(ctx, m.OrderID, true); err != nil {
			slog.Warn("Fleet: code archival failed", "order", m.OrderID, "error", err)
		}
	}

	slog.Info("Fleet: mission completed",
		"mission", m.ID, "drone", m.DroneID, "order", m.OrderID,
		"distance_km", fmt.Sprintf("%.2f", m.DistanceM/1000))
	logging.LogEvent(&model.FleetEvent{
		Type:      "delivery",
		Title:     "Mission " + m.ID + " delivered",
		Summary:   m.OrderID + " delivered by " + m.DroneID,
		Timestamp: now,
	})
	return m, nil
}

// GetMission returns one mission.
func (s *Service) GetMission(ctx context.Context, id string) (*model.Mission, error) {
	m, err := s.store.GetMission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load mission: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("%w: mission %s", ErrNotFound, id)
	}
	return m, nil
}

// ListMissions returns missions, optionally filtered by status.
func (s *Service) ListMissions(ctx context.Context, status model.MissionStatus, limit int) ([]*model.Mission, error) {
	return s.store.ListMissions(ctx, status, limit)
}

// DispatchPending plans and launches missions for pending orders,
// urgent first. Orders that cannot fly right now are skipped, not
// failed; the next sweep retries them. Returns the number launched.
func (s *Service) DispatchPending(ctx context.Context) (int, error) {
	if !s.cfg.AutoDispatch(ctx) {
		return 0, nil
	}
	pending, err := s.store.ListOrders(ctx, model.OrderPending, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending orders: %w", err)
	}
	sort.SliceStable(pending, func(i, j int) bool {
		if pending[i].Priority != pending[j].Priority {
			return pending[i].Priority > pending[j].Priority
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})

	launched := 0
	for _, o := range pending {
		m, _, err := s.Dispatch(ctx, o.ID, "")
		if err != nil {
			slog.Debug("Fleet: order not dispatched", "order", o.ID, "reason", err)
			continue
		}
		if _, err := s.StartMission(ctx, m.ID); err != nil {
			slog.Warn("Fleet: mission start failed", "mission", m.ID, "error", err)
			continue
		}
		launched++
	}
	return launched, nil
}
