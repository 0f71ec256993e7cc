package model

import (
	"time"
)

// OrderStatus is the delivery order lifecycle state.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderAssigned  OrderStatus = "assigned"
	OrderInTransit OrderStatus = "in_transit"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderAssigned, OrderInTransit, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderCancelled
}

// orderTransitions is the forward edge set of the order lifecycle.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:   {OrderAssigned, OrderCancelled},
	OrderAssigned:  {OrderInTransit, OrderCancelled},
	OrderInTransit: {OrderDelivered},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// DroneStatus is the vehicle availability state.
type DroneStatus string

const (
	DroneIdle        DroneStatus = "idle"
	DroneAssigned    DroneStatus = "assigned" // reserved for a planned mission
	DroneInFlight    DroneStatus = "in_flight"
	DroneCharging    DroneStatus = "charging"
	DroneMaintenance DroneStatus = "maintenance"
	DroneOffline     DroneStatus = "offline"
)

// Valid reports whether s is a known drone status.
func (s DroneStatus) Valid() bool {
	switch s {
	case DroneIdle, DroneAssigned, DroneInFlight, DroneCharging, DroneMaintenance, DroneOffline:
		return true
	}
	return false
}

// Dispatchable reports whether a drone in this state may take a mission.
// Battery level is checked separately by the dispatcher.
func (s DroneStatus) Dispatchable() bool {
	return s == DroneIdle || s == DroneCharging
}

// MissionStatus is the flight lifecycle state.
type MissionStatus string

const (
	MissionPlanned   MissionStatus = "planned"
	MissionEnRoute   MissionStatus = "en_route"
	MissionCompleted MissionStatus = "completed"
	MissionAborted   MissionStatus = "aborted"
)

// CodeStatus is the delivery confirmation code state.
type CodeStatus string

const (
	CodeActive  CodeStatus = "active"
	CodeUsed    CodeStatus = "used"
	CodeExpired CodeStatus = "expired"
	CodeLocked  CodeStatus = "locked" // too many failed attempts
)

// Order is a customer delivery request.
type Order struct {
	ID       string `json:"order_id"` // "ORD-" + 8 hex chars
	Customer string `json:"customer"`
	Phone    string `json:"phone,omitempty"`

	// Endpoints
	PickupLat  float64 `json:"pickup_lat"`
	PickupLon  float64 `json:"pickup_lon"`
	PickupAddr string  `json:"pickup_address,omitempty"`
	DropLat    float64 `json:"drop_lat"`
	DropLon    float64 `json:"drop_lon"`
	DropAddr   string  `json:"drop_address,omitempty"`

	WeightKg float64     `json:"weight_kg"`
	Priority int         `json:"priority"` // 1 normal, 2 high, 3 urgent
	Status   OrderStatus `json:"status"`
	DroneID  string      `json:"drone_id,omitempty"` // assigned vehicle

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Drone is a fleet vehicle.
type Drone struct {
	ID           string      `json:"drone_id"` // "DRN-" + 2 digits
	Model        string      `json:"model"`
	Status       DroneStatus `json:"status"`
	BatteryPct   float64     `json:"battery_pct"`
	Lat          float64     `json:"lat"`
	Lon          float64     `json:"lon"`
	MaxPayloadKg float64     `json:"max_payload_kg"`

	// Lifetime stats, updated on mission completion
	TotalFlights int     `json:"total_flights"`
	TotalKm      float64 `json:"total_km"`

	LastSeen  time.Time `json:"last_seen"` // last telemetry fix
	CreatedAt time.Time `json:"created_at"`
}

// Mission is one planned flight for an order. Routes themselves are not
// persisted; the mission carries the scalar outcome of the optimization.
type Mission struct {
	ID      string        `json:"mission_id"`
	OrderID string        `json:"order_id"`
	DroneID string        `json:"drone_id"`
	Status  MissionStatus `json:"status"`

	// Planned route outcome
	DistanceM      float64 `json:"distance_m"`
	FlightTimeMin  float64 `json:"flight_time_min"`
	BatteryPct     float64 `json:"battery_needed_pct"`
	SafetyScore    float64 `json:"safety_score"`
	WindResistance float64 `json:"wind_resistance"`
	WaypointCount  int     `json:"waypoint_count"`
	Fallback       bool    `json:"fallback"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DeliveryCode is a one-time confirmation code the customer presents at
// handover.
type DeliveryCode struct {
	Code    string     `json:"code"` // 6 digits
	OrderID string     `json:"order_id"`
	Status  CodeStatus `json:"status"`

	Attempts   int        `json:"attempts"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
}

// Expired reports whether the code is past its validity window at t.
func (c *DeliveryCode) Expired(t time.Time) bool {
	return t.After(c.ExpiresAt)
}

// Telemetry is one position report from a drone.
type Telemetry struct {
	DroneID      string  `json:"drone_id"`
	Lat          float64 `json:"lat"`
	Lon          float64 `json:"lon"`
	AltM         float64 `json:"alt_m"`
	BatteryPct   float64 `json:"battery_pct"`
	SpeedMS      float64 `json:"speed_ms"`
	TemperatureC float64 `json:"temperature_c"`
	HeadingDeg   float64 `json:"heading_deg"`

	ReceivedAt time.Time `json:"received_at"`
}

// FleetEvent is a human-readable entry for the operations event log:
// order intake, dispatch decisions, deliveries, health alerts.
type FleetEvent struct {
	Type      string    `json:"type"` // order, dispatch, delivery, alert
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertSeverity grades telemetry anomalies.
type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is one anomaly flagged in a drone's telemetry stream.
type Alert struct {
	ID       string        `json:"alert_id"` // uuid
	DroneID  string        `json:"drone_id"`
	Type     string        `json:"type"` // heartbeat_missed, battery_drain, ...
	Severity AlertSeverity `json:"severity"`
	Detail   string        `json:"detail,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// HealthStatus is the monitor's verdict on a drone.
type HealthStatus string

const (
	HealthUnknown  HealthStatus = "unknown" // no telemetry yet
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthOffline  HealthStatus = "offline"
	HealthCritical HealthStatus = "critical"
)

// DroneHealth is a point-in-time health report for one drone. Score is
// 0-100; recent alerts cover the last few minutes.
type DroneHealth struct {
	DroneID         string       `json:"drone_id"`
	Status          HealthStatus `json:"status"`
	Score           int          `json:"score"`
	SecondsSinceFix float64      `json:"seconds_since_fix"`
	MissedBeats     int          `json:"missed_heartbeats"`
	LastLat         float64      `json:"last_lat,omitempty"`
	LastLon         float64      `json:"last_lon,omitempty"`
	RecentAlerts    []*Alert     `json:"recent_alerts,omitempty"`
	Message         string       `json:"message"`
}
