// Package telemetry tracks drone heartbeats and flags anomalies in the
// telemetry stream: silent drones, abnormal battery drain, overspeed and
// overheating. The monitor keeps a short in-memory alert ring per drone
// and answers health queries for the API.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"skyroute/pkg/config"
	"skyroute/pkg/geo"
	"skyroute/pkg/logging"
	"skyroute/pkg/model"
)

// Alert types.
const (
	AlertHeartbeatMissed = "heartbeat_missed"
	AlertBatteryDrain    = "battery_drain"
	AlertOverspeed       = "overspeed"
	AlertOverheat        = "overheat"
	AlertOffline         = "offline"
)

const (
	// recentWindow bounds the alert lookback for health reports.
	recentWindow = 5 * time.Minute
	// maxAlerts caps the per-drone alert ring.
	maxAlerts = 50
	// trackWindow is the fix window for the derived ground track.
	trackWindow = 5
)

// Recorder persists accepted telemetry reports.
type Recorder interface {
	SaveTelemetry(ctx context.Context, tp *model.Telemetry) error
	UpdateDronePosition(ctx context.Context, id string, lat, lon, batteryPct float64, seen time.Time) error
}

// droneState is everything the monitor remembers about one drone.
type droneState struct {
	lastSeen    time.Time
	lastBattery float64
	missed      int
	offline     bool
	alerts      []*model.Alert
	track       *geo.TrackBuffer
}

// Monitor watches the telemetry stream for the whole fleet.
type Monitor struct {
	mu     sync.Mutex
	drones map[string]*droneState

	heartbeat    time.Duration
	offlineAfter time.Duration
	maxDip       float64 // percent of charge per minute
	maxSpeed     float64 // m/s
	maxTempC     float64

	rec Recorder

	now func() time.Time
}

// NewMonitor creates a telemetry monitor with the given thresholds.
// rec may be nil, which keeps reports in memory only.
func NewMonitor(cfg config.TelemetryConfig, rec Recorder) *Monitor {
	hb := time.Duration(cfg.Heartbeat)
	if hb <= 0 {
		hb = 5 * time.Second
	}
	off := time.Duration(cfg.OfflineAfter)
	if off <= hb {
		off = 3 * hb
	}
	return &Monitor{
		drones:       make(map[string]*droneState),
		heartbeat:    hb,
		offlineAfter: off,
		maxDip:       cfg.MaxBatteryDip,
		maxSpeed:     float64(cfg.MaxSpeed),
		maxTempC:     cfg.MaxTempC,
		rec:          rec,
		now:          time.Now,
	}
}

// Record ingests one telemetry report: it closes any heartbeat gap,
// checks the report against the anomaly thresholds and persists it.
func (m *Monitor) Record(ctx context.Context, tp *model.Telemetry) error {
	if tp == nil || tp.DroneID == "" {
		return fmt.Errorf("telemetry without drone id")
	}
	now := m.now()
	if tp.ReceivedAt.IsZero() {
		tp.ReceivedAt = now
	}

	m.mu.Lock()
	st, ok := m.drones[tp.DroneID]
	if !ok {
		st = &droneState{track: geo.NewTrackBuffer(trackWindow)}
		m.drones[tp.DroneID] = st
	}

	// Cheap GPS units report no heading; a zero is indistinguishable from
	// absent, so both get the ground track derived from successive fixes.
	derived := st.track.Push(geo.Point{Lat: tp.Lat, Lon: tp.Lon, AltM: tp.AltM}, tp.HeadingDeg)
	if tp.HeadingDeg == 0 {
		tp.HeadingDeg = derived
	}
	if !st.lastSeen.IsZero() {
		gap := now.Sub(st.lastSeen)
		if gap > m.offlineAfter {
			missed := int(gap / m.heartbeat)
			st.missed += missed
			sev := model.SeverityWarning
			if gap > 4*m.offlineAfter {
				sev = model.SeverityCritical
			}
			m.alertLocked(st, tp.DroneID, AlertHeartbeatMissed, sev,
				fmt.Sprintf("%d heartbeats missed (%.0fs gap)", missed, gap.Seconds()))
		}
		// Drain is measured against the previous report, not a fixed
		// interval, so late reports do not inflate the rate.
		if gap >= time.Second && st.lastBattery > tp.BatteryPct {
			perMin := (st.lastBattery - tp.BatteryPct) / gap.Minutes()
			if perMin > m.maxDip {
				m.alertLocked(st, tp.DroneID, AlertBatteryDrain, model.SeverityCritical,
					fmt.Sprintf("battery falling %.1f%%/min (limit %.1f)", perMin, m.maxDip))
			}
		}
	}
	if m.maxSpeed > 0 && tp.SpeedMS > m.maxSpeed {
		m.alertLocked(st, tp.DroneID, AlertOverspeed, model.SeverityWarning,
			fmt.Sprintf("speed %.1fm/s (limit %.1f)", tp.SpeedMS, m.maxSpeed))
	}
	if m.maxTempC > 0 && tp.TemperatureC > m.maxTempC {
		m.alertLocked(st, tp.DroneID, AlertOverheat, model.SeverityCritical,
			fmt.Sprintf("motor at %.1f°C (limit %.1f)", tp.TemperatureC, m.maxTempC))
	}
	st.lastSeen = now
	st.lastBattery = tp.BatteryPct
	st.offline = false
	m.mu.Unlock()

	if m.rec != nil {
		if err := m.rec.SaveTelemetry(ctx, tp); err != nil {
			return fmt.Errorf("failed to save telemetry: %w", err)
		}
		if err := m.rec.UpdateDronePosition(ctx, tp.DroneID, tp.Lat, tp.Lon, tp.BatteryPct, tp.ReceivedAt); err != nil {
			return fmt.Errorf("failed to update drone position: %w", err)
		}
	}

	tlog().Info("Telemetry: report",
		"drone", tp.DroneID, "lat", tp.Lat, "lon", tp.Lon,
		"battery", tp.BatteryPct, "speed", tp.SpeedMS)
	return nil
}

// Sweep flags drones that stopped reporting. It fires one alert per
// transition; a drone alerts again only after it resumes and goes
// silent again. Returns the number of drones newly marked offline.
func (m *Monitor) Sweep() int {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, st := range m.drones {
		if st.offline || st.lastSeen.IsZero() {
			continue
		}
		silence := now.Sub(st.lastSeen)
		if silence > m.offlineAfter {
			st.offline = true
			n++
			m.alertLocked(st, id, AlertOffline, model.SeverityCritical,
				fmt.Sprintf("no telemetry for %.0fs", silence.Seconds()))
		}
	}
	return n
}

// Health reports the monitor's verdict on one drone.
func (m *Monitor) Health(droneID string) *model.DroneHealth {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	st, ok := m.drones[droneID]
	if !ok {
		return &model.DroneHealth{
			DroneID: droneID,
			Status:  model.HealthUnknown,
			Message: "no telemetry received",
		}
	}

	since := now.Sub(st.lastSeen)
	var status model.HealthStatus
	var score int
	switch {
	case since < 2*m.heartbeat:
		status, score = model.HealthHealthy, 100
	case since < m.offlineAfter:
		status, score = model.HealthDegraded, 70
	default:
		status, score = model.HealthOffline, 0
	}

	var recent []*model.Alert
	critical := false
	cutoff := now.Add(-recentWindow)
	for _, a := range st.alerts {
		if a.Timestamp.After(cutoff) {
			recent = append(recent, a)
			if a.Severity == model.SeverityCritical {
				critical = true
			}
		}
	}
	if critical {
		status = model.HealthCritical
		if score > 30 {
			score = 30
		}
	}

	h := &model.DroneHealth{
		DroneID:         droneID,
		Status:          status,
		Score:           score,
		SecondsSinceFix: since.Seconds(),
		MissedBeats:     st.missed,
		RecentAlerts:    recent,
		Message:         fmt.Sprintf("last heartbeat %.0fs ago", since.Seconds()),
	}
	if p, ok := st.track.Last(); ok {
		h.LastLat, h.LastLon = p.Lat, p.Lon
	}
	return h
}

// HealthAll reports every drone the monitor has seen, sorted by id.
func (m *Monitor) HealthAll() []*model.DroneHealth {
	m.mu.Lock()
	ids := make([]string, 0, len(m.drones))
	for id := range m.drones {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	sort.Strings(ids)
	out := make([]*model.DroneHealth, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.Health(id))
	}
	return out
}

// alertLocked appends an alert to the drone's ring and logs it. Caller
// holds m.mu.
func (m *Monitor) alertLocked(st *droneState, droneID, typ string, sev model.AlertSeverity, detail string) {
	a := &model.Alert{
		ID:        uuid.NewString(),
		DroneID:   droneID,
		Type:      typ,
		Severity:  sev,
		Detail:    detail,
		Timestamp: m.now(),
	}
	st.alerts = append(st.alerts, a)
	if len(st.alerts) > maxAlerts {
		st.alerts = st.alerts[len(st.alerts)-maxAlerts:]
	}

	if sev == model.SeverityCritical {
		tlog().Error("Telemetry: "+typ, "drone", droneID, "detail", detail)
		logging.LogEvent(&model.FleetEvent{
			Type:      "alert",
			Title:     fmt.Sprintf("%s %s", droneID, typ),
			Summary:   detail,
			Timestamp: a.Timestamp,
		})
	} else {
		tlog().Warn("Telemetry: "+typ, "drone", droneID, "detail", detail)
	}
}

// tlog returns the dedicated telemetry logger, or the default logger
// before logging.Init has run.
func tlog() *slog.Logger {
	if logging.TelemetryLogger != nil {
		return logging.TelemetryLogger
	}
	return slog.Default()
}
