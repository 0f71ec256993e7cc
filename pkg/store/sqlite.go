package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"database/sql"
	"errors"
	"io"
	"sync"
	"time"

	"skyroute/pkg/db"
	"skyroute/pkg/model"
)

// Store defines the repository interface.
// It composes all sub-interfaces for full store access.
// Consumers should depend on specific sub-interfaces when possible.
type Store interface {
	OrderStore
	DroneStore
	MissionStore
	CodeStore
	TelemetryStore
	CacheStore
	StateStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Orders ---

const orderColumns = `id, customer, phone, pickup_lat, pickup_lon, pickup_addr, drop_lat, drop_lon, drop_addr, weight_kg, priority, status, drone_id, created_at, updated_at`

func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*model.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *SQLiteStore) ListOrders(ctx context.Context, status model.OrderStatus, limit int) ([]*model.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, o)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) SaveOrder(ctx context.Context, o *model.Order) error {
	query := `INSERT OR REPLACE INTO orders (` + orderColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		o.ID, o.Customer, o.Phone,
		o.PickupLat, o.PickupLon, o.PickupAddr,
		o.DropLat, o.DropLon, o.DropAddr,
		o.WeightKg, o.Priority, string(o.Status), o.DroneID,
		o.CreatedAt, o.UpdatedAt,
	)
	return err
}

func (s *SQLiteStore) CountOrders(ctx context.Context, status model.OrderStatus) (int, error) {
	query := `SELECT COUNT(*) FROM orders`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (*model.Order, error) {
	var o model.Order
	var status string
	var droneID sql.NullString
	var created, updated sql.NullTime
	err := row.Scan(
		&o.ID, &o.Customer, &o.Phone,
		&o.PickupLat, &o.PickupLon, &o.PickupAddr,
		&o.DropLat, &o.DropLon, &o.DropAddr,
		&o.WeightKg, &o.Priority, &status, &droneID,
		&created, &updated,
	)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	if droneID.Valid {
		o.DroneID = droneID.String
	}
	if created.Valid {
		o.CreatedAt = created.Time
	}
	if updated.Valid {
		o.UpdatedAt = updated.Time
	}
	return &o, nil
}

// --- Drones ---

const droneColumns = `id, model, status, battery_pct, lat, lon, max_payload_kg, total_flights, total_km, last_seen, created_at`

func (s *SQLiteStore) GetDrone(ctx context.Context, id string) (*model.Drone, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+droneColumns+` FROM drones WHERE id = ?`, id)

	d, err := scanDrone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *SQLiteStore) ListDrones(ctx context.Context) ([]*model.Drone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+droneColumns+` FROM drones ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.Drone
	for rows.Next() {
		d, err := scanDrone(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) SaveDrone(ctx context.Context, d *model.Drone) error {
	query := `INSERT OR REPLACE INTO drones (` + droneColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.Model, string(d.Status), d.BatteryPct,
		d.Lat, d.Lon, d.MaxPayloadKg,
		d.TotalFlights, d.TotalKm,
		d.LastSeen, d.CreatedAt,
	)
	return err
}

// UpdateDronePosition applies a telemetry fix without touching the rest
// of the drone row.
func (s *SQLiteStore) UpdateDronePosition(ctx context.Context, id string, lat, lon, batteryPct float64, seen time.Time) error {
	query := `UPDATE drones SET lat = ?, lon = ?, battery_pct = ?, last_seen = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, query, lat, lon, batteryPct, seen, id)
	return err
}

func scanDrone(row scanner) (*model.Drone, error) {
	var d model.Drone
	var status string
	var lastSeen, created sql.NullTime
	err := row.Scan(
		&d.ID, &d.Model, &status, &d.BatteryPct,
		&d.Lat, &d.Lon, &d.MaxPayloadKg,
		&d.TotalFlights, &d.TotalKm,
		&lastSeen, &created,
	)
	if err != nil {
		return nil, err
	}
	d.Status = model.DroneStatus(status)
	if lastSeen.Valid {
		d.LastSeen = lastSeen.Time
	}
	if created.Valid {
		d.CreatedAt = created.Time
	}
	return &d, nil
}

// --- Missions ---

const missionColumns = `id, order_id, drone_id, status, distance_m, flight_time_min, battery_pct, safety_score, wind_resistance, waypoint_count, fallback, created_at, started_at, completed_at`

func (s *SQLiteStore) GetMission(ctx context.Context, id string) (*model.Mission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+missionColumns+` FROM missions WHERE id = ?`, id)

	m, err := scanMission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLiteStore) GetMissionByOrder(ctx context.Context, orderID string) (*model.Mission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+missionColumns+` FROM missions WHERE order_id = ? ORDER BY created_at DESC LIMIT 1`, orderID)

	m, err := scanMission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (s *SQLiteStore) ListMissions(ctx context.Context, status model.MissionStatus, limit int) ([]*model.Mission, error) {
	query := `SELECT ` + missionColumns + ` FROM missions`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.Mission
	for rows.Next() {
		m, err := scanMission(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) SaveMission(ctx context.Context, m *model.Mission) error {
	query := `INSERT OR REPLACE INTO missions (` + missionColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.OrderID, m.DroneID, string(m.Status),
		m.DistanceM, m.FlightTimeMin, m.BatteryPct,
		m.SafetyScore, m.WindResistance, m.WaypointCount, m.Fallback,
		m.CreatedAt, m.StartedAt, m.CompletedAt,
	)
	return err
}

func (s *SQLiteStore) CountActiveMissions(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM missions WHERE status IN (?, ?)`,
		string(model.MissionPlanned), string(model.MissionEnRoute)).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func scanMission(row scanner) (*model.Mission, error) {
	var m model.Mission
	var status string
	var created, started, completed sql.NullTime
	err := row.Scan(
		&m.ID, &m.OrderID, &m.DroneID, &status,
		&m.DistanceM, &m.FlightTimeMin, &m.BatteryPct,
		&m.SafetyScore, &m.WindResistance, &m.WaypointCount, &m.Fallback,
		&created, &started, &completed,
	)
	if err != nil {
		return nil, err
	}
	m.Status = model.MissionStatus(status)
	if created.Valid {
		m.CreatedAt = created.Time
	}
	if started.Valid {
		t := started.Time
		m.StartedAt = &t
	}
	if completed.Valid {
		t := completed.Time
		m.CompletedAt = &t
	}
	return &m, nil
}

// --- Delivery codes ---

const codeColumns = `code, order_id, status, attempts, created_at, expires_at, verified_at`

func (s *SQLiteStore) GetActiveCode(ctx context.Context, orderID string) (*model.DeliveryCode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM active_codes WHERE order_id = ?`, orderID)

	c, err := scanCode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SaveActiveCode upserts a code. The order_id unique constraint means a
// reissue replaces the previous active code for the same order.
func (s *SQLiteStore) SaveActiveCode(ctx context.Context, c *model.DeliveryCode) error {
	query := `INSERT OR REPLACE INTO active_codes (` + codeColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		c.Code, c.OrderID, string(c.Status), c.Attempts,
		c.CreatedAt, c.ExpiresAt, c.VerifiedAt,
	)
	return err
}

func (s *SQLiteStore) DeleteActiveCode(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM active_codes WHERE code = ?`, code)
	return err
}

func (s *SQLiteStore) ListExpiredCodes(ctx context.Context, asOf time.Time) ([]*model.DeliveryCode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+codeColumns+` FROM active_codes WHERE expires_at < ?`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.DeliveryCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) AppendCodeHistory(ctx context.Context, c *model.DeliveryCode, event string) error {
	query := `INSERT INTO code_history (code, order_id, status, attempts, event, created_at, expires_at, verified_at, recorded_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		c.Code, c.OrderID, string(c.Status), c.Attempts, event,
		c.CreatedAt, c.ExpiresAt, c.VerifiedAt, time.Now(),
	)
	return err
}

// ArchiveCodeHistory moves history rows recorded before the cutoff into
// archived_codes and reports how many moved.
func (s *SQLiteStore) ArchiveCodeHistory(ctx context.Context, before time.Time) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO archived_codes (code, order_id, status, attempts, event, created_at, expires_at, verified_at, recorded_at, archived_at)
		 SELECT code, order_id, status, attempts, event, created_at, expires_at, verified_at, recorded_at, ?
		 FROM code_history WHERE recorded_at < ?`, time.Now(), before)
	if err != nil {
		return 0, err
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM code_history WHERE recorded_at < ?`, before); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(moved), nil
}

func scanCode(row scanner) (*model.DeliveryCode, error) {
	var c model.DeliveryCode
	var status string
	var created, expires, verified sql.NullTime
	err := row.Scan(
		&c.Code, &c.OrderID, &status, &c.Attempts,
		&created, &expires, &verified,
	)
	if err != nil {
		return nil, err
	}
	c.Status = model.CodeStatus(status)
	if created.Valid {
		c.CreatedAt = created.Time
	}
	if expires.Valid {
		c.ExpiresAt = expires.Time
	}
	if verified.Valid {
		t := verified.Time
		c.VerifiedAt = &t
	}
	return &c, nil
}

// --- Telemetry ---

func (s *SQLiteStore) SaveTelemetry(ctx context.Context, tp *model.Telemetry) error {
	query := `INSERT INTO telemetry (drone_id, lat, lon, alt_m, battery_pct, speed_ms, temperature_c, heading_deg, received_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		tp.DroneID, tp.Lat, tp.Lon, tp.AltM,
		tp.BatteryPct, tp.SpeedMS, tp.TemperatureC, tp.HeadingDeg,
		tp.ReceivedAt,
	)
	return err
}

func (s *SQLiteStore) GetTrack(ctx context.Context, droneID string, since time.Time) ([]*model.Telemetry, error) {
	query := `SELECT drone_id, lat, lon, alt_m, battery_pct, speed_ms, temperature_c, heading_deg, received_at
			  FROM telemetry WHERE drone_id = ? AND received_at > ? ORDER BY received_at`

	rows, err := s.db.QueryContext(ctx, query, droneID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*model.Telemetry
	for rows.Next() {
		var tp model.Telemetry
		var received sql.NullTime
		err := rows.Scan(
			&tp.DroneID, &tp.Lat, &tp.Lon, &tp.AltM,
			&tp.BatteryPct, &tp.SpeedMS, &tp.TemperatureC, &tp.HeadingDeg,
			&received,
		)
		if err != nil {
			return nil, err
		}
		if received.Valid {
			tp.ReceivedAt = received.Time
		}
		results = append(results, &tp)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) PruneTelemetry(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM telemetry WHERE received_at < ?`, before)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// --- Generic cache ---

func (s *SQLiteStore) GetCache(ctx context.Context, key string) ([]byte, bool) {
	var val []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		// Treat read errors as a miss
		return nil, false
	}

	// Transparent decompression
	if len(val) > 2 && val[0] == 0x1f && val[1] == 0x8b {
		decompressed, err := decompress(val)
		if err == nil {
			return decompressed, true
		}
		// Corrupt or not actually gzipped, fall through to raw
	}

	return val, true
}

func (s *SQLiteStore) HasCache(ctx context.Context, key string) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM cache WHERE key = ?`, key).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) SetCache(ctx context.Context, key string, val []byte) error {
	// Transparent compression
	compressed, err := compress(val)
	if err == nil {
		val = compressed
	}

	query := `INSERT OR REPLACE INTO cache (key, value, created_at) VALUES (?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

// PruneCache deletes cache rows older than the given age. Entry TTLs are
// enforced on the read side, so this only reclaims rows nothing reads
// anymore.
func (s *SQLiteStore) PruneCache(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *SQLiteStore) ListCacheKeys(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM cache WHERE key LIKE ? ORDER BY key`, prefix+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// --- Compression pooling ---

var (
	// Pool for gzip writers to reuse flate state
	gzipWriterPool = sync.Pool{
		New: func() interface{} {
			return gzip.NewWriter(io.Discard)
		},
	}
	bufferPool = sync.Pool{
		New: func() interface{} {
			return new(bytes.Buffer)
		},
	}
)

func compress(data []byte) ([]byte, error) {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bufferPool.Put(buf)

	w := gzipWriterPool.Get().(*gzip.Writer)
	defer gzipWriterPool.Put(w)
	w.Reset(buf)

	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	// Must copy because buf is returned to pool
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

// --- Persistent state ---

func (s *SQLiteStore) GetState(ctx context.Context, key string) (string, bool) {
	var val string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM persistent_state WHERE key = ?`, key).Scan(&val)
	if err != nil {
		return "", false
	}
	return val, true
}

func (s *SQLiteStore) SetState(ctx context.Context, key, val string) error {
	query := `INSERT OR REPLACE INTO persistent_state (key, value, created_at) VALUES (?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query, key, val, time.Now())
	return err
}

func (s *SQLiteStore) DeleteState(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM persistent_state WHERE key = ?`, key)
	return err
}
