package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Register driver
)

// DB wraps the sql.DB connection.
type DB struct {
	*sql.DB
}

// Init opens the database and runs migrations.
func Init(path string) (*DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	// Enable WAL mode for better concurrency and set busy timeout
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000;"); err != nil {
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	d := &DB{db}
	// Enforce single connection to avoid SQLITE_BUSY errors during concurrent writes
	db.SetMaxOpenConns(1)

	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return d, nil
}

func (d *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			customer TEXT,
			phone TEXT,
			pickup_lat REAL,
			pickup_lon REAL,
			pickup_addr TEXT,
			drop_lat REAL,
			drop_lon REAL,
			drop_addr TEXT,
			weight_kg REAL,
			priority INTEGER DEFAULT 1,
			status TEXT,
			drone_id TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);`,
		`CREATE TABLE IF NOT EXISTS drones (
			id TEXT PRIMARY KEY,
			model TEXT,
			status TEXT,
			battery_pct REAL,
			lat REAL,
			lon REAL,
			max_payload_kg REAL,
			total_flights INTEGER DEFAULT 0,
			total_km REAL DEFAULT 0,
			last_seen DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS missions (
			id TEXT PRIMARY KEY,
			order_id TEXT,
			drone_id TEXT,
			status TEXT,
			distance_m REAL,
			flight_time_min REAL,
			battery_pct REAL,
			safety_score REAL,
			wind_resistance REAL,
			waypoint_count INTEGER,
			fallback BOOLEAN DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			started_at DATETIME,
			completed_at DATETIME
		);`,
		`CREATE INDEX IF NOT EXISTS idx_missions_order ON missions(order_id);`,
		`CREATE INDEX IF NOT EXISTS idx_missions_status ON missions(status);`,
		`CREATE TABLE IF NOT EXISTS active_codes (
			code TEXT PRIMARY KEY,
			order_id TEXT UNIQUE,
			status TEXT,
			attempts INTEGER DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME,
			verified_at DATETIME
		);`,
		`CREATE TABLE IF NOT EXISTS code_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT,
			order_id TEXT,
			status TEXT,
			attempts INTEGER,
			event TEXT,
			created_at DATETIME,
			expires_at DATETIME,
			verified_at DATETIME,
			recorded_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS archived_codes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			code TEXT,
			order_id TEXT,
			status TEXT,
			attempts INTEGER,
			event TEXT,
			created_at DATETIME,
			expires_at DATETIME,
			verified_at DATETIME,
			recorded_at DATETIME,
			archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS telemetry (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			drone_id TEXT,
			lat REAL,
			lon REAL,
			alt_m REAL,
			battery_pct REAL,
			speed_ms REAL,
			temperature_c REAL,
			heading_deg REAL,
			received_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_telemetry_drone ON telemetry(drone_id, received_at);`,
		`CREATE TABLE IF NOT EXISTS persistent_state (
			key TEXT PRIMARY KEY,
			value TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS cache (
			key TEXT PRIMARY KEY,
			value BLOB,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}

	for _, q := range queries {
		if _, err := d.Exec(q); err != nil {
			return fmt.Errorf("exec error: %w query: %s", err, q)
		}
	}

	// Migration: Add wind_resistance if missing
	var colCount int
	err := d.QueryRow("SELECT count(*) FROM pragma_table_info('missions') WHERE name='wind_resistance'").Scan(&colCount)
	if err == nil && colCount == 0 {
		if _, err := d.Exec("ALTER TABLE missions ADD COLUMN wind_resistance REAL DEFAULT 0"); err != nil {
			return fmt.Errorf("failed to add wind_resistance column: %w", err)
		}
	}

	return nil
}
