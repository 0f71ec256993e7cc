package maintenance

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"skyroute/pkg/cache"
	"skyroute/pkg/model"
	"skyroute/pkg/store"
)

const fleetRosterStateKey = "fleet_roster_csv_mtime"

// codeRetention bounds the code_history table; rows past it move to the
// archive. The scheduler has no job for this, it only runs here.
const codeRetention = 30 * 24 * time.Hour

// Run executes all maintenance tasks: roster import and pruning. The
// scheduler repeats the prunes while the server is up; running them here
// catches up after downtime. It blocks until completion.
func Run(ctx context.Context, s store.Store, rosterPath string, telemetryKeep time.Duration) error {
	slog.Info("Starting database maintenance...")

	if err := importRoster(ctx, s, rosterPath); err != nil {
		slog.Error("Roster import failed", "error", err)
		// Import failure does not stop startup, but we log it.
	} else {
		slog.Info("Roster import check completed")
	}

	if n, err := s.PruneCache(ctx, cache.Retention); err != nil {
		slog.Error("Cache pruning failed", "error", err)
	} else {
		slog.Info("Cache pruning completed", "removed", n)
	}

	if n, err := s.PruneTelemetry(ctx, time.Now().Add(-telemetryKeep)); err != nil {
		slog.Error("Telemetry pruning failed", "error", err)
	} else {
		slog.Info("Telemetry pruning completed", "removed", n)
	}

	if n, err := s.ArchiveCodeHistory(ctx, time.Now().Add(-codeRetention)); err != nil {
		slog.Error("Code archiving failed", "error", err)
	} else {
		slog.Info("Code archiving completed", "archived", n)
	}

	return nil
}

// importRoster seeds drones from a CSV file conditional on modification time.
// Existing drones keep their runtime state; only unknown IDs are inserted.
func importRoster(ctx context.Context, s store.Store, rosterPath string) error {
	info, err := os.Stat(rosterPath)
	if os.IsNotExist(err) {
		return nil // File doesn't exist, nothing to import
	}
	if err != nil {
		return fmt.Errorf("failed to stat csv: %w", err)
	}

	fileMTime := info.ModTime().UTC().Format(time.RFC3339)

	// Check stored state
	storedMTime, found := s.GetState(ctx, fleetRosterStateKey)
	if found && storedMTime == fileMTime {
		return nil // Up to date
	}

	slog.Info("Importing fleet roster from CSV...", "path", rosterPath)

	f, err := os.Open(rosterPath)
	if err != nil {
		return fmt.Errorf("failed to open csv: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	// Headers: ID,Model,MaxPayloadKg,Latitude,Longitude
	headers, err := reader.Read()
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	// Handle potential BOM (Byte Order Mark) at start of file
	if len(headers) > 0 {
		// Check for UTF-8 BOM \xef\xbb\xbf
		if len(headers[0]) >= 3 && headers[0][:3] == "\xef\xbb\xbf" {
			headers[0] = headers[0][3:]
		}
	}

	// Map headers to indices
	idxMap := make(map[string]int)
	for i, h := range headers {
		idxMap[h] = i
	}

	count, err := processRosterRows(ctx, s, reader, idxMap)
	if err != nil {
		return err
	}

	slog.Info("Imported fleet roster", "added", count)

	// Update state
	if err := s.SetState(ctx, fleetRosterStateKey, fileMTime); err != nil {
		return fmt.Errorf("failed to update state: %w", err)
	}

	return nil
}

func processRosterRows(ctx context.Context, s store.Store, reader *csv.Reader, idxMap map[string]int) (int, error) {
	get := func(row []string, col string) string {
		if i, ok := idxMap[col]; ok && i < len(row) {
			return row[i]
		}
		return ""
	}

	count := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("csv read error: %w", err)
		}

		id := get(record, "ID")
		if id == "" {
			continue
		}

		// Never clobber a live drone row
		existing, err := s.GetDrone(ctx, id)
		if err != nil {
			return count, fmt.Errorf("failed to check drone %s: %w", id, err)
		}
		if existing != nil {
			continue
		}

		drone := &model.Drone{
			ID:         id,
			Model:      get(record, "Model"),
			Status:     model.DroneIdle,
			BatteryPct: 100,
			CreatedAt:  time.Now().UTC(),
		}

		if payload, err := strconv.ParseFloat(get(record, "MaxPayloadKg"), 64); err == nil {
			drone.MaxPayloadKg = payload
		}
		if lat, err := strconv.ParseFloat(get(record, "Latitude"), 64); err == nil {
			drone.Lat = lat
		}
		if lon, err := strconv.ParseFloat(get(record, "Longitude"), 64); err == nil {
			drone.Lon = lon
		}

		if err := s.SaveDrone(ctx, drone); err != nil {
			return count, fmt.Errorf("failed to save row %d: %w", count, err)
		}
		count++
	}
	return count, nil
}
