package api

import (
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"skyroute/pkg/logging"
)

// Regex to capture key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// handleLatestLog returns the last captured server log line, condensed
// for a dashboard status bar.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	line := logging.GlobalLogCapture.GetLastLine()
	writeJSON(w, http.StatusOK, map[string]string{
		"log": formatLogLine(line),
	})
}

// handleLatestEvent returns the last operations event plus a short
// backlog for the dashboard ticker. Event lines are already
// human-readable, so they pass through untouched.
func handleLatestEvent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"event":  logging.GlobalEventCapture.GetLastLine(),
		"recent": logging.GlobalEventCapture.Recent(10),
	})
}

// formatLogLine condenses one slog text line: the time shrinks to
// HH:MM:SS, the level drops, remaining params sort behind the message,
// and values longer than 20 chars are cut entirely.
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg string
	var timeStr string
	var params []string

	for _, m := range matches {
		key := m[1]
		val := m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch key {
		case "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				timeStr = t.Format("15:04:05")
			}
			continue
		case "level":
			continue
		case "msg":
			msg = val
			continue
		}

		if len(val) > 20 {
			continue
		}

		params = append(params, key+"="+val)
	}

	if msg == "" {
		return raw
	}

	sort.Strings(params) // deterministic output

	output := msg
	if timeStr != "" {
		output = timeStr + " " + msg
	}

	if len(params) > 0 {
		return output + " (" + strings.Join(params, ", ") + ")"
	}
	return output
}
