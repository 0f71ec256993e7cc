package telemetry

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"skyroute/pkg/logging"
	"skyroute/pkg/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Drones are not browsers; they send no Origin header.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsAck is the per-message reply on the telemetry stream.
type wsAck struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// ServeWS upgrades the connection and ingests a stream of telemetry
// reports, one JSON object per message. Every message is acknowledged;
// a malformed message gets an error ack and the stream continues.
func (m *Monitor) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Telemetry: websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	slog.Info("Telemetry: stream connected", "remote", r.RemoteAddr)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Warn("Telemetry: stream dropped", "remote", r.RemoteAddr, "error", err)
			} else {
				slog.Info("Telemetry: stream closed", "remote", r.RemoteAddr)
			}
			return
		}
		logging.Trace(tlog(), "Telemetry: ws frame", "remote", r.RemoteAddr, "bytes", len(data))

		var tp model.Telemetry
		if err := json.Unmarshal(data, &tp); err != nil {
			m.ack(conn, wsAck{Status: "error", Error: "bad telemetry payload"})
			continue
		}
		if err := m.Record(r.Context(), &tp); err != nil {
			m.ack(conn, wsAck{Status: "error", Error: err.Error()})
			continue
		}
		m.ack(conn, wsAck{Status: "ok"})
	}
}

func (m *Monitor) ack(conn *websocket.Conn, a wsAck) {
	if err := conn.WriteJSON(a); err != nil {
		slog.Warn("Telemetry: ack failed", "error", err)
	}
}
