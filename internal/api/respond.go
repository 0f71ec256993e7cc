package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"skyroute/pkg/fleet"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeFleetError maps the service's sentinel errors onto HTTP statuses.
// Refusals are 422: the request was well-formed but dispatch said no.
func writeFleetError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fleet.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, fleet.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, fleet.ErrConflict):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, fleet.ErrRefused):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		slog.Error("Unhandled service error", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
