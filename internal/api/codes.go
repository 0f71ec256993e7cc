package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"skyroute/pkg/codes"
	"skyroute/pkg/ratelimit"
)

// CodeHandler exposes delivery code verification at handover.
type CodeHandler struct {
	codes *codes.Manager
}

// NewCodeHandler creates a new code handler. Returns nil without a
// manager so the server skips the route.
func NewCodeHandler(mgr *codes.Manager) *CodeHandler {
	if mgr == nil {
		return nil
	}
	return &CodeHandler{codes: mgr}
}

// VerifyRequest is the body for POST /api/codes/verify.
type VerifyRequest struct {
	OrderID string `json:"order_id"`
	Code    string `json:"code"`
}

// VerifyResponse is the structured verdict. Clients branch on the
// outcome, so failures carry a reason instead of a bare status line.
type VerifyResponse struct {
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

// HandleVerify handles POST /api/codes/verify.
func (h *CodeHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.OrderID == "" || req.Code == "" {
		http.Error(w, "order_id and code are required", http.StatusBadRequest)
		return
	}

	err := h.codes.Verify(r.Context(), req.OrderID, req.Code, ratelimit.ClientIP(r))
	if err == nil {
		writeJSON(w, http.StatusOK, VerifyResponse{Verified: true})
		return
	}

	status := http.StatusInternalServerError
	reason := err.Error()
	switch {
	case errors.Is(err, codes.ErrMismatch):
		status = http.StatusUnauthorized
	case errors.Is(err, codes.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, codes.ErrLocked):
		status = http.StatusTooManyRequests
	case errors.Is(err, codes.ErrInvalid):
		status = http.StatusNotFound
	default:
		slog.Error("Code verification failed", "order", req.OrderID, "error", err)
		reason = "internal error"
	}

	writeJSON(w, status, VerifyResponse{Verified: false, Error: reason})
}
