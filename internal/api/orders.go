package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"skyroute/pkg/fleet"
	"skyroute/pkg/model"
)

// OrderHandler exposes order intake and lookup.
type OrderHandler struct {
	fleet *fleet.Service
}

// NewOrderHandler creates a new order handler.
func NewOrderHandler(svc *fleet.Service) *OrderHandler {
	return &OrderHandler{fleet: svc}
}

// HandleCreate handles POST /api/orders.
func (h *OrderHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var o model.Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// Server-owned fields are assigned by the service regardless of what
	// the client sent.
	if err := h.fleet.CreateOrder(r.Context(), &o); err != nil {
		writeFleetError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, &o)
}

// HandleList handles GET /api/orders. Optional query params: status, limit.
func (h *OrderHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := model.OrderStatus(r.URL.Query().Get("status"))
	limit := queryInt(r, "limit", 0)

	orders, err := h.fleet.ListOrders(r.Context(), status, limit)
	if err != nil {
		writeFleetError(w, err)
		return
	}
	if orders == nil {
		orders = []*model.Order{}
	}

	writeJSON(w, http.StatusOK, orders)
}

// HandleGet handles GET /api/orders/{id}.
func (h *OrderHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	o, err := h.fleet.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFleetError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

// HandleCancel handles DELETE /api/orders/{id}. Orders are cancelled, not
// deleted; the row stays for auditing.
func (h *OrderHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.fleet.CancelOrder(r.Context(), id); err != nil {
		writeFleetError(w, err)
		return
	}

	o, err := h.fleet.GetOrder(r.Context(), id)
	if err != nil {
		writeFleetError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, o)
}

func queryInt(r *http.Request, key string, fallback int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
