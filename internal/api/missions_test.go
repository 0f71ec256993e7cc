package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"skyroute/pkg/model"
)

func TestHandleAssign(t *testing.T) {
	a := newTestAPI(t, nil)
	a.seedDrone(t, "DRN-01", 90)
	o := a.seedOrder(t)

	t.Run("Missing order_id", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/missions/assign", strings.NewReader(`{}`))
		w := httptest.NewRecorder()

		a.missions.HandleAssign(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("Unknown order", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/missions/assign", strings.NewReader(`{"order_id":"ORD-missing"}`))
		w := httptest.NewRecorder()

		a.missions.HandleAssign(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("Dispatch", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/missions/assign", strings.NewReader(`{"order_id":"`+o.ID+`"}`))
		w := httptest.NewRecorder()

		a.missions.HandleAssign(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201. Body: %s", w.Code, w.Body.String())
		}

		var got AssignResponse
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.Mission == nil || got.Route == nil {
			t.Fatalf("response missing mission or route: %+v", got)
		}
		if got.Mission.DroneID != "DRN-01" {
			t.Errorf("DroneID = %q, want DRN-01", got.Mission.DroneID)
		}
		if got.Mission.Status != model.MissionPlanned {
			t.Errorf("Status = %q, want planned", got.Mission.Status)
		}
		if len(got.Route.Waypoints) < 2 {
			t.Errorf("route has %d waypoints, want at least 2", len(got.Route.Waypoints))
		}
	})

	t.Run("Order no longer pending", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/missions/assign", strings.NewReader(`{"order_id":"`+o.ID+`"}`))
		w := httptest.NewRecorder()

		a.missions.HandleAssign(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409. Body: %s", w.Code, w.Body.String())
		}
	})

	t.Run("No dispatchable drone", func(t *testing.T) {
		o2 := a.seedOrder(t)

		req := httptest.NewRequest("POST", "/api/missions/assign", strings.NewReader(`{"order_id":"`+o2.ID+`"}`))
		w := httptest.NewRecorder()

		a.missions.HandleAssign(w, req)

		// DRN-01 is reserved by the planned mission above.
		if w.Code != http.StatusUnprocessableEntity {
			t.Errorf("status = %d, want 422. Body: %s", w.Code, w.Body.String())
		}
	})
}

func TestMissionLifecycleEndpoints(t *testing.T) {
	a := newTestAPI(t, nil)
	a.seedDrone(t, "DRN-01", 90)
	o := a.seedOrder(t)

	m, _, err := a.svc.Dispatch(context.Background(), o.ID, "")
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	t.Run("Complete before start conflicts", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/missions/"+m.ID+"/complete", http.NoBody)
		req.SetPathValue("id", m.ID)
		w := httptest.NewRecorder()

		a.missions.HandleComplete(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("status = %d, want 409", w.Code)
		}
	})

	t.Run("Start", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/missions/"+m.ID+"/start", http.NoBody)
		req.SetPathValue("id", m.ID)
		w := httptest.NewRecorder()

		a.missions.HandleStart(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200. Body: %s", w.Code, w.Body.String())
		}
		var got model.Mission
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.Status != model.MissionEnRoute {
			t.Errorf("Status = %q, want en_route", got.Status)
		}
		if got.StartedAt == nil {
			t.Error("StartedAt not set")
		}
	})

	t.Run("Complete", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/missions/"+m.ID+"/complete", http.NoBody)
		req.SetPathValue("id", m.ID)
		w := httptest.NewRecorder()

		a.missions.HandleComplete(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200. Body: %s", w.Code, w.Body.String())
		}
		var got model.Mission
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if got.Status != model.MissionCompleted {
			t.Errorf("Status = %q, want completed", got.Status)
		}
	})

	t.Run("List by status", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/missions?status=completed", http.NoBody)
		w := httptest.NewRecorder()

		a.missions.HandleList(w, req)

		var got []*model.Mission
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(got) != 1 || got[0].ID != m.ID {
			t.Errorf("completed missions = %+v, want just %s", got, m.ID)
		}
	})

	t.Run("Get", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/missions/"+m.ID, http.NoBody)
		req.SetPathValue("id", m.ID)
		w := httptest.NewRecorder()

		a.missions.HandleGet(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/missions/MIS-missing", http.NoBody)
		req.SetPathValue("id", "MIS-missing")
		w := httptest.NewRecorder()

		a.missions.HandleGet(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}
