package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"skyroute/pkg/geofence"
)

const zonesFixture = `{
	"type": "FeatureCollection",
	"features": [
		{
			"type": "Feature",
			"properties": {"id": "airport", "name": "Birsa Munda Airport", "category": "airport", "radius_m": 3000},
			"geometry": {"type": "Point", "coordinates": [85.3214, 23.3143]}
		},
		{
			"type": "Feature",
			"properties": {"id": "helipad", "name": "Sadar Hospital Helipad", "category": "hospital", "radius_m": 500},
			"geometry": {"type": "Point", "coordinates": [85.4400, 23.4100]}
		}
	]
}`

func newZoneHandlerTest(t *testing.T) *ZoneHandler {
	t.Helper()

	reg := geofence.NewRegistry(7)
	if err := reg.Load([]byte(zonesFixture)); err != nil {
		t.Fatalf("Failed to load zones: %v", err)
	}
	return NewZoneHandler(reg)
}

func TestHandleAllZones(t *testing.T) {
	h := newZoneHandlerTest(t)

	req := httptest.NewRequest("GET", "/api/zones", http.NoBody)
	w := httptest.NewRecorder()

	h.HandleAll(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var got []geofence.Zone
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d zones, want 2", len(got))
	}
	if got[0].ID != "airport" || got[0].RadiusM != 3000 {
		t.Errorf("first zone = %+v, want the airport", got[0])
	}
}

func TestHandleAllZonesEmpty(t *testing.T) {
	h := NewZoneHandler(geofence.NewRegistry(7))

	w := httptest.NewRecorder()
	h.HandleAll(w, httptest.NewRequest("GET", "/api/zones", http.NoBody))

	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestHandleZonesNear(t *testing.T) {
	h := newZoneHandlerTest(t)

	t.Run("Inside the airport zone", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/zones/near?lat=23.3143&lon=85.3214", http.NoBody)
		w := httptest.NewRecorder()

		h.HandleNear(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var got []geofence.Zone
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("got %d zones, want 1: %+v", len(got), got)
		}
		if got[0].ID != "airport" {
			t.Errorf("zone = %q, want airport", got[0].ID)
		}
	})

	t.Run("Open country", func(t *testing.T) {
		// ~40km east of both zones.
		req := httptest.NewRequest("GET", "/api/zones/near?lat=23.30&lon=85.75", http.NoBody)
		w := httptest.NewRecorder()

		h.HandleNear(w, req)

		if body := strings.TrimSpace(w.Body.String()); body != "[]" {
			t.Errorf("body = %q, want []", body)
		}
	})

	t.Run("Missing lon", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/zones/near?lat=23.31", http.NoBody)
		w := httptest.NewRecorder()

		h.HandleNear(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("Bad lat", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/zones/near?lat=north&lon=85.32", http.NoBody)
		w := httptest.NewRecorder()

		h.HandleNear(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}
