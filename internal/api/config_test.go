package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"skyroute/pkg/config"
)

func TestHandleGetConfig(t *testing.T) {
	a := newTestAPI(t, nil)

	req := httptest.NewRequest("GET", "/api/config", nil)
	w := httptest.NewRecorder()

	a.config.HandleConfig(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var got ConfigResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if !got.AutoDispatch {
		t.Error("AutoDispatch = false, want default true")
	}
	if got.MinDispatchBattery != 50 {
		t.Errorf("MinDispatchBattery = %v, want 50", got.MinDispatchBattery)
	}
	if got.MaxActiveMissions != 5 {
		t.Errorf("MaxActiveMissions = %d, want 5", got.MaxActiveMissions)
	}
	if got.CodeTTL != "5m0s" {
		t.Errorf("CodeTTL = %q, want 5m0s", got.CodeTTL)
	}
	if got.BaseLat != 23.3441 {
		t.Errorf("BaseLat = %v, want 23.3441", got.BaseLat)
	}
}

func TestHandleSetConfig(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantKey    string
		wantVal    string
	}{
		{
			name:       "Disable auto dispatch",
			body:       `{"auto_dispatch":false}`,
			wantStatus: http.StatusOK,
			wantKey:    config.KeyAutoDispatch,
			wantVal:    "false",
		},
		{
			name:       "Raise battery floor",
			body:       `{"min_dispatch_battery":65}`,
			wantStatus: http.StatusOK,
			wantKey:    config.KeyMinDispatchBattery,
			wantVal:    "65.00",
		},
		{
			name:       "Shrink mission cap",
			body:       `{"max_active_missions":2}`,
			wantStatus: http.StatusOK,
			wantKey:    config.KeyMaxActiveMissions,
			wantVal:    "2",
		},
		{
			name:       "Enable weather bypass",
			body:       `{"weather_bypass":true}`,
			wantStatus: http.StatusOK,
			wantKey:    config.KeyWeatherBypass,
			wantVal:    "true",
		},
		{
			name:       "Stretch code TTL",
			body:       `{"code_ttl":"10m"}`,
			wantStatus: http.StatusOK,
			wantKey:    config.KeyCodeTTL,
			wantVal:    "10m0s",
		},
		{
			name:       "Battery floor out of range",
			body:       `{"min_dispatch_battery":140}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Zero mission cap",
			body:       `{"max_active_missions":0}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Garbage TTL",
			body:       `{"code_ttl":"soon"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Invalid JSON",
			body:       `{"auto_dispatch":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAPI(t, nil)

			req := httptest.NewRequest("POST", "/api/config", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			a.config.HandleConfig(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d. Body: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if w.Header().Get("Access-Control-Allow-Origin") != "*" {
				t.Error("missing CORS header Access-Control-Allow-Origin")
			}

			if tt.wantKey == "" {
				return
			}
			if val, ok := a.st.GetState(req.Context(), tt.wantKey); !ok || val != tt.wantVal {
				t.Errorf("Store[%q] = %q, want %q", tt.wantKey, val, tt.wantVal)
			}
		})
	}

	t.Run("PUT also accepted", func(t *testing.T) {
		a := newTestAPI(t, nil)

		req := httptest.NewRequest("PUT", "/api/config", strings.NewReader(`{"auto_dispatch":false}`))
		w := httptest.NewRecorder()

		a.config.HandleConfig(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
	})

	t.Run("OPTIONS preflight", func(t *testing.T) {
		a := newTestAPI(t, nil)

		req := httptest.NewRequest("OPTIONS", "/api/config", nil)
		w := httptest.NewRecorder()

		a.config.HandleConfig(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
		if w.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Error("missing Access-Control-Allow-Methods")
		}
	})
}

func TestSetConfigChangesDispatch(t *testing.T) {
	a := newTestAPI(t, nil)

	req := httptest.NewRequest("POST", "/api/config", strings.NewReader(`{"auto_dispatch":false}`))
	w := httptest.NewRecorder()
	a.config.HandleConfig(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("set failed: %d", w.Code)
	}

	// The provider must see the override immediately.
	if a.prov.AutoDispatch(req.Context()) {
		t.Error("AutoDispatch still true after override")
	}
}

func TestHandleResetConfig(t *testing.T) {
	a := newTestAPI(t, nil)

	// Override, then clear it.
	set := httptest.NewRequest("POST", "/api/config", strings.NewReader(`{"min_dispatch_battery":65}`))
	a.config.HandleConfig(httptest.NewRecorder(), set)

	req := httptest.NewRequest("DELETE", "/api/config/"+config.KeyMinDispatchBattery, http.NoBody)
	req.SetPathValue("key", config.KeyMinDispatchBattery)
	w := httptest.NewRecorder()

	a.config.HandleReset(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200. Body: %s", w.Code, w.Body.String())
	}
	if got := a.prov.MinDispatchBattery(req.Context()); got != 50 {
		t.Errorf("MinDispatchBattery = %v after reset, want YAML default 50", got)
	}

	t.Run("Unknown key", func(t *testing.T) {
		req := httptest.NewRequest("DELETE", "/api/config/volume", http.NoBody)
		req.SetPathValue("key", "volume")
		w := httptest.NewRecorder()

		a.config.HandleReset(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}
