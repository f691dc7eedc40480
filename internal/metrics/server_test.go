package metrics

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthHandler(t *testing.T) {
	s := NewServer(DefaultServerConfig(), nil)
	s.RegisterHealthCheck("feed", func() Check { return Healthy() })
	s.RegisterHealthCheck("store", func() Check { return Healthy() })

	rec := httptest.NewRecorder()
	s.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var status healthStatus
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if status.Status != "healthy" {
		t.Errorf("status = %s, want healthy", status.Status)
	}
	if len(status.Checks) != 2 {
		t.Errorf("checks = %d, want 2", len(status.Checks))
	}
}

func TestHealthHandlerUnhealthy(t *testing.T) {
	s := NewServer(DefaultServerConfig(), nil)
	s.RegisterHealthCheck("feed", func() Check { return Unhealthy("stale prices") })

	rec := httptest.NewRecorder()
	s.healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestReadyHandler(t *testing.T) {
	s := NewServer(DefaultServerConfig(), nil)

	rec := httptest.NewRecorder()
	s.readyHandler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("ready with no checks = %d, want 200", rec.Code)
	}

	s.RegisterHealthCheck("store", func() Check { return Unhealthy("closed") })
	rec = httptest.NewRecorder()
	s.readyHandler(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready with failing check = %d, want 503", rec.Code)
	}
}

func TestLiveHandler(t *testing.T) {
	s := NewServer(DefaultServerConfig(), nil)

	rec := httptest.NewRecorder()
	s.liveHandler(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("live = %d, want 200", rec.Code)
	}
}
