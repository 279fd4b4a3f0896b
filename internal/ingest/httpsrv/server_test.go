package httpsrv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

type mockSource struct {
	joined bool
}

func (m *mockSource) IsJoined() bool { return m.joined }

type mockDBChecker struct {
	err error
}

func (m *mockDBChecker) Ping(_ context.Context) error { return m.err }

func newTestServer(kafkaJoined, risLiveJoined bool) *Server {
	logger := zap.NewNop()
	ks := &mockSource{joined: kafkaJoined}
	rs := &mockSource{joined: risLiveJoined}
	return NewServer(":0", nil, ks, rs, logger)
}

func TestHealthz_AlwaysOK(t *testing.T) {
	s := newTestServer(false, false)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	s.handleHealthz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("expected status 'ok', got '%s'", body["status"])
	}
}

func TestReadyz_NotReady_SourcesNotJoined(t *testing.T) {
	s := newTestServer(false, false)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	checks := body["checks"].(map[string]any)
	if checks["kafka_source"] != "not_joined" {
		t.Errorf("expected kafka_source 'not_joined', got '%v'", checks["kafka_source"])
	}
	if checks["ris_live_source"] != "not_joined" {
		t.Errorf("expected ris_live_source 'not_joined', got '%v'", checks["ris_live_source"])
	}
	if _, present := checks["postgres"]; present {
		t.Errorf("expected no postgres check with nil pool, got '%v'", checks["postgres"])
	}
}

func TestReadyz_SourcesJoined_NoDBConfigured(t *testing.T) {
	s := newTestServer(true, true)
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200 (no DB checker configured), got %d", w.Code)
	}
}

func TestReadyz_DBDownFailsReadiness(t *testing.T) {
	s := newTestServer(true, true)
	s.dbChecker = &mockDBChecker{err: context.DeadlineExceeded}

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	checks := body["checks"].(map[string]any)
	if checks["postgres"] != "error" {
		t.Errorf("expected postgres 'error', got '%v'", checks["postgres"])
	}
}

func TestReadyz_AllHealthy(t *testing.T) {
	s := newTestServer(true, true)
	s.dbChecker = &mockDBChecker{err: nil}

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	w := httptest.NewRecorder()

	s.handleReadyz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["status"] != "ready" {
		t.Errorf("expected status 'ready', got '%v'", body["status"])
	}
}
