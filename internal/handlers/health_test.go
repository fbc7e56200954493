package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	build  services.BuildInfo
	err    error
}

func (s *stubSystemService) Health(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

func (s *stubSystemService) Build() services.BuildInfo {
	return s.build
}

func TestHealthzReportsVersionAndUptime(t *testing.T) {
	started := time.Date(2026, 5, 20, 9, 0, 0, 0, time.UTC)
	now := started.Add(90 * time.Minute)
	handlers := NewHealthHandlers(
		WithSystemService(&stubSystemService{build: services.BuildInfo{Version: "1.4.0", StartedAt: started}}),
		WithHealthClock(func() time.Time { return now }),
	)

	rec := httptest.NewRecorder()
	handlers.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["version"] != "1.4.0" {
		t.Fatalf("expected version, got %v", payload["version"])
	}
	if payload["uptime"] != "1h30m0s" {
		t.Fatalf("expected uptime, got %v", payload["uptime"])
	}
}

func TestReadyzReportsFailingDependency(t *testing.T) {
	handlers := NewHealthHandlers(WithSystemService(&stubSystemService{report: services.SystemHealthReport{
		Status: domain.HealthStatusError,
		Checks: map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusError, Latency: 40 * time.Millisecond, Detail: "deadline exceeded"},
		},
		GeneratedAt: time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC),
	}}))

	rec := httptest.NewRecorder()
	handlers.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var payload struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Status != string(domain.HealthStatusError) {
		t.Fatalf("expected error status, got %q", payload.Status)
	}
	if payload.Checks["firestore"]["detail"] != "deadline exceeded" {
		t.Fatalf("expected check detail, got %v", payload.Checks["firestore"])
	}
}

func TestReadyzHealthyReportsOK(t *testing.T) {
	handlers := NewHealthHandlers(WithSystemService(&stubSystemService{report: services.SystemHealthReport{
		Status: domain.HealthStatusOK,
		Checks: map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusOK, Latency: 5 * time.Millisecond},
		},
	}}))

	rec := httptest.NewRecorder()
	handlers.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
