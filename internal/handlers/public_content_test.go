package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/services"
)

type stubContentService struct {
	sections []services.HomepageSection
	section  services.HomepageSection
	err      error
	events   chan services.SectionEvent
	errs     chan error
	lastID   services.SectionID
}

func (s *stubContentService) GetSection(_ context.Context, id services.SectionID) (services.HomepageSection, error) {
	s.lastID = id
	return s.section, s.err
}

func (s *stubContentService) ListSections(context.Context) ([]services.HomepageSection, error) {
	return s.sections, s.err
}

func (s *stubContentService) WatchSection(_ context.Context, id services.SectionID) (<-chan services.SectionEvent, <-chan error) {
	s.lastID = id
	return s.events, s.errs
}

func (s *stubContentService) Reseed(context.Context) ([]services.HomepageSection, error) {
	return s.sections, s.err
}

func contentTestRouter(svc services.ContentService) chi.Router {
	r := chi.NewRouter()
	NewContentHandlers(WithContentService(svc)).RegisterRoutes(r)
	return r
}

func TestListSectionsServesOrderedSections(t *testing.T) {
	svc := &stubContentService{sections: []services.HomepageSection{
		{ID: domain.SectionHero, Order: 1, IsActive: true},
		{ID: domain.SectionFeatured, Order: 2, IsActive: true},
	}}
	router := contentTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/homepage", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload struct {
		Sections []map[string]any `json:"sections"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(payload.Sections) != 2 || payload.Sections[0]["id"] != "hero" {
		t.Fatalf("unexpected sections %+v", payload.Sections)
	}
}

func TestGetSectionRejectsUnknownID(t *testing.T) {
	router := contentTestRouter(&stubContentService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/homepage/banner", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetSectionMapsMissingDocument(t *testing.T) {
	svc := &stubContentService{err: notFoundError("missing")}
	router := contentTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/homepage/hero", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestStreamSectionEmitsUpdatesAndClear(t *testing.T) {
	events := make(chan services.SectionEvent, 2)
	events <- services.SectionEvent{
		Section: services.HomepageSection{ID: domain.SectionHero, Title: "Welcome", IsActive: true},
		Exists:  true,
	}
	events <- services.SectionEvent{Exists: false}
	close(events)

	svc := &stubContentService{events: events, errs: make(chan error, 1)}
	router := contentTestRouter(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/homepage/hero/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream content type, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: section") {
		t.Fatalf("expected section event in stream: %s", body)
	}
	if !strings.Contains(body, `"title":"Welcome"`) {
		t.Fatalf("expected section payload in stream: %s", body)
	}
	if !strings.Contains(body, "event: clear") {
		t.Fatalf("expected clear event after deletion: %s", body)
	}
	if svc.lastID != domain.SectionHero {
		t.Fatalf("expected watch on hero, got %q", svc.lastID)
	}
}

func TestStreamSectionReportsWatchFailure(t *testing.T) {
	errs := make(chan error, 1)
	errs <- unavailableError("backend gone")

	svc := &stubContentService{events: make(chan services.SectionEvent), errs: errs}
	router := contentTestRouter(svc)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/homepage/stats/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if !strings.Contains(rec.Body.String(), "event: error") {
		t.Fatalf("expected error event in stream: %s", rec.Body.String())
	}
}
