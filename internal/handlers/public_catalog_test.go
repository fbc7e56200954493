package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/services"
)

type stubCatalogService struct {
	page        services.ProductPage
	product     services.Product
	featured    []services.Product
	results     []services.Product
	err         error
	lastKind    services.ProductKind
	lastQuery   services.CatalogQuery
	lastTerm    string
	lastLimit   int
	lastCommand services.UpsertProductCommand
	deletedID   string
}

func (s *stubCatalogService) ListProducts(_ context.Context, kind services.ProductKind, query services.CatalogQuery) (services.ProductPage, error) {
	s.lastKind = kind
	s.lastQuery = query
	return s.page, s.err
}

func (s *stubCatalogService) GetProduct(_ context.Context, kind services.ProductKind, _ string) (services.Product, error) {
	s.lastKind = kind
	return s.product, s.err
}

func (s *stubCatalogService) ListFeatured(_ context.Context, limit int) ([]services.Product, error) {
	s.lastLimit = limit
	return s.featured, s.err
}

func (s *stubCatalogService) Search(_ context.Context, term string, limit int) ([]services.Product, error) {
	s.lastTerm = term
	s.lastLimit = limit
	return s.results, s.err
}

func (s *stubCatalogService) CreateProduct(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	s.lastCommand = cmd
	return s.product, s.err
}

func (s *stubCatalogService) UpdateProduct(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	s.lastCommand = cmd
	return s.product, s.err
}

func (s *stubCatalogService) DeleteProduct(_ context.Context, _ services.ProductKind, id string) error {
	s.deletedID = id
	return s.err
}

func catalogTestRouter(svc services.CatalogService) chi.Router {
	r := chi.NewRouter()
	NewCatalogHandlers(WithCatalogService(svc)).RegisterRoutes(r)
	return r
}

func TestListTemplatesForwardsFilters(t *testing.T) {
	svc := &stubCatalogService{page: services.ProductPage{
		Items:         []services.Product{{ID: "tpl-1", Kind: domain.ProductKindWebsite, Title: "Portfolio"}},
		NextPageToken: "next",
	}}
	router := catalogTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates/website?category=business&minPrice=10&maxPrice=80&pageSize=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.lastKind != domain.ProductKindWebsite {
		t.Fatalf("expected website kind, got %q", svc.lastKind)
	}
	if svc.lastQuery.Category != "business" {
		t.Fatalf("expected category filter, got %q", svc.lastQuery.Category)
	}
	if svc.lastQuery.Price == nil || *svc.lastQuery.Price.From != 10 || *svc.lastQuery.Price.To != 80 {
		t.Fatalf("unexpected price range %+v", svc.lastQuery.Price)
	}
	if svc.lastQuery.Pagination.PageSize != 5 {
		t.Fatalf("expected page size 5, got %d", svc.lastQuery.Pagination.PageSize)
	}

	var payload struct {
		Items         []map[string]any `json:"items"`
		NextPageToken string           `json:"nextPageToken"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(payload.Items) != 1 || payload.NextPageToken != "next" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestListTemplatesRejectsUnknownKind(t *testing.T) {
	router := catalogTestRouter(&stubCatalogService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates/ebooks", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListTemplatesRejectsInvertedPriceRange(t *testing.T) {
	router := catalogTestRouter(&stubCatalogService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates/app?minPrice=90&maxPrice=10", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetTemplateHidesInactiveProduct(t *testing.T) {
	svc := &stubCatalogService{product: services.Product{ID: "tpl-1", Kind: domain.ProductKindApp, IsActive: false}}
	router := catalogTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates/app/tpl-1", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestGetTemplateMapsMissingProduct(t *testing.T) {
	svc := &stubCatalogService{err: notFoundError("missing")}
	router := catalogTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates/app/nope", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestListFeaturedPassesLimit(t *testing.T) {
	svc := &stubCatalogService{featured: []services.Product{{ID: "tpl-9", IsActive: true, IsFeatured: true}}}
	router := catalogTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates/featured?limit=4", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastLimit != 4 {
		t.Fatalf("expected limit 4, got %d", svc.lastLimit)
	}
}

func TestSearchRejectsEmptyTerm(t *testing.T) {
	svc := &stubCatalogService{err: services.ErrCatalogInvalidInput}
	router := catalogTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates/search?q=", nil))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSearchForwardsTerm(t *testing.T) {
	svc := &stubCatalogService{results: []services.Product{{ID: "tpl-2", Title: "Dashboard"}}}
	router := catalogTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/templates/search?q=dashboard", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if svc.lastTerm != "dashboard" {
		t.Fatalf("expected term forwarded, got %q", svc.lastTerm)
	}
}
