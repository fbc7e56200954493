package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/platform/httpx"
	"github.com/templhub/api/internal/platform/pagination"
	"github.com/templhub/api/internal/services"
)

const catalogCacheControl = "public, max-age=60"

// CatalogHandlers exposes the unauthenticated template browsing endpoints.
type CatalogHandlers struct {
	catalog  services.CatalogService
	pageOpts pagination.Options
}

// CatalogOption customises construction of CatalogHandlers.
type CatalogOption func(*CatalogHandlers)

// WithCatalogService injects the catalog service dependency.
func WithCatalogService(svc services.CatalogService) CatalogOption {
	return func(h *CatalogHandlers) {
		h.catalog = svc
	}
}

// WithCatalogPageOptions overrides the page-size clamping applied to list requests.
func WithCatalogPageOptions(opts pagination.Options) CatalogOption {
	return func(h *CatalogHandlers) {
		h.pageOpts = opts
	}
}

// NewCatalogHandlers constructs handlers for the public catalog endpoints.
func NewCatalogHandlers(opts ...CatalogOption) *CatalogHandlers {
	h := &CatalogHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RegisterRoutes mounts the catalog endpoints on the public group.
func (h *CatalogHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/templates/featured", h.ListFeatured)
	r.Get("/templates/search", h.Search)
	r.Get("/templates/{kind}", h.ListTemplates)
	r.Get("/templates/{kind}/{productID}", h.GetTemplate)
}

// ListTemplates serves one filtered page of a template kind.
func (h *CatalogHandlers) ListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	kind, err := domain.ParseProductKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_kind", err.Error(), http.StatusBadRequest))
		return
	}

	params, err := pagination.Parse(r.URL.Query(), h.pageOpts)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	query := services.CatalogQuery{
		Category: strings.TrimSpace(r.URL.Query().Get("category")),
		Pagination: services.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	}
	priceRange, err := parsePriceRange(r.URL.Query().Get("minPrice"), r.URL.Query().Get("maxPrice"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	query.Price = priceRange

	page, err := h.catalog.ListProducts(ctx, kind, query)
	if err != nil {
		if errors.Is(err, services.ErrCatalogInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		writeRepositoryError(ctx, w, err, "catalog")
		return
	}

	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"items":         toProductResponses(page.Items),
		"nextPageToken": page.NextPageToken,
	})
}

// GetTemplate serves a single product document.
func (h *CatalogHandlers) GetTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	kind, err := domain.ParseProductKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_kind", err.Error(), http.StatusBadRequest))
		return
	}

	product, err := h.catalog.GetProduct(ctx, kind, chi.URLParam(r, "productID"))
	if err != nil {
		if errors.Is(err, services.ErrCatalogInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		writeRepositoryError(ctx, w, err, "template")
		return
	}
	if !product.IsActive {
		httpx.WriteError(ctx, w, httpx.NewError("template_not_found", "template not found", http.StatusNotFound))
		return
	}

	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSONResponse(w, http.StatusOK, toProductResponse(product))
}

// ListFeatured serves the cross-kind featured selection.
func (h *CatalogHandlers) ListFeatured(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	limit, err := parseOptionalInt(r.URL.Query().Get("limit"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be an integer", http.StatusBadRequest))
		return
	}

	featured, err := h.catalog.ListFeatured(ctx, limit)
	if err != nil {
		writeRepositoryError(ctx, w, err, "catalog")
		return
	}

	w.Header().Set("Cache-Control", catalogCacheControl)
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": toProductResponses(featured)})
}

// Search serves ranked full-catalog search results.
func (h *CatalogHandlers) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog service is unavailable", http.StatusServiceUnavailable))
		return
	}

	limit, err := parseOptionalInt(r.URL.Query().Get("limit"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "limit must be an integer", http.StatusBadRequest))
		return
	}

	results, err := h.catalog.Search(ctx, r.URL.Query().Get("q"), limit)
	if err != nil {
		if errors.Is(err, services.ErrCatalogInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		writeRepositoryError(ctx, w, err, "catalog")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{"items": toProductResponses(results)})
}

func parsePriceRange(minRaw, maxRaw string) (*services.PriceRange, error) {
	minRaw = strings.TrimSpace(minRaw)
	maxRaw = strings.TrimSpace(maxRaw)
	if minRaw == "" && maxRaw == "" {
		return nil, nil
	}

	priceRange := &services.PriceRange{}
	if minRaw != "" {
		value, err := strconv.ParseFloat(minRaw, 64)
		if err != nil || value < 0 {
			return nil, errors.New("minPrice must be a non-negative number")
		}
		priceRange.From = &value
	}
	if maxRaw != "" {
		value, err := strconv.ParseFloat(maxRaw, 64)
		if err != nil || value < 0 {
			return nil, errors.New("maxPrice must be a non-negative number")
		}
		priceRange.To = &value
	}
	if priceRange.From != nil && priceRange.To != nil && *priceRange.From > *priceRange.To {
		return nil, errors.New("minPrice must not exceed maxPrice")
	}
	return priceRange, nil
}

func parseOptionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
