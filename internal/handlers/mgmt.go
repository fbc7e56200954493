package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/platform/auth"
	"github.com/templhub/api/internal/platform/httpx"
	"github.com/templhub/api/internal/platform/storage"
	"github.com/templhub/api/internal/services"
)

const (
	maxMgmtBodyBytes       = 256 << 10
	defaultDownloadExpiry  = 15 * time.Minute
	downloadContentDispose = "attachment"
)

// staffTokenIssuer issues signed tokens for the management login exchange.
type staffTokenIssuer interface {
	Issue(subject, role string) (string, time.Time, error)
}

// archiveSigner produces signed download URLs for template archives.
type archiveSigner interface {
	SignedDownloadURL(ctx context.Context, bucket, object string, opts storage.DownloadOptions) (storage.SignedURLResult, error)
}

// MgmtHandlers exposes the staff management surface: credential exchange,
// catalog mutations, homepage reseeding, and archive download links.
type MgmtHandlers struct {
	catalog services.CatalogService
	content services.ContentService

	username string
	password string
	issuer   staffTokenIssuer
	guard    func(http.Handler) http.Handler

	signer archiveSigner
	bucket string
}

// MgmtOption customises construction of MgmtHandlers.
type MgmtOption func(*MgmtHandlers)

// WithMgmtCatalogService injects the catalog service used for mutations.
func WithMgmtCatalogService(svc services.CatalogService) MgmtOption {
	return func(h *MgmtHandlers) {
		h.catalog = svc
	}
}

// WithMgmtContentService injects the content service used for reseeding.
func WithMgmtContentService(svc services.ContentService) MgmtOption {
	return func(h *MgmtHandlers) {
		h.content = svc
	}
}

// WithStaffCredentials sets the username and password accepted by the login
// exchange.
func WithStaffCredentials(username, password string) MgmtOption {
	return func(h *MgmtHandlers) {
		h.username = username
		h.password = password
	}
}

// WithStaffAuthority wires the token authority used to issue tokens at login
// and to guard every other management route.
func WithStaffAuthority(authority *auth.StaffTokenAuthority) MgmtOption {
	return func(h *MgmtHandlers) {
		if authority != nil {
			h.issuer = authority
			h.guard = authority.RequireStaffToken()
		}
	}
}

// WithArchiveSigner wires the signed-URL generator and its bucket.
func WithArchiveSigner(signer archiveSigner, bucket string) MgmtOption {
	return func(h *MgmtHandlers) {
		h.signer = signer
		h.bucket = bucket
	}
}

// NewMgmtHandlers constructs handlers for the management endpoints.
func NewMgmtHandlers(opts ...MgmtOption) *MgmtHandlers {
	h := &MgmtHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RegisterRoutes mounts the management endpoints. Login stays unguarded so
// staff can obtain a token; everything else sits behind the token middleware.
func (h *MgmtHandlers) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)

	r.Group(func(guarded chi.Router) {
		if h.guard != nil {
			guarded.Use(h.guard)
		}
		guarded.Post("/templates/{kind}", h.CreateTemplate)
		guarded.Put("/templates/{kind}/{productID}", h.UpdateTemplate)
		guarded.Delete("/templates/{kind}/{productID}", h.DeleteTemplate)
		guarded.Post("/homepage/reseed", h.ReseedHomepage)
		guarded.Get("/downloads/{kind}/{productID}", h.SignedDownload)
	})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges staff credentials for a short-lived management token.
func (h *MgmtHandlers) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.issuer == nil || h.username == "" || h.password == "" {
		httpx.WriteError(ctx, w, httpx.NewError("mgmt_unavailable", "management login is not configured", http.StatusServiceUnavailable))
		return
	}

	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMgmtBodyBytes)).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	userMatch := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.username))
	passMatch := subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.password))
	if userMatch&passMatch != 1 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_credentials", "username or password is incorrect", http.StatusUnauthorized))
		return
	}

	token, expiresAt, err := h.issuer.Issue(req.Username, auth.RoleStaff)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("token_issue_failed", "could not issue staff token", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"token":     token,
		"expiresAt": expiresAt.UTC().Format(time.RFC3339),
		"role":      auth.RoleStaff,
	})
}

type templateRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Price         float64  `json:"price"`
	OriginalPrice float64  `json:"originalPrice"`
	Currency      string   `json:"currency"`
	Category      string   `json:"category"`
	Subcategory   string   `json:"subcategory"`
	Tags          []string `json:"tags"`
	Images        []string `json:"images"`
	PreviewURL    string   `json:"previewUrl"`
	DemoURL       string   `json:"demoUrl"`
	FileSize      string   `json:"fileSize"`
	Rating        float64  `json:"rating"`
	RatingCount   int      `json:"ratingCount"`
	Downloads     int      `json:"downloads"`
	IsActive      *bool    `json:"isActive"`
	IsFeatured    *bool    `json:"isFeatured"`
}

func (req templateRequest) toProduct(kind domain.ProductKind, id string) domain.Product {
	product := domain.Product{
		ID:            id,
		Kind:          kind,
		Title:         req.Title,
		Description:   req.Description,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Currency:      req.Currency,
		Category:      req.Category,
		Subcategory:   req.Subcategory,
		Tags:          req.Tags,
		Images:        req.Images,
		PreviewURL:    req.PreviewURL,
		DemoURL:       req.DemoURL,
		FileSize:      req.FileSize,
		Rating:        req.Rating,
		RatingCount:   req.RatingCount,
		Downloads:     req.Downloads,
		IsActive:      true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}
	return product
}

func (h *MgmtHandlers) actorID(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil {
		return identity.UID
	}
	return ""
}

func writeCatalogMutationError(ctx context.Context, w http.ResponseWriter, err error) {
	if errors.Is(err, services.ErrCatalogInvalidInput) {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	writeRepositoryError(ctx, w, err, "template")
}

// CreateTemplate inserts a new product into the catalog.
func (h *MgmtHandlers) CreateTemplate(w http.ResponseWriter, r *http.Request) {
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

	var req templateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMgmtBodyBytes)).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.CreateProduct(ctx, services.UpsertProductCommand{
		Product: req.toProduct(kind, ""),
		ActorID: h.actorID(ctx),
	})
	if err != nil {
		writeCatalogMutationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toProductResponse(product))
}

// UpdateTemplate replaces an existing product document.
func (h *MgmtHandlers) UpdateTemplate(w http.ResponseWriter, r *http.Request) {
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

	var req templateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxMgmtBodyBytes)).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, services.UpsertProductCommand{
		Product: req.toProduct(kind, chi.URLParam(r, "productID")),
		ActorID: h.actorID(ctx),
	})
	if err != nil {
		writeCatalogMutationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toProductResponse(product))
}

// DeleteTemplate removes a product from the catalog.
func (h *MgmtHandlers) DeleteTemplate(w http.ResponseWriter, r *http.Request) {
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

	if err := h.catalog.DeleteProduct(ctx, kind, chi.URLParam(r, "productID")); err != nil {
		writeCatalogMutationError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReseedHomepage replaces every homepage section with the default content set.
func (h *MgmtHandlers) ReseedHomepage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}

	sections, err := h.content.Reseed(ctx)
	if err != nil {
		writeRepositoryError(ctx, w, err, "homepage")
		return
	}

	payload := make([]sectionResponse, 0, len(sections))
	for _, section := range sections {
		payload = append(payload, toSectionResponse(section))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"sections": payload})
}

// SignedDownload returns a short-lived URL for a template archive.
func (h *MgmtHandlers) SignedDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.signer == nil || h.bucket == "" {
		httpx.WriteError(ctx, w, httpx.NewError("downloads_unavailable", "archive downloads are not configured", http.StatusServiceUnavailable))
		return
	}

	kind, err := domain.ParseProductKind(chi.URLParam(r, "kind"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_kind", err.Error(), http.StatusBadRequest))
		return
	}
	productID := chi.URLParam(r, "productID")

	if h.catalog != nil {
		if _, err := h.catalog.GetProduct(ctx, kind, productID); err != nil {
			writeCatalogMutationError(ctx, w, err)
			return
		}
	}

	object, err := storage.ArchiveObjectPath(string(kind), productID)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	result, err := h.signer.SignedDownloadURL(ctx, h.bucket, object, storage.DownloadOptions{
		Method:      http.MethodGet,
		ExpiresIn:   defaultDownloadExpiry,
		Disposition: downloadContentDispose,
	})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("signing_failed", "could not sign download url", http.StatusInternalServerError))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"url":       result.URL,
		"method":    result.Method,
		"expiresAt": result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}
