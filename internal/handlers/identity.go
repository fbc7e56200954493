package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/templhub/api/internal/platform/auth"
	"github.com/templhub/api/internal/platform/httpx"
	"github.com/templhub/api/internal/services"
)

const maxIdentityBodyBytes = 16 << 10

// IdentityHandlers exposes account sign-up and profile endpoints.
type IdentityHandlers struct {
	identity services.IdentityService
}

// IdentityOption customises construction of IdentityHandlers.
type IdentityOption func(*IdentityHandlers)

// WithIdentityService injects the identity service dependency.
func WithIdentityService(svc services.IdentityService) IdentityOption {
	return func(h *IdentityHandlers) {
		h.identity = svc
	}
}

// NewIdentityHandlers constructs handlers for the account endpoints.
func NewIdentityHandlers(opts ...IdentityOption) *IdentityHandlers {
	h := &IdentityHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RegisterPublicRoutes mounts the unauthenticated account endpoints.
func (h *IdentityHandlers) RegisterPublicRoutes(r chi.Router) {
	r.Post("/auth/signup", h.SignUp)
	r.Post("/auth/password-reset", h.PasswordReset)
}

// RegisterMeRoutes mounts the signed-in profile endpoints.
func (h *IdentityHandlers) RegisterMeRoutes(r chi.Router) {
	r.Get("/", h.GetProfile)
	r.Patch("/", h.UpdateProfile)
}

func writeIdentityError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, services.ErrIdentityInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrIdentityEmailInUse):
		httpx.WriteError(ctx, w, httpx.NewError("email_in_use", "email is already registered", http.StatusConflict))
	case errors.Is(err, services.ErrIdentityUserNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("user_not_found", "user not found", http.StatusNotFound))
	default:
		writeRepositoryError(ctx, w, err, "account")
	}
}

type signUpRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
	Locale      string `json:"locale"`
}

// SignUp registers a new storefront account.
func (h *IdentityHandlers) SignUp(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.identity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("identity_unavailable", "identity service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req signUpRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIdentityBodyBytes)).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	profile, err := h.identity.SignUp(ctx, services.SignUpCommand{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Locale:      req.Locale,
	})
	if err != nil {
		writeIdentityError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, toProfileResponse(profile))
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

// PasswordReset generates a password reset link for the given address.
func (h *IdentityHandlers) PasswordReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.identity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("identity_unavailable", "identity service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req passwordResetRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIdentityBodyBytes)).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	link, err := h.identity.PasswordResetLink(ctx, req.Email)
	if err != nil {
		writeIdentityError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"resetLink": link})
}

// GetProfile serves the caller's stored profile.
func (h *IdentityHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.identity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("identity_unavailable", "identity service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || identity.UID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	profile, err := h.identity.GetProfile(ctx, identity.UID)
	if err != nil {
		writeIdentityError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toProfileResponse(profile))
}

type updateProfileRequest struct {
	DisplayName *string `json:"displayName"`
	Locale      *string `json:"locale"`
}

// UpdateProfile applies partial changes to the caller's profile.
func (h *IdentityHandlers) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.identity == nil {
		httpx.WriteError(ctx, w, httpx.NewError("identity_unavailable", "identity service is unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || identity.UID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIdentityBodyBytes)).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	profile, err := h.identity.UpdateProfile(ctx, services.UpdateProfileCommand{
		UID:         identity.UID,
		DisplayName: req.DisplayName,
		Locale:      req.Locale,
	})
	if err != nil {
		writeIdentityError(w, r, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, toProfileResponse(profile))
}
