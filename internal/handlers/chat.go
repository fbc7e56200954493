package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/platform/httpx"
	"github.com/templhub/api/internal/services"
)

const maxChatBodyBytes = 16 << 10

// ChatHandlers exposes the support-chat relay endpoint.
type ChatHandlers struct {
	chat services.ChatService
}

// ChatOption customises construction of ChatHandlers.
type ChatOption func(*ChatHandlers)

// WithChatService injects the chat relay dependency.
func WithChatService(svc services.ChatService) ChatOption {
	return func(h *ChatHandlers) {
		h.chat = svc
	}
}

// NewChatHandlers constructs the chat endpoint handlers.
func NewChatHandlers(opts ...ChatOption) *ChatHandlers {
	h := &ChatHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RegisterRoutes mounts the chat endpoint on the public group.
func (h *ChatHandlers) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.Send)
}

type chatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
	Source  string `json:"source"`
}

// Send relays one message to the assistant webhook.
func (h *ChatHandlers) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.chat == nil {
		httpx.WriteError(ctx, w, httpx.NewError("chat_unavailable", "chat service is unavailable", http.StatusServiceUnavailable))
		return
	}

	var req chatRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	reply, err := h.chat.Send(ctx, domain.ChatMessage{
		Message: req.Message,
		UserID:  req.UserID,
		Source:  req.Source,
	})
	if err != nil {
		if errors.Is(err, services.ErrChatInvalidInput) {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
			return
		}
		httpx.WriteError(ctx, w, httpx.NewError("chat_error", "chat relay failed", http.StatusBadGateway))
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]any{
		"message":   reply.Message,
		"fallback":  reply.Fallback,
		"timestamp": reply.Timestamp.UTC().Format(time.RFC3339),
	})
}
