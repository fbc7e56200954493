package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/platform/httpx"
	"github.com/templhub/api/internal/services"
)

const (
	contentCacheControl = "public, max-age=60"
	defaultSSEHeartbeat = 15 * time.Second
)

// ContentHandlers exposes the homepage section endpoints, including the SSE stream.
type ContentHandlers struct {
	content   services.ContentService
	heartbeat time.Duration
}

// ContentOption customises construction of ContentHandlers.
type ContentOption func(*ContentHandlers)

// WithContentService injects the content service dependency.
func WithContentService(svc services.ContentService) ContentOption {
	return func(h *ContentHandlers) {
		h.content = svc
	}
}

// WithStreamHeartbeat overrides the SSE keep-alive interval.
func WithStreamHeartbeat(interval time.Duration) ContentOption {
	return func(h *ContentHandlers) {
		if interval > 0 {
			h.heartbeat = interval
		}
	}
}

// NewContentHandlers constructs handlers for the homepage content endpoints.
func NewContentHandlers(opts ...ContentOption) *ContentHandlers {
	h := &ContentHandlers{heartbeat: defaultSSEHeartbeat}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// RegisterRoutes mounts the content endpoints on the public group.
func (h *ContentHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/homepage", h.ListSections)
	r.Get("/homepage/{sectionID}", h.GetSection)
	r.Get("/homepage/{sectionID}/stream", h.StreamSection)
}

// ListSections serves the active homepage sections in display order.
func (h *ContentHandlers) ListSections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}

	sections, err := h.content.ListSections(ctx)
	if err != nil {
		writeRepositoryError(ctx, w, err, "homepage")
		return
	}

	payload := make([]sectionResponse, 0, len(sections))
	for _, section := range sections {
		payload = append(payload, toSectionResponse(section))
	}
	w.Header().Set("Cache-Control", contentCacheControl)
	writeJSONResponse(w, http.StatusOK, map[string]any{"sections": payload})
}

// GetSection serves one homepage section document.
func (h *ContentHandlers) GetSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}

	id, err := domain.ParseSectionID(chi.URLParam(r, "sectionID"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_section", err.Error(), http.StatusBadRequest))
		return
	}

	section, err := h.content.GetSection(ctx, id)
	if err != nil {
		writeRepositoryError(ctx, w, err, "section")
		return
	}
	w.Header().Set("Cache-Control", contentCacheControl)
	writeJSONResponse(w, http.StatusOK, toSectionResponse(section))
}

// StreamSection pushes live section updates over server-sent events. A deleted
// document emits a clear event and ends the stream.
func (h *ContentHandlers) StreamSection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.content == nil {
		httpx.WriteError(ctx, w, httpx.NewError("content_unavailable", "content service is unavailable", http.StatusServiceUnavailable))
		return
	}

	id, err := domain.ParseSectionID(chi.URLParam(r, "sectionID"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_section", err.Error(), http.StatusBadRequest))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("streaming_unsupported", "response writer does not support streaming", http.StatusInternalServerError))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	events, errs := h.content.WatchSection(ctx, id)
	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case err, open := <-errs:
			if !open || err == nil {
				continue
			}
			writeSSE(w, "error", map[string]any{"error": "stream_failed"})
			flusher.Flush()
			return
		case event, open := <-events:
			if !open {
				return
			}
			if !event.Exists {
				writeSSE(w, "clear", map[string]any{"id": string(id)})
				flusher.Flush()
				return
			}
			writeSSE(w, "section", toSectionResponse(event.Section))
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
