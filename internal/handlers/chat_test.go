package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/templhub/api/internal/services"
)

type stubChatService struct {
	reply services.ChatReply
	err   error
	last  services.ChatMessage
}

func (s *stubChatService) Send(_ context.Context, message services.ChatMessage) (services.ChatReply, error) {
	s.last = message
	return s.reply, s.err
}

func chatTestRouter(svc services.ChatService) chi.Router {
	r := chi.NewRouter()
	NewChatHandlers(WithChatService(svc)).RegisterRoutes(r)
	return r
}

func TestChatSendRelaysMessage(t *testing.T) {
	svc := &stubChatService{reply: services.ChatReply{
		Message:   "Happy to help!",
		Timestamp: time.Date(2026, 5, 20, 10, 0, 0, 0, time.UTC),
	}}
	router := chatTestRouter(svc)

	body := strings.NewReader(`{"message":"Where is my order?","userId":"user-1","source":"storefront"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", body))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.last.Message != "Where is my order?" || svc.last.UserID != "user-1" {
		t.Fatalf("unexpected relayed message %+v", svc.last)
	}

	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["message"] != "Happy to help!" {
		t.Fatalf("unexpected reply %v", payload["message"])
	}
	if payload["fallback"] != false {
		t.Fatalf("expected fallback false, got %v", payload["fallback"])
	}
}

func TestChatSendSurfacesFallbackFlag(t *testing.T) {
	svc := &stubChatService{reply: services.ChatReply{Message: "apology", Fallback: true, Timestamp: time.Now()}}
	router := chatTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload["fallback"] != true {
		t.Fatalf("expected fallback true, got %v", payload["fallback"])
	}
}

func TestChatSendRejectsEmptyMessage(t *testing.T) {
	svc := &stubChatService{err: services.ErrChatInvalidInput}
	router := chatTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":""}`)))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestChatSendMapsRelayFailure(t *testing.T) {
	svc := &stubChatService{err: errors.New("webhook exploded")}
	router := chatTestRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`)))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}
