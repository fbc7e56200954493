package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
)

const (
	defaultChatTimeout = 15 * time.Second
	maxChatMessageLen  = 2000
	maxChatResponseLen = 1 << 20

	// chatFallbackReply is returned whenever the webhook fails or answers in a
	// shape we cannot interpret.
	chatFallbackReply = "Sorry, I'm having trouble responding right now. Please try again in a moment."
)

var (
	// ErrChatNotConfigured indicates no webhook URL was provided.
	ErrChatNotConfigured = errors.New("chat service: webhook is not configured")
	// ErrChatInvalidInput indicates the inbound message is empty or too long.
	ErrChatInvalidInput = errors.New("chat service: invalid input")
)

// ChatServiceDeps bundles constructor inputs for the chat relay.
type ChatServiceDeps struct {
	WebhookURL string
	AuthToken  string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zap.Logger
	Clock      func() time.Time
}

type chatService struct {
	webhookURL string
	authToken  string
	client     *http.Client
	logger     *zap.Logger
	clock      func() time.Time
	sanitizer  *bluemonday.Policy
}

// NewChatService constructs the support-chat relay.
func NewChatService(deps ChatServiceDeps) (ChatService, error) {
	url := strings.TrimSpace(deps.WebhookURL)
	if url == "" {
		return nil, ErrChatNotConfigured
	}
	client := deps.HTTPClient
	if client == nil {
		timeout := deps.Timeout
		if timeout <= 0 {
			timeout = defaultChatTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &chatService{
		webhookURL: url,
		authToken:  strings.TrimSpace(deps.AuthToken),
		client:     client,
		logger:     logger,
		clock:      func() time.Time { return clock().UTC() },
		sanitizer:  bluemonday.StrictPolicy(),
	}, nil
}

// Send relays the message to the webhook and normalises whatever comes back.
// Failures degrade to a canned apology instead of an error so the storefront
// widget always has something to show.
func (s *chatService) Send(ctx context.Context, message ChatMessage) (ChatReply, error) {
	text := strings.TrimSpace(message.Message)
	if text == "" {
		return ChatReply{}, fmt.Errorf("%w: message is required", ErrChatInvalidInput)
	}
	if len(text) > maxChatMessageLen {
		return ChatReply{}, fmt.Errorf("%w: message exceeds %d characters", ErrChatInvalidInput, maxChatMessageLen)
	}

	now := s.clock()
	payload, err := json.Marshal(map[string]any{
		"message":   text,
		"userId":    strings.TrimSpace(message.UserID),
		"source":    strings.TrimSpace(message.Source),
		"timestamp": now.Format(time.RFC3339),
	})
	if err != nil {
		return ChatReply{}, fmt.Errorf("chat service: encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return ChatReply{}, fmt.Errorf("chat service: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+s.authToken)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("chat webhook unreachable", zap.Error(err))
		return s.fallback(now), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxChatResponseLen))
	if err != nil || resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Warn("chat webhook failed",
			zap.Int("status", resp.StatusCode),
			zap.Error(err))
		return s.fallback(now), nil
	}

	reply := extractChatReply(body)
	if reply == "" {
		s.logger.Warn("chat webhook returned unrecognised payload",
			zap.Int("bytes", len(body)))
		return s.fallback(now), nil
	}
	return ChatReply{
		Message:   s.sanitizer.Sanitize(reply),
		Timestamp: now,
	}, nil
}

func (s *chatService) fallback(now time.Time) ChatReply {
	return ChatReply{Message: chatFallbackReply, Fallback: true, Timestamp: now}
}

// extractChatReply pulls the assistant text out of the webhook response.
// Accepted shapes: an object carrying output/message/response/reply, an array
// whose first element is such an object, or a bare string body.
func extractChatReply(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	switch trimmed[0] {
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return ""
		}
		return replyFromObject(obj)
	case '[':
		var list []json.RawMessage
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return ""
		}
		for _, element := range list {
			if reply := extractChatReply(element); reply != "" {
				return reply
			}
		}
		return ""
	case '"':
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return ""
		}
		return strings.TrimSpace(text)
	default:
		return strings.TrimSpace(string(trimmed))
	}
}

func replyFromObject(obj map[string]json.RawMessage) string {
	for _, key := range []string{"output", "message", "response", "reply"} {
		raw, ok := obj[key]
		if !ok {
			continue
		}
		var text string
		if err := json.Unmarshal(raw, &text); err == nil {
			if text = strings.TrimSpace(text); text != "" {
				return text
			}
			continue
		}
		// Nested objects occasionally wrap the text one level deeper.
		if reply := extractChatReply(raw); reply != "" {
			return reply
		}
	}
	return ""
}
