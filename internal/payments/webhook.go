package payments

import (
	"errors"
	"strings"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
)

// WebhookVerifier authenticates and parses Stripe webhook deliveries.
type WebhookVerifier struct {
	secret string
}

// NewWebhookVerifier constructs a verifier for the endpoint signing secret.
func NewWebhookVerifier(secret string) (*WebhookVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("webhook verifier: signing secret is required")
	}
	return &WebhookVerifier{secret: secret}, nil
}

// Parse verifies the Stripe-Signature header against the payload and returns
// the decoded event. Invalid signatures fail.
func (v *WebhookVerifier) Parse(payload []byte, signature string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, signature, v.secret)
}
