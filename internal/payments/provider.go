// Package payments isolates the payment-provider integration behind a small
// intent-based interface so services never touch provider SDK types.
package payments

import "context"

// Status is the provider-agnostic payment intent state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// CreateIntentRequest starts a payment for a computed cart total.
type CreateIntentRequest struct {
	// Amount is the charge total in the currency's smallest unit.
	Amount         int64
	Currency       string
	ReceiptEmail   string
	Description    string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is the normalized view of a provider payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       Status
	Amount       int64
	Currency     string
	Metadata     map[string]string
}

// Provider creates and inspects payment intents.
type Provider interface {
	CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error)
	GetIntent(ctx context.Context, id string) (Intent, error)
}
