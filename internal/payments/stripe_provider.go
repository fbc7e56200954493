package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	stripe "github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/paymentintent"
	"go.uber.org/zap"
)

// stripeIntentsClient is the subset of the Stripe SDK the provider calls,
// extracted so tests can substitute a stub.
type stripeIntentsClient interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeProviderConfig carries construction inputs for the Stripe provider.
type StripeProviderConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   *zap.Logger
	// Intents overrides the SDK client, used by tests.
	Intents stripeIntentsClient
}

// StripeProvider implements Provider on the Stripe PaymentIntents API.
type StripeProvider struct {
	intents stripeIntentsClient
	logger  *zap.Logger
}

// NewStripeProvider constructs a Stripe-backed payment provider.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	intents := cfg.Intents
	if intents == nil {
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("stripe provider: api key is required")
		}
		backends := cfg.Backends
		if backends == nil {
			backends = stripe.NewBackends(nil)
		}
		intents = &paymentintent.Client{B: backends.API, Key: cfg.APIKey}
	}

	return &StripeProvider{intents: intents, logger: logger}, nil
}

// CreateIntent opens a PaymentIntent for the requested amount.
func (p *StripeProvider) CreateIntent(ctx context.Context, req CreateIntentRequest) (Intent, error) {
	if req.Amount <= 0 {
		return Intent{}, errors.New("stripe provider: amount must be positive")
	}
	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		return Intent{}, errors.New("stripe provider: currency is required")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if email := strings.TrimSpace(req.ReceiptEmail); email != "" {
		params.ReceiptEmail = stripe.String(email)
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		params.Description = stripe.String(desc)
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}

	intent, err := p.intents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe provider: create intent: %w", err)
	}

	p.logger.Info("payment intent created",
		zap.String("intent_id", intent.ID),
		zap.Int64("amount", intent.Amount),
		zap.String("currency", string(intent.Currency)))
	return fromStripeIntent(intent), nil
}

// GetIntent fetches the current state of a PaymentIntent.
func (p *StripeProvider) GetIntent(ctx context.Context, id string) (Intent, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Intent{}, errors.New("stripe provider: intent id is required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := p.intents.Get(id, params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe provider: get intent: %w", err)
	}
	return fromStripeIntent(intent), nil
}

func fromStripeIntent(intent *stripe.PaymentIntent) Intent {
	return Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       fromStripeStatus(intent.Status),
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		Metadata:     intent.Metadata,
	}
}

func fromStripeStatus(status stripe.PaymentIntentStatus) Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		return StatusCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod,
		stripe.PaymentIntentStatusRequiresConfirmation,
		stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresCapture,
		stripe.PaymentIntentStatusProcessing:
		return StatusPending
	default:
		return StatusFailed
	}
}
