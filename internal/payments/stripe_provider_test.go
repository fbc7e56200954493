package payments

import (
	"context"
	"errors"
	"testing"

	stripe "github.com/stripe/stripe-go/v78"
)

type stubIntentsClient struct {
	newParams *stripe.PaymentIntentParams
	newResult *stripe.PaymentIntent
	newErr    error
	getID     string
	getResult *stripe.PaymentIntent
	getErr    error
}

func (s *stubIntentsClient) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.newParams = params
	return s.newResult, s.newErr
}

func (s *stubIntentsClient) Get(id string, _ *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	s.getID = id
	return s.getResult, s.getErr
}

func TestNewStripeProviderRequiresKey(t *testing.T) {
	if _, err := NewStripeProvider(StripeProviderConfig{}); err == nil {
		t.Fatal("expected error when api key missing")
	}
}

func TestCreateIntentMapsRequest(t *testing.T) {
	stub := &stubIntentsClient{
		newResult: &stripe.PaymentIntent{
			ID:           "pi_123",
			ClientSecret: "pi_123_secret",
			Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
			Amount:       2900,
			Currency:     "usd",
		},
	}
	provider, err := NewStripeProvider(StripeProviderConfig{Intents: stub})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	intent, err := provider.CreateIntent(context.Background(), CreateIntentRequest{
		Amount:         2900,
		Currency:       "USD",
		ReceiptEmail:   "buyer@example.com",
		Metadata:       map[string]string{"userId": "user-1"},
		IdempotencyKey: "checkout-user-1",
	})
	if err != nil {
		t.Fatalf("CreateIntent returned error: %v", err)
	}

	if intent.ID != "pi_123" || intent.ClientSecret != "pi_123_secret" {
		t.Fatalf("unexpected intent %#v", intent)
	}
	if intent.Status != StatusPending {
		t.Fatalf("expected pending status, got %q", intent.Status)
	}
	if intent.Currency != "USD" {
		t.Fatalf("expected upper-cased currency, got %q", intent.Currency)
	}

	params := stub.newParams
	if params == nil {
		t.Fatal("expected params to be captured")
	}
	if got := stripe.Int64Value(params.Amount); got != 2900 {
		t.Fatalf("expected amount 2900, got %d", got)
	}
	if got := stripe.StringValue(params.Currency); got != "usd" {
		t.Fatalf("expected lower-cased currency, got %q", got)
	}
	if params.Metadata["userId"] != "user-1" {
		t.Fatalf("expected metadata to carry user id, got %#v", params.Metadata)
	}
}

func TestCreateIntentValidatesInput(t *testing.T) {
	provider, err := NewStripeProvider(StripeProviderConfig{Intents: &stubIntentsClient{}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := provider.CreateIntent(context.Background(), CreateIntentRequest{Amount: 0, Currency: "usd"}); err == nil {
		t.Fatal("expected error for non-positive amount")
	}
	if _, err := provider.CreateIntent(context.Background(), CreateIntentRequest{Amount: 100}); err == nil {
		t.Fatal("expected error for missing currency")
	}
}

func TestGetIntentWrapsErrors(t *testing.T) {
	sentinel := errors.New("no such intent")
	provider, err := NewStripeProvider(StripeProviderConfig{Intents: &stubIntentsClient{getErr: sentinel}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := provider.GetIntent(context.Background(), "pi_missing"); !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
}

func TestStatusMapping(t *testing.T) {
	cases := map[stripe.PaymentIntentStatus]Status{
		stripe.PaymentIntentStatusSucceeded:             StatusSucceeded,
		stripe.PaymentIntentStatusCanceled:              StatusCanceled,
		stripe.PaymentIntentStatusProcessing:            StatusPending,
		stripe.PaymentIntentStatusRequiresAction:        StatusPending,
		stripe.PaymentIntentStatusRequiresPaymentMethod: StatusPending,
	}
	for input, want := range cases {
		if got := fromStripeStatus(input); got != want {
			t.Fatalf("status %q mapped to %q, want %q", input, got, want)
		}
	}
}
