package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/payments"
)

var (
	// ErrCheckoutDependenciesMissing indicates a required collaborator is absent.
	ErrCheckoutDependenciesMissing = errors.New("checkout service: dependencies are not configured")
	// ErrCheckoutInvalidInput indicates the caller supplied invalid checkout data.
	ErrCheckoutInvalidInput = errors.New("checkout service: invalid input")
	// ErrCheckoutEmptyCart indicates there is nothing to pay for.
	ErrCheckoutEmptyCart = errors.New("checkout service: cart is empty")
)

// checkoutCartStore is the slice of the commerce service checkout needs.
type checkoutCartStore interface {
	GetCart(ctx context.Context, userID string) ([]CartItem, error)
	ClearCart(ctx context.Context, userID string) error
}

// checkoutOrderRecorder is the slice of the order service checkout needs.
type checkoutOrderRecorder interface {
	RecordOrder(ctx context.Context, cmd RecordOrderCommand) (Order, error)
}

// CheckoutServiceDeps bundles constructor inputs for the checkout service.
type CheckoutServiceDeps struct {
	Cart     checkoutCartStore
	Orders   checkoutOrderRecorder
	Payments payments.Provider
	Logger   *zap.Logger
	Currency string
	Clock    func() time.Time
}

type checkoutService struct {
	cart     checkoutCartStore
	orders   checkoutOrderRecorder
	payments payments.Provider
	logger   *zap.Logger
	currency string
	clock    func() time.Time
}

// NewCheckoutService constructs the checkout service.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Cart == nil || deps.Orders == nil || deps.Payments == nil {
		return nil, ErrCheckoutDependenciesMissing
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "USD"
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &checkoutService{
		cart:     deps.Cart,
		orders:   deps.Orders,
		payments: deps.Payments,
		logger:   logger,
		currency: currency,
		clock:    func() time.Time { return clock().UTC() },
	}, nil
}

// CreateIntent opens a payment intent for the user's current cart total. The
// buyer identity and shipping address ride in intent metadata so the webhook
// can finish the order without server-side checkout state.
func (s *checkoutService) CreateIntent(ctx context.Context, cmd CreateCheckoutCommand) (CheckoutIntent, error) {
	userID := strings.TrimSpace(cmd.UserID)
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if userID == "" || email == "" {
		return CheckoutIntent{}, fmt.Errorf("%w: user id and email are required", ErrCheckoutInvalidInput)
	}

	items, err := s.cart.GetCart(ctx, userID)
	if err != nil {
		return CheckoutIntent{}, err
	}
	amount := cartAmount(items)
	if amount <= 0 {
		return CheckoutIntent{}, ErrCheckoutEmptyCart
	}

	metadata := map[string]string{
		"userId": userID,
		"email":  email,
	}
	stampAddressMetadata(metadata, cmd.Address)

	intent, err := s.payments.CreateIntent(ctx, payments.CreateIntentRequest{
		Amount:         amount,
		Currency:       s.currency,
		ReceiptEmail:   email,
		Description:    fmt.Sprintf("Template order (%d items)", len(items)),
		Metadata:       metadata,
		IdempotencyKey: fmt.Sprintf("checkout-%s-%d", userID, amount),
	})
	if err != nil {
		return CheckoutIntent{}, err
	}

	return CheckoutIntent{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		Status:       string(intent.Status),
	}, nil
}

// HandlePaymentSucceeded records the order for a confirmed payment and clears
// the buyer's cart. A cart-clear failure is logged but does not fail the
// order, which is already durable.
func (s *checkoutService) HandlePaymentSucceeded(ctx context.Context, event PaymentSucceededEvent) (Order, error) {
	userID := strings.TrimSpace(event.UserID)
	email := strings.ToLower(strings.TrimSpace(event.Email))
	if userID == "" || email == "" || strings.TrimSpace(event.IntentID) == "" {
		return Order{}, fmt.Errorf("%w: intent id, user id, and email are required", ErrCheckoutInvalidInput)
	}

	items, err := s.cart.GetCart(ctx, userID)
	if err != nil {
		return Order{}, err
	}
	if len(items) == 0 {
		return Order{}, ErrCheckoutEmptyCart
	}

	orderItems := make([]OrderItem, 0, len(items))
	subtotal := 0.0
	for _, item := range items {
		orderItems = append(orderItems, OrderItem{
			ProductID: item.ProductID,
			Kind:      item.Kind,
			Title:     item.Title,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
		subtotal += item.Price * float64(item.Quantity)
	}
	subtotal = roundCents(subtotal)

	total := subtotal
	currency := s.currency
	if event.Amount > 0 {
		total = float64(event.Amount) / 100
	}
	if c := strings.ToUpper(strings.TrimSpace(event.Currency)); c != "" {
		currency = c
	}

	order, err := s.orders.RecordOrder(ctx, RecordOrderCommand{
		UserID: userID,
		Email:  email,
		Items:  orderItems,
		Totals: OrderTotals{
			Subtotal: subtotal,
			Total:    total,
			Currency: currency,
		},
		Address: event.Address,
		Payment: PaymentReference{
			Provider: "stripe",
			IntentID: event.IntentID,
			Status:   string(payments.StatusSucceeded),
		},
		Status: domain.OrderStatusPaid,
	})
	if err != nil {
		return Order{}, err
	}

	if err := s.cart.ClearCart(ctx, userID); err != nil {
		s.logger.Warn("cart clear after payment failed",
			zap.String("user_id", userID),
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
	}
	return order, nil
}

// stampAddressMetadata writes the checkout address into the intent metadata
// so it survives the round trip through the payment provider. Empty fields
// are skipped to stay within provider metadata limits.
func stampAddressMetadata(meta map[string]string, addr OrderAddress) {
	set := func(key, value string) {
		if v := strings.TrimSpace(value); v != "" {
			meta[key] = v
		}
	}
	set("addressName", addr.Name)
	set("addressEmail", addr.Email)
	set("addressPhone", addr.Phone)
	set("addressLine1", addr.Line1)
	set("addressLine2", addr.Line2)
	set("addressCity", addr.City)
	set("addressState", addr.State)
	set("addressPostalCode", addr.PostalCode)
	set("addressCountry", addr.Country)
}

// AddressFromIntentMetadata rebuilds the address stamped by CreateIntent from
// the intent metadata echoed back in the provider webhook.
func AddressFromIntentMetadata(meta map[string]string) OrderAddress {
	return OrderAddress{
		Name:       meta["addressName"],
		Email:      meta["addressEmail"],
		Phone:      meta["addressPhone"],
		Line1:      meta["addressLine1"],
		Line2:      meta["addressLine2"],
		City:       meta["addressCity"],
		State:      meta["addressState"],
		PostalCode: meta["addressPostalCode"],
		Country:    meta["addressCountry"],
	}
}

// cartAmount totals the cart in the currency's smallest unit.
func cartAmount(items []CartItem) int64 {
	total := 0.0
	for _, item := range items {
		total += item.Price * float64(item.Quantity)
	}
	return int64(math.Round(total * 100))
}

func roundCents(value float64) float64 {
	return math.Round(value*100) / 100
}
