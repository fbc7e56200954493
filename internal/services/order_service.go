package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/repositories"
)

const orderNumberSuffixLength = 6

// orderNumberAlphabet avoids lowercase so numbers survive case-folding inputs.
const orderNumberAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	// ErrOrderRepositoryMissing indicates the repository dependency is absent.
	ErrOrderRepositoryMissing = errors.New("order service: repository is not configured")
	// ErrOrderInvalidInput indicates the caller supplied invalid order data.
	ErrOrderInvalidInput = errors.New("order service: invalid input")
	// ErrOrderRecordingFailed indicates the record could not be written after
	// exhausting retries. Callers surface a contact-support message because the
	// payment may already have been captured.
	ErrOrderRecordingFailed = errors.New("order service: order could not be recorded, contact support with your payment reference")
)

// OrderRetryPolicy controls how order writes back off on transient failures.
type OrderRetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
}

// DefaultOrderRetryPolicy mirrors the storefront's recording behaviour:
// three attempts with a doubling, jittered one-second backoff.
func DefaultOrderRetryPolicy() OrderRetryPolicy {
	return OrderRetryPolicy{
		MaxAttempts: 3,
		Initial:     time.Second,
		Max:         8 * time.Second,
		Multiplier:  2,
	}
}

func (p OrderRetryPolicy) normalized() OrderRetryPolicy {
	defaults := DefaultOrderRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaults.MaxAttempts
	}
	if p.Initial <= 0 {
		p.Initial = defaults.Initial
	}
	if p.Max <= 0 {
		p.Max = defaults.Max
	}
	if p.Multiplier < 1 {
		p.Multiplier = defaults.Multiplier
	}
	return p
}

// OrderServiceDeps bundles constructor inputs for the order service.
type OrderServiceDeps struct {
	Orders    repositories.OrderRepository
	Publisher OrderEventPublisher
	Logger    *zap.Logger
	Retry     OrderRetryPolicy
	Clock     func() time.Time
	Suffix    func(length int) string
	Sleep     func(ctx context.Context, d time.Duration) error
}

type orderService struct {
	repo      repositories.OrderRepository
	publisher OrderEventPublisher
	logger    *zap.Logger
	retry     OrderRetryPolicy
	clock     func() time.Time
	suffix    func(length int) string
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewOrderService constructs the order recording service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, ErrOrderRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	suffix := deps.Suffix
	if suffix == nil {
		suffix = randomOrderSuffix
	}
	sleep := deps.Sleep
	if sleep == nil {
		sleep = gax.Sleep
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &orderService{
		repo:      deps.Orders,
		publisher: deps.Publisher,
		logger:    logger,
		retry:     deps.Retry.normalized(),
		clock:     func() time.Time { return clock().UTC() },
		suffix:    suffix,
		sleep:     sleep,
	}, nil
}

// RecordOrder writes the order document exactly once under a generated order
// number. Transient failures are retried with backoff; an order-number
// collision regenerates the number and tries again.
func (s *orderService) RecordOrder(ctx context.Context, cmd RecordOrderCommand) (Order, error) {
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if email == "" {
		return Order{}, fmt.Errorf("%w: email is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return Order{}, fmt.Errorf("%w: order has no items", ErrOrderInvalidInput)
	}
	status := cmd.Status
	if status == "" {
		status = domain.OrderStatusPaid
	}
	if !status.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}

	now := s.clock()
	order := Order{
		UserID:    strings.TrimSpace(cmd.UserID),
		Email:     email,
		Status:    status,
		Items:     cmd.Items,
		Totals:    cmd.Totals,
		Address:   cmd.Address,
		Payment:   cmd.Payment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if order.Totals.Currency == "" {
		order.Totals.Currency = "USD"
	}

	backoff := gax.Backoff{
		Initial:    s.retry.Initial,
		Max:        s.retry.Max,
		Multiplier: s.retry.Multiplier,
	}

	var lastErr error
	for attempt := 1; attempt <= s.retry.MaxAttempts; attempt++ {
		order.OrderNumber = s.generateOrderNumber(now)

		err := s.repo.Create(ctx, order)
		if err == nil {
			s.publishRecorded(ctx, order)
			return order, nil
		}
		lastErr = err

		switch {
		case isRepositoryConflict(err):
			// Collision on the generated number; retry immediately with a new one.
			s.logger.Warn("order number collision",
				zap.String("order_number", order.OrderNumber),
				zap.Int("attempt", attempt))
			continue
		case isRepositoryTransient(err):
			if attempt == s.retry.MaxAttempts {
				break
			}
			s.logger.Warn("order write failed, backing off",
				zap.String("order_number", order.OrderNumber),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if sleepErr := s.sleep(ctx, backoff.Pause()); sleepErr != nil {
				return Order{}, sleepErr
			}
		default:
			return Order{}, err
		}
	}

	s.logger.Error("order recording exhausted retries",
		zap.String("email", order.Email),
		zap.Error(lastErr))
	return Order{}, fmt.Errorf("%w: %v", ErrOrderRecordingFailed, lastErr)
}

func (s *orderService) GetOrder(ctx context.Context, email, orderNumber string) (Order, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	orderNumber = strings.TrimSpace(orderNumber)
	if email == "" || orderNumber == "" {
		return Order{}, fmt.Errorf("%w: email and order number are required", ErrOrderInvalidInput)
	}
	return s.repo.Get(ctx, email, orderNumber)
}

func (s *orderService) ListOrders(ctx context.Context, email string, pager Pagination) ([]Order, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, "", fmt.Errorf("%w: email is required", ErrOrderInvalidInput)
	}
	return s.repo.ListByEmail(ctx, email, pager)
}

// publishRecorded emits the order.recorded event. Publish failures are logged
// and swallowed; the order record is already durable.
func (s *orderService) publishRecorded(ctx context.Context, order Order) {
	if s.publisher == nil {
		return
	}
	id, err := s.publisher.PublishOrderRecorded(ctx, OrderRecordedMessage{
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Email:       order.Email,
		Total:       order.Totals.Total,
		Currency:    order.Totals.Currency,
		ItemCount:   len(order.Items),
		RecordedAt:  order.CreatedAt,
	})
	if err != nil {
		s.logger.Warn("order event publish failed",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
		return
	}
	s.logger.Info("order recorded",
		zap.String("order_number", order.OrderNumber),
		zap.String("event_id", id))
}

func (s *orderService) generateOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), s.suffix(orderNumberSuffixLength))
}

func randomOrderSuffix(length int) string {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	for i, b := range buf {
		buf[i] = orderNumberAlphabet[int(b)%len(orderNumberAlphabet)]
	}
	return string(buf)
}
