package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domain "github.com/templhub/api/internal/domain"
)

type stubOrderRepository struct {
	createErrs []error
	created    []domain.Order
	getResult  domain.Order
	getErr     error
	listOrders []domain.Order
	listToken  string
	listEmail  string
}

func (s *stubOrderRepository) Create(_ context.Context, order domain.Order) error {
	s.created = append(s.created, order)
	if len(s.createErrs) == 0 {
		return nil
	}
	err := s.createErrs[0]
	s.createErrs = s.createErrs[1:]
	return err
}

func (s *stubOrderRepository) Get(_ context.Context, _, _ string) (domain.Order, error) {
	return s.getResult, s.getErr
}

func (s *stubOrderRepository) ListByEmail(_ context.Context, email string, _ domain.Pagination) ([]domain.Order, string, error) {
	s.listEmail = email
	return s.listOrders, s.listToken, nil
}

type classifiedError struct {
	msg         string
	conflict    bool
	unavailable bool
}

func (e *classifiedError) Error() string       { return e.msg }
func (e *classifiedError) IsNotFound() bool    { return false }
func (e *classifiedError) IsConflict() bool    { return e.conflict }
func (e *classifiedError) IsUnavailable() bool { return e.unavailable }

type stubOrderPublisher struct {
	messages []OrderRecordedMessage
	err      error
}

func (s *stubOrderPublisher) PublishOrderRecorded(_ context.Context, message OrderRecordedMessage) (string, error) {
	s.messages = append(s.messages, message)
	return "msg-1", s.err
}

func orderServiceForTest(t *testing.T, repo *stubOrderRepository, publisher OrderEventPublisher) OrderService {
	t.Helper()
	counter := 0
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:    repo,
		Publisher: publisher,
		Clock: func() time.Time {
			return time.Date(2026, time.May, 20, 8, 30, 0, 0, time.UTC)
		},
		Suffix: func(length int) string {
			counter++
			return strings.Repeat(fmt.Sprintf("%d", counter%10), length)
		},
		Sleep: func(_ context.Context, _ time.Duration) error { return nil },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func validRecordCommand() RecordOrderCommand {
	return RecordOrderCommand{
		UserID: "user-1",
		Email:  "Buyer@Example.com",
		Items: []OrderItem{
			{ProductID: "tpl-1", Kind: domain.ProductKindWebsite, Title: "Portfolio", Price: 29, Quantity: 1},
		},
		Totals:  OrderTotals{Subtotal: 29, Total: 29, Currency: "USD"},
		Payment: PaymentReference{Provider: "stripe", IntentID: "pi_123", Status: "succeeded"},
	}
}

func TestRecordOrderGeneratesNumberAndPublishes(t *testing.T) {
	repo := &stubOrderRepository{}
	publisher := &stubOrderPublisher{}
	svc := orderServiceForTest(t, repo, publisher)

	order, err := svc.RecordOrder(context.Background(), validRecordCommand())
	if err != nil {
		t.Fatalf("RecordOrder returned error: %v", err)
	}

	if !strings.HasPrefix(order.OrderNumber, "ORD-20260520-") {
		t.Fatalf("unexpected order number %q", order.OrderNumber)
	}
	if len(order.OrderNumber) != len("ORD-20260520-")+orderNumberSuffixLength {
		t.Fatalf("unexpected order number length %q", order.OrderNumber)
	}
	if order.Email != "buyer@example.com" {
		t.Fatalf("expected normalised email, got %q", order.Email)
	}
	if order.Status != domain.OrderStatusPaid {
		t.Fatalf("expected defaulted status paid, got %q", order.Status)
	}

	if len(publisher.messages) != 1 {
		t.Fatalf("expected 1 published event, got %d", len(publisher.messages))
	}
	message := publisher.messages[0]
	if message.OrderNumber != order.OrderNumber || message.Total != 29 || message.ItemCount != 1 {
		t.Fatalf("unexpected event payload %#v", message)
	}
}

func TestRecordOrderRetriesTransientFailures(t *testing.T) {
	repo := &stubOrderRepository{
		createErrs: []error{
			&classifiedError{msg: "unavailable", unavailable: true},
			&classifiedError{msg: "unavailable", unavailable: true},
		},
	}
	svc := orderServiceForTest(t, repo, nil)

	if _, err := svc.RecordOrder(context.Background(), validRecordCommand()); err != nil {
		t.Fatalf("RecordOrder returned error: %v", err)
	}
	if len(repo.created) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(repo.created))
	}
}

func TestRecordOrderRegeneratesNumberOnConflict(t *testing.T) {
	repo := &stubOrderRepository{
		createErrs: []error{&classifiedError{msg: "exists", conflict: true}},
	}
	svc := orderServiceForTest(t, repo, nil)

	if _, err := svc.RecordOrder(context.Background(), validRecordCommand()); err != nil {
		t.Fatalf("RecordOrder returned error: %v", err)
	}
	if len(repo.created) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(repo.created))
	}
	if repo.created[0].OrderNumber == repo.created[1].OrderNumber {
		t.Fatalf("expected a fresh order number after conflict, got %q twice", repo.created[0].OrderNumber)
	}
}

func TestRecordOrderFailsAfterExhaustingRetries(t *testing.T) {
	repo := &stubOrderRepository{
		createErrs: []error{
			&classifiedError{msg: "unavailable", unavailable: true},
			&classifiedError{msg: "unavailable", unavailable: true},
			&classifiedError{msg: "unavailable", unavailable: true},
		},
	}
	svc := orderServiceForTest(t, repo, nil)

	_, err := svc.RecordOrder(context.Background(), validRecordCommand())
	if !errors.Is(err, ErrOrderRecordingFailed) {
		t.Fatalf("expected ErrOrderRecordingFailed, got %v", err)
	}
	if len(repo.created) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(repo.created))
	}
}

func TestRecordOrderDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("schema rejected")
	repo := &stubOrderRepository{createErrs: []error{permanent}}
	svc := orderServiceForTest(t, repo, nil)

	_, err := svc.RecordOrder(context.Background(), validRecordCommand())
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error passthrough, got %v", err)
	}
	if len(repo.created) != 1 {
		t.Fatalf("expected a single attempt, got %d", len(repo.created))
	}
}

func TestRecordOrderValidatesInput(t *testing.T) {
	svc := orderServiceForTest(t, &stubOrderRepository{}, nil)
	ctx := context.Background()

	cmd := validRecordCommand()
	cmd.Email = " "
	if _, err := svc.RecordOrder(ctx, cmd); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput for missing email, got %v", err)
	}

	cmd = validRecordCommand()
	cmd.Items = nil
	if _, err := svc.RecordOrder(ctx, cmd); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput for empty items, got %v", err)
	}

	cmd = validRecordCommand()
	cmd.Status = "shipped"
	if _, err := svc.RecordOrder(ctx, cmd); !errors.Is(err, ErrOrderInvalidInput) {
		t.Fatalf("expected ErrOrderInvalidInput for unknown status, got %v", err)
	}
}

func TestRecordOrderSucceedsWhenPublishFails(t *testing.T) {
	repo := &stubOrderRepository{}
	publisher := &stubOrderPublisher{err: errors.New("topic gone")}
	svc := orderServiceForTest(t, repo, publisher)

	if _, err := svc.RecordOrder(context.Background(), validRecordCommand()); err != nil {
		t.Fatalf("expected success despite publish failure, got %v", err)
	}
}

func TestListOrdersNormalisesEmail(t *testing.T) {
	repo := &stubOrderRepository{listOrders: []domain.Order{{OrderNumber: "ORD-1"}}, listToken: "next"}
	svc := orderServiceForTest(t, repo, nil)

	orders, token, err := svc.ListOrders(context.Background(), " Buyer@Example.COM ", Pagination{PageSize: 10})
	if err != nil {
		t.Fatalf("ListOrders returned error: %v", err)
	}
	if repo.listEmail != "buyer@example.com" {
		t.Fatalf("expected normalised email, got %q", repo.listEmail)
	}
	if len(orders) != 1 || token != "next" {
		t.Fatalf("unexpected result %d orders, token %q", len(orders), token)
	}
}
