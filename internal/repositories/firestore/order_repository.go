package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/templhub/api/internal/domain"
	pfirestore "github.com/templhub/api/internal/platform/firestore"
	"github.com/templhub/api/internal/platform/pagination"
)

const (
	ordersRootCollection   = "orders"
	ordersHistorySegment   = "userOrders"
	defaultOrdersPageSize  = 20
	maxOrdersPageSize      = 100
	orderDocumentTimestamp = "createdAt"
)

type orderDocument struct {
	OrderNumber string              `firestore:"orderNumber"`
	UserID      string              `firestore:"userId"`
	Email       string              `firestore:"email"`
	Status      string              `firestore:"status"`
	Items       []orderItemDocument `firestore:"items"`
	Totals      orderTotalsDocument `firestore:"totals"`
	Address     orderAddressDoc     `firestore:"address"`
	Payment     orderPaymentDoc     `firestore:"payment"`
	CreatedAt   time.Time           `firestore:"createdAt"`
	UpdatedAt   time.Time           `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID string  `firestore:"productId"`
	Kind      string  `firestore:"kind"`
	Title     string  `firestore:"title"`
	Price     float64 `firestore:"price"`
	Quantity  int     `firestore:"quantity"`
	Image     string  `firestore:"image"`
}

type orderTotalsDocument struct {
	Subtotal float64 `firestore:"subtotal"`
	Discount float64 `firestore:"discount"`
	Tax      float64 `firestore:"tax"`
	Total    float64 `firestore:"total"`
	Currency string  `firestore:"currency"`
}

type orderAddressDoc struct {
	Name       string `firestore:"name"`
	Email      string `firestore:"email"`
	Phone      string `firestore:"phone"`
	Line1      string `firestore:"line1"`
	Line2      string `firestore:"line2"`
	City       string `firestore:"city"`
	State      string `firestore:"state"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type orderPaymentDoc struct {
	Provider string `firestore:"provider"`
	IntentID string `firestore:"intentId"`
	Status   string `firestore:"status"`
}

// OrderRepository persists immutable order records under orders/{email}/userOrders.
type OrderRepository struct {
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider}, nil
}

func (r *OrderRepository) base(email string) *pfirestore.BaseRepository[orderDocument] {
	path := fmt.Sprintf("%s/%s/%s", ordersRootCollection, strings.ToLower(strings.TrimSpace(email)), ordersHistorySegment)
	return pfirestore.NewBaseRepository[orderDocument](r.provider, path, nil, nil)
}

// Create writes the order exactly once, keyed by its order number. Writing an
// order number that already exists fails with conflict semantics.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) error {
	if strings.TrimSpace(order.OrderNumber) == "" {
		return errors.New("order repository: order number is required")
	}
	if strings.TrimSpace(order.Email) == "" {
		return errors.New("order repository: email is required")
	}
	_, err := r.base(order.Email).Create(ctx, order.OrderNumber, toOrderDocument(order))
	return err
}

// Get fetches a single order record.
func (r *OrderRepository) Get(ctx context.Context, email, orderNumber string) (domain.Order, error) {
	doc, err := r.base(email).Get(ctx, orderNumber)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(doc.Data), nil
}

// ListByEmail returns the buyer's orders newest first with cursor paging.
func (r *OrderRepository) ListByEmail(ctx context.Context, email string, pager domain.Pagination) ([]domain.Order, string, error) {
	pageSize := pager.PageSize
	if pageSize <= 0 {
		pageSize = defaultOrdersPageSize
	}
	if pageSize > maxOrdersPageSize {
		pageSize = maxOrdersPageSize
	}

	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return nil, "", err
	}
	startAfter, err := decodeOrderCursor(cursor)
	if err != nil {
		return nil, "", err
	}

	docs, err := r.base(email).Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.OrderBy(orderDocumentTimestamp, firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) > 0 {
			q = q.StartAfter(startAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return nil, "", err
	}

	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, toDomainOrder(doc.Data))
	}

	nextToken := ""
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		nextToken, err = pagination.EncodeToken(pagination.Cursor{StartAfter: []any{
			last.Data.CreatedAt.UTC().Format(time.RFC3339Nano),
			last.ID,
		}})
		if err != nil {
			return nil, "", err
		}
	}
	return orders, nextToken, nil
}

func toOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemDocument, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemDocument{
			ProductID: item.ProductID,
			Kind:      string(item.Kind),
			Title:     item.Title,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	return orderDocument{
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Email:       strings.ToLower(strings.TrimSpace(order.Email)),
		Status:      string(order.Status),
		Items:       items,
		Totals: orderTotalsDocument{
			Subtotal: order.Totals.Subtotal,
			Discount: order.Totals.Discount,
			Tax:      order.Totals.Tax,
			Total:    order.Totals.Total,
			Currency: order.Totals.Currency,
		},
		Address: orderAddressDoc{
			Name:       order.Address.Name,
			Email:      order.Address.Email,
			Phone:      order.Address.Phone,
			Line1:      order.Address.Line1,
			Line2:      order.Address.Line2,
			City:       order.Address.City,
			State:      order.Address.State,
			PostalCode: order.Address.PostalCode,
			Country:    order.Address.Country,
		},
		Payment: orderPaymentDoc{
			Provider: order.Payment.Provider,
			IntentID: order.Payment.IntentID,
			Status:   order.Payment.Status,
		},
		CreatedAt: order.CreatedAt.UTC(),
		UpdatedAt: order.UpdatedAt.UTC(),
	}
}

func toDomainOrder(doc orderDocument) domain.Order {
	items := make([]domain.OrderItem, 0, len(doc.Items))
	for _, item := range doc.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Kind:      domain.ProductKind(item.Kind),
			Title:     item.Title,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	return domain.Order{
		OrderNumber: doc.OrderNumber,
		UserID:      doc.UserID,
		Email:       doc.Email,
		Status:      domain.OrderStatus(doc.Status),
		Items:       items,
		Totals: domain.OrderTotals{
			Subtotal: doc.Totals.Subtotal,
			Discount: doc.Totals.Discount,
			Tax:      doc.Totals.Tax,
			Total:    doc.Totals.Total,
			Currency: doc.Totals.Currency,
		},
		Address: domain.OrderAddress{
			Name:       doc.Address.Name,
			Email:      doc.Address.Email,
			Phone:      doc.Address.Phone,
			Line1:      doc.Address.Line1,
			Line2:      doc.Address.Line2,
			City:       doc.Address.City,
			State:      doc.Address.State,
			PostalCode: doc.Address.PostalCode,
			Country:    doc.Address.Country,
		},
		Payment: domain.PaymentReference{
			Provider: doc.Payment.Provider,
			IntentID: doc.Payment.IntentID,
			Status:   doc.Payment.Status,
		},
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
	}
}

func decodeOrderCursor(cursor pagination.Cursor) ([]any, error) {
	if len(cursor.StartAfter) == 0 {
		return nil, nil
	}
	if len(cursor.StartAfter) != 2 {
		return nil, pagination.ErrInvalidPageToken
	}
	rawTime, ok := cursor.StartAfter[0].(string)
	if !ok {
		return nil, pagination.ErrInvalidPageToken
	}
	createdAt, err := time.Parse(time.RFC3339Nano, rawTime)
	if err != nil {
		return nil, pagination.ErrInvalidPageToken
	}
	id, ok := cursor.StartAfter[1].(string)
	if !ok || id == "" {
		return nil, pagination.ErrInvalidPageToken
	}
	return []any{createdAt, id}, nil
}
