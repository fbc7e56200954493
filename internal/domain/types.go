package domain

import (
	"fmt"
	"strings"
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// SortOrder indicates ascending or descending ordering for list queries.
type SortOrder string

const (
	// SortAsc sorts results in ascending order.
	SortAsc SortOrder = "asc"
	// SortDesc sorts results in descending order.
	SortDesc SortOrder = "desc"
)

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// ProductKind identifies the template sub-collection a product belongs to.
type ProductKind string

const (
	// ProductKindWebsite covers website templates.
	ProductKindWebsite ProductKind = "website"
	// ProductKindApp covers application templates.
	ProductKindApp ProductKind = "app"
	// ProductKindCombo covers bundled website+app offerings.
	ProductKindCombo ProductKind = "combo"
	// ProductKindWorkflow covers n8n automation workflows.
	ProductKindWorkflow ProductKind = "n8n-workflow"
)

// ProductKinds lists every supported kind in catalog display order.
var ProductKinds = []ProductKind{
	ProductKindWebsite,
	ProductKindApp,
	ProductKindCombo,
	ProductKindWorkflow,
}

// ParseProductKind validates a raw kind value received from clients.
func ParseProductKind(raw string) (ProductKind, error) {
	kind := ProductKind(strings.ToLower(strings.TrimSpace(raw)))
	for _, candidate := range ProductKinds {
		if kind == candidate {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("domain: unknown product kind %q", raw)
}

// Product is the canonical flat catalog item shared across all template kinds.
type Product struct {
	ID            string
	Kind          ProductKind
	Title         string
	Description   string
	Price         float64
	OriginalPrice float64
	Currency      string
	Category      string
	Subcategory   string
	Tags          []string
	Images        []string
	PreviewURL    string
	DemoURL       string
	FileSize      string
	Rating        float64
	RatingCount   int
	Downloads     int
	IsActive      bool
	IsFeatured    bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProductPage carries one page of catalog results plus the continuation token.
type ProductPage struct {
	Items         []Product
	NextPageToken string
}

// PriceRange bounds an inclusive price filter; nil ends are unbounded.
type PriceRange = RangeQuery[float64]

// CartItem is a product reference held in a user's cart with its quantity.
type CartItem struct {
	ProductID string
	Kind      ProductKind
	Title     string
	Price     float64
	Image     string
	Quantity  int
	AddedAt   time.Time
}

// WishlistEntry records a product a user saved for later.
type WishlistEntry struct {
	ProductID string
	Kind      ProductKind
	Title     string
	Price     float64
	Image     string
	AddedAt   time.Time
}

// WaitlistEntry records interest in a product that is not yet purchasable.
type WaitlistEntry struct {
	ProductID string
	Kind      ProductKind
	Title     string
	Email     string
	JoinedAt  time.Time
}

// OrderStatus describes the lifecycle state of a recorded order.
type OrderStatus string

const (
	// OrderStatusPending indicates payment has not completed yet.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid indicates the payment provider confirmed the charge.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusCompleted indicates the purchased archives were delivered.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusFailed indicates the payment was declined or abandoned.
	OrderStatusFailed OrderStatus = "failed"
	// OrderStatusRefunded indicates the charge was reversed.
	OrderStatusRefunded OrderStatus = "refunded"
)

// Valid reports whether the status is one of the supported values.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusCompleted, OrderStatusFailed, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// OrderItem is a denormalized snapshot of a purchased product at order time.
type OrderItem struct {
	ProductID string
	Kind      ProductKind
	Title     string
	Price     float64
	Quantity  int
	Image     string
}

// OrderTotals captures the monetary breakdown stored with an order.
type OrderTotals struct {
	Subtotal float64
	Discount float64
	Tax      float64
	Total    float64
	Currency string
}

// OrderAddress holds the customer contact details supplied at checkout.
type OrderAddress struct {
	Name       string
	Email      string
	Phone      string
	Line1      string
	Line2      string
	City       string
	State      string
	PostalCode string
	Country    string
}

// PaymentReference links an order to the payment provider's records.
type PaymentReference struct {
	Provider string
	IntentID string
	Status   string
}

// Order is the immutable purchase record written once per order number.
type Order struct {
	OrderNumber string
	UserID      string
	Email       string
	Status      OrderStatus
	Items       []OrderItem
	Totals      OrderTotals
	Address     OrderAddress
	Payment     PaymentReference
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserProfile stores storefront profile data keyed by the auth provider UID.
type UserProfile struct {
	UID         string
	Email       string
	DisplayName string
	Locale      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChatMessage is an inbound support-chat message relayed to the webhook.
type ChatMessage struct {
	Message   string
	UserID    string
	Source    string
	Timestamp time.Time
}
