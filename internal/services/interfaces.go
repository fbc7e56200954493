package services

import (
	"context"
	"time"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/repositories"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination         = domain.Pagination
	Product            = domain.Product
	ProductKind        = domain.ProductKind
	ProductPage        = domain.ProductPage
	PriceRange         = domain.PriceRange
	HomepageSection    = domain.HomepageSection
	SectionID          = domain.SectionID
	CartItem           = domain.CartItem
	WishlistEntry      = domain.WishlistEntry
	WaitlistEntry      = domain.WaitlistEntry
	Order              = domain.Order
	OrderItem          = domain.OrderItem
	OrderTotals        = domain.OrderTotals
	OrderAddress       = domain.OrderAddress
	OrderStatus        = domain.OrderStatus
	PaymentReference   = domain.PaymentReference
	UserProfile        = domain.UserProfile
	ChatMessage        = domain.ChatMessage
	SystemHealthReport = domain.SystemHealthReport
)

// CatalogQuery bundles the storefront filters applied when browsing one kind.
type CatalogQuery struct {
	Category   string
	Price      *PriceRange
	Pagination Pagination
}

// CatalogService serves the browsable template catalog across every kind.
type CatalogService interface {
	// ListProducts returns one page of active products of the given kind.
	// Category matches either the category or subcategory field.
	ListProducts(ctx context.Context, kind ProductKind, query CatalogQuery) (ProductPage, error)
	GetProduct(ctx context.Context, kind ProductKind, id string) (Product, error)
	// ListFeatured aggregates active featured products across all kinds,
	// ordered by rating descending.
	ListFeatured(ctx context.Context, limit int) ([]Product, error)
	// Search ranks active products across all kinds against the query term.
	Search(ctx context.Context, term string, limit int) ([]Product, error)
	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, kind ProductKind, id string) error
}

// UpsertProductCommand carries a catalog mutation from the management surface.
type UpsertProductCommand struct {
	Product Product
	ActorID string
}

// SectionEvent is one state observed while watching a homepage section.
type SectionEvent struct {
	Section HomepageSection
	Exists  bool
}

// ContentService serves homepage section documents and their live updates.
type ContentService interface {
	GetSection(ctx context.Context, id SectionID) (HomepageSection, error)
	ListSections(ctx context.Context) ([]HomepageSection, error)
	// WatchSection streams section states until ctx ends. The error channel
	// delivers at most one terminal error.
	WatchSection(ctx context.Context, id SectionID) (<-chan SectionEvent, <-chan error)
	// Reseed replaces every homepage document with the default content set.
	Reseed(ctx context.Context) ([]HomepageSection, error)
}

// CommerceService manages per-user cart, wishlist, and waitlist state.
type CommerceService interface {
	GetCart(ctx context.Context, userID string) ([]CartItem, error)
	// AddCartItem merges quantities when the product is already present.
	AddCartItem(ctx context.Context, userID string, item CartItem) ([]CartItem, error)
	UpdateCartQuantity(ctx context.Context, userID, productID string, quantity int) ([]CartItem, error)
	RemoveCartItem(ctx context.Context, userID, productID string) ([]CartItem, error)
	ClearCart(ctx context.Context, userID string) error
	// WatchCart streams cart snapshots until cancel is called or ctx ends.
	WatchCart(ctx context.Context, userID string) (<-chan []CartItem, func(), error)

	GetWishlist(ctx context.Context, userID string) ([]WishlistEntry, error)
	AddWishlistEntry(ctx context.Context, userID string, entry WishlistEntry) ([]WishlistEntry, error)
	RemoveWishlistEntry(ctx context.Context, userID, productID string) ([]WishlistEntry, error)

	GetWaitlist(ctx context.Context, userID string) ([]WaitlistEntry, error)
	JoinWaitlist(ctx context.Context, userID string, entry WaitlistEntry) ([]WaitlistEntry, error)
	LeaveWaitlist(ctx context.Context, userID, productID string) ([]WaitlistEntry, error)
}

// RecordOrderCommand carries everything needed to write one order record.
type RecordOrderCommand struct {
	UserID  string
	Email   string
	Items   []OrderItem
	Totals  OrderTotals
	Address OrderAddress
	Payment PaymentReference
	Status  OrderStatus
}

// OrderService records immutable purchase documents and reads them back.
type OrderService interface {
	// RecordOrder generates an order number, writes the record with retries
	// on transient failures, and publishes an order.recorded event.
	RecordOrder(ctx context.Context, cmd RecordOrderCommand) (Order, error)
	GetOrder(ctx context.Context, email, orderNumber string) (Order, error)
	ListOrders(ctx context.Context, email string, pager Pagination) ([]Order, string, error)
}

// OrderRecordedMessage is the payload published after an order is written.
type OrderRecordedMessage struct {
	OrderNumber string    `json:"orderNumber"`
	UserID      string    `json:"userId"`
	Email       string    `json:"email"`
	Total       float64   `json:"total"`
	Currency    string    `json:"currency"`
	ItemCount   int       `json:"itemCount"`
	RecordedAt  time.Time `json:"recordedAt"`
}

// OrderEventPublisher delivers recorded-order events to downstream consumers.
type OrderEventPublisher interface {
	PublishOrderRecorded(ctx context.Context, message OrderRecordedMessage) (string, error)
}

// CheckoutIntent is the client-facing handle for an in-progress payment.
type CheckoutIntent struct {
	IntentID     string
	ClientSecret string
	Amount       int64
	Currency     string
	Status       string
}

// CreateCheckoutCommand starts a payment for the user's current cart.
type CreateCheckoutCommand struct {
	UserID  string
	Email   string
	Address OrderAddress
}

// PaymentSucceededEvent is the provider confirmation consumed by the webhook.
type PaymentSucceededEvent struct {
	IntentID string
	UserID   string
	Email    string
	Address  OrderAddress
	Amount   int64
	Currency string
}

// CheckoutService creates payment intents from carts and finalises paid ones.
type CheckoutService interface {
	CreateIntent(ctx context.Context, cmd CreateCheckoutCommand) (CheckoutIntent, error)
	// HandlePaymentSucceeded records the order for a confirmed payment and
	// clears the buyer's cart.
	HandlePaymentSucceeded(ctx context.Context, event PaymentSucceededEvent) (Order, error)
}

// SignUpCommand registers a new storefront account.
type SignUpCommand struct {
	Email       string
	Password    string
	DisplayName string
	Locale      string
}

// UpdateProfileCommand mutates the caller's stored profile.
type UpdateProfileCommand struct {
	UID         string
	DisplayName *string
	Locale      *string
}

// IdentityService wraps the auth provider and the profile store.
type IdentityService interface {
	SignUp(ctx context.Context, cmd SignUpCommand) (UserProfile, error)
	GetProfile(ctx context.Context, uid string) (UserProfile, error)
	UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error)
	PasswordResetLink(ctx context.Context, email string) (string, error)
}

// ChatReply is the assistant response relayed back to the storefront widget.
type ChatReply struct {
	Message   string
	Fallback  bool
	Timestamp time.Time
}

// ChatService relays support-chat messages to the configured webhook.
type ChatService interface {
	Send(ctx context.Context, message ChatMessage) (ChatReply, error)
}

// SystemService surfaces operational health for readiness probes.
type SystemService interface {
	Health(ctx context.Context) (SystemHealthReport, error)
	Build() BuildInfo
}

func isRepositoryNotFound(err error) bool  { return repositories.IsNotFound(err) }
func isRepositoryConflict(err error) bool  { return repositories.IsConflict(err) }
func isRepositoryTransient(err error) bool { return repositories.IsUnavailable(err) }
