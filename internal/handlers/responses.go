package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/platform/httpx"
	"github.com/templhub/api/internal/repositories"
	"github.com/templhub/api/internal/services"
)

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeRepositoryError maps classified persistence failures onto the JSON
// error envelope. Unclassified errors become opaque 500s.
func writeRepositoryError(ctx context.Context, w http.ResponseWriter, err error, subject string) {
	switch {
	case repositories.IsNotFound(err):
		httpx.WriteError(ctx, w, httpx.NewError(subject+"_not_found", subject+" not found", http.StatusNotFound))
	case repositories.IsConflict(err):
		httpx.WriteError(ctx, w, httpx.NewError(subject+"_conflict", subject+" already exists", http.StatusConflict))
	case repositories.IsUnavailable(err):
		httpx.WriteError(ctx, w, httpx.NewError(subject+"_unavailable", subject+" backend is unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("request_cancelled", "request was cancelled", 499))
	default:
		httpx.WriteError(ctx, w, httpx.NewError(subject+"_error", "internal error", http.StatusInternalServerError))
	}
}

type productResponse struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Price         float64   `json:"price"`
	OriginalPrice float64   `json:"originalPrice,omitempty"`
	Currency      string    `json:"currency"`
	Category      string    `json:"category,omitempty"`
	Subcategory   string    `json:"subcategory,omitempty"`
	Tags          []string  `json:"tags"`
	Images        []string  `json:"images"`
	PreviewURL    string    `json:"previewUrl,omitempty"`
	DemoURL       string    `json:"demoUrl,omitempty"`
	FileSize      string    `json:"fileSize,omitempty"`
	Rating        float64   `json:"rating"`
	RatingCount   int       `json:"ratingCount"`
	Downloads     int       `json:"downloads"`
	IsActive      bool      `json:"isActive"`
	IsFeatured    bool      `json:"isFeatured"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func toProductResponse(product domain.Product) productResponse {
	tags := product.Tags
	if tags == nil {
		tags = []string{}
	}
	images := product.Images
	if images == nil {
		images = []string{}
	}
	return productResponse{
		ID:            product.ID,
		Kind:          string(product.Kind),
		Title:         product.Title,
		Description:   product.Description,
		Price:         product.Price,
		OriginalPrice: product.OriginalPrice,
		Currency:      product.Currency,
		Category:      product.Category,
		Subcategory:   product.Subcategory,
		Tags:          tags,
		Images:        images,
		PreviewURL:    product.PreviewURL,
		DemoURL:       product.DemoURL,
		FileSize:      product.FileSize,
		Rating:        product.Rating,
		RatingCount:   product.RatingCount,
		Downloads:     product.Downloads,
		IsActive:      product.IsActive,
		IsFeatured:    product.IsFeatured,
		CreatedAt:     product.CreatedAt,
		UpdatedAt:     product.UpdatedAt,
	}
}

func toProductResponses(products []domain.Product) []productResponse {
	out := make([]productResponse, 0, len(products))
	for _, product := range products {
		out = append(out, toProductResponse(product))
	}
	return out
}

type sectionResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name,omitempty"`
	Title       string    `json:"title,omitempty"`
	Subtitle    string    `json:"subtitle,omitempty"`
	Content     any       `json:"content"`
	IsActive    bool      `json:"isActive"`
	Order       int       `json:"order"`
	LastUpdated time.Time `json:"lastUpdated"`
}

func toSectionResponse(section domain.HomepageSection) sectionResponse {
	return sectionResponse{
		ID:          string(section.ID),
		Name:        section.Name,
		Title:       section.Title,
		Subtitle:    section.Subtitle,
		Content:     section.Content,
		IsActive:    section.IsActive,
		Order:       section.Order,
		LastUpdated: section.LastUpdated,
	}
}

type cartItemResponse struct {
	ProductID string    `json:"productId"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Image     string    `json:"image,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

func toCartResponse(items []services.CartItem) []cartItemResponse {
	out := make([]cartItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, cartItemResponse{
			ProductID: item.ProductID,
			Kind:      string(item.Kind),
			Title:     item.Title,
			Price:     item.Price,
			Image:     item.Image,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}
	return out
}

type wishlistEntryResponse struct {
	ProductID string    `json:"productId"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Price     float64   `json:"price"`
	Image     string    `json:"image,omitempty"`
	AddedAt   time.Time `json:"addedAt"`
}

func toWishlistResponse(entries []services.WishlistEntry) []wishlistEntryResponse {
	out := make([]wishlistEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, wishlistEntryResponse{
			ProductID: entry.ProductID,
			Kind:      string(entry.Kind),
			Title:     entry.Title,
			Price:     entry.Price,
			Image:     entry.Image,
			AddedAt:   entry.AddedAt,
		})
	}
	return out
}

type waitlistEntryResponse struct {
	ProductID string    `json:"productId"`
	Kind      string    `json:"kind"`
	Title     string    `json:"title"`
	Email     string    `json:"email,omitempty"`
	JoinedAt  time.Time `json:"joinedAt"`
}

func toWaitlistResponse(entries []services.WaitlistEntry) []waitlistEntryResponse {
	out := make([]waitlistEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, waitlistEntryResponse{
			ProductID: entry.ProductID,
			Kind:      string(entry.Kind),
			Title:     entry.Title,
			Email:     entry.Email,
			JoinedAt:  entry.JoinedAt,
		})
	}
	return out
}

type orderItemResponse struct {
	ProductID string  `json:"productId"`
	Kind      string  `json:"kind"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image,omitempty"`
}

type orderResponse struct {
	OrderNumber string              `json:"orderNumber"`
	Status      string              `json:"status"`
	Items       []orderItemResponse `json:"items"`
	Subtotal    float64             `json:"subtotal"`
	Discount    float64             `json:"discount,omitempty"`
	Tax         float64             `json:"tax,omitempty"`
	Total       float64             `json:"total"`
	Currency    string              `json:"currency"`
	CreatedAt   time.Time           `json:"createdAt"`
}

func toOrderResponse(order domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemResponse{
			ProductID: item.ProductID,
			Kind:      string(item.Kind),
			Title:     item.Title,
			Price:     item.Price,
			Quantity:  item.Quantity,
			Image:     item.Image,
		})
	}
	return orderResponse{
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Items:       items,
		Subtotal:    order.Totals.Subtotal,
		Discount:    order.Totals.Discount,
		Tax:         order.Totals.Tax,
		Total:       order.Totals.Total,
		Currency:    order.Totals.Currency,
		CreatedAt:   order.CreatedAt,
	}
}

type profileResponse struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName,omitempty"`
	Locale      string    `json:"locale,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func toProfileResponse(profile domain.UserProfile) profileResponse {
	return profileResponse{
		UID:         profile.UID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		Locale:      profile.Locale,
		CreatedAt:   profile.CreatedAt,
		UpdatedAt:   profile.UpdatedAt,
	}
}
