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
	"github.com/templhub/api/internal/repositories"
)

const (
	templatesRootCollection = "templates"
	templatesItemsSegment   = "items"
)

// productDocument mirrors the stored template document shape.
type productDocument struct {
	Title         string    `firestore:"title"`
	Description   string    `firestore:"description"`
	Price         float64   `firestore:"price"`
	OriginalPrice float64   `firestore:"originalPrice"`
	Currency      string    `firestore:"currency"`
	Category      string    `firestore:"category"`
	Subcategory   string    `firestore:"subcategory"`
	Tags          []string  `firestore:"tags"`
	Images        []string  `firestore:"images"`
	PreviewURL    string    `firestore:"previewUrl"`
	DemoURL       string    `firestore:"demoUrl"`
	FileSize      string    `firestore:"fileSize"`
	Rating        float64   `firestore:"rating"`
	RatingCount   int       `firestore:"ratingCount"`
	Downloads     int       `firestore:"downloads"`
	IsActive      bool      `firestore:"isActive"`
	IsFeatured    bool      `firestore:"isFeatured"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

// CatalogRepository reads and writes the per-kind template sub-collections.
type CatalogRepository struct {
	provider *pfirestore.Provider
}

// NewCatalogRepository constructs a Firestore-backed catalog repository.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{provider: provider}, nil
}

func (r *CatalogRepository) base(kind domain.ProductKind) *pfirestore.BaseRepository[productDocument] {
	path := fmt.Sprintf("%s/%s/%s", templatesRootCollection, kind, templatesItemsSegment)
	return pfirestore.NewBaseRepository[productDocument](r.provider, path, nil, nil)
}

// List returns one page of products ordered by creation time descending.
// PageSize+1 documents are fetched so the caller can detect a next page.
func (r *CatalogRepository) List(ctx context.Context, kind domain.ProductKind, query repositories.CatalogListQuery) (repositories.CatalogListResult, error) {
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = pagination.DefaultPageSize
	}

	startAfter, err := decodeCatalogCursor(query.Cursor)
	if err != nil {
		return repositories.CatalogListResult{}, err
	}

	docs, err := r.base(kind).Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.OrderBy("createdAt", firestore.Desc).OrderBy(firestore.DocumentID, firestore.Desc)
		if len(startAfter) > 0 {
			q = q.StartAfter(startAfter...)
		}
		return q.Limit(pageSize + 1)
	})
	if err != nil {
		return repositories.CatalogListResult{}, err
	}

	hasMore := len(docs) > pageSize
	if hasMore {
		docs = docs[:pageSize]
	}

	result := repositories.CatalogListResult{Items: make([]domain.Product, 0, len(docs))}
	for _, doc := range docs {
		result.Items = append(result.Items, toDomainProduct(doc.ID, kind, doc.Data))
	}
	if hasMore && len(docs) > 0 {
		last := docs[len(docs)-1]
		result.NextCursor = pagination.Cursor{StartAfter: []any{
			last.Data.CreatedAt.UTC().Format(time.RFC3339Nano),
			last.ID,
		}}
	}
	return result, nil
}

// ListUnbounded returns every product of the kind in creation order. A
// positive limit caps the fetch; zero fetches the whole sub-collection.
func (r *CatalogRepository) ListUnbounded(ctx context.Context, kind domain.ProductKind, limit int) ([]domain.Product, error) {
	docs, err := r.base(kind).Query(ctx, func(q firestore.Query) firestore.Query {
		q = q.OrderBy("createdAt", firestore.Desc)
		if limit > 0 {
			q = q.Limit(limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}

	items := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDomainProduct(doc.ID, kind, doc.Data))
	}
	return items, nil
}

// Get fetches a single product document.
func (r *CatalogRepository) Get(ctx context.Context, kind domain.ProductKind, id string) (domain.Product, error) {
	doc, err := r.base(kind).Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return toDomainProduct(doc.ID, kind, doc.Data), nil
}

// Create writes a new product document, failing when the id already exists.
func (r *CatalogRepository) Create(ctx context.Context, product domain.Product) (domain.Product, error) {
	if strings.TrimSpace(product.ID) == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}
	if _, err := r.base(product.Kind).Create(ctx, product.ID, toProductDocument(product)); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// Update overwrites an existing product document.
func (r *CatalogRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	if strings.TrimSpace(product.ID) == "" {
		return domain.Product{}, errors.New("catalog repository: product id is required")
	}
	if _, err := r.base(product.Kind).Set(ctx, product.ID, toProductDocument(product)); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// Delete removes a product document.
func (r *CatalogRepository) Delete(ctx context.Context, kind domain.ProductKind, id string) error {
	return r.base(kind).Delete(ctx, id)
}

// toDomainProduct converts a stored document to the canonical Product shape,
// defaulting fields absent from older documents.
func toDomainProduct(id string, kind domain.ProductKind, doc productDocument) domain.Product {
	tags := doc.Tags
	if tags == nil {
		tags = []string{}
	}
	images := doc.Images
	if images == nil {
		images = []string{}
	}
	currency := strings.ToUpper(strings.TrimSpace(doc.Currency))
	if currency == "" {
		currency = "USD"
	}
	return domain.Product{
		ID:            id,
		Kind:          kind,
		Title:         doc.Title,
		Description:   doc.Description,
		Price:         doc.Price,
		OriginalPrice: doc.OriginalPrice,
		Currency:      currency,
		Category:      doc.Category,
		Subcategory:   doc.Subcategory,
		Tags:          tags,
		Images:        images,
		PreviewURL:    doc.PreviewURL,
		DemoURL:       doc.DemoURL,
		FileSize:      doc.FileSize,
		Rating:        doc.Rating,
		RatingCount:   doc.RatingCount,
		Downloads:     doc.Downloads,
		IsActive:      doc.IsActive,
		IsFeatured:    doc.IsFeatured,
		CreatedAt:     doc.CreatedAt,
		UpdatedAt:     doc.UpdatedAt,
	}
}

func toProductDocument(product domain.Product) productDocument {
	return productDocument{
		Title:         strings.TrimSpace(product.Title),
		Description:   product.Description,
		Price:         product.Price,
		OriginalPrice: product.OriginalPrice,
		Currency:      strings.ToUpper(strings.TrimSpace(product.Currency)),
		Category:      strings.TrimSpace(product.Category),
		Subcategory:   strings.TrimSpace(product.Subcategory),
		Tags:          product.Tags,
		Images:        product.Images,
		PreviewURL:    strings.TrimSpace(product.PreviewURL),
		DemoURL:       strings.TrimSpace(product.DemoURL),
		FileSize:      strings.TrimSpace(product.FileSize),
		Rating:        product.Rating,
		RatingCount:   product.RatingCount,
		Downloads:     product.Downloads,
		IsActive:      product.IsActive,
		IsFeatured:    product.IsFeatured,
		CreatedAt:     product.CreatedAt.UTC(),
		UpdatedAt:     product.UpdatedAt.UTC(),
	}
}

// decodeCatalogCursor rebuilds typed StartAfter values from the JSON cursor.
func decodeCatalogCursor(cursor pagination.Cursor) ([]any, error) {
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
