package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/platform/pagination"
	"github.com/templhub/api/internal/repositories"
)

const (
	defaultFeaturedLimit = 8
	maxSearchResults     = 50
)

var (
	// ErrCatalogRepositoryMissing indicates the repository dependency is absent.
	ErrCatalogRepositoryMissing = errors.New("catalog service: repository is not configured")
	// ErrCatalogInvalidInput indicates the caller supplied invalid data to a catalog operation.
	ErrCatalogInvalidInput = errors.New("catalog service: invalid input")
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Catalog         repositories.CatalogRepository
	Clock           func() time.Time
	NewID           func() string
	DefaultPageSize int
	MaxPageSize     int
	FeaturedLimit   int
}

type catalogService struct {
	repo          repositories.CatalogRepository
	clock         func() time.Time
	newID         func() string
	pageOpts      pagination.Options
	featuredLimit int
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, ErrCatalogRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return strings.ToLower(ulid.Make().String()) }
	}
	featured := deps.FeaturedLimit
	if featured <= 0 {
		featured = defaultFeaturedLimit
	}
	return &catalogService{
		repo:  deps.Catalog,
		clock: func() time.Time { return clock().UTC() },
		newID: newID,
		pageOpts: pagination.Options{
			DefaultPageSize: deps.DefaultPageSize,
			MaxPageSize:     deps.MaxPageSize,
		},
		featuredLimit: featured,
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context, kind ProductKind, query CatalogQuery) (ProductPage, error) {
	pageSize := s.pageOpts.ClampPageSize(query.Pagination.PageSize)

	cursor, err := pagination.DecodeToken(query.Pagination.PageToken)
	if err != nil {
		return ProductPage{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}

	result, err := s.repo.List(ctx, kind, repositories.CatalogListQuery{
		PageSize: pageSize,
		Cursor:   cursor,
	})
	if err != nil {
		return ProductPage{}, err
	}

	page := ProductPage{Items: filterProducts(result.Items, query)}
	if len(result.NextCursor.StartAfter) > 0 {
		token, err := pagination.EncodeToken(result.NextCursor)
		if err != nil {
			return ProductPage{}, err
		}
		page.NextPageToken = token
	}
	return page, nil
}

func (s *catalogService) GetProduct(ctx context.Context, kind ProductKind, id string) (Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	return s.repo.Get(ctx, kind, id)
}

// ListFeatured over-fetches each kind so enough featured items survive the
// activity filter, then ranks the survivors by rating.
func (s *catalogService) ListFeatured(ctx context.Context, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = s.featuredLimit
	}

	featured := make([]Product, 0, limit)
	for _, kind := range domain.ProductKinds {
		items, err := s.repo.ListUnbounded(ctx, kind, limit*2)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if item.IsActive && item.IsFeatured {
				featured = append(featured, item)
			}
		}
	}

	sort.SliceStable(featured, func(i, j int) bool {
		if featured[i].Rating != featured[j].Rating {
			return featured[i].Rating > featured[j].Rating
		}
		return featured[i].Downloads > featured[j].Downloads
	})
	if len(featured) > limit {
		featured = featured[:limit]
	}
	return featured, nil
}

func (s *catalogService) Search(ctx context.Context, term string, limit int) ([]Product, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", ErrCatalogInvalidInput)
	}
	if limit <= 0 || limit > maxSearchResults {
		limit = maxSearchResults
	}

	type scored struct {
		product Product
		score   int
	}
	var matches []scored
	for _, kind := range domain.ProductKinds {
		items, err := s.repo.ListUnbounded(ctx, kind, 0)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if !item.IsActive {
				continue
			}
			if score := searchScore(item, term); score > 0 {
				matches = append(matches, scored{product: item, score: score})
			}
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].product.Downloads > matches[j].product.Downloads
	})

	results := make([]Product, 0, limit)
	for _, match := range matches {
		results = append(results, match.product)
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

func (s *catalogService) CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	product, err := s.normalizeProduct(cmd.Product)
	if err != nil {
		return Product{}, err
	}
	now := s.clock()
	if product.ID == "" {
		product.ID = s.newID()
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return s.repo.Create(ctx, product)
}

func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	product, err := s.normalizeProduct(cmd.Product)
	if err != nil {
		return Product{}, err
	}
	if product.ID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	existing, err := s.repo.Get(ctx, product.Kind, product.ID)
	if err != nil {
		return Product{}, err
	}
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = s.clock()
	return s.repo.Update(ctx, product)
}

func (s *catalogService) DeleteProduct(ctx context.Context, kind ProductKind, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	return s.repo.Delete(ctx, kind, id)
}

func (s *catalogService) normalizeProduct(product Product) (Product, error) {
	product.ID = strings.TrimSpace(product.ID)
	product.Title = strings.TrimSpace(product.Title)
	product.Category = strings.TrimSpace(product.Category)
	product.Subcategory = strings.TrimSpace(product.Subcategory)
	product.Currency = strings.ToUpper(strings.TrimSpace(product.Currency))

	if _, err := domain.ParseProductKind(string(product.Kind)); err != nil {
		return Product{}, fmt.Errorf("%w: %v", ErrCatalogInvalidInput, err)
	}
	if product.Title == "" {
		return Product{}, fmt.Errorf("%w: title is required", ErrCatalogInvalidInput)
	}
	if product.Price < 0 || product.OriginalPrice < 0 {
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrCatalogInvalidInput)
	}
	if product.Currency == "" {
		product.Currency = "USD"
	}
	if product.Tags == nil {
		product.Tags = []string{}
	}
	if product.Images == nil {
		product.Images = []string{}
	}
	return product, nil
}

// filterProducts applies the storefront filters the backing query cannot
// express: activity, category-or-subcategory match, and the price window.
func filterProducts(items []Product, query CatalogQuery) []Product {
	category := strings.TrimSpace(query.Category)
	filtered := make([]Product, 0, len(items))
	for _, item := range items {
		if !item.IsActive {
			continue
		}
		if category != "" && !strings.EqualFold(item.Category, category) && !strings.EqualFold(item.Subcategory, category) {
			continue
		}
		if query.Price != nil {
			if query.Price.From != nil && item.Price < *query.Price.From {
				continue
			}
			if query.Price.To != nil && item.Price > *query.Price.To {
				continue
			}
		}
		filtered = append(filtered, item)
	}
	return filtered
}

func searchScore(product Product, term string) int {
	if strings.Contains(strings.ToLower(product.Title), term) {
		return 2
	}
	if strings.Contains(strings.ToLower(product.Description), term) {
		return 1
	}
	for _, tag := range product.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return 1
		}
	}
	return 0
}
