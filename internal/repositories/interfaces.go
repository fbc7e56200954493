package repositories

import (
	"context"
	"errors"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/platform/pagination"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// IsNotFound reports whether err carries not-found semantics.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err carries conflict semantics.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err signals a transient backend outage.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}

// CatalogListQuery bundles the paging inputs for listing one kind. Filters on
// category and price run in the service layer, which sees decoded documents.
type CatalogListQuery struct {
	PageSize int
	Cursor   pagination.Cursor
}

// CatalogListResult carries one fetched page plus the cursor for the next one.
type CatalogListResult struct {
	Items      []domain.Product
	NextCursor pagination.Cursor
}

// CatalogRepository provides access to the per-kind template sub-collections.
type CatalogRepository interface {
	// List returns products of one kind ordered by creation time descending.
	// Fetches PageSize+1 documents to detect whether another page exists.
	List(ctx context.Context, kind domain.ProductKind, query CatalogListQuery) (CatalogListResult, error)
	// ListUnbounded returns every product of the kind. Used by search and
	// featured aggregation, which rank in memory.
	ListUnbounded(ctx context.Context, kind domain.ProductKind, limit int) ([]domain.Product, error)
	Get(ctx context.Context, kind domain.ProductKind, id string) (domain.Product, error)
	Create(ctx context.Context, product domain.Product) (domain.Product, error)
	Update(ctx context.Context, product domain.Product) (domain.Product, error)
	Delete(ctx context.Context, kind domain.ProductKind, id string) error
}

// SectionUpdate is one observed state of a watched homepage section.
type SectionUpdate struct {
	Section domain.HomepageSection
	Exists  bool
}

// ContentRepository provides access to the homepage section documents.
type ContentRepository interface {
	GetSection(ctx context.Context, id domain.SectionID) (domain.HomepageSection, error)
	// ListSections returns active sections ordered by their display order.
	ListSections(ctx context.Context) ([]domain.HomepageSection, error)
	// WatchSection streams section states until ctx is cancelled. The error
	// channel delivers at most one terminal error.
	WatchSection(ctx context.Context, id domain.SectionID) (<-chan SectionUpdate, <-chan error)
	// ReplaceAll reseeds every homepage document wholesale.
	ReplaceAll(ctx context.Context, sections []domain.HomepageSection) error
}

// OrderRepository persists immutable order records under the buyer's email.
type OrderRepository interface {
	// Create writes the order once; a second write for the same order number
	// fails with conflict semantics.
	Create(ctx context.Context, order domain.Order) error
	Get(ctx context.Context, email, orderNumber string) (domain.Order, error)
	// ListByEmail returns the buyer's orders, newest first.
	ListByEmail(ctx context.Context, email string, pager domain.Pagination) ([]domain.Order, string, error)
}

// ProfileRepository persists storefront user profiles keyed by auth UID.
type ProfileRepository interface {
	Get(ctx context.Context, uid string) (domain.UserProfile, error)
	Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
