package services

import (
	"context"
	"errors"
	"time"

	"github.com/microcosm-cc/bluemonday"

	domain "github.com/templhub/api/internal/domain"
	"github.com/templhub/api/internal/repositories"
)

// ErrContentRepositoryMissing indicates the repository dependency is absent.
var ErrContentRepositoryMissing = errors.New("content service: repository is not configured")

// ContentServiceDeps bundles constructor inputs for the content service.
type ContentServiceDeps struct {
	Content repositories.ContentRepository
	Clock   func() time.Time
}

type contentService struct {
	repo      repositories.ContentRepository
	clock     func() time.Time
	sanitizer *bluemonday.Policy
}

// NewContentService constructs the homepage content service.
func NewContentService(deps ContentServiceDeps) (ContentService, error) {
	if deps.Content == nil {
		return nil, ErrContentRepositoryMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &contentService{
		repo:      deps.Content,
		clock:     func() time.Time { return clock().UTC() },
		sanitizer: bluemonday.UGCPolicy(),
	}, nil
}

func (s *contentService) GetSection(ctx context.Context, id SectionID) (HomepageSection, error) {
	section, err := s.repo.GetSection(ctx, id)
	if err != nil {
		return HomepageSection{}, err
	}
	return s.sanitizeSection(section), nil
}

func (s *contentService) ListSections(ctx context.Context) ([]HomepageSection, error) {
	sections, err := s.repo.ListSections(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sections {
		sections[i] = s.sanitizeSection(sections[i])
	}
	return sections, nil
}

func (s *contentService) WatchSection(ctx context.Context, id SectionID) (<-chan SectionEvent, <-chan error) {
	updates, errs := s.repo.WatchSection(ctx, id)

	events := make(chan SectionEvent)
	go func() {
		defer close(events)
		for update := range updates {
			event := SectionEvent{Exists: update.Exists}
			if update.Exists {
				event.Section = s.sanitizeSection(update.Section)
			}
			select {
			case events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, errs
}

// Reseed replaces every homepage document with the default content set and
// returns what was written.
func (s *contentService) Reseed(ctx context.Context) ([]HomepageSection, error) {
	sections := DefaultHomepageSections(s.clock())
	if err := s.repo.ReplaceAll(ctx, sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// sanitizeSection strips unsafe markup from user-authored section fields.
// Testimonial quotes are the only content that may carry limited HTML.
func (s *contentService) sanitizeSection(section HomepageSection) HomepageSection {
	content, ok := section.Content.(domain.TestimonialsContent)
	if !ok {
		return section
	}
	items := make([]domain.Testimonial, len(content.Items))
	for i, item := range content.Items {
		item.Quote = s.sanitizer.Sanitize(item.Quote)
		items[i] = item
	}
	content.Items = items
	section.Content = content
	return section
}

// DefaultHomepageSections returns the seed content written by a reseed.
func DefaultHomepageSections(now time.Time) []HomepageSection {
	build := func(id SectionID, name, title, subtitle string, order int, content domain.SectionContent) HomepageSection {
		return HomepageSection{
			ID:          id,
			Name:        name,
			Title:       title,
			Subtitle:    subtitle,
			Content:     content,
			IsActive:    true,
			Order:       order,
			LastUpdated: now,
		}
	}

	return []HomepageSection{
		build(domain.SectionHero, "Hero", "Launch faster with ready-made templates", "", 1, domain.HeroContent{
			Headline:       "Launch faster with ready-made templates",
			Subheadline:    "Websites, apps, and automation workflows built by professionals.",
			PrimaryCTA:     domain.SectionLink{Label: "Browse templates", URL: "/templates/website"},
			SecondaryCTA:   domain.SectionLink{Label: "View bundles", URL: "/templates/combo"},
			HighlightTerms: []string{"websites", "apps", "workflows"},
		}),
		build(domain.SectionFeatured, "Featured", "Featured templates", "Hand-picked by our team", 2, domain.FeaturedContent{
			Heading: "Featured templates",
			Limit:   defaultFeaturedLimit,
		}),
		build(domain.SectionCombo, "Combo deals", "Website + app bundles", "", 3, domain.ComboContent{
			Heading:    "Website + app bundles",
			Subheading: "Ship the full product on day one.",
			BadgeText:  "Save 30%",
		}),
		build(domain.SectionCategories, "Categories", "Browse by category", "", 4, domain.CategoriesContent{
			Heading: "Browse by category",
			Tiles: []domain.CategoryTile{
				{Slug: "portfolio", Label: "Portfolio"},
				{Slug: "ecommerce", Label: "E-commerce"},
				{Slug: "saas", Label: "SaaS"},
				{Slug: "automation", Label: "Automation"},
			},
		}),
		build(domain.SectionTestimonials, "Testimonials", "Loved by makers", "", 5, domain.TestimonialsContent{
			Heading: "Loved by makers",
			Items: []domain.Testimonial{
				{Author: "Dana K.", Role: "Founder", Quote: "Shipped our storefront in a weekend.", Rating: 5},
				{Author: "Liu W.", Role: "Indie developer", Quote: "The app templates saved me weeks.", Rating: 5},
			},
		}),
		build(domain.SectionCTA, "Call to action", "Start building today", "", 6, domain.CTAContent{
			Headline: "Start building today",
			Body:     "Every purchase includes lifetime updates.",
			Link:     domain.SectionLink{Label: "Get started", URL: "/templates/website"},
		}),
		build(domain.SectionStats, "Stats", "", "", 7, domain.StatsContent{
			Items: []domain.Stat{
				{Label: "Templates", Value: "250", Suffix: "+"},
				{Label: "Downloads", Value: "48", Suffix: "k"},
				{Label: "Customers", Value: "12", Suffix: "k"},
			},
		}),
	}
}
