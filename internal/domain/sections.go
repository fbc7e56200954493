package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// SectionID names a homepage document. The id doubles as the content tag.
type SectionID string

const (
	SectionHero         SectionID = "hero"
	SectionFeatured     SectionID = "featured"
	SectionCombo        SectionID = "combo"
	SectionCategories   SectionID = "categories"
	SectionTestimonials SectionID = "testimonials"
	SectionCTA          SectionID = "cta"
	SectionStats        SectionID = "stats"
)

// SectionIDs lists every homepage section in render order.
var SectionIDs = []SectionID{
	SectionHero,
	SectionFeatured,
	SectionCombo,
	SectionCategories,
	SectionTestimonials,
	SectionCTA,
	SectionStats,
}

// ParseSectionID validates a raw section id received from clients.
func ParseSectionID(raw string) (SectionID, error) {
	id := SectionID(raw)
	for _, candidate := range SectionIDs {
		if id == candidate {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("domain: unknown section id %q", raw)
}

// SectionContent is the per-section payload variant keyed by SectionID.
type SectionContent interface {
	sectionID() SectionID
}

// HeroContent drives the storefront hero banner.
type HeroContent struct {
	Headline       string      `json:"headline"`
	Subheadline    string      `json:"subheadline,omitempty"`
	ImageURL       string      `json:"imageUrl,omitempty"`
	PrimaryCTA     SectionLink `json:"primaryCta,omitempty"`
	SecondaryCTA   SectionLink `json:"secondaryCta,omitempty"`
	HighlightTerms []string    `json:"highlightTerms,omitempty"`
}

func (HeroContent) sectionID() SectionID { return SectionHero }

// FeaturedContent selects which featured products the homepage surfaces.
type FeaturedContent struct {
	Heading    string   `json:"heading"`
	ProductIDs []string `json:"productIds,omitempty"`
	Limit      int      `json:"limit,omitempty"`
}

func (FeaturedContent) sectionID() SectionID { return SectionFeatured }

// ComboContent advertises bundle deals.
type ComboContent struct {
	Heading    string   `json:"heading"`
	Subheading string   `json:"subheading,omitempty"`
	ProductIDs []string `json:"productIds,omitempty"`
	BadgeText  string   `json:"badgeText,omitempty"`
}

func (ComboContent) sectionID() SectionID { return SectionCombo }

// CategoriesContent lists the category tiles shown on the homepage.
type CategoriesContent struct {
	Heading string         `json:"heading"`
	Tiles   []CategoryTile `json:"tiles"`
}

func (CategoriesContent) sectionID() SectionID { return SectionCategories }

// CategoryTile is one entry in the category grid.
type CategoryTile struct {
	Slug     string `json:"slug"`
	Label    string `json:"label"`
	ImageURL string `json:"imageUrl,omitempty"`
	Count    int    `json:"count,omitempty"`
}

// TestimonialsContent holds customer quotes.
type TestimonialsContent struct {
	Heading string        `json:"heading"`
	Items   []Testimonial `json:"items"`
}

func (TestimonialsContent) sectionID() SectionID { return SectionTestimonials }

// Testimonial is a single customer quote. Quote may contain limited HTML and
// is sanitised before leaving the API.
type Testimonial struct {
	Author    string  `json:"author"`
	Role      string  `json:"role,omitempty"`
	Quote     string  `json:"quote"`
	Rating    float64 `json:"rating,omitempty"`
	AvatarURL string  `json:"avatarUrl,omitempty"`
}

// CTAContent drives the closing call-to-action band.
type CTAContent struct {
	Headline string      `json:"headline"`
	Body     string      `json:"body,omitempty"`
	Link     SectionLink `json:"link,omitempty"`
}

func (CTAContent) sectionID() SectionID { return SectionCTA }

// StatsContent lists the headline counters (downloads, customers, ...).
type StatsContent struct {
	Items []Stat `json:"items"`
}

func (StatsContent) sectionID() SectionID { return SectionStats }

// Stat is a single labelled counter.
type Stat struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Suffix string `json:"suffix,omitempty"`
}

// SectionLink is a labelled navigation target used inside section content.
type SectionLink struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// HomepageSection is one homepage document with its typed content.
type HomepageSection struct {
	ID          SectionID
	Name        string
	Title       string
	Subtitle    string
	Content     SectionContent
	IsActive    bool
	Order       int
	LastUpdated time.Time
}

// DecodeSectionContent interprets a raw content map according to the section
// id. Unknown ids fail; missing fields default to their zero values.
func DecodeSectionContent(id SectionID, raw map[string]any) (SectionContent, error) {
	payload, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("domain: encode section content: %w", err)
	}

	decode := func(target any) error {
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("domain: decode %s content: %w", id, err)
		}
		return nil
	}

	switch id {
	case SectionHero:
		var content HeroContent
		if err := decode(&content); err != nil {
			return nil, err
		}
		return content, nil
	case SectionFeatured:
		var content FeaturedContent
		if err := decode(&content); err != nil {
			return nil, err
		}
		return content, nil
	case SectionCombo:
		var content ComboContent
		if err := decode(&content); err != nil {
			return nil, err
		}
		return content, nil
	case SectionCategories:
		var content CategoriesContent
		if err := decode(&content); err != nil {
			return nil, err
		}
		return content, nil
	case SectionTestimonials:
		var content TestimonialsContent
		if err := decode(&content); err != nil {
			return nil, err
		}
		return content, nil
	case SectionCTA:
		var content CTAContent
		if err := decode(&content); err != nil {
			return nil, err
		}
		return content, nil
	case SectionStats:
		var content StatsContent
		if err := decode(&content); err != nil {
			return nil, err
		}
		return content, nil
	default:
		return nil, fmt.Errorf("domain: unknown section id %q", id)
	}
}
