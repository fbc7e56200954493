package firestore

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/templhub/api/internal/domain"
	pfirestore "github.com/templhub/api/internal/platform/firestore"
	"github.com/templhub/api/internal/repositories"
)

const homepageCollection = "homepage"

type sectionDocument struct {
	Name        string         `firestore:"name"`
	Title       string         `firestore:"title"`
	Subtitle    string         `firestore:"subtitle"`
	Content     map[string]any `firestore:"content"`
	IsActive    bool           `firestore:"isActive"`
	Order       int            `firestore:"order"`
	LastUpdated time.Time      `firestore:"lastUpdated"`
}

// ContentRepository reads and reseeds the homepage section documents.
type ContentRepository struct {
	base     *pfirestore.BaseRepository[sectionDocument]
	provider *pfirestore.Provider
}

// NewContentRepository constructs a Firestore-backed content repository.
func NewContentRepository(provider *pfirestore.Provider) (*ContentRepository, error) {
	if provider == nil {
		return nil, errors.New("content repository requires firestore provider")
	}
	return &ContentRepository{
		base:     pfirestore.NewBaseRepository[sectionDocument](provider, homepageCollection, nil, nil),
		provider: provider,
	}, nil
}

// GetSection fetches one homepage document and decodes its typed content.
func (r *ContentRepository) GetSection(ctx context.Context, id domain.SectionID) (domain.HomepageSection, error) {
	doc, err := r.base.Get(ctx, string(id))
	if err != nil {
		return domain.HomepageSection{}, err
	}
	return toDomainSection(id, doc.Data)
}

// ListSections returns the active sections ordered by display order.
func (r *ContentRepository) ListSections(ctx context.Context) ([]domain.HomepageSection, error) {
	docs, err := r.base.Query(ctx, nil)
	if err != nil {
		return nil, err
	}

	sections := make([]domain.HomepageSection, 0, len(docs))
	for _, doc := range docs {
		id, err := domain.ParseSectionID(doc.ID)
		if err != nil {
			// Ignore documents outside the known section set.
			continue
		}
		if !doc.Data.IsActive {
			continue
		}
		section, err := toDomainSection(id, doc.Data)
		if err != nil {
			return nil, err
		}
		sections = append(sections, section)
	}

	sort.SliceStable(sections, func(i, j int) bool {
		return sections[i].Order < sections[j].Order
	})
	return sections, nil
}

// WatchSection streams states of one homepage document until ctx is cancelled.
func (r *ContentRepository) WatchSection(ctx context.Context, id domain.SectionID) (<-chan repositories.SectionUpdate, <-chan error) {
	out := make(chan repositories.SectionUpdate, 1)
	errCh := make(chan error, 1)

	ref, err := r.base.DocumentRef(ctx, string(id))
	if err != nil {
		close(out)
		errCh <- err
		close(errCh)
		return out, errCh
	}

	updates, watchErrs := pfirestore.WatchDocument(ctx, ref, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		for update := range updates {
			if !update.Exists {
				select {
				case out <- repositories.SectionUpdate{Exists: false}:
				case <-ctx.Done():
					return
				}
				continue
			}

			doc, err := r.base.DecodeSnapshot(ctx, update.Snapshot)
			if err != nil {
				errCh <- err
				return
			}
			section, err := toDomainSection(id, doc.Data)
			if err != nil {
				errCh <- err
				return
			}
			select {
			case out <- repositories.SectionUpdate{Section: section, Exists: true}:
			case <-ctx.Done():
				return
			}
		}

		if err, ok := <-watchErrs; ok && err != nil {
			errCh <- err
		}
	}()

	return out, errCh
}

// ReplaceAll reseeds the homepage documents wholesale using a bulk writer.
func (r *ContentRepository) ReplaceAll(ctx context.Context, sections []domain.HomepageSection) error {
	if len(sections) == 0 {
		return errors.New("content repository: at least one section is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	writer := client.BulkWriter(ctx)
	coll := client.Collection(homepageCollection)
	jobs := make([]*firestore.BulkWriterJob, 0, len(sections))
	for _, section := range sections {
		doc, err := toSectionDocument(section)
		if err != nil {
			return err
		}
		job, err := writer.Set(coll.Doc(string(section.ID)), doc)
		if err != nil {
			return pfirestore.WrapError("homepage.reseed", err)
		}
		jobs = append(jobs, job)
	}
	writer.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return pfirestore.WrapError("homepage.reseed", err)
		}
	}
	return nil
}

// encodeSectionContent flattens typed content into the stored map shape.
func encodeSectionContent(content domain.SectionContent) (map[string]any, error) {
	if content == nil {
		return map[string]any{}, nil
	}
	payload, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func toDomainSection(id domain.SectionID, doc sectionDocument) (domain.HomepageSection, error) {
	content, err := domain.DecodeSectionContent(id, doc.Content)
	if err != nil {
		return domain.HomepageSection{}, err
	}
	return domain.HomepageSection{
		ID:          id,
		Name:        doc.Name,
		Title:       doc.Title,
		Subtitle:    doc.Subtitle,
		Content:     content,
		IsActive:    doc.IsActive,
		Order:       doc.Order,
		LastUpdated: doc.LastUpdated,
	}, nil
}

func toSectionDocument(section domain.HomepageSection) (sectionDocument, error) {
	content, err := encodeSectionContent(section.Content)
	if err != nil {
		return sectionDocument{}, err
	}
	return sectionDocument{
		Name:        section.Name,
		Title:       section.Title,
		Subtitle:    section.Subtitle,
		Content:     content,
		IsActive:    section.IsActive,
		Order:       section.Order,
		LastUpdated: section.LastUpdated.UTC(),
	}, nil
}
