package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	domain "github.com/templhub/api/internal/domain"
	pfirestore "github.com/templhub/api/internal/platform/firestore"
)

const usersCollection = "users"

type profileDocument struct {
	Email       string    `firestore:"email"`
	DisplayName string    `firestore:"displayName"`
	Locale      string    `firestore:"locale"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

// ProfileRepository persists storefront user profiles under users/{uid}.
type ProfileRepository struct {
	base *pfirestore.BaseRepository[profileDocument]
}

// NewProfileRepository constructs a Firestore-backed profile repository.
func NewProfileRepository(provider *pfirestore.Provider) (*ProfileRepository, error) {
	if provider == nil {
		return nil, errors.New("profile repository requires firestore provider")
	}
	return &ProfileRepository{
		base: pfirestore.NewBaseRepository[profileDocument](provider, usersCollection, nil, nil),
	}, nil
}

// Get fetches the profile for the given auth UID.
func (r *ProfileRepository) Get(ctx context.Context, uid string) (domain.UserProfile, error) {
	doc, err := r.base.Get(ctx, uid)
	if err != nil {
		return domain.UserProfile{}, err
	}
	return domain.UserProfile{
		UID:         doc.ID,
		Email:       doc.Data.Email,
		DisplayName: doc.Data.DisplayName,
		Locale:      doc.Data.Locale,
		CreatedAt:   doc.Data.CreatedAt,
		UpdatedAt:   doc.Data.UpdatedAt,
	}, nil
}

// Upsert writes the profile document keyed by UID.
func (r *ProfileRepository) Upsert(ctx context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	if strings.TrimSpace(profile.UID) == "" {
		return domain.UserProfile{}, errors.New("profile repository: uid is required")
	}

	doc := profileDocument{
		Email:       strings.ToLower(strings.TrimSpace(profile.Email)),
		DisplayName: strings.TrimSpace(profile.DisplayName),
		Locale:      strings.TrimSpace(profile.Locale),
		CreatedAt:   profile.CreatedAt.UTC(),
		UpdatedAt:   profile.UpdatedAt.UTC(),
	}
	result, err := r.base.Set(ctx, profile.UID, doc)
	if err != nil {
		return domain.UserProfile{}, err
	}

	saved := profile
	saved.Email = doc.Email
	saved.DisplayName = doc.DisplayName
	saved.Locale = doc.Locale
	saved.UpdatedAt = result.UpdateTime
	return saved, nil
}
