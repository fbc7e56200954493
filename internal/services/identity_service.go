package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"
	"golang.org/x/text/language"

	"github.com/templhub/api/internal/repositories"
)

const (
	minPasswordLength = 8
	defaultLocale     = "en"
)

var (
	// ErrIdentityDependenciesMissing indicates a required collaborator is absent.
	ErrIdentityDependenciesMissing = errors.New("identity service: dependencies are not configured")
	// ErrIdentityInvalidInput indicates the caller supplied invalid account data.
	ErrIdentityInvalidInput = errors.New("identity service: invalid input")
	// ErrIdentityEmailInUse indicates the email is already registered.
	ErrIdentityEmailInUse = errors.New("identity service: email already in use")
	// ErrIdentityUserNotFound indicates no account exists for the given email.
	ErrIdentityUserNotFound = errors.New("identity service: user not found")
)

// AuthDirectory is the slice of the auth provider the identity service uses.
type AuthDirectory interface {
	CreateUser(ctx context.Context, email, password, displayName string) (*firebaseauth.UserRecord, error)
	PasswordResetLink(ctx context.Context, email string) (string, error)
}

// IdentityServiceDeps bundles constructor inputs for the identity service.
type IdentityServiceDeps struct {
	Directory AuthDirectory
	Profiles  repositories.ProfileRepository
	Clock     func() time.Time
}

type identityService struct {
	directory AuthDirectory
	profiles  repositories.ProfileRepository
	clock     func() time.Time
}

// NewIdentityService constructs the account/profile service.
func NewIdentityService(deps IdentityServiceDeps) (IdentityService, error) {
	if deps.Directory == nil || deps.Profiles == nil {
		return nil, ErrIdentityDependenciesMissing
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &identityService{
		directory: deps.Directory,
		profiles:  deps.Profiles,
		clock:     func() time.Time { return clock().UTC() },
	}, nil
}

// SignUp provisions the auth account and writes the initial profile document.
func (s *identityService) SignUp(ctx context.Context, cmd SignUpCommand) (UserProfile, error) {
	email := strings.ToLower(strings.TrimSpace(cmd.Email))
	if !strings.Contains(email, "@") {
		return UserProfile{}, fmt.Errorf("%w: a valid email is required", ErrIdentityInvalidInput)
	}
	if len(cmd.Password) < minPasswordLength {
		return UserProfile{}, fmt.Errorf("%w: password must be at least %d characters", ErrIdentityInvalidInput, minPasswordLength)
	}
	displayName := strings.TrimSpace(cmd.DisplayName)

	record, err := s.directory.CreateUser(ctx, email, cmd.Password, displayName)
	if err != nil {
		return UserProfile{}, translateAuthError(err)
	}

	now := s.clock()
	profile := UserProfile{
		UID:         record.UID,
		Email:       email,
		DisplayName: displayName,
		Locale:      normalizeLocale(cmd.Locale),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.profiles.Upsert(ctx, profile)
}

func (s *identityService) GetProfile(ctx context.Context, uid string) (UserProfile, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return UserProfile{}, fmt.Errorf("%w: uid is required", ErrIdentityInvalidInput)
	}
	return s.profiles.Get(ctx, uid)
}

func (s *identityService) UpdateProfile(ctx context.Context, cmd UpdateProfileCommand) (UserProfile, error) {
	uid := strings.TrimSpace(cmd.UID)
	if uid == "" {
		return UserProfile{}, fmt.Errorf("%w: uid is required", ErrIdentityInvalidInput)
	}

	profile, err := s.profiles.Get(ctx, uid)
	if err != nil {
		return UserProfile{}, err
	}

	if cmd.DisplayName != nil {
		profile.DisplayName = strings.TrimSpace(*cmd.DisplayName)
	}
	if cmd.Locale != nil {
		profile.Locale = normalizeLocale(*cmd.Locale)
	}
	profile.UpdatedAt = s.clock()

	return s.profiles.Upsert(ctx, profile)
}

func (s *identityService) PasswordResetLink(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !strings.Contains(email, "@") {
		return "", fmt.Errorf("%w: a valid email is required", ErrIdentityInvalidInput)
	}
	link, err := s.directory.PasswordResetLink(ctx, email)
	if err != nil {
		return "", translateAuthError(err)
	}
	return link, nil
}

// translateAuthError maps Firebase Admin SDK failures onto service sentinels
// so handlers can emit stable, user-readable messages.
func translateAuthError(err error) error {
	switch {
	case firebaseauth.IsEmailAlreadyExists(err):
		return fmt.Errorf("%w: %v", ErrIdentityEmailInUse, err)
	case firebaseauth.IsUserNotFound(err):
		return fmt.Errorf("%w: %v", ErrIdentityUserNotFound, err)
	default:
		return err
	}
}

// normalizeLocale canonicalises a client locale tag, falling back to English
// when the tag does not parse.
func normalizeLocale(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultLocale
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return defaultLocale
	}
	return tag.String()
}
