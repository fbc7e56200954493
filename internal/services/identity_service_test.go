package services

import (
	"context"
	"errors"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	domain "github.com/templhub/api/internal/domain"
)

type stubAuthDirectory struct {
	createdEmail    string
	createdPassword string
	createdName     string
	createErr       error
	resetLink       string
	resetErr        error
}

func (s *stubAuthDirectory) CreateUser(_ context.Context, email, password, displayName string) (*firebaseauth.UserRecord, error) {
	s.createdEmail = email
	s.createdPassword = password
	s.createdName = displayName
	if s.createErr != nil {
		return nil, s.createErr
	}
	return &firebaseauth.UserRecord{UserInfo: &firebaseauth.UserInfo{UID: "uid-1", Email: email}}, nil
}

func (s *stubAuthDirectory) PasswordResetLink(_ context.Context, _ string) (string, error) {
	return s.resetLink, s.resetErr
}

type stubProfileRepository struct {
	stored  domain.UserProfile
	getErr  error
	upserts []domain.UserProfile
}

func (s *stubProfileRepository) Get(_ context.Context, _ string) (domain.UserProfile, error) {
	return s.stored, s.getErr
}

func (s *stubProfileRepository) Upsert(_ context.Context, profile domain.UserProfile) (domain.UserProfile, error) {
	s.upserts = append(s.upserts, profile)
	return profile, nil
}

func identityFixture(t *testing.T, directory *stubAuthDirectory, profiles *stubProfileRepository) IdentityService {
	t.Helper()
	svc, err := NewIdentityService(IdentityServiceDeps{
		Directory: directory,
		Profiles:  profiles,
		Clock: func() time.Time {
			return time.Date(2026, time.June, 1, 0, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return svc
}

func TestNewIdentityServiceRequiresDependencies(t *testing.T) {
	if _, err := NewIdentityService(IdentityServiceDeps{}); !errors.Is(err, ErrIdentityDependenciesMissing) {
		t.Fatalf("expected ErrIdentityDependenciesMissing, got %v", err)
	}
}

func TestSignUpCreatesAccountAndProfile(t *testing.T) {
	directory := &stubAuthDirectory{}
	profiles := &stubProfileRepository{}
	svc := identityFixture(t, directory, profiles)

	profile, err := svc.SignUp(context.Background(), SignUpCommand{
		Email:       " Buyer@Example.COM ",
		Password:    "correct-horse",
		DisplayName: "  Dana  ",
		Locale:      "en-US",
	})
	if err != nil {
		t.Fatalf("SignUp returned error: %v", err)
	}

	if directory.createdEmail != "buyer@example.com" {
		t.Fatalf("expected normalised email, got %q", directory.createdEmail)
	}
	if directory.createdName != "Dana" {
		t.Fatalf("expected trimmed display name, got %q", directory.createdName)
	}
	if profile.UID != "uid-1" {
		t.Fatalf("expected uid from directory, got %q", profile.UID)
	}
	if profile.Locale != "en-US" {
		t.Fatalf("expected canonical locale, got %q", profile.Locale)
	}
	if len(profiles.upserts) != 1 {
		t.Fatalf("expected a profile write, got %d", len(profiles.upserts))
	}
}

func TestSignUpValidatesInput(t *testing.T) {
	svc := identityFixture(t, &stubAuthDirectory{}, &stubProfileRepository{})
	ctx := context.Background()

	if _, err := svc.SignUp(ctx, SignUpCommand{Email: "not-an-email", Password: "longenough"}); !errors.Is(err, ErrIdentityInvalidInput) {
		t.Fatalf("expected ErrIdentityInvalidInput for bad email, got %v", err)
	}
	if _, err := svc.SignUp(ctx, SignUpCommand{Email: "a@b.com", Password: "short"}); !errors.Is(err, ErrIdentityInvalidInput) {
		t.Fatalf("expected ErrIdentityInvalidInput for short password, got %v", err)
	}
}

func TestUpdateProfileAppliesPartialChanges(t *testing.T) {
	profiles := &stubProfileRepository{stored: domain.UserProfile{
		UID:         "uid-1",
		Email:       "buyer@example.com",
		DisplayName: "Dana",
		Locale:      "en",
	}}
	svc := identityFixture(t, &stubAuthDirectory{}, profiles)

	locale := "de-DE"
	updated, err := svc.UpdateProfile(context.Background(), UpdateProfileCommand{
		UID:    "uid-1",
		Locale: &locale,
	})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if updated.DisplayName != "Dana" {
		t.Fatalf("expected untouched display name, got %q", updated.DisplayName)
	}
	if updated.Locale != "de-DE" {
		t.Fatalf("expected canonical locale, got %q", updated.Locale)
	}
	if updated.UpdatedAt.IsZero() {
		t.Fatal("expected UpdatedAt to be set")
	}
}

func TestPasswordResetLink(t *testing.T) {
	directory := &stubAuthDirectory{resetLink: "https://auth.example.com/reset?code=abc"}
	svc := identityFixture(t, directory, &stubProfileRepository{})

	link, err := svc.PasswordResetLink(context.Background(), "buyer@example.com")
	if err != nil {
		t.Fatalf("PasswordResetLink returned error: %v", err)
	}
	if link != directory.resetLink {
		t.Fatalf("unexpected link %q", link)
	}

	if _, err := svc.PasswordResetLink(context.Background(), "nope"); !errors.Is(err, ErrIdentityInvalidInput) {
		t.Fatalf("expected ErrIdentityInvalidInput, got %v", err)
	}
}

func TestNormalizeLocale(t *testing.T) {
	cases := map[string]string{
		"":        "en",
		"garbage": "en",
		"EN-us":   "en-US",
		"de":      "de",
	}
	for input, want := range cases {
		if got := normalizeLocale(input); got != want {
			t.Fatalf("normalizeLocale(%q) = %q, want %q", input, got, want)
		}
	}
}
