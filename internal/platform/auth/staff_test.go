package auth

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testKeySetJSON(kids ...string) []byte {
	keys := ""
	for i, kid := range kids {
		if i > 0 {
			keys += ","
		}
		secret := base64.RawURLEncoding.EncodeToString([]byte("test-secret-material-" + kid))
		keys += fmt.Sprintf(`{"kty":"oct","kid":%q,"alg":"HS256","k":%q}`, kid, secret)
	}
	return []byte(`{"keys":[` + keys + `]}`)
}

func newTestAuthority(t *testing.T, opts ...StaffAuthorityOption) *StaffTokenAuthority {
	t.Helper()
	authority, err := NewStaffTokenAuthority(testKeySetJSON("2025-06", "2025-01"), "2025-06", "templhub-api", opts...)
	if err != nil {
		t.Fatalf("NewStaffTokenAuthority returned error: %v", err)
	}
	return authority
}

func TestStaffTokenRoundTrip(t *testing.T) {
	authority := newTestAuthority(t)

	token, expiresAt, err := authority.Issue("ops@templhub.dev", RoleStaff)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, err := authority.Verify(token)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if claims.Subject != "ops@templhub.dev" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if claims.Role != RoleStaff {
		t.Fatalf("unexpected role %q", claims.Role)
	}
}

func TestStaffTokenExpiry(t *testing.T) {
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	authority := newTestAuthority(t,
		WithStaffTokenTTL(time.Minute),
		WithStaffClock(func() time.Time { return current }),
	)

	token, _, err := authority.Issue("ops@templhub.dev", RoleAdmin)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	current = current.Add(2 * time.Minute)
	if _, err := authority.Verify(token); !errors.Is(err, ErrStaffTokenExpired) {
		t.Fatalf("expected ErrStaffTokenExpired, got %v", err)
	}
}

func TestStaffTokenRejectsUserRole(t *testing.T) {
	authority := newTestAuthority(t)
	if _, _, err := authority.Issue("someone@example.com", RoleUser); err == nil {
		t.Fatal("expected error issuing token for user role")
	}
}

func TestStaffTokenUnknownSigningKey(t *testing.T) {
	_, err := NewStaffTokenAuthority(testKeySetJSON("2025-06"), "missing", "templhub-api")
	if err == nil {
		t.Fatal("expected error for unknown signing key id")
	}
}

func TestRequireStaffToken(t *testing.T) {
	authority := newTestAuthority(t)

	var captured *Identity
	handler := authority.RequireStaffToken()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/mgmt/templates", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	token, _, err := authority.Issue("ops@templhub.dev", RoleStaff)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/mgmt/templates", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with token, got %d", rec.Code)
	}
	if captured == nil || !captured.HasRole(RoleStaff) {
		t.Fatalf("expected staff identity in context, got %+v", captured)
	}
}
