package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultStaffTokenTTL = 30 * time.Minute
	staffTokenAudience   = "templhub-mgmt"
)

var (
	// ErrStaffTokenInvalid signals a malformed, mis-signed, or mis-scoped staff token.
	ErrStaffTokenInvalid = errors.New("auth: staff token invalid")
	// ErrStaffTokenExpired signals an expired staff token.
	ErrStaffTokenExpired = errors.New("auth: staff token expired")
)

// StaffClaims are the JWT claims carried by management tokens.
type StaffClaims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// StaffTokenAuthority issues and verifies the short-lived tokens guarding the
// management surface. Signing keys are supplied as a JSON Web Key Set so keys
// can rotate without invalidating tokens signed by the previous key.
type StaffTokenAuthority struct {
	keys       jose.JSONWebKeySet
	signingKID string
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// StaffAuthorityOption customises the authority.
type StaffAuthorityOption func(*StaffTokenAuthority)

// WithStaffTokenTTL overrides the issued token lifetime.
func WithStaffTokenTTL(ttl time.Duration) StaffAuthorityOption {
	return func(a *StaffTokenAuthority) {
		if ttl > 0 {
			a.ttl = ttl
		}
	}
}

// WithStaffClock injects a custom clock (useful for tests).
func WithStaffClock(clock func() time.Time) StaffAuthorityOption {
	return func(a *StaffTokenAuthority) {
		if clock != nil {
			a.now = clock
		}
	}
}

// NewStaffTokenAuthority parses the key set and selects the signing key.
// Keys must be symmetric ("oct") entries with a key id.
func NewStaffTokenAuthority(keySetJSON []byte, signingKID, issuer string, opts ...StaffAuthorityOption) (*StaffTokenAuthority, error) {
	if len(keySetJSON) == 0 {
		return nil, errors.New("auth: staff key set is required")
	}
	signingKID = strings.TrimSpace(signingKID)
	if signingKID == "" {
		return nil, errors.New("auth: staff signing key id is required")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("auth: staff token issuer is required")
	}

	var keys jose.JSONWebKeySet
	if err := json.Unmarshal(keySetJSON, &keys); err != nil {
		return nil, fmt.Errorf("auth: parse staff key set: %w", err)
	}
	if len(keys.Keys) == 0 {
		return nil, errors.New("auth: staff key set contains no keys")
	}

	authority := &StaffTokenAuthority{
		keys:       keys,
		signingKID: signingKID,
		issuer:     issuer,
		ttl:        defaultStaffTokenTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(authority)
		}
	}

	if _, err := authority.secretForKID(signingKID); err != nil {
		return nil, err
	}
	return authority, nil
}

// Issue creates a signed token for the given staff subject and role.
func (a *StaffTokenAuthority) Issue(subject, role string) (string, time.Time, error) {
	if a == nil {
		return "", time.Time{}, errors.New("auth: staff token authority not initialised")
	}
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("auth: staff token subject is required")
	}
	role = normaliseRole(role)
	if role != RoleStaff && role != RoleAdmin {
		return "", time.Time{}, fmt.Errorf("auth: role %q cannot hold a staff token", role)
	}

	secret, err := a.secretForKID(a.signingKID)
	if err != nil {
		return "", time.Time{}, err
	}

	issuedAt := a.now().UTC()
	expiresAt := issuedAt.Add(a.ttl)
	claims := StaffClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{staffTokenAudience},
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Role: role,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = a.signingKID

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign staff token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a staff token, returning its claims.
func (a *StaffTokenAuthority) Verify(tokenString string) (*StaffClaims, error) {
	if a == nil {
		return nil, ErrStaffTokenInvalid
	}
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrStaffTokenInvalid
	}

	claims := &StaffClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithAudience(staffTokenAudience),
		jwt.WithTimeFunc(a.now),
	)

	_, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("missing kid header")
		}
		return a.secretForKID(kid)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrStaffTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrStaffTokenInvalid, err)
	}

	role := normaliseRole(claims.Role)
	if role != RoleStaff && role != RoleAdmin {
		return nil, ErrStaffTokenInvalid
	}
	claims.Role = role
	return claims, nil
}

// RequireStaffToken guards management routes with staff token verification.
func (a *StaffTokenAuthority) RequireStaffToken() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}

			claims, err := a.Verify(tokenStr)
			if err != nil {
				switch {
				case errors.Is(err, ErrStaffTokenExpired):
					respondAuthError(w, http.StatusUnauthorized, "token_expired", "staff token expired")
				default:
					respondAuthError(w, http.StatusUnauthorized, "invalid_token", "staff token invalid")
				}
				return
			}

			identity := &Identity{
				UID:   claims.Subject,
				Roles: []string{claims.Role},
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func (a *StaffTokenAuthority) secretForKID(kid string) ([]byte, error) {
	matches := a.keys.Key(kid)
	if len(matches) == 0 {
		return nil, fmt.Errorf("auth: staff key %q not found in key set", kid)
	}
	secret, ok := matches[0].Key.([]byte)
	if !ok || len(secret) == 0 {
		return nil, fmt.Errorf("auth: staff key %q is not a symmetric key", kid)
	}
	return secret, nil
}
