// Package config assembles the API configuration from defaults, an optional
// .env file, process environment variables, and Secret Manager references.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile        = ".env"
	defaultPort           = 8080
	defaultReadTimeout    = 10 * time.Second
	defaultWriteTimeout   = 30 * time.Second
	defaultIdleTimeout    = 60 * time.Second
	defaultChatTimeout    = 10 * time.Second
	defaultStaffTokenTTL  = 30 * time.Minute
	defaultStaffIssuer    = "templhub-api"
	defaultCatalogPage    = 20
	defaultCatalogMaxPage = 100
	defaultFeaturedLimit  = 8
	defaultCurrency       = "USD"
)

// Config is the root configuration consumed by the composition roots.
type Config struct {
	Environment string
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Storage     StorageConfig
	Stripe      StripeConfig
	Chat        ChatConfig
	Events      EventsConfig
	Catalog     CatalogConfig
	Staff       StaffConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// FirebaseConfig holds Firebase Admin SDK settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig holds Firestore client settings.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig holds Cloud Storage settings for template archive delivery.
type StorageConfig struct {
	ArchiveBucket string
	SignerKeyFile string
}

// StripeConfig holds payment provider credentials.
type StripeConfig struct {
	APIKey        string
	WebhookSecret string
	Currency      string
}

// ChatConfig holds the support chat relay settings.
type ChatConfig struct {
	WebhookURL string
	AuthToken  string
	Timeout    time.Duration
}

// EventsConfig holds Pub/Sub settings for recorded-order events.
type EventsConfig struct {
	ProjectID  string
	OrderTopic string
}

// CatalogConfig tunes catalog listing behaviour.
type CatalogConfig struct {
	DefaultPageSize int
	MaxPageSize     int
	FeaturedLimit   int
}

// StaffConfig drives the management credential exchange and token signing.
type StaffConfig struct {
	Username   string
	Password   string
	KeySetJSON string
	SigningKID string
	Issuer     string
	TokenTTL   time.Duration
}

// SecretResolver resolves references to external secrets (secret:// URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// MissingSecretsError indicates that one or more required secrets failed to resolve.
type MissingSecretsError struct {
	names []string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns the field names whose secrets failed to resolve.
// Secret values and references are never included.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.names) == 0 {
		return nil
	}
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("config: secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithEnvMap injects an explicit key/value map taking precedence over the
// system environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) { o.envMap = values }
}

// WithoutSystemEnv disables reading from os.LookupEnv.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) { o.useSystemEnv = false }
}

// WithSecretResolver sets the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) { o.secret = resolver }
}

// WithRequiredSecrets marks the provided config field names as mandatory
// (e.g. "Stripe.APIKey").
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) { o.requiredSecrets = append(o.requiredSecrets, names...) }
}

// EnvironmentValues returns the effective key/value environment map using the
// same precedence rules as Load (dotenv < OS env < explicit map).
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{envFile: defaultEnvFile, useSystemEnv: true}
	for _, opt := range opts {
		opt(&options)
	}

	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = map[string]string{}
	}

	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
				continue
			}
			values[strings.TrimSpace(parts[0])] = parts[1]
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

// Load assembles the application configuration.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(context.Context, string) (string, error) {
			return "", errSecretResolverNotConfigured
		}),
	}
	for _, opt := range opts {
		opt(&options)
	}

	values, err := EnvironmentValues(
		WithEnvFile(options.envFile),
		WithEnvMap(options.envMap),
		func(o *loaderOptions) { o.useSystemEnv = options.useSystemEnv },
	)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) string {
		return strings.TrimSpace(values[key])
	}

	cfg := Config{
		Environment: firstNonEmpty(lookup("API_ENVIRONMENT"), "local"),
		Server: ServerConfig{
			Port:           lookupInt(values, "API_SERVER_PORT", defaultPort),
			ReadTimeout:    lookupDuration(values, "API_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:   lookupDuration(values, "API_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:    lookupDuration(values, "API_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			AllowedOrigins: splitList(lookup("API_SERVER_ALLOWED_ORIGINS")),
		},
		Firebase: FirebaseConfig{
			ProjectID:       firstNonEmpty(lookup("API_FIREBASE_PROJECT_ID"), lookup("GOOGLE_CLOUD_PROJECT")),
			CredentialsFile: lookup("API_FIREBASE_CREDENTIALS_FILE"),
		},
		Firestore: FirestoreConfig{
			ProjectID:    firstNonEmpty(lookup("API_FIRESTORE_PROJECT_ID"), lookup("GOOGLE_CLOUD_PROJECT")),
			EmulatorHost: lookup("FIRESTORE_EMULATOR_HOST"),
		},
		Storage: StorageConfig{
			ArchiveBucket: lookup("API_STORAGE_ARCHIVE_BUCKET"),
			SignerKeyFile: lookup("API_STORAGE_SIGNER_KEY_FILE"),
		},
		Stripe: StripeConfig{
			APIKey:        lookup("API_STRIPE_API_KEY"),
			WebhookSecret: lookup("API_STRIPE_WEBHOOK_SECRET"),
			Currency:      strings.ToUpper(firstNonEmpty(lookup("API_STRIPE_CURRENCY"), defaultCurrency)),
		},
		Chat: ChatConfig{
			WebhookURL: lookup("API_CHAT_WEBHOOK_URL"),
			AuthToken:  lookup("API_CHAT_AUTH_TOKEN"),
			Timeout:    lookupDuration(values, "API_CHAT_TIMEOUT", defaultChatTimeout),
		},
		Events: EventsConfig{
			ProjectID:  firstNonEmpty(lookup("API_EVENTS_PROJECT_ID"), lookup("GOOGLE_CLOUD_PROJECT")),
			OrderTopic: lookup("API_EVENTS_ORDER_TOPIC"),
		},
		Catalog: CatalogConfig{
			DefaultPageSize: lookupInt(values, "API_CATALOG_DEFAULT_PAGE_SIZE", defaultCatalogPage),
			MaxPageSize:     lookupInt(values, "API_CATALOG_MAX_PAGE_SIZE", defaultCatalogMaxPage),
			FeaturedLimit:   lookupInt(values, "API_CATALOG_FEATURED_LIMIT", defaultFeaturedLimit),
		},
		Staff: StaffConfig{
			Username:   lookup("API_STAFF_USERNAME"),
			Password:   lookup("API_STAFF_PASSWORD"),
			KeySetJSON: lookup("API_STAFF_KEY_SET"),
			SigningKID: lookup("API_STAFF_SIGNING_KID"),
			Issuer:     firstNonEmpty(lookup("API_STAFF_ISSUER"), defaultStaffIssuer),
			TokenTTL:   lookupDuration(values, "API_STAFF_TOKEN_TTL", defaultStaffTokenTTL),
		},
	}

	if err := resolveSecrets(ctx, &cfg, options); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// secretFields enumerates the config fields that may carry secret references.
func secretFields(cfg *Config) map[string]*string {
	return map[string]*string{
		"Stripe.APIKey":        &cfg.Stripe.APIKey,
		"Stripe.WebhookSecret": &cfg.Stripe.WebhookSecret,
		"Chat.AuthToken":       &cfg.Chat.AuthToken,
		"Staff.Password":       &cfg.Staff.Password,
		"Staff.KeySetJSON":     &cfg.Staff.KeySetJSON,
	}
}

func resolveSecrets(ctx context.Context, cfg *Config, options loaderOptions) error {
	fields := secretFields(cfg)

	var missing []string
	for name, target := range fields {
		value := strings.TrimSpace(*target)
		if strings.HasPrefix(value, "secret://") {
			resolved, err := options.secret.ResolveSecret(ctx, value)
			if err != nil || strings.TrimSpace(resolved) == "" {
				*target = ""
				if isRequiredSecret(name, options.requiredSecrets) {
					missing = append(missing, name)
				}
				continue
			}
			*target = resolved
			continue
		}
		if value == "" && isRequiredSecret(name, options.requiredSecrets) {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return &MissingSecretsError{names: missing}
	}
	return nil
}

func isRequiredSecret(name string, required []string) bool {
	for _, candidate := range required {
		if strings.EqualFold(strings.TrimSpace(candidate), name) {
			return true
		}
	}
	return false
}

func validate(cfg Config) error {
	var fields []string
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		fields = append(fields, "Server.Port")
	}
	if cfg.Firestore.ProjectID == "" && cfg.Firestore.EmulatorHost == "" {
		fields = append(fields, "Firestore.ProjectID")
	}
	if cfg.Catalog.DefaultPageSize <= 0 || cfg.Catalog.DefaultPageSize > cfg.Catalog.MaxPageSize {
		fields = append(fields, "Catalog.DefaultPageSize")
	}
	if len(fields) > 0 {
		return &ValidationError{fields: fields}
	}
	return nil
}

func loadDotEnv(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return map[string]string{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}

	values := map[string]string{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		value := strings.TrimSpace(parts[1])
		value = strings.Trim(value, `"'`)
		values[key] = value
	}
	return values, nil
}

func lookupInt(values map[string]string, key string, fallback int) int {
	raw := strings.TrimSpace(values[key])
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func lookupDuration(values map[string]string, key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(values[key])
	if raw == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
