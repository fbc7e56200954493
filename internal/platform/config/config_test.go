package config

import (
	"context"
	"errors"
	"testing"
	"time"
)

func baseEnv() map[string]string {
	return map[string]string{
		"API_ENVIRONMENT":          "test",
		"API_FIRESTORE_PROJECT_ID": "templhub-test",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(baseEnv()),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != defaultPort {
		t.Fatalf("expected default port %d, got %d", defaultPort, cfg.Server.Port)
	}
	if cfg.Catalog.DefaultPageSize != defaultCatalogPage {
		t.Fatalf("expected default page size %d, got %d", defaultCatalogPage, cfg.Catalog.DefaultPageSize)
	}
	if cfg.Stripe.Currency != "USD" {
		t.Fatalf("expected default currency USD, got %q", cfg.Stripe.Currency)
	}
	if cfg.Staff.TokenTTL != defaultStaffTokenTTL {
		t.Fatalf("expected default staff token ttl, got %v", cfg.Staff.TokenTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["API_SERVER_PORT"] = "9090"
	env["API_SERVER_READ_TIMEOUT"] = "5s"
	env["API_SERVER_ALLOWED_ORIGINS"] = "https://templhub.dev, https://www.templhub.dev"
	env["API_CHAT_WEBHOOK_URL"] = "https://hooks.example.com/chat"

	cfg, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(env))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("expected 5s read timeout, got %v", cfg.Server.ReadTimeout)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Chat.WebhookURL != "https://hooks.example.com/chat" {
		t.Fatalf("unexpected chat webhook %q", cfg.Chat.WebhookURL)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	env := baseEnv()
	env["API_STRIPE_API_KEY"] = "secret://stripe-api-key"

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if ref != "secret://stripe-api-key" {
			t.Fatalf("unexpected secret ref %q", ref)
		}
		return "sk_test_resolved", nil
	})

	cfg, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Stripe.APIKey != "sk_test_resolved" {
		t.Fatalf("expected resolved secret, got %q", cfg.Stripe.APIKey)
	}
}

func TestLoadReportsMissingRequiredSecrets(t *testing.T) {
	env := baseEnv()
	env["API_STRIPE_API_KEY"] = "secret://stripe-api-key"

	resolver := SecretResolverFunc(func(context.Context, string) (string, error) {
		return "", errors.New("unavailable")
	})

	_, err := Load(context.Background(),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithEnvMap(env),
		WithSecretResolver(resolver),
		WithRequiredSecrets("Stripe.APIKey"),
	)

	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %v", err)
	}
	names := missing.RedactedNames()
	if len(names) != 1 || names[0] != "Stripe.APIKey" {
		t.Fatalf("unexpected missing secret names %v", names)
	}
}

func TestLoadValidation(t *testing.T) {
	env := baseEnv()
	env["API_SERVER_PORT"] = "-1"

	_, err := Load(context.Background(), WithoutSystemEnv(), WithEnvFile(""), WithEnvMap(env))
	var validation *ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}
