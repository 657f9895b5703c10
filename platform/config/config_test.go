package config

import (
	"net/http"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/rac")
	t.Setenv("JWT_ACCESS_SECRET", "access")
	t.Setenv("JWT_REFRESH_SECRET", "refresh")
}

func TestFromEnvRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_ACCESS_SECRET", "a")
	t.Setenv("JWT_REFRESH_SECRET", "b")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error without DATABASE_URL")
	}
}

func TestFromEnvRejectsWildcardCORSWithCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("CORS_ORIGINS", "*")
	t.Setenv("CORS_ALLOW_CREDENTIALS", "true")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for wildcard origin with credentials")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("SMTP_HOST", "")
	t.Setenv("STRIPE_SECRET_KEY", "")
	t.Setenv("REFRESH_COOKIE_SAMESITE", "strict")
	t.Setenv("STAFF_ALERT_EMAILS", " ops@example.fr, ,admin@example.fr ")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.GetEmailEnabled() {
		t.Error("email should be disabled without SMTP_HOST")
	}
	if cfg.IsPaymentsEnabled() {
		t.Error("payments should be disabled without a secret key")
	}
	if cfg.GetAccessTokenTTL() != 15*time.Minute {
		t.Errorf("unexpected access TTL %s", cfg.GetAccessTokenTTL())
	}
	if cfg.GetRefreshCookieSameSite() != http.SameSiteStrictMode {
		t.Errorf("expected strict same-site")
	}
	if got := cfg.GetStaffAlertEmails(); len(got) != 2 || got[1] != "admin@example.fr" {
		t.Errorf("unexpected staff emails %v", got)
	}
}

func TestFromEnvRequiresWebhookSecretWithStripe(t *testing.T) {
	setRequired(t)
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_123")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")

	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error without webhook secret")
	}
}
