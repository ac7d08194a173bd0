package config

import (
	"os"
	"testing"
	"time"
)

// setRequired sets the env vars without which Load must fail.
func setRequired(t *testing.T) {
	t.Helper()
	os.Setenv("DATABASE_URL", "postgres://localhost:5432/tenantplane?sslmode=disable")
	os.Setenv("SESSION_SECRET", "0123456789abcdef0123456789abcdef")
	os.Setenv("BILLING_WEBHOOK_SECRET", "whsec_test")
}

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":8080")
	}
	if cfg.SessionTTL != "720h" {
		t.Errorf("SessionTTL = %q, want %q", cfg.SessionTTL, "720h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "info")
	}
	if cfg.Env != "development" {
		t.Errorf("Env = %q, want %q", cfg.Env, "development")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("BCRYPT_COST", "14")
	os.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want %q", cfg.LogLevel, "debug")
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	os.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestLoad_ShortSessionSecret(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	os.Setenv("SESSION_SECRET", "too-short")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for short SESSION_SECRET")
	}
}

func TestLoad_MissingBillingWebhookSecret(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	os.Setenv("BILLING_WEBHOOK_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing BILLING_WEBHOOK_SECRET")
	}
}

func TestLoad_InvalidBcryptCost(t *testing.T) {
	os.Clearenv()
	setRequired(t)
	os.Setenv("BCRYPT_COST", "99")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range BCRYPT_COST")
	}
}

func TestSessionLifetime(t *testing.T) {
	cfg := &Config{SessionTTL: "24h"}
	if got := cfg.SessionLifetime(); got != 24*time.Hour {
		t.Errorf("SessionLifetime = %v, want 24h", got)
	}

	cfg = &Config{SessionTTL: "not-a-duration"}
	if got := cfg.SessionLifetime(); got != 720*time.Hour {
		t.Errorf("SessionLifetime fallback = %v, want 720h", got)
	}
}
