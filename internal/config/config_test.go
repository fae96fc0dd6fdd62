package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadFromDevelopmentDefaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Production() {
		t.Fatal("expected development by default")
	}
	if cfg.HTTPAddr != ":8080" || cfg.AccessTokenTTL != 15*time.Minute || cfg.RefreshTokenTTL != 7*24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.JWTSecret == "" || cfg.JWTSecret == cfg.JWTRefreshSecret {
		t.Fatal("expected distinct development secrets")
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != cfg.FrontendURL {
		t.Fatalf("expected origins to default to the frontend, got %v", cfg.AllowedOrigins)
	}
	if cfg.AuthRateLimit != 5 {
		t.Fatalf("expected 5 auth requests per minute, got %d", cfg.AuthRateLimit)
	}
}

func TestLoadFromProductionRequiresSecrets(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENV":          "production",
		"DATABASE_URL": "postgres://db/crm",
	}))
	if err == nil {
		t.Fatal("expected production without secrets to fail")
	}
	for _, name := range []string{"JWT_SECRET", "JWT_REFRESH_SECRET", "FRONTEND_URL"} {
		if !strings.Contains(err.Error(), name) {
			t.Fatalf("expected %s in %q", name, err)
		}
	}
}

func TestLoadFromProductionRejectsDevSecrets(t *testing.T) {
	_, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENV":                "production",
		"DATABASE_URL":       "postgres://db/crm",
		"FRONTEND_URL":       "https://app.example.com",
		"JWT_SECRET":         devJWTSecret,
		"JWT_REFRESH_SECRET": "prod-refresh-secret",
	}))
	if err == nil {
		t.Fatal("expected development secret to be rejected in production")
	}
}

func TestLoadFromParsesOverrides(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENV":                  "production",
		"DATABASE_URL":         "postgres://db/crm",
		"FRONTEND_URL":         "https://app.example.com",
		"JWT_SECRET":           "prod-access",
		"JWT_REFRESH_SECRET":   "prod-refresh",
		"ACCESS_TOKEN_TTL":     "5m",
		"CORS_ALLOWED_ORIGINS": "https://a.example.com,https://b.example.com",
		"AUTH_RATE_LIMIT":      "10",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Production() || cfg.AccessTokenTTL != 5*time.Minute || cfg.AuthRateLimit != 10 {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.AllowedOrigins)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(path, []byte("HTTP_ADDR=:9191\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("HTTP_ADDR", "")
	os.Unsetenv("HTTP_ADDR")

	cfg, err := Load(context.Background(), path, filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.HTTPAddr != ":9191" {
		t.Fatalf("expected addr from env file, got %q", cfg.HTTPAddr)
	}
}
