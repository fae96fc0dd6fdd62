package teamauth

import (
	"slices"
	"testing"
	"time"

	"github.com/dossier-crm/teamauth/permission"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{name: "defaults with secrets", mutate: func(*Config) {}, wantValid: true},
		{
			name:   "missing refresh secret",
			mutate: func(c *Config) { c.JWT.RefreshSecret = nil },
		},
		{
			name:   "shared secrets",
			mutate: func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret },
		},
		{
			name:   "refresh shorter than access",
			mutate: func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL / 2 },
		},
		{
			name:      "leeway within bound",
			mutate:    func(c *Config) { c.JWT.Leeway = 45 * time.Second },
			wantValid: true,
		},
		{
			name:   "leeway too large",
			mutate: func(c *Config) { c.JWT.Leeway = 3 * time.Minute },
		},
		{
			name:   "bcrypt cost out of range",
			mutate: func(c *Config) { c.Password.Cost = 32 },
		},
		{
			name:   "short opaque tokens",
			mutate: func(c *Config) { c.Tokens.ByteLength = 8 },
		},
		{
			name:   "zero invite ttl",
			mutate: func(c *Config) { c.Tokens.InviteTTL = 0 },
		},
		{
			name:   "login budget without cooldown",
			mutate: func(c *Config) { c.Security.LoginCooldownDuration = 0 },
		},
		{
			name: "throttle disabled needs no cooldown",
			mutate: func(c *Config) {
				c.Security.MaxLoginAttempts = 0
				c.Security.LoginCooldownDuration = 0
			},
			wantValid: true,
		},
		{
			name: "audit without buffer",
			mutate: func(c *Config) {
				c.Audit.Enabled = true
				c.Audit.BufferSize = 0
			},
		},
		{
			name:      "strict validation",
			mutate:    func(c *Config) { c.ValidationMode = ModeStrict },
			wantValid: true,
		},
		{
			name:   "inherit is not a default mode",
			mutate: func(c *Config) { c.ValidationMode = ModeInherit },
		},
		{
			name:   "unknown validation mode",
			mutate: func(c *Config) { c.ValidationMode = ValidationMode(77) },
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid config, got %v", err)
			}
			if !tc.wantValid && err == nil {
				t.Fatal("expected invalid config, got nil")
			}
		})
	}
}

func TestConfigProductionMode(t *testing.T) {
	prod := func() Config {
		cfg := testConfig()
		cfg.Security.ProductionMode = true
		cfg.Password.Cost = 12
		cfg.Tokens.ByteLength = 32
		return cfg
	}

	cfg := prod()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected production config to validate, got %v", err)
	}

	tests := map[string]func(*Config){
		"weak secret":       func(c *Config) { c.JWT.AccessSecret = []byte("short") },
		"long access ttl":   func(c *Config) { c.JWT.AccessTTL = time.Hour },
		"long refresh ttl":  func(c *Config) { c.JWT.RefreshTTL = 60 * 24 * time.Hour },
		"low bcrypt cost":   func(c *Config) { c.Password.Cost = 8 },
		"short tokens":      func(c *Config) { c.Tokens.ByteLength = 16 },
		"no login throttle": func(c *Config) { c.Security.MaxLoginAttempts = 0 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := prod()
			mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected production mode to reject config")
			}
		})
	}
}

func TestBuilderCopiesConfigSecrets(t *testing.T) {
	cfg := testConfig()
	cloned := cloneConfig(cfg)
	cfg.JWT.AccessSecret[0] = 'X'

	if cloned.JWT.AccessSecret[0] == 'X' {
		t.Fatal("expected cloned secret to be independent of the caller's slice")
	}
}

func TestSecurityReportReflectsPosture(t *testing.T) {
	env := newTestEngine(t, engineOptions{
		redis: true,
		config: func(cfg *Config) {
			cfg.Security.ProductionMode = true
			cfg.Password.Cost = 10
			cfg.ValidationMode = ModeStrict
			cfg.Audit.Enabled = true
		},
	})

	report := env.engine.SecurityReport()
	if !report.ProductionMode {
		t.Fatal("expected ProductionMode=true in report")
	}
	if report.SigningAlgorithm != "HS256" {
		t.Fatalf("expected HS256 signing algorithm in report, got %s", report.SigningAlgorithm)
	}
	if !report.StrictMode || report.ValidationMode != ModeStrict {
		t.Fatal("expected strict validation in report")
	}
	if !report.RateLimitingActive || !report.IPThrottleActive {
		t.Fatal("expected throttles active with redis configured")
	}
	if !report.AuditActive {
		t.Fatal("expected audit active in report")
	}
	if report.Bcrypt.Cost != 10 {
		t.Fatalf("expected bcrypt cost 10, got %d", report.Bcrypt.Cost)
	}
	if report.RefreshRotationMode != "single-use" {
		t.Fatalf("unexpected rotation mode %q", report.RefreshRotationMode)
	}
}

func TestSecurityReportWithoutRedis(t *testing.T) {
	env := newTestEngine(t, engineOptions{})

	report := env.engine.SecurityReport()
	if report.RateLimitingActive || report.IPThrottleActive {
		t.Fatal("throttles must be reported inactive without redis")
	}
	if report.AuditActive {
		t.Fatal("audit disabled in test config")
	}
}

func TestBuilderRejects(t *testing.T) {
	db := openTestDB(t)

	if _, err := New().WithConfig(testConfig()).Build(); err == nil {
		t.Fatal("expected missing database to fail")
	}

	roles := permission.DefaultRoles()
	delete(roles, RoleAdmin)
	if _, err := New().WithConfig(testConfig()).WithDatabase(db).WithRoles(permission.All(), roles).Build(); err == nil {
		t.Fatal("expected role table without admin to fail")
	}

	b := New().WithConfig(testConfig()).WithDatabase(db)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second build of the same builder to fail")
	}
}

func TestBuilderCustomRoles(t *testing.T) {
	perms := append(permission.All(), "billing.read")
	roles := permission.DefaultRoles()
	roles[RoleOwner] = append(roles[RoleOwner], "billing.read")

	engine, err := New().WithConfig(testConfig()).WithDatabase(openTestDB(t)).WithRoles(perms, roles).Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if !slices.Contains(engine.RolePermissions(RoleOwner), "billing.read") {
		t.Fatal("expected owner to hold the custom permission")
	}
	if slices.Contains(engine.RolePermissions(RoleAdmin), "billing.read") {
		t.Fatal("admin must not hold the custom permission")
	}
}
