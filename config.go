package teamauth

import (
	"errors"
	"time"

	"github.com/dossier-crm/teamauth/internal/tokens"
	"github.com/dossier-crm/teamauth/jwt"
	"github.com/dossier-crm/teamauth/password"
)

// Config holds every engine setting. It is copied when handed to [Builder.WithConfig]
// and treated as immutable afterwards.
type Config struct {
	JWT      JWTConfig
	Password PasswordConfig
	Tokens   TokenConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig

	// ValidationMode is the default mode for ValidateAccess when a route passes ModeInherit.
	ValidationMode ValidationMode
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the access and refresh token signer. The two secrets must differ.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Cost int
	// UpgradeOnLogin re-hashes passwords stored below Cost after a successful login.
	UpgradeOnLogin bool
}

/*
====================================
TOKEN CONFIG
====================================
*/

// TokenConfig sizes the opaque invite, reset and verification tokens.
type TokenConfig struct {
	ByteLength      int
	ResetTTL        time.Duration
	VerificationTTL time.Duration
	InviteTTL       time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls throttling. Throttles only apply when a Redis client is
// supplied to the builder.
type SecurityConfig struct {
	ProductionMode bool

	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration

	MaxResetRequests      int
	ResetRequestCooldown  time.Duration
	MaxAccountCreations   int
	AccountCreationWindow time.Duration

	MaxVerificationRequests int
	VerificationCooldown    time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
	// MaxBatch and FlushInterval bound how many events, and for how long, are held
	// before one delivery to the sink.
	MaxBatch      int
	FlushInterval time.Duration
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// ValidationMode selects how much ValidateAccess trusts an access token.
type ValidationMode int

const (
	// ModeInherit defers to Config.ValidationMode.
	ModeInherit ValidationMode = -1

	// ModeJWTOnly trusts signed claims without a database read.
	ModeJWTOnly ValidationMode = iota
	// ModeStrict re-reads the user and rejects tokens whose role or team is stale.
	ModeStrict
)

// RouteMode is the per-call override passed to ValidateAccess.
type RouteMode = ValidationMode

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns development-safe defaults. Secrets are left empty and must be
// supplied by the caller.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  jwt.DefaultAccessTTL,
			RefreshTTL: jwt.DefaultRefreshTTL,
			Issuer:     "dossier-auth",
		},
		Password: PasswordConfig{
			Cost:           password.DefaultCost,
			UpgradeOnLogin: true,
		},
		Tokens: TokenConfig{
			ByteLength:      tokens.DefaultByteLength,
			ResetTTL:        tokens.PasswordResetTTL,
			VerificationTTL: tokens.EmailVerificationTTL,
			InviteTTL:       tokens.InviteTTL,
		},
		Security: SecurityConfig{
			EnableIPThrottle:        true,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxResetRequests:        5,
			ResetRequestCooldown:    time.Hour,
			MaxAccountCreations:     5,
			AccountCreationWindow:   time.Hour,
			MaxVerificationRequests: 5,
			VerificationCooldown:    time.Hour,
		},
		Audit: AuditConfig{
			Enabled:       true,
			BufferSize:    1024,
			DropIfFull:    true,
			MaxBatch:      64,
			FlushInterval: 200 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		ValidationMode: ModeJWTOnly,
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate rejects configurations the engine cannot run safely with.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) == 0 || len(c.JWT.RefreshSecret) == 0 {
		return errors.New("JWT AccessSecret and RefreshSecret are required")
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Cost < 4 || c.Password.Cost > 31 {
		return errors.New("Password Cost must be between 4 and 31")
	}

	// Tokens
	if c.Tokens.ByteLength < 16 {
		return errors.New("Tokens ByteLength must be >= 16")
	}
	if c.Tokens.ResetTTL <= 0 || c.Tokens.VerificationTTL <= 0 || c.Tokens.InviteTTL <= 0 {
		return errors.New("Tokens TTLs must be > 0")
	}

	// Security
	if c.Security.MaxLoginAttempts < 0 || c.Security.MaxResetRequests < 0 ||
		c.Security.MaxAccountCreations < 0 || c.Security.MaxVerificationRequests < 0 {
		return errors.New("Security attempt budgets must be >= 0")
	}
	if c.Security.MaxLoginAttempts > 0 && c.Security.LoginCooldownDuration <= 0 {
		return errors.New("Security LoginCooldownDuration must be > 0")
	}
	if c.Security.MaxResetRequests > 0 && c.Security.ResetRequestCooldown <= 0 {
		return errors.New("Security ResetRequestCooldown must be > 0")
	}
	if c.Security.MaxAccountCreations > 0 && c.Security.AccountCreationWindow <= 0 {
		return errors.New("Security AccountCreationWindow must be > 0")
	}
	if c.Security.MaxVerificationRequests > 0 && c.Security.VerificationCooldown <= 0 {
		return errors.New("Security VerificationCooldown must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Audit.MaxBatch < 0 || c.Audit.FlushInterval < 0 {
		return errors.New("Audit MaxBatch and FlushInterval must be >= 0")
	}

	switch c.ValidationMode {
	case ModeJWTOnly, ModeStrict:
	default:
		return errors.New("invalid ValidationMode")
	}

	if c.Security.ProductionMode {
		if len(c.JWT.AccessSecret) < 32 || len(c.JWT.RefreshSecret) < 32 {
			return errors.New("ProductionMode requires JWT secrets of at least 256 bits")
		}
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires JWT AccessTTL <= 15m")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if c.Password.Cost < 10 {
			return errors.New("ProductionMode requires Password Cost >= 10")
		}
		if c.Tokens.ByteLength < 32 {
			return errors.New("ProductionMode requires Tokens ByteLength >= 32")
		}
		if c.Security.MaxLoginAttempts == 0 {
			return errors.New("ProductionMode requires login throttling")
		}
	}

	return nil
}
