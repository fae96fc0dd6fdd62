package teamauth

import (
	"errors"
	"time"

	internalaudit "github.com/dossier-crm/teamauth/internal/audit"
	"github.com/dossier-crm/teamauth/internal/limiters"
	"github.com/dossier-crm/teamauth/internal/stores"
	"github.com/dossier-crm/teamauth/internal/tokens"
	"github.com/dossier-crm/teamauth/jwt"
	"github.com/dossier-crm/teamauth/password"
	"github.com/dossier-crm/teamauth/permission"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const instrumentationName = "github.com/dossier-crm/teamauth"

// Builder assembles an Engine. A Builder is single use.
type Builder struct {
	config Config
	db     *gorm.DB
	redis  redis.UniversalClient

	permissions []string
	roles       map[string][]string

	auditSink      AuditSink
	notifier       Notifier
	logger         zerolog.Logger
	tracerProvider trace.TracerProvider
	clock          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig] and the default CRM roles.
func New() *Builder {
	return &Builder{
		config:      DefaultConfig(),
		permissions: permission.All(),
		roles:       permission.DefaultRoles(),
		logger:      zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithDatabase sets the gorm handle backing the account and session stores. Required.
func (b *Builder) WithDatabase(db *gorm.DB) *Builder {
	b.db = db
	return b
}

// WithRedis enables the login, reset, verification and account-creation throttles.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRoles replaces the default permission set and role table.
func (b *Builder) WithRoles(perms []string, roles map[string][]string) *Builder {
	b.permissions = perms
	b.roles = roles
	return b
}

// WithAuditSink overrides where audit events go. Without it, events are written to the
// audit_logs table.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithTracerProvider(tp trace.TracerProvider) *Builder {
	b.tracerProvider = tp
	return b
}

// WithClock overrides the engine clock. Tests use it to pin expiry boundaries.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.db == nil {
		return nil, errors.New("database handle required")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// -------- PERMISSIONS --------
	registry, roles, err := permission.Build(b.permissions, b.roles)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		store:    stores.New(b.db),
		registry: registry,
		roles:    roles,
		metrics:  NewMetrics(cfg.Metrics),
		logger:   b.logger,
		notifier: b.notifier,
		clock:    b.clock,
	}
	if engine.clock == nil {
		engine.clock = time.Now
	}
	if engine.notifier == nil {
		engine.notifier = noopNotifier{}
	}

	tp := b.tracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	engine.tracer = tp.Tracer(instrumentationName)

	// -------- CREDENTIALS --------
	engine.hasher, err = password.NewBcrypt(password.Config{Cost: cfg.Password.Cost})
	if err != nil {
		return nil, err
	}

	engine.jwtManager, err = jwt.NewManager(jwt.Config{
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Issuer:        cfg.JWT.Issuer,
		Leeway:        cfg.JWT.Leeway,
		Now:           engine.now,
	})
	if err != nil {
		return nil, err
	}

	engine.tokens = tokens.NewGenerator(tokens.Config{
		ByteLength:           cfg.Tokens.ByteLength,
		PasswordResetTTL:     cfg.Tokens.ResetTTL,
		EmailVerificationTTL: cfg.Tokens.VerificationTTL,
		InviteTTL:            cfg.Tokens.InviteTTL,
		Now:                  engine.now,
	})

	// -------- THROTTLES --------
	if b.redis != nil {
		sec := cfg.Security
		engine.loginLimiter = limiters.NewLoginLimiter(b.redis, limiters.LoginConfig{
			EnableIPThrottle: sec.EnableIPThrottle,
			Failures:         limiters.Window{Max: sec.MaxLoginAttempts, Period: sec.LoginCooldownDuration},
		})
		scoped := func(scope limiters.Scope, w limiters.Window) *limiters.ScopedLimiter {
			return limiters.NewScopedLimiter(b.redis, scope, limiters.ScopedConfig{
				EnableIdentifierThrottle: true,
				EnableIPThrottle:         sec.EnableIPThrottle,
				Attempts:                 w,
			})
		}
		engine.resetLimiter = scoped(limiters.PasswordReset,
			limiters.Window{Max: sec.MaxResetRequests, Period: sec.ResetRequestCooldown})
		engine.accountLimiter = scoped(limiters.AccountCreation,
			limiters.Window{Max: sec.MaxAccountCreations, Period: sec.AccountCreationWindow})
		engine.verificationLimiter = scoped(limiters.EmailVerification,
			limiters.Window{Max: sec.MaxVerificationRequests, Period: sec.VerificationCooldown})
	}

	// -------- AUDIT --------
	if cfg.Audit.Enabled {
		sink := b.auditSink
		if sink == nil {
			sink = internalaudit.NewStoreSink(engine.store, b.logger)
		}
		engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
			BufferSize:    cfg.Audit.BufferSize,
			DropIfFull:    cfg.Audit.DropIfFull,
			MaxBatch:      cfg.Audit.MaxBatch,
			FlushInterval: cfg.Audit.FlushInterval,
		}, sink)
	}

	b.built = true

	return engine, nil
}
