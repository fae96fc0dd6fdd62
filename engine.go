package teamauth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	internalaudit "github.com/dossier-crm/teamauth/internal/audit"
	"github.com/dossier-crm/teamauth/internal/limiters"
	"github.com/dossier-crm/teamauth/internal/stores"
	"github.com/dossier-crm/teamauth/internal/tokens"
	"github.com/dossier-crm/teamauth/jwt"
	"github.com/dossier-crm/teamauth/password"
	"github.com/dossier-crm/teamauth/permission"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Engine issues, verifies, rotates and revokes team credentials.
//
// Engine instances are built once through [Builder] and are safe for concurrent use. The
// engine keeps no per-user state in memory: every call re-reads the account and session
// stores before acting.
type Engine struct {
	config Config
	store  *stores.Store

	registry *permission.Registry
	roles    *permission.RoleTable

	hasher     *password.Bcrypt
	jwtManager *jwt.Manager
	tokens     *tokens.Generator

	loginLimiter        *limiters.LoginLimiter
	resetLimiter        *limiters.ScopedLimiter
	accountLimiter      *limiters.ScopedLimiter
	verificationLimiter *limiters.ScopedLimiter

	audit    *internalaudit.Dispatcher
	metrics  *Metrics
	notifier Notifier
	logger   zerolog.Logger
	tracer   trace.Tracer
	clock    func() time.Time
}

// Close flushes pending audit events. The engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were discarded because the buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return emptySnapshot()
	}
	return e.metrics.Snapshot()
}

// Ping checks that the account store is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}
	return e.store.Ping(ctx)
}

// AccessTTL and RefreshTTL let transports size cookies to the tokens they carry.
func (e *Engine) AccessTTL() time.Duration  { return e.jwtManager.AccessTTL() }
func (e *Engine) RefreshTTL() time.Duration { return e.jwtManager.RefreshTTL() }

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// now is the single clock of the engine. Stored timestamps keep microsecond precision
// so that values read back from the database compare equal to the ones written.
func (e *Engine) now() time.Time {
	return e.clock().UTC().Truncate(time.Microsecond)
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.hasher != nil && e.jwtManager != nil && e.tokens != nil
}

/*
====================================
TRACING
====================================
*/

func (e *Engine) startSpan(ctx context.Context, op string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "teamauth."+op)
}

// finishSpan ends span. Engine errors are expected outcomes and only tag the span with
// their code; anything else marks it failed.
func finishSpan(span trace.Span, err error) {
	if err != nil {
		if authErr, ok := AsError(err); ok {
			span.SetAttributes(attribute.String("teamauth.error_code", string(authErr.Code())))
		} else {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

/*
====================================
LOGIN / LOGOUT
====================================
*/

// Login authenticates email and password and opens a new session.
//
// Unknown emails and wrong passwords both fail with [ErrInvalidCredentials]. When a
// throttle is configured, repeated failures for one email or client IP fail with
// [ErrRateLimited] until the window passes.
func (e *Engine) Login(ctx context.Context, email, password string) (_ *AuthResponse, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Login")
	defer func() { finishSpan(span, err) }()

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if err := e.loginLimiter.Check(ctx, email, ip); err != nil {
		if errors.Is(err, limiters.ErrRateLimited) {
			e.metricInc(MetricLoginRateLimited)
		}
		return nil, e.limiterError(ctx, "login", err, auditRecord{metadata: map[string]string{"email": email}})
	}

	user, err := e.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return nil, e.loginFailed(ctx, email, ip, auditRecord{metadata: map[string]string{"email": email, "reason": "unknown_email"}})
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	ok, verr := e.hasher.Verify(password, user.PasswordHash)
	if verr != nil || !ok {
		return nil, e.loginFailed(ctx, email, ip, auditRecord{
			userID:   user.ID.String(),
			teamID:   user.TeamID.String(),
			metadata: map[string]string{"email": email, "reason": "bad_password"},
		})
	}

	e.upgradePasswordHash(ctx, user, password)

	var (
		issued    Tokens
		sessionID uuid.UUID
	)
	err = e.store.WithTx(ctx, func(tx *stores.Store) error {
		var txErr error
		issued, sessionID, txErr = e.createSession(ctx, tx, user)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	if rerr := e.loginLimiter.Reset(ctx, email); rerr != nil {
		e.logger.Warn().Err(rerr).Str("email", email).Msg("login throttle reset failed")
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditUserLogin, true, auditRecord{
		userID:    user.ID.String(),
		teamID:    user.TeamID.String(),
		sessionID: sessionID.String(),
	})

	return &AuthResponse{User: userView(user), Tokens: issued}, nil
}

func (e *Engine) loginFailed(ctx context.Context, email, ip string, rec auditRecord) error {
	if err := e.loginLimiter.RecordFailure(ctx, email, ip); err != nil && !errors.Is(err, limiters.ErrRateLimited) {
		e.logger.Warn().Err(err).Str("email", email).Msg("login failure not counted")
	}
	e.metricInc(MetricLoginFailure)
	rec.err = ErrInvalidCredentials
	e.emitAudit(ctx, auditUserLoginFailed, false, rec)
	return ErrInvalidCredentials
}

// upgradePasswordHash re-hashes password when the stored hash uses a lower cost than
// configured. Failures are logged; the login proceeds either way.
func (e *Engine) upgradePasswordHash(ctx context.Context, user *stores.User, password string) {
	if !e.config.Password.UpgradeOnLogin {
		return
	}
	needs, err := e.hasher.NeedsUpgrade(user.PasswordHash)
	if err != nil || !needs {
		return
	}
	hash, err := e.hasher.Hash(password)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("password rehash failed")
		return
	}
	if err := e.store.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		e.logger.Warn().Err(err).Str("user_id", user.ID.String()).Msg("password rehash not stored")
		return
	}
	user.PasswordHash = hash
}

// Logout deletes the session holding refreshToken. It succeeds when no session matches,
// so repeated or stale logouts are harmless.
func (e *Engine) Logout(ctx context.Context, refreshToken string) (err error) {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Logout")
	defer func() { finishSpan(span, err) }()

	if refreshToken == "" {
		return nil
	}

	removed, err := e.store.DeleteSessionByRefreshToken(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	rec := auditRecord{metadata: map[string]string{"removed": fmt.Sprint(removed)}}
	if claims, perr := e.jwtManager.ParseRefresh(refreshToken); perr == nil {
		rec.sessionID = claims.SessionID
	}
	if removed > 0 {
		e.metricInc(MetricSessionInvalidated)
	}
	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditUserLogout, true, rec)
	return nil
}

/*
====================================
REFRESH ROTATION
====================================
*/

// Refresh exchanges refreshToken for a new token pair bound to a new session and deletes
// the session it came from. A refresh token is accepted at most once: concurrent
// callers presenting the same token race on deleting its session and only the winner
// receives new tokens.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (_ *Tokens, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "Refresh")
	defer func() { finishSpan(span, err) }()

	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		return nil, ErrNoRefreshToken
	}

	claims, err := e.jwtManager.ParseRefresh(refreshToken)
	if err != nil {
		return nil, e.refreshFailed(ctx, auditRecord{metadata: map[string]string{"reason": "token_invalid"}})
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return nil, e.refreshFailed(ctx, auditRecord{metadata: map[string]string{"reason": "token_invalid"}})
	}

	session, err := e.store.SessionByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return nil, e.refreshFailed(ctx, auditRecord{
				sessionID: sessionID.String(),
				metadata:  map[string]string{"reason": "session_not_found"},
			})
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	// A rotated-away token still verifies; only the row decides whether it is current.
	if subtle.ConstantTimeCompare([]byte(session.RefreshToken), []byte(refreshToken)) != 1 || session.User == nil {
		return nil, e.refreshFailed(ctx, auditRecord{
			userID:    session.UserID.String(),
			sessionID: sessionID.String(),
			metadata:  map[string]string{"reason": "token_mismatch"},
		})
	}

	if !e.now().Before(session.ExpiresAt) {
		if derr := e.store.DeleteSession(ctx, session.ID); derr != nil {
			return nil, fmt.Errorf("delete expired session: %w", derr)
		}
		e.metricInc(MetricRefreshExpired)
		e.metricInc(MetricSessionInvalidated)
		e.emitAudit(ctx, auditSessionRefresh, false, auditRecord{
			userID:    session.UserID.String(),
			teamID:    session.User.TeamID.String(),
			sessionID: sessionID.String(),
			err:       ErrRefreshTokenExpired,
		})
		return nil, ErrRefreshTokenExpired
	}

	var (
		issued       Tokens
		newSessionID uuid.UUID
	)
	err = e.store.WithTx(ctx, func(tx *stores.Store) error {
		deleted, derr := tx.DeleteSessionIfToken(ctx, session.ID, refreshToken)
		if derr != nil {
			return fmt.Errorf("delete rotated session: %w", derr)
		}
		if !deleted {
			return ErrInvalidRefreshToken
		}
		var cerr error
		issued, newSessionID, cerr = e.createSession(ctx, tx, session.User)
		return cerr
	})
	if err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			return nil, e.refreshFailed(ctx, auditRecord{
				userID:    session.UserID.String(),
				sessionID: sessionID.String(),
				metadata:  map[string]string{"reason": "rotation_lost"},
			})
		}
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditSessionRefresh, true, auditRecord{
		userID:    session.UserID.String(),
		teamID:    session.User.TeamID.String(),
		sessionID: newSessionID.String(),
		metadata:  map[string]string{"rotated_from": sessionID.String()},
	})

	return &issued, nil
}

func (e *Engine) refreshFailed(ctx context.Context, rec auditRecord) error {
	e.metricInc(MetricRefreshFailure)
	rec.err = ErrInvalidRefreshToken
	e.emitAudit(ctx, auditSessionRefresh, false, rec)
	return ErrInvalidRefreshToken
}

// createSession opens a session for user inside tx and signs its token pair. The row is
// inserted with a placeholder token because the refresh token names the row id; the
// placeholder never outlives tx.
func (e *Engine) createSession(ctx context.Context, tx *stores.Store, user *stores.User) (Tokens, uuid.UUID, error) {
	session := &stores.Session{
		UserID:       user.ID,
		RefreshToken: "pending:" + uuid.NewString(),
		ExpiresAt:    e.jwtManager.RefreshExpiry(),
	}
	if err := tx.CreateSession(ctx, session); err != nil {
		return Tokens{}, uuid.Nil, fmt.Errorf("create session: %w", err)
	}

	var issued Tokens
	var g errgroup.Group
	g.Go(func() error {
		var err error
		issued.AccessToken, err = e.jwtManager.SignAccess(user.ID.String(), user.TeamID.String(), user.Role)
		return err
	})
	g.Go(func() error {
		var err error
		issued.RefreshToken, err = e.jwtManager.SignRefresh(session.ID.String())
		return err
	})
	if err := g.Wait(); err != nil {
		return Tokens{}, uuid.Nil, fmt.Errorf("sign tokens: %w", err)
	}

	if err := tx.SetSessionRefreshToken(ctx, session.ID, issued.RefreshToken); err != nil {
		return Tokens{}, uuid.Nil, fmt.Errorf("store refresh token: %w", err)
	}
	return issued, session.ID, nil
}

/*
====================================
ACCESS VALIDATION
====================================
*/

// ValidateAccess verifies an access token and resolves the caller's permissions.
//
// In [ModeJWTOnly] the signed claims are trusted until expiry. In [ModeStrict] the user is
// re-loaded and the token is rejected if the account is gone or its role or team
// changed. [ModeInherit] uses the configured default. Every failure is [ErrUnauthorized].
func (e *Engine) ValidateAccess(ctx context.Context, accessToken string, mode RouteMode) (_ *AuthResult, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if e.metrics.LatencyEnabled() {
		start := time.Now()
		defer func() { e.metrics.Observe(MetricValidateLatency, time.Since(start)) }()
	}

	effective, err := e.resolveMode(mode)
	if err != nil {
		return nil, err
	}

	claims, err := e.jwtManager.ParseAccess(accessToken)
	if err != nil {
		return nil, ErrUnauthorized
	}

	if effective == ModeStrict {
		ctx, span := e.startSpan(ctx, "ValidateAccess")
		defer func() { finishSpan(span, err) }()

		userID, perr := uuid.Parse(claims.UserID)
		if perr != nil {
			return nil, ErrUnauthorized
		}
		user, lerr := e.store.UserByID(ctx, userID)
		if lerr != nil {
			if errors.Is(lerr, stores.ErrNotFound) {
				return nil, ErrUnauthorized
			}
			return nil, fmt.Errorf("load user: %w", lerr)
		}
		if user.Role != claims.Role || user.TeamID.String() != claims.TeamID {
			return nil, ErrUnauthorized
		}
	}

	return e.resultFromClaims(claims)
}

func (e *Engine) resolveMode(mode RouteMode) (ValidationMode, error) {
	switch mode {
	case ModeInherit:
		return e.config.ValidationMode, nil
	case ModeJWTOnly, ModeStrict:
		return mode, nil
	default:
		return 0, fmt.Errorf("unknown validation mode %d", mode)
	}
}

func (e *Engine) resultFromClaims(claims *jwt.AccessClaims) (*AuthResult, error) {
	mask, ok := e.roles.Mask(claims.Role)
	if !ok {
		return nil, ErrUnauthorized
	}
	return &AuthResult{
		UserID:      claims.UserID,
		TeamID:      claims.TeamID,
		Role:        claims.Role,
		Mask:        mask,
		Permissions: e.registry.Names(mask),
	}, nil
}

// HasPermission reports whether an authenticated caller holds perm.
func (e *Engine) HasPermission(res *AuthResult, perm string) bool {
	if e == nil || e.registry == nil || res == nil {
		return false
	}
	bit, ok := e.registry.Bit(perm)
	if !ok {
		return false
	}
	return res.Mask.Has(bit)
}

// RolePermissions lists the permissions granted to role.
func (e *Engine) RolePermissions(role string) []string {
	if e == nil || e.roles == nil {
		return nil
	}
	return e.roles.Permissions(role)
}

/*
====================================
PASSWORD CHANGE
====================================
*/

// ChangePassword replaces the password of an authenticated user after checking the
// current one. Other sessions of the user stay valid.
func (e *Engine) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (err error) {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ChangePassword")
	defer func() { finishSpan(span, err) }()

	id, err := uuid.Parse(userID)
	if err != nil {
		return ErrUserNotFound
	}
	if err := checkInput(newPasswordInput{NewPassword: newPassword}); err != nil {
		e.metricInc(MetricPasswordChangeFailure)
		return err
	}

	user, err := e.store.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("load user: %w", err)
	}
	rec := auditRecord{userID: user.ID.String(), teamID: user.TeamID.String()}

	ok, verr := e.hasher.Verify(currentPassword, user.PasswordHash)
	if verr != nil || !ok {
		e.metricInc(MetricPasswordChangeFailure)
		rec.err = ErrInvalidPassword
		e.emitAudit(ctx, auditPasswordChange, false, rec)
		return ErrInvalidPassword
	}
	if currentPassword == newPassword {
		e.metricInc(MetricPasswordChangeFailure)
		return validationError("New password must differ from the current password")
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := e.store.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditPasswordChange, true, rec)
	return nil
}

/*
====================================
HELPERS
====================================
*/

func (e *Engine) limiterError(ctx context.Context, scope string, err error, rec auditRecord) error {
	if errors.Is(err, limiters.ErrRateLimited) {
		e.emitRateLimit(ctx, scope, rec)
		return ErrRateLimited
	}
	return fmt.Errorf("%s throttle: %w", scope, err)
}

// notify hands n to the notifier. Delivery failures never propagate.
func (e *Engine) notify(ctx context.Context, n Notification) {
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.metricInc(MetricNotificationFailure)
		e.logger.Warn().Err(err).Str("kind", string(n.Kind)).Msg("notification not delivered")
	}
}

func userView(user *stores.User) UserView {
	view := UserView{
		ID:     user.ID.String(),
		Email:  user.Email,
		Name:   user.Name,
		Role:   user.Role,
		TeamID: user.TeamID.String(),
	}
	if user.Team != nil {
		view.TeamName = user.Team.Name
	}
	return view
}
