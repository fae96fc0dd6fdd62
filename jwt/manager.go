package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultAccessTTL is the lifetime of access tokens.
	DefaultAccessTTL = 15 * time.Minute
	// DefaultRefreshTTL is the lifetime of refresh tokens and of the session rows they name.
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// ErrTokenInvalid wraps every signature, expiry or claim-shape failure.
var ErrTokenInvalid = errors.New("token invalid")

// Config defines signing secrets and lifetimes for both token classes.
//
// AccessSecret and RefreshSecret must differ so that leaking one cannot be used to
// mint tokens of the other class.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Leeway        time.Duration

	// Now overrides the clock used for iat/exp and verification. Defaults to time.Now.
	Now func() time.Time
}

// Manager signs and verifies access and refresh tokens with HS256.
//
// A Manager is constructed once at startup and shared; it holds no mutable state.
type Manager struct {
	config Config
}

// AccessClaims carries the minimum needed to authorize a request without a database read.
type AccessClaims struct {
	UserID string `json:"userId"`
	TeamID string `json:"teamId"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims carries only the opaque session identifier. The session row stays the
// point of revocation.
type RefreshClaims struct {
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, errors.New("access secret required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("refresh secret required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	cfg.AccessSecret = append([]byte(nil), cfg.AccessSecret...)
	cfg.RefreshSecret = append([]byte(nil), cfg.RefreshSecret...)

	return &Manager{config: cfg}, nil
}

// AccessTTL returns the configured access token lifetime.
func (j *Manager) AccessTTL() time.Duration { return j.config.AccessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (j *Manager) RefreshTTL() time.Duration { return j.config.RefreshTTL }

// RefreshExpiry returns the instant a refresh token signed now will expire. Session rows
// use it so that row and token expire together.
func (j *Manager) RefreshExpiry() time.Time {
	return j.config.Now().Add(j.config.RefreshTTL)
}

// SignAccess issues an access token for the given user, team and role.
func (j *Manager) SignAccess(userID, teamID, role string) (string, error) {
	now := j.config.Now()
	claims := AccessClaims{
		UserID:           userID,
		TeamID:           teamID,
		Role:             role,
		RegisteredClaims: j.registered(now, j.config.AccessTTL),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.config.AccessSecret)
}

// SignRefresh issues a refresh token naming sessionID.
func (j *Manager) SignRefresh(sessionID string) (string, error) {
	now := j.config.Now()
	claims := RefreshClaims{
		SessionID:        sessionID,
		RegisteredClaims: j.registered(now, j.config.RefreshTTL),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.config.RefreshSecret)
}

// ParseAccess verifies an access token and returns its claims.
func (j *Manager) ParseAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := j.parse(tokenStr, claims, j.config.AccessSecret); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.TeamID == "" || claims.Role == "" {
		return nil, fmt.Errorf("%w: missing access claims", ErrTokenInvalid)
	}
	return claims, nil
}

// ParseRefresh verifies a refresh token and returns its claims.
func (j *Manager) ParseRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := j.parse(tokenStr, claims, j.config.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session id", ErrTokenInvalid)
	}
	return claims, nil
}

func (j *Manager) registered(now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	// jti keeps two tokens issued in the same second for the same subject distinct.
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    j.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (j *Manager) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.config.Now),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return ErrTokenInvalid
	}
	return nil
}
