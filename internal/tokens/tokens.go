// Package tokens generates the opaque, single-use tokens behind invites, password
// resets and email verifications, and computes their expiries.
package tokens

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const (
	// DefaultByteLength yields 64 hex characters.
	DefaultByteLength = 32

	PasswordResetTTL     = time.Hour
	EmailVerificationTTL = 24 * time.Hour
	InviteTTL            = 7 * 24 * time.Hour
)

// Generate returns byteLength cryptographically random bytes, hex encoded.
func Generate(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", errors.New("token byte length must be > 0")
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Config sets token size and lifetimes. Zero values fall back to the defaults above.
type Config struct {
	ByteLength           int
	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration
	InviteTTL            time.Duration
	Now                  func() time.Time
}

// Generator pairs token generation with a clock so expiries are computed consistently.
type Generator struct {
	config Config
}

func NewGenerator(cfg Config) *Generator {
	if cfg.ByteLength <= 0 {
		cfg.ByteLength = DefaultByteLength
	}
	if cfg.PasswordResetTTL <= 0 {
		cfg.PasswordResetTTL = PasswordResetTTL
	}
	if cfg.EmailVerificationTTL <= 0 {
		cfg.EmailVerificationTTL = EmailVerificationTTL
	}
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = InviteTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Generator{config: cfg}
}

// Token returns a fresh opaque token.
func (g *Generator) Token() (string, error) {
	return Generate(g.config.ByteLength)
}

func (g *Generator) PasswordResetExpiry() time.Time {
	return g.config.Now().Add(g.config.PasswordResetTTL)
}

func (g *Generator) EmailVerificationExpiry() time.Time {
	return g.config.Now().Add(g.config.EmailVerificationTTL)
}

func (g *Generator) InviteExpiry() time.Time {
	return g.config.Now().Add(g.config.InviteTTL)
}
