package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	// DefaultCost keeps a single hash in the ~100ms range on current server hardware.
	DefaultCost = 12

	// bcrypt ignores input past 72 bytes; longer secrets would silently collide.
	maxPassBytes = 72
)

// ErrPasswordTooLong is returned for inputs bcrypt would truncate.
var ErrPasswordTooLong = errors.New("password exceeds 72 bytes")

// Config defines the bcrypt work factor.
type Config struct {
	Cost int
}

// Bcrypt hashes and verifies passwords. It is safe for concurrent use.
type Bcrypt struct {
	config Config
}

// NewBcrypt validates cfg and returns a hasher.
func NewBcrypt(cfg Config) (*Bcrypt, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Bcrypt{config: cfg}, nil
}

// Hash returns the bcrypt encoding of password using the configured cost.
func (b *Bcrypt) Hash(password string) (string, error) {
	// Raw string bytes are hashed exactly as provided (no Unicode normalization).
	if len(password) > maxPassBytes {
		return "", ErrPasswordTooLong
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), b.config.Cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}

	return string(hash), nil
}

// Verify reports whether password matches encodedHash.
//
// A mismatch is (false, nil). Malformed hashes return an error so callers can tell
// corrupt rows apart from wrong passwords.
func (b *Bcrypt) Verify(password string, encodedHash string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encodedHash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("bcrypt verify: %w", err)
	}
}

// NeedsUpgrade reports whether encodedHash was produced with a lower cost than configured.
func (b *Bcrypt) NeedsUpgrade(encodedHash string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(encodedHash))
	if err != nil {
		return false, fmt.Errorf("bcrypt cost: %w", err)
	}

	return cost < b.config.Cost, nil
}

func validateConfig(cfg Config) error {
	if cfg.Cost < bcrypt.MinCost || cfg.Cost > bcrypt.MaxCost {
		return fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}
