package limiters

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Scope names the Redis key prefixes of one throttled action.
type Scope struct {
	Identifier string
	IP         string
	// Confirm counts redemptions per IP. Empty when the action has no confirm step.
	Confirm string
}

var (
	AccountCreation   = Scope{Identifier: "ta:", IP: "taip:"}
	PasswordReset     = Scope{Identifier: "tpr:", IP: "tprip:", Confirm: "tprc:"}
	EmailVerification = Scope{Identifier: "tvr:", IP: "tvrip:", Confirm: "tvc:"}
)

type ScopedConfig struct {
	EnableIdentifierThrottle bool
	EnableIPThrottle         bool
	Attempts                 Window
}

// ScopedLimiter throttles requests per identifier and per IP, and optionally the
// redemption of whatever the request produced. Every call counts, successful or not.
type ScopedLimiter struct {
	redis  redis.UniversalClient
	scope  Scope
	config ScopedConfig
}

func NewScopedLimiter(rdb redis.UniversalClient, scope Scope, cfg ScopedConfig) *ScopedLimiter {
	return &ScopedLimiter{redis: rdb, scope: scope, config: cfg}
}

// CheckRequest counts one request for identifier from ip.
func (l *ScopedLimiter) CheckRequest(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if l.config.EnableIdentifierThrottle {
		if err := hit(ctx, l.redis, l.scope.Identifier+identifier, l.config.Attempts); err != nil {
			return err
		}
	}
	if l.config.EnableIPThrottle && ip != "" {
		return hit(ctx, l.redis, l.scope.IP+ip, l.config.Attempts)
	}
	return nil
}

// CheckConfirm counts one redemption attempt from ip, bounding token guessing.
func (l *ScopedLimiter) CheckConfirm(ctx context.Context, ip string) error {
	if l == nil || l.scope.Confirm == "" || !l.config.EnableIPThrottle || ip == "" {
		return nil
	}
	return hit(ctx, l.redis, l.scope.Confirm+ip, l.config.Attempts)
}
