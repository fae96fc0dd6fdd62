package limiters

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// LoginConfig sets the failed-login budget.
type LoginConfig struct {
	EnableIPThrottle bool
	Failures         Window
}

// LoginLimiter counts failed logins per email and per client IP. Successful logins
// clear the email counter.
type LoginLimiter struct {
	redis  redis.UniversalClient
	config LoginConfig
}

func NewLoginLimiter(redisClient redis.UniversalClient, cfg LoginConfig) *LoginLimiter {
	return &LoginLimiter{redis: redisClient, config: cfg}
}

// Check fails when either counter has already used its budget.
func (l *LoginLimiter) Check(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if err := peek(ctx, l.redis, loginEmailKey(email), l.config.Failures); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return peek(ctx, l.redis, loginIPKey(ip), l.config.Failures)
	}
	return nil
}

// RecordFailure counts a failed attempt.
func (l *LoginLimiter) RecordFailure(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if err := hit(ctx, l.redis, loginEmailKey(email), l.config.Failures); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		return hit(ctx, l.redis, loginIPKey(ip), l.config.Failures)
	}
	return nil
}

// Reset clears the email counter after a successful login. The IP counter is left
// alone so one valid account cannot be used to reset an attacker's IP budget.
func (l *LoginLimiter) Reset(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	if err := l.redis.Del(ctx, loginEmailKey(email)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

func loginEmailKey(email string) string {
	return "tl:" + email
}

func loginIPKey(ip string) string {
	return "tli:" + ip
}
