package teamauth

import (
	"context"
	"testing"
)

func newBenchmarkEnv(b *testing.B, mode ValidationMode) (*testEnv, *AuthResponse) {
	b.Helper()
	env := newTestEngine(b, engineOptions{config: func(c *Config) {
		c.ValidationMode = mode
		c.Metrics.Enabled = false
	}})
	return env, env.register(b, "bench@x.com")
}

func BenchmarkValidateJWTOnly(b *testing.B) {
	env, reg := newBenchmarkEnv(b, ModeJWTOnly)
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		if _, err := env.engine.ValidateAccess(ctx, reg.Tokens.AccessToken, ModeInherit); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkValidateStrict(b *testing.B) {
	env, reg := newBenchmarkEnv(b, ModeStrict)
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		if _, err := env.engine.ValidateAccess(ctx, reg.Tokens.AccessToken, ModeInherit); err != nil {
			b.Fatalf("validate failed: %v", err)
		}
	}
}

func BenchmarkRefresh(b *testing.B) {
	env, reg := newBenchmarkEnv(b, ModeJWTOnly)
	ctx := context.Background()
	refresh := reg.Tokens.RefreshToken

	b.ReportAllocs()
	for b.Loop() {
		next, err := env.engine.Refresh(ctx, refresh)
		if err != nil {
			b.Fatalf("refresh failed: %v", err)
		}
		refresh = next.RefreshToken
	}
}

func BenchmarkLoginLogout(b *testing.B) {
	env, _ := newBenchmarkEnv(b, ModeJWTOnly)
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		res, err := env.engine.Login(ctx, "bench@x.com", testPassword)
		if err != nil {
			b.Fatalf("login failed: %v", err)
		}
		if err := env.engine.Logout(ctx, res.Tokens.RefreshToken); err != nil {
			b.Fatalf("logout failed: %v", err)
		}
	}
}
