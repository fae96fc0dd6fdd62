package teamauth

import (
	"context"
	"testing"
	"time"

	"github.com/dossier-crm/teamauth/internal/stores"
	"github.com/google/uuid"
)

func TestEmailVerificationFlow(t *testing.T) {
	env := newTestEngine(t, engineOptions{})
	ctx := context.Background()
	reg := env.register(t, "a@x.com")

	issued, err := env.engine.CreateEmailVerification(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("create verification failed: %v", err)
	}
	if err := env.engine.VerifyEmail(ctx, issued.Token); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	user, err := env.store.UserByID(ctx, uuid.MustParse(reg.User.ID))
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !user.EmailVerified {
		t.Fatal("expected email verified")
	}

	err = env.engine.VerifyEmail(ctx, issued.Token)
	assertCode(t, err, ErrTokenAlreadyUsed)

	_, err = env.engine.CreateEmailVerification(ctx, reg.User.ID)
	assertCode(t, err, ErrAlreadyVerified)

	sent := env.notifier.Sent()
	if len(sent) != 1 || sent[0].Kind != NotifyEmailVerification || sent[0].Email != "a@x.com" {
		t.Fatalf("expected one verification notification, got %+v", sent)
	}
}

func TestResendVerificationRetiresPreviousToken(t *testing.T) {
	env := newTestEngine(t, engineOptions{})
	ctx := context.Background()
	reg := env.register(t, "a@x.com")

	first, err := env.engine.CreateEmailVerification(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := env.engine.ResendVerificationEmail(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	if first.Token == second.Token {
		t.Fatal("expected a fresh token")
	}

	err = env.engine.VerifyEmail(ctx, first.Token)
	assertCode(t, err, ErrTokenAlreadyUsed)
	if err := env.engine.VerifyEmail(ctx, second.Token); err != nil {
		t.Fatalf("latest token rejected: %v", err)
	}
}

func TestVerifyEmailExpiryBoundary(t *testing.T) {
	env := newTestEngine(t, engineOptions{})
	ctx := context.Background()
	reg := env.register(t, "a@x.com")

	issued, err := env.engine.CreateEmailVerification(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// expiresAt == now is expired.
	env.clock.Advance(24 * time.Hour)
	err = env.engine.VerifyEmail(ctx, issued.Token)
	assertCode(t, err, ErrVerificationTokenExpired)
}

func TestVerifyEmailErrors(t *testing.T) {
	env := newTestEngine(t, engineOptions{})
	ctx := context.Background()
	reg := env.register(t, "a@x.com")

	assertCode(t, env.engine.VerifyEmail(ctx, ""), ErrInvalidVerificationToken)
	assertCode(t, env.engine.VerifyEmail(ctx, "unknown"), ErrInvalidVerificationToken)

	_, err := env.engine.CreateEmailVerification(ctx, uuid.NewString())
	assertCode(t, err, ErrUserNotFound)

	issued, err := env.engine.CreateEmailVerification(ctx, reg.User.ID)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	// Verified through another path while the token was outstanding.
	if err := env.store.MarkEmailVerified(ctx, uuid.MustParse(reg.User.ID)); err != nil {
		t.Fatalf("mark verified: %v", err)
	}
	assertCode(t, env.engine.VerifyEmail(ctx, issued.Token), ErrAlreadyVerified)

	var open int64
	env.store.DB().Model(&stores.EmailVerification{}).Where("verified_at IS NULL").Count(&open)
	if open != 1 {
		t.Fatalf("rejected verification must not consume the token, open=%d", open)
	}
}
