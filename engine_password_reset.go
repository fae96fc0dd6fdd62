package teamauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dossier-crm/teamauth/internal/stores"
)

// RequestPasswordReset issues a password reset token for email.
//
// The call succeeds whether or not an account exists. For unknown emails the returned
// token is generated the same way but never stored, so it cannot be redeemed. For known
// emails every earlier unused reset is retired and the new token is handed to the
// notifier.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (_ *TokenResponse, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "RequestPasswordReset")
	defer func() { finishSpan(span, err) }()

	email = normalizeEmail(email)
	if err := checkInput(emailInput{Email: email}); err != nil {
		return nil, err
	}

	if err := e.resetLimiter.CheckRequest(ctx, email, clientIPFromContext(ctx)); err != nil {
		return nil, e.limiterError(ctx, "password_reset_request", err, auditRecord{metadata: map[string]string{"email": email}})
	}

	token, err := e.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}
	e.metricInc(MetricPasswordResetRequest)

	user, err := e.store.UserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			e.emitAudit(ctx, auditPasswordResetRequest, true, auditRecord{
				metadata: map[string]string{"email": email, "account": "unknown"},
			})
			return &TokenResponse{Token: token}, nil
		}
		return nil, fmt.Errorf("load user: %w", err)
	}

	reset := &stores.PasswordReset{
		Email:     email,
		Token:     token,
		ExpiresAt: e.tokens.PasswordResetExpiry(),
	}
	err = e.store.WithTx(ctx, func(tx *stores.Store) error {
		if _, err := tx.InvalidatePasswordResets(ctx, email, e.now()); err != nil {
			return fmt.Errorf("retire resets: %w", err)
		}
		if err := tx.CreatePasswordReset(ctx, reset); err != nil {
			return fmt.Errorf("create reset: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.emitAudit(ctx, auditPasswordResetRequest, true, auditRecord{
		userID:   user.ID.String(),
		teamID:   user.TeamID.String(),
		metadata: map[string]string{"email": email},
	})
	e.notify(ctx, Notification{
		Kind:      NotifyPasswordReset,
		Email:     email,
		Token:     token,
		ExpiresAt: reset.ExpiresAt,
	})

	return &TokenResponse{Token: token}, nil
}

// ResetPassword redeems a reset token, sets newPassword and deletes every session of the
// user so that all devices must log in again.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) (err error) {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ResetPassword")
	defer func() { finishSpan(span, err) }()

	if err := e.resetLimiter.CheckConfirm(ctx, clientIPFromContext(ctx)); err != nil {
		return e.limiterError(ctx, "password_reset_confirm", err, auditRecord{})
	}
	if token == "" {
		return e.resetFailed(ctx, ErrInvalidResetToken, auditRecord{})
	}
	if err := checkInput(newPasswordInput{NewPassword: newPassword}); err != nil {
		return err
	}

	reset, err := e.store.PasswordResetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return e.resetFailed(ctx, ErrInvalidResetToken, auditRecord{})
		}
		return fmt.Errorf("load reset: %w", err)
	}
	rec := auditRecord{metadata: map[string]string{"email": reset.Email}}
	if reset.UsedAt != nil {
		return e.resetFailed(ctx, ErrResetTokenUsed, rec)
	}
	if !e.now().Before(reset.ExpiresAt) {
		return e.resetFailed(ctx, ErrResetTokenExpired, rec)
	}

	user, err := e.store.UserByEmail(ctx, reset.Email)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return e.resetFailed(ctx, ErrUserNotFound, rec)
		}
		return fmt.Errorf("load user: %w", err)
	}
	rec.userID = user.ID.String()
	rec.teamID = user.TeamID.String()

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	var revoked int64
	err = e.store.WithTx(ctx, func(tx *stores.Store) error {
		won, cerr := tx.ConsumePasswordReset(ctx, reset.ID, e.now())
		if cerr != nil {
			return fmt.Errorf("consume reset: %w", cerr)
		}
		if !won {
			return ErrResetTokenUsed
		}
		if err := tx.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		var derr error
		revoked, derr = tx.DeleteUserSessions(ctx, user.ID)
		if derr != nil {
			return fmt.Errorf("revoke sessions: %w", derr)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrResetTokenUsed) {
			return e.resetFailed(ctx, ErrResetTokenUsed, rec)
		}
		return err
	}

	if lerr := e.loginLimiter.Reset(ctx, user.Email); lerr != nil {
		e.logger.Warn().Err(lerr).Str("user_id", rec.userID).Msg("login throttle reset failed")
	}

	e.metricInc(MetricPasswordResetSuccess)
	if revoked > 0 {
		e.metricInc(MetricSessionInvalidated)
	}
	rec.metadata["sessions_revoked"] = fmt.Sprint(revoked)
	e.emitAudit(ctx, auditPasswordReset, true, rec)
	return nil
}

func (e *Engine) resetFailed(ctx context.Context, cause *Error, rec auditRecord) error {
	e.metricInc(MetricPasswordResetFailure)
	rec.err = cause
	e.emitAudit(ctx, auditPasswordReset, false, rec)
	return cause
}
