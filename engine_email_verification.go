package teamauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/dossier-crm/teamauth/internal/stores"
)

// CreateEmailVerification issues a verification token for the user's email and retires
// every earlier unused one. It fails with [ErrAlreadyVerified] once the email is verified.
func (e *Engine) CreateEmailVerification(ctx context.Context, userID string) (_ *TokenResponse, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "CreateEmailVerification")
	defer func() { finishSpan(span, err) }()

	return e.issueEmailVerification(ctx, userID)
}

// ResendVerificationEmail behaves like CreateEmailVerification. The previous token stops
// working.
func (e *Engine) ResendVerificationEmail(ctx context.Context, userID string) (_ *TokenResponse, err error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "ResendVerificationEmail")
	defer func() { finishSpan(span, err) }()

	return e.issueEmailVerification(ctx, userID)
}

func (e *Engine) issueEmailVerification(ctx context.Context, userID string) (*TokenResponse, error) {
	user, err := e.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	rec := auditRecord{userID: user.ID.String(), teamID: user.TeamID.String()}

	if user.EmailVerified {
		rec.err = ErrAlreadyVerified
		e.emitAudit(ctx, auditEmailVerificationRequest, false, rec)
		return nil, ErrAlreadyVerified
	}

	if err := e.verificationLimiter.CheckRequest(ctx, user.ID.String(), clientIPFromContext(ctx)); err != nil {
		return nil, e.limiterError(ctx, "email_verification_request", err, rec)
	}

	token, err := e.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}
	verification := &stores.EmailVerification{
		UserID:    user.ID,
		Token:     token,
		ExpiresAt: e.tokens.EmailVerificationExpiry(),
	}
	err = e.store.WithTx(ctx, func(tx *stores.Store) error {
		if _, err := tx.InvalidateEmailVerifications(ctx, user.ID, e.now()); err != nil {
			return fmt.Errorf("retire verifications: %w", err)
		}
		if err := tx.CreateEmailVerification(ctx, verification); err != nil {
			return fmt.Errorf("create verification: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricEmailVerificationRequest)
	e.emitAudit(ctx, auditEmailVerificationRequest, true, rec)
	e.notify(ctx, Notification{
		Kind:      NotifyEmailVerification,
		Email:     user.Email,
		Token:     token,
		ExpiresAt: verification.ExpiresAt,
	})

	return &TokenResponse{Token: token}, nil
}

// VerifyEmail redeems a verification token and marks the user's email verified.
func (e *Engine) VerifyEmail(ctx context.Context, token string) (err error) {
	if !e.ready() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "VerifyEmail")
	defer func() { finishSpan(span, err) }()

	if err := e.verificationLimiter.CheckConfirm(ctx, clientIPFromContext(ctx)); err != nil {
		return e.limiterError(ctx, "email_verification_confirm", err, auditRecord{})
	}
	if token == "" {
		return e.verificationFailed(ctx, ErrInvalidVerificationToken, auditRecord{})
	}

	verification, err := e.store.EmailVerificationByToken(ctx, token)
	if err != nil {
		if errors.Is(err, stores.ErrNotFound) {
			return e.verificationFailed(ctx, ErrInvalidVerificationToken, auditRecord{})
		}
		return fmt.Errorf("load verification: %w", err)
	}
	rec := auditRecord{userID: verification.UserID.String()}
	if verification.User != nil {
		rec.teamID = verification.User.TeamID.String()
	}

	if verification.VerifiedAt != nil {
		return e.verificationFailed(ctx, ErrTokenAlreadyUsed, rec)
	}
	if !e.now().Before(verification.ExpiresAt) {
		return e.verificationFailed(ctx, ErrVerificationTokenExpired, rec)
	}
	if verification.User == nil {
		return e.verificationFailed(ctx, ErrUserNotFound, rec)
	}
	if verification.User.EmailVerified {
		return e.verificationFailed(ctx, ErrAlreadyVerified, rec)
	}

	err = e.store.WithTx(ctx, func(tx *stores.Store) error {
		won, cerr := tx.ConsumeEmailVerification(ctx, verification.ID, e.now())
		if cerr != nil {
			return fmt.Errorf("consume verification: %w", cerr)
		}
		if !won {
			return ErrTokenAlreadyUsed
		}
		if err := tx.MarkEmailVerified(ctx, verification.UserID); err != nil {
			return fmt.Errorf("mark verified: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrTokenAlreadyUsed) {
			return e.verificationFailed(ctx, ErrTokenAlreadyUsed, rec)
		}
		return err
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEmailVerified, true, rec)
	return nil
}

func (e *Engine) verificationFailed(ctx context.Context, cause *Error, rec auditRecord) error {
	e.metricInc(MetricEmailVerificationFailure)
	rec.err = cause
	e.emitAudit(ctx, auditEmailVerified, false, rec)
	return cause
}
