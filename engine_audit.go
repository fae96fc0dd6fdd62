package teamauth

import (
	"context"
)

const (
	auditUserRegister             = "user.register"
	auditUserLogin                = "user.login"
	auditUserLoginFailed          = "user.login_failed"
	auditUserLogout               = "user.logout"
	auditUserLogoutAll            = "user.logout_all"
	auditProfileUpdate            = "user.profile_update"
	auditSessionRefresh           = "session.refresh"
	auditPasswordResetRequest     = "user.password_reset_request"
	auditPasswordReset            = "user.password_reset"
	auditPasswordChange           = "user.password_change"
	auditEmailVerificationRequest = "user.email_verification_request"
	auditEmailVerified            = "user.email_verified"
	auditMemberInvite             = "team.member_invite"
	auditInviteAccepted           = "team.invite_accepted"
	auditRateLimited              = "security.rate_limited"
)

// auditRecord is the per-call payload of one audit event. Zero fields are omitted.
type auditRecord struct {
	userID    string
	teamID    string
	sessionID string
	err       error
	metadata  map[string]string
}

func (e *Engine) emitAudit(ctx context.Context, action string, success bool, rec auditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: e.now(),
		Action:    action,
		UserID:    rec.userID,
		TeamID:    rec.teamID,
		SessionID: rec.sessionID,
		IP:        clientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   success,
		Metadata:  rec.metadata,
	}
	event.Error = auditErrorCode(rec.err)

	e.audit.Emit(ctx, event)
}

func (e *Engine) emitRateLimit(ctx context.Context, scope string, rec auditRecord) {
	e.metricInc(MetricRateLimitHit)
	if rec.metadata == nil {
		rec.metadata = map[string]string{}
	}
	rec.metadata["scope"] = scope
	rec.err = ErrRateLimited
	e.emitAudit(ctx, auditRateLimited, false, rec)
}

// auditErrorCode reduces err to the stable string stored with the event. Infrastructure
// failures are recorded as internal_error without their message.
func auditErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if authErr, ok := AsError(err); ok {
		return string(authErr.Code())
	}
	return "internal_error"
}
