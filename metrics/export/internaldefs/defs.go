package internaldefs

import (
	"strconv"

	"github.com/dossier-crm/teamauth"
)

// CounterDef names one engine counter for exporters.
type CounterDef struct {
	ID   teamauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   teamauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is exported alongside the engine counters.
const AuditDroppedName = "dossier_auth_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: teamauth.MetricRegisterSuccess, Name: "dossier_auth_register_success_total", Help: "Teams registered."},
	{ID: teamauth.MetricRegisterDuplicate, Name: "dossier_auth_register_duplicate_total", Help: "Registrations rejected for an existing email."},
	{ID: teamauth.MetricLoginSuccess, Name: "dossier_auth_login_success_total", Help: "Successful logins."},
	{ID: teamauth.MetricLoginFailure, Name: "dossier_auth_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: teamauth.MetricLoginRateLimited, Name: "dossier_auth_login_rate_limited_total", Help: "Logins rejected by the throttle."},
	{ID: teamauth.MetricLogout, Name: "dossier_auth_logout_total", Help: "Single-session logouts."},
	{ID: teamauth.MetricLogoutAll, Name: "dossier_auth_logout_all_total", Help: "Logouts of every session of a user."},
	{ID: teamauth.MetricRefreshSuccess, Name: "dossier_auth_refresh_success_total", Help: "Refresh token rotations."},
	{ID: teamauth.MetricRefreshFailure, Name: "dossier_auth_refresh_failure_total", Help: "Rejected refresh tokens."},
	{ID: teamauth.MetricRefreshExpired, Name: "dossier_auth_refresh_expired_total", Help: "Refreshes against expired sessions."},
	{ID: teamauth.MetricSessionCreated, Name: "dossier_auth_session_created_total", Help: "Sessions created."},
	{ID: teamauth.MetricSessionInvalidated, Name: "dossier_auth_session_invalidated_total", Help: "Operations that removed sessions."},
	{ID: teamauth.MetricSessionPurged, Name: "dossier_auth_session_purged_total", Help: "Purge runs that removed expired sessions."},
	{ID: teamauth.MetricInviteCreated, Name: "dossier_auth_invite_created_total", Help: "Invites issued."},
	{ID: teamauth.MetricInviteAccepted, Name: "dossier_auth_invite_accepted_total", Help: "Invites accepted."},
	{ID: teamauth.MetricInviteRejected, Name: "dossier_auth_invite_rejected_total", Help: "Invite acceptances rejected."},
	{ID: teamauth.MetricPasswordChangeSuccess, Name: "dossier_auth_password_change_success_total", Help: "Password changes."},
	{ID: teamauth.MetricPasswordChangeFailure, Name: "dossier_auth_password_change_failure_total", Help: "Password changes rejected for a wrong current password."},
	{ID: teamauth.MetricPasswordResetRequest, Name: "dossier_auth_password_reset_request_total", Help: "Password reset requests."},
	{ID: teamauth.MetricPasswordResetSuccess, Name: "dossier_auth_password_reset_success_total", Help: "Completed password resets."},
	{ID: teamauth.MetricPasswordResetFailure, Name: "dossier_auth_password_reset_failure_total", Help: "Rejected password reset tokens."},
	{ID: teamauth.MetricEmailVerificationRequest, Name: "dossier_auth_email_verification_request_total", Help: "Verification tokens issued."},
	{ID: teamauth.MetricEmailVerificationSuccess, Name: "dossier_auth_email_verification_success_total", Help: "Emails verified."},
	{ID: teamauth.MetricEmailVerificationFailure, Name: "dossier_auth_email_verification_failure_total", Help: "Rejected verification tokens."},
	{ID: teamauth.MetricRateLimitHit, Name: "dossier_auth_rate_limit_hit_total", Help: "Requests denied by any throttle."},
	{ID: teamauth.MetricNotificationFailure, Name: "dossier_auth_notification_failure_total", Help: "Notifications the notifier failed to deliver."},
}

var HistogramDefs = []HistogramDef{
	{ID: teamauth.MetricValidateLatency, Name: "dossier_auth_validate_latency_seconds", Help: "Access token validation latency."},
}

// BucketBoundsSeconds returns the engine's finite latency bounds in seconds.
func BucketBoundsSeconds() []float64 {
	bounds := teamauth.LatencyBounds()
	out := make([]float64, len(bounds))
	for i, b := range bounds {
		out[i] = b.Seconds()
	}
	return out
}

// BucketLabels formats each bucket's upper bound, +Inf included, the way Prometheus
// renders the le label.
func BucketLabels() []string {
	bounds := BucketBoundsSeconds()
	out := make([]string, 0, len(bounds)+1)
	for _, b := range bounds {
		out = append(out, strconv.FormatFloat(b, 'g', -1, 64))
	}
	return append(out, "+Inf")
}

// Cumulative converts per-bucket counts to running totals. A short or missing slice is
// treated as zeros so the result always has one entry per bucket.
func Cumulative(h teamauth.LatencyHistogram) []uint64 {
	out := make([]uint64, teamauth.LatencyBucketCount)
	var running uint64
	for i := range out {
		if i < len(h.Buckets) {
			running += h.Buckets[i]
		}
		out[i] = running
	}
	return out
}
