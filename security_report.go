package teamauth

import "time"

// SecurityReport summarizes the effective security posture of an Engine. It carries no
// secret material and is safe to log at startup.
type SecurityReport struct {
	ProductionMode      bool
	SigningAlgorithm    string
	ValidationMode      ValidationMode
	StrictMode          bool
	AccessTTL           time.Duration
	RefreshTTL          time.Duration
	Bcrypt              PasswordConfigReport
	OpaqueTokenBytes    int
	ResetTTL            time.Duration
	VerificationTTL     time.Duration
	InviteTTL           time.Duration
	RateLimitingActive  bool
	IPThrottleActive    bool
	AuditActive         bool
	RefreshRotationMode string
}

type PasswordConfigReport struct {
	Cost           int
	UpgradeOnLogin bool
}

func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	return SecurityReport{
		ProductionMode:   e.config.Security.ProductionMode,
		SigningAlgorithm: "HS256",
		ValidationMode:   e.config.ValidationMode,
		StrictMode:       e.config.ValidationMode == ModeStrict,
		AccessTTL:        e.config.JWT.AccessTTL,
		RefreshTTL:       e.config.JWT.RefreshTTL,
		Bcrypt: PasswordConfigReport{
			Cost:           e.config.Password.Cost,
			UpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		},
		OpaqueTokenBytes:    e.config.Tokens.ByteLength,
		ResetTTL:            e.config.Tokens.ResetTTL,
		VerificationTTL:     e.config.Tokens.VerificationTTL,
		InviteTTL:           e.config.Tokens.InviteTTL,
		RateLimitingActive:  e.loginLimiter != nil,
		IPThrottleActive:    e.loginLimiter != nil && e.config.Security.EnableIPThrottle,
		AuditActive:         e.audit != nil,
		RefreshRotationMode: "single-use",
	}
}
