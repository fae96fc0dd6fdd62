package teamauth

import "errors"

// Code is the stable, transport-agnostic identifier carried by every engine error.
type Code string

const (
	CodeEmailExists              Code = "EMAIL_EXISTS"
	CodeInvalidCredentials       Code = "INVALID_CREDENTIALS"
	CodeInvalidRefreshToken      Code = "INVALID_REFRESH_TOKEN"
	CodeRefreshTokenExpired      Code = "REFRESH_TOKEN_EXPIRED"
	CodeNoRefreshToken           Code = "NO_REFRESH_TOKEN"
	CodeInvalidInvite            Code = "INVALID_INVITE"
	CodeInviteUsed               Code = "INVITE_USED"
	CodeInviteExpired            Code = "INVITE_EXPIRED"
	CodeInvalidResetToken        Code = "INVALID_RESET_TOKEN"
	CodeResetTokenUsed           Code = "RESET_TOKEN_USED"
	CodeResetTokenExpired        Code = "RESET_TOKEN_EXPIRED"
	CodeInvalidPassword          Code = "INVALID_PASSWORD"
	CodeAlreadyVerified          Code = "ALREADY_VERIFIED"
	CodeInvalidVerificationToken Code = "INVALID_VERIFICATION_TOKEN"
	CodeTokenAlreadyUsed         Code = "TOKEN_ALREADY_USED"
	CodeVerificationTokenExpired Code = "VERIFICATION_TOKEN_EXPIRED"
	CodeUserNotFound             Code = "USER_NOT_FOUND"
	CodeValidation               Code = "VALIDATION_ERROR"
	CodeInvalidRole              Code = "INVALID_ROLE"
	CodeUnauthorized             Code = "UNAUTHORIZED"
	CodeForbidden                Code = "FORBIDDEN"
	CodeRateLimited              Code = "RATE_LIMITED"
)

// Kind groups error codes by the class of caller mistake they represent.
// Transports map kinds to status codes; the engine never does.
type Kind uint8

const (
	// KindValidation covers malformed input and invalid state transitions.
	KindValidation Kind = iota
	// KindCredential covers failed authentication and unusable sessions.
	KindCredential
	// KindForbidden covers authenticated callers lacking a permission.
	KindForbidden
	// KindRateLimit covers throttled operations.
	KindRateLimit
)

// Error is the only error type the engine raises for expected, caller-recoverable
// conditions. Anything else returned by an Engine method is an infrastructure failure.
//
// Fields are read through [Error.Code] and [Error.Message] so the exported sentinels
// cannot be altered by importers.
type Error struct {
	code    Code
	message string
}

// NewError builds an engine-compatible error for transports that raise their own
// codes, such as a malformed request body.
func NewError(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func (e *Error) Code() Code { return e.code }

func (e *Error) Message() string { return e.message }

func (e *Error) Error() string {
	return string(e.code) + ": " + e.message
}

// Is reports whether target is an *Error with the same code, so callers can compare
// against the exported sentinels even when the message was customised.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.code == e.code
}

// Kind returns the error class of the error's code.
func (e *Error) Kind() Kind {
	switch e.code {
	case CodeInvalidCredentials, CodeInvalidRefreshToken, CodeRefreshTokenExpired,
		CodeNoRefreshToken, CodeUnauthorized:
		return KindCredential
	case CodeForbidden:
		return KindForbidden
	case CodeRateLimited:
		return KindRateLimit
	default:
		return KindValidation
	}
}

// AsError extracts the engine error from err, if any.
func AsError(err error) (*Error, bool) {
	var authErr *Error
	if errors.As(err, &authErr) {
		return authErr, true
	}
	return nil, false
}

func newError(code Code, message string) *Error {
	return NewError(code, message)
}

func validationError(message string) *Error {
	return newError(CodeValidation, message)
}

var (
	// ErrEmailExists is returned when a registration or invite acceptance collides on email.
	ErrEmailExists = newError(CodeEmailExists, "A user with this email already exists")
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = newError(CodeInvalidCredentials, "Invalid email or password")
	// ErrInvalidRefreshToken is returned when a refresh token fails verification or no longer owns its session.
	ErrInvalidRefreshToken = newError(CodeInvalidRefreshToken, "Invalid refresh token")
	// ErrRefreshTokenExpired is returned when the session behind a refresh token has expired.
	ErrRefreshTokenExpired = newError(CodeRefreshTokenExpired, "Refresh token expired")
	// ErrNoRefreshToken is raised by transports when no refresh token was presented.
	ErrNoRefreshToken = newError(CodeNoRefreshToken, "No refresh token provided")
	// ErrInvalidInvite is returned when no invite matches the token.
	ErrInvalidInvite = newError(CodeInvalidInvite, "Invalid invite token")
	// ErrInviteUsed is returned for invites that are no longer pending.
	ErrInviteUsed = newError(CodeInviteUsed, "Invite has already been used")
	// ErrInviteExpired is returned for pending invites past their expiry.
	ErrInviteExpired = newError(CodeInviteExpired, "Invite has expired")
	// ErrInvalidResetToken is returned when no password reset matches the token.
	ErrInvalidResetToken = newError(CodeInvalidResetToken, "Invalid reset token")
	// ErrResetTokenUsed is returned for consumed or superseded password resets.
	ErrResetTokenUsed = newError(CodeResetTokenUsed, "Reset token has already been used")
	// ErrResetTokenExpired is returned for password resets past their expiry.
	ErrResetTokenExpired = newError(CodeResetTokenExpired, "Reset token has expired")
	// ErrInvalidPassword is returned by ChangePassword when the current password does not match.
	ErrInvalidPassword = newError(CodeInvalidPassword, "Current password is incorrect")
	// ErrAlreadyVerified is returned when the user's email is already verified.
	ErrAlreadyVerified = newError(CodeAlreadyVerified, "Email is already verified")
	// ErrInvalidVerificationToken is returned when no email verification matches the token.
	ErrInvalidVerificationToken = newError(CodeInvalidVerificationToken, "Invalid verification token")
	// ErrTokenAlreadyUsed is returned for consumed or superseded email verifications.
	ErrTokenAlreadyUsed = newError(CodeTokenAlreadyUsed, "Verification token has already been used")
	// ErrVerificationTokenExpired is returned for email verifications past their expiry.
	ErrVerificationTokenExpired = newError(CodeVerificationTokenExpired, "Verification token has expired")
	// ErrUserNotFound is returned when a referenced user no longer exists.
	ErrUserNotFound = newError(CodeUserNotFound, "User not found")
	// ErrInvalidRole is returned when an invite names a role that cannot be granted.
	ErrInvalidRole = newError(CodeInvalidRole, "Invalid role")
	// ErrUnauthorized is returned when an access token is missing, invalid or stale.
	ErrUnauthorized = newError(CodeUnauthorized, "Authentication required")
	// ErrForbidden is returned when the caller lacks the permission an operation needs.
	ErrForbidden = newError(CodeForbidden, "Insufficient permissions")
	// ErrRateLimited is returned when a throttle rejects the operation.
	ErrRateLimited = newError(CodeRateLimited, "Too many requests, please try again later")

	// ErrEngineNotReady is returned when an Engine was not constructed through Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
)
