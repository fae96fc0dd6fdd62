// Package limiters provides Redis fixed-window throttles for the authentication flows.
//
// # Limiters
//
//   - [LoginLimiter]: failed-login counter per email and per IP, cleared on success.
//   - [ScopedLimiter]: per-identifier and per-IP request budget with an optional per-IP
//     confirm budget. [AccountCreation] covers registration and invite acceptance,
//     [PasswordReset] and [EmailVerification] cover the token flows.
//
// # Window semantics
//
// SET NX with the window TTL, then INCR, inside one MULTI. Key prefixes:
//   - tl: / tli:   login per-email / per-IP
//   - ta: / taip:  account creation
//   - tpr: / tprip: / tprc:  password reset request / confirm
//   - tvr: / tvrip: / tvc:   email verification request / confirm
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil.
//
// # What this package must NOT do
//
//   - Import teamauth or any sibling internal package.
//   - Decide consequences. Callers map ErrRateLimited to their own error.
package limiters
