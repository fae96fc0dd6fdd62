// Package teamauth is the authentication and session engine of the Dossier CRM.
//
// It registers teams and their owners, logs users in, rotates single-use refresh tokens,
// admits invited members, and runs the password-reset and email-verification flows. Every
// user belongs to exactly one team and holds one of the owner, admin, member or viewer
// roles; roles resolve to permission bitmasks through the permission package.
//
// An [Engine] is assembled once through [Builder] and is safe for concurrent use:
//
//	engine, err := teamauth.New().
//		WithConfig(cfg).
//		WithDatabase(db).
//		WithRedis(rdb).
//		WithLogger(logger).
//		Build()
//
// # State
//
// Accounts, sessions, invites and one-time tokens live in a relational database reached
// through gorm. Multi-row changes run in a single transaction, and races between
// concurrent callers are settled by unique indexes and compare-and-set updates rather
// than in-process locks. Redis is optional and only backs the throttles.
//
// # Errors
//
// Expected failures are *[Error] values carrying a stable [Code]. Compare them with
// errors.Is against the exported sentinels. Any other error is an infrastructure failure.
//
// # Transports
//
// The engine never deals with HTTP. The middleware package guards handlers with access
// tokens, and internal/httpapi maps the engine onto the /api/v1/auth routes.
package teamauth
