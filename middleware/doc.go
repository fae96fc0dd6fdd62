// Package middleware adapts teamauth.Engine access-token validation to net/http.
//
// # Guards
//
//   - [Guard] uses the engine's configured mode unless the route overrides it.
//   - [RequireJWTOnly] trusts signed claims.
//   - [RequireStrict] re-reads the user on every request.
//   - [RequirePermission] checks a named permission against the validated role.
//
// Guards read the access_token cookie, then a Bearer Authorization header, and store
// the validated [teamauth.AuthResult] in the request context. Rejections are written as
// {"error":{"code","message"}} with the status from [StatusFor].
//
// All decisions are delegated to the engine; this package never parses tokens itself.
package middleware
